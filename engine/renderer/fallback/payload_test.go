package fallback

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
	"github.com/spaghettifunk/meshfallback/engine/renderer/recorder"
)

func TestComputePayloadSizes(t *testing.T) {
	s, err := ComputePayloadSizes(100, 64, 126, 32, 32, gputypes.IndexFormatUint16)
	require.NoError(t, err)

	assert.Equal(t, uint32(4), s.BatchCapacity)
	assert.Equal(t, uint32(6400), s.VertexCount)
	assert.Equal(t, uint64(6400*32), s.VertexBytes())
	assert.Equal(t, uint32(3*126*100), s.IndexCount)
	assert.Equal(t, uint64(3*126*100*2), s.IndexBytes())
	assert.Equal(t, uint32(40), s.RecordWords)
	assert.Equal(t, uint32(40*4+5), s.DispatchWords)
	assert.Equal(t, uint64(160), s.RecordOffset(1))
}

func TestComputePayloadSizesRejectsZero(t *testing.T) {
	_, err := ComputePayloadSizes(100, 64, 126, 32, 0, gputypes.IndexFormatUint16)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestInitCreatesPayloads(t *testing.T) {
	device := recorder.NewDevice()
	layer := New(device, false)
	require.NoError(t, layer.Init(100, 64, 126, 32, 32))

	vertex := device.FindBuffer("VertexPayloads")
	require.NotNil(t, vertex)
	assert.Equal(t, uint64(6400*32), vertex.Size())

	index := device.FindBuffer("IndexPayloads")
	require.NotNil(t, index)
	assert.Equal(t, gputypes.IndexFormatUint16, index.Desc.IndexFormat)

	dispatch := device.FindBuffer("DispatchPayloads")
	require.NotNil(t, dispatch)
	assert.Equal(t, uint64(165*4), dispatch.Size())

	require.Len(t, device.DescriptorTables, 2)
	assert.Len(t, device.DescriptorTables[0].Desc.Views, 2)
	assert.Len(t, device.DescriptorTables[1].Desc.Views, 1)
}

func TestInitWithConfig(t *testing.T) {
	layer := New(recorder.NewDevice(), false)
	cfg := core.DefaultConfig().Payload
	cfg.IndexFormat = "uint32"
	require.NoError(t, layer.InitWithConfig(&cfg))
	assert.Equal(t, gputypes.IndexFormatUint32, layer.PayloadSizes().IndexFormat)
	assert.Equal(t, uint64(3*126*100*4), layer.PayloadSizes().IndexBytes())

	cfg.IndexFormat = "uint8"
	assert.ErrorIs(t, layer.InitWithConfig(&cfg), core.ErrInvalidConfig)
}

func TestInitChecksStorageAlignment(t *testing.T) {
	for _, tc := range []struct {
		alignment uint64
		ok        bool
	}{
		{0, true},
		{4, true},
		{16, true},
		{32, true},
		{64, false},
		{256, false},
	} {
		device := recorder.NewDevice(recorder.WithStorageBufferOffsetAlignment(tc.alignment))
		layer := New(device, false)
		err := layer.Init(100, 64, 126, 32, 32)
		if tc.ok {
			assert.NoError(t, err, "alignment %d", tc.alignment)
			continue
		}
		assert.ErrorIs(t, err, core.ErrSlotOutOfRange, "alignment %d", tc.alignment)
		assert.Empty(t, device.Buffers, "alignment %d", tc.alignment)
	}
}

func TestInitPropagatesCreationFailure(t *testing.T) {
	boom := errors.New("out of memory")
	layer := New(recorder.NewDevice(recorder.WithFailure("IndexPayloads", boom)), false)
	err := layer.Init(100, 64, 126, 32, 32)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, PayloadSizes{}, layer.PayloadSizes())
}

func TestPayloadTransition(t *testing.T) {
	p := &payloadBuffer{buffer: &recorder.Buffer{}, state: metadata.ResourceStateUnorderedAccess}

	barriers := p.transition(nil, metadata.ResourceStateUnorderedAccess, metadata.BarrierFlagNone)
	require.Len(t, barriers, 1)
	assert.Equal(t, metadata.BarrierTypeUAV, barriers[0].Type)

	barriers = p.transition(nil, metadata.ResourceStateIndexBuffer, metadata.BarrierFlagNone)
	require.Len(t, barriers, 1)
	assert.Equal(t, metadata.ResourceStateUnorderedAccess, barriers[0].Before)
	assert.Equal(t, metadata.ResourceStateIndexBuffer, barriers[0].After)

	assert.Empty(t, p.transition(nil, metadata.ResourceStateIndexBuffer, metadata.BarrierFlagNone))

	barriers = p.transition(nil, metadata.ResourceStateUnorderedAccess, metadata.BarrierFlagResetSrcState)
	require.Len(t, barriers, 1)
	assert.Equal(t, metadata.BarrierFlagResetSrcState, barriers[0].Flags)
	assert.Equal(t, metadata.ResourceStateUnorderedAccess, p.state)
}
