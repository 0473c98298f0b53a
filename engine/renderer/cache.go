package renderer

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

// CachedDevice reuses pipeline layouts and pipelines created from identical
// descriptions. Buffers and tables are always created anew.
type CachedDevice struct {
	Device

	mu        sync.Mutex
	layouts   map[string]metadata.PipelineLayout
	pipelines map[string]metadata.Pipeline
	hits      uint64
}

func NewCachedDevice(device Device) *CachedDevice {
	return &CachedDevice{
		Device:    device,
		layouts:   map[string]metadata.PipelineLayout{},
		pipelines: map[string]metadata.Pipeline{},
	}
}

// Hits is the number of creations served from the cache.
func (d *CachedDevice) Hits() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hits
}

func (d *CachedDevice) CreatePipelineLayout(desc *metadata.PipelineLayoutDesc) (metadata.PipelineLayout, error) {
	key := desc.Key()
	d.mu.Lock()
	defer d.mu.Unlock()
	if l, ok := d.layouts[key]; ok {
		d.hits++
		return l, nil
	}
	l, err := d.Device.CreatePipelineLayout(desc)
	if err != nil {
		return nil, err
	}
	d.layouts[key] = l
	return l, nil
}

func (d *CachedDevice) CreateComputePipeline(desc *metadata.ComputePipelineDesc) (metadata.Pipeline, error) {
	return d.pipeline(fmt.Sprintf("cs|%p|%s", desc.Layout, blobKey(desc.CS)), func() (metadata.Pipeline, error) {
		return d.Device.CreateComputePipeline(desc)
	})
}

func (d *CachedDevice) CreateGraphicsPipeline(desc *metadata.GraphicsPipelineDesc) (metadata.Pipeline, error) {
	key := fmt.Sprintf("gfx|%p|%s|%s|%+v", desc.Layout, blobKey(desc.VS), blobKey(desc.PS), desc.Output)
	return d.pipeline(key, func() (metadata.Pipeline, error) {
		return d.Device.CreateGraphicsPipeline(desc)
	})
}

func (d *CachedDevice) CreateMeshPipeline(desc *metadata.MeshShaderStateDesc) (metadata.Pipeline, error) {
	key := fmt.Sprintf("ms|%p|%s|%s|%s|%+v", desc.Layout, blobKey(desc.AS), blobKey(desc.MS), blobKey(desc.PS), desc.Output)
	return d.pipeline(key, func() (metadata.Pipeline, error) {
		return d.Device.CreateMeshPipeline(desc)
	})
}

// Purge drops every cached pipeline, e.g. after shaders were reloaded.
func (d *CachedDevice) Purge() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pipelines = map[string]metadata.Pipeline{}
	core.LogDebug("Pipeline cache purged")
}

func (d *CachedDevice) pipeline(key string, create func() (metadata.Pipeline, error)) (metadata.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pipelines[key]; ok {
		d.hits++
		return p, nil
	}
	p, err := create()
	if err != nil {
		return nil, err
	}
	d.pipelines[key] = p
	return p, nil
}

// blobKey identifies shader code by name, entry point and an FNV-1a hash of
// its words.
func blobKey(b *metadata.ShaderBlob) string {
	if b == nil {
		return "-"
	}
	h := fnv.New64a()
	var word [4]byte
	for _, w := range b.Code {
		binary.LittleEndian.PutUint32(word[:], w)
		_, _ = h.Write(word[:])
	}
	return fmt.Sprintf("%s:%s:%d:%016x", b.Name, b.Entry(), len(b.Code), h.Sum64())
}
