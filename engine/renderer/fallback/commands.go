package fallback

import (
	"github.com/spaghettifunk/meshfallback/engine/renderer"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

// PendingBinding is a binding buffered for one pass, addressed by derived slot.
type PendingBinding struct {
	Kind   metadata.SlotKind
	Index  uint32
	Table  metadata.DescriptorTable
	Values []uint32
	Buffer metadata.Buffer
	Offset uint64
}

type pendingEntry struct {
	PendingBinding
	set bool
}

// pendingCommands keeps one list per slot kind, each indexed by IndexPair.Cmd.
// Entries never set are skipped on replay.
type pendingCommands struct {
	tables    []pendingEntry
	constants []pendingEntry
	cbvs      []pendingEntry
	srvs      []pendingEntry
	uavs      []pendingEntry
}

func (p *pendingCommands) reset() {
	p.tables = p.tables[:0]
	p.constants = p.constants[:0]
	p.cbvs = p.cbvs[:0]
	p.srvs = p.srvs[:0]
	p.uavs = p.uavs[:0]
}

func (p *pendingCommands) list(kind metadata.SlotKind) *[]pendingEntry {
	switch kind {
	case metadata.SlotKindTable:
		return &p.tables
	case metadata.SlotKindConstant:
		return &p.constants
	case metadata.SlotKindRootCBV:
		return &p.cbvs
	case metadata.SlotKindRootSRV:
		return &p.srvs
	case metadata.SlotKindRootUAV:
		return &p.uavs
	}
	return nil
}

// entry returns the command at pair.Cmd, growing the list as needed.
func (p *pendingCommands) entry(pair IndexPair) *pendingEntry {
	l := p.list(pair.Kind)
	for uint32(len(*l)) <= pair.Cmd {
		*l = append(*l, pendingEntry{})
	}
	e := &(*l)[pair.Cmd]
	if !e.set {
		e.PendingBinding = PendingBinding{Kind: pair.Kind}
	}
	e.Index = pair.Prm
	e.set = true
	return e
}

func (p *pendingCommands) setTable(pair IndexPair, table metadata.DescriptorTable) {
	p.entry(pair).Table = table
}

// setConstants writes values at destOffset, keeping values set earlier at other offsets.
func (p *pendingCommands) setConstants(pair IndexPair, values []uint32, destOffset uint32) {
	e := p.entry(pair)
	end := destOffset + uint32(len(values))
	if uint32(len(e.Values)) < end {
		grown := make([]uint32, end)
		copy(grown, e.Values)
		e.Values = grown
	}
	copy(e.Values[destOffset:], values)
}

func (p *pendingCommands) setView(pair IndexPair, buffer metadata.Buffer, offset uint64) {
	e := p.entry(pair)
	e.Buffer = buffer
	e.Offset = offset
}

// bindings returns the set commands in replay order.
func (p *pendingCommands) bindings() []PendingBinding {
	var out []PendingBinding
	for _, l := range [][]pendingEntry{p.tables, p.constants, p.cbvs, p.srvs, p.uavs} {
		for _, e := range l {
			if e.set {
				out = append(out, e.PendingBinding)
			}
		}
	}
	return out
}

// binder issues bindings on the compute or the graphics side of a command list.
type binder struct {
	setLayout    func(metadata.PipelineLayout)
	setTable     func(uint32, metadata.DescriptorTable)
	setConstant  func(uint32, uint32, uint32)
	setConstants func(uint32, []uint32, uint32)
	setCBV       func(uint32, metadata.Buffer, uint64)
	setSRV       func(uint32, metadata.Buffer, uint64)
	setUAV       func(uint32, metadata.Buffer, uint64)
}

func binderFor(cl renderer.CommandList, pass Pass) binder {
	if pass.IsCompute() {
		return binder{
			setLayout:    cl.SetComputePipelineLayout,
			setTable:     cl.SetComputeDescriptorTable,
			setConstant:  cl.SetCompute32BitConstant,
			setConstants: cl.SetCompute32BitConstants,
			setCBV:       cl.SetComputeRootConstantBufferView,
			setSRV:       cl.SetComputeRootShaderResourceView,
			setUAV:       cl.SetComputeRootUnorderedAccessView,
		}
	}
	return binder{
		setLayout:    cl.SetGraphicsPipelineLayout,
		setTable:     cl.SetGraphicsDescriptorTable,
		setConstant:  cl.SetGraphics32BitConstant,
		setConstants: cl.SetGraphics32BitConstants,
		setCBV:       cl.SetGraphicsRootConstantBufferView,
		setSRV:       cl.SetGraphicsRootShaderResourceView,
		setUAV:       cl.SetGraphicsRootUnorderedAccessView,
	}
}

func (b binder) replay(bindings []PendingBinding) {
	for _, c := range bindings {
		switch c.Kind {
		case metadata.SlotKindTable:
			b.setTable(c.Index, c.Table)
		case metadata.SlotKindConstant:
			b.setConstants(c.Index, c.Values, 0)
		case metadata.SlotKindRootCBV:
			b.setCBV(c.Index, c.Buffer, c.Offset)
		case metadata.SlotKindRootSRV:
			b.setSRV(c.Index, c.Buffer, c.Offset)
		case metadata.SlotKindRootUAV:
			b.setUAV(c.Index, c.Buffer, c.Offset)
		}
	}
}
