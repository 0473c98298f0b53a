package fallback

import (
	"fmt"

	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

type State int

const (
	// StateIdle has no pipeline layout bound.
	StateIdle State = iota
	// StateLayoutBound accepts bindings but cannot dispatch yet.
	StateLayoutBound
	// StateReady has a layout and a pipeline and can dispatch.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLayoutBound:
		return "layout-bound"
	case StateReady:
		return "ready"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Context records mesh work for one render pass into a command list.
//
// Bindings go through the index maps of the bound layout into the pending
// commands of each fallback pass and are replayed on every DispatchMesh, so
// they stay in effect across dispatches until the layout is rebound. The
// first contract violation is kept, after which DispatchMesh records nothing
// and returns it.
type Context struct {
	layer    *Layer
	cl       renderer.CommandList
	native   bool
	state    State
	layout   *PipelineLayout
	pipeline *Pipeline
	pending  [passCount]pendingCommands
	err      error
}

func (c *Context) State() State {
	return c.state
}

// Native reports whether the context forwards to native mesh shading.
func (c *Context) Native() bool {
	return c.native
}

// Err returns the first error recorded by the context.
func (c *Context) Err() error {
	return c.err
}

func (c *Context) fail(err error) {
	if c.err == nil {
		core.LogWarn("Mesh fallback context failed: %s", err)
		c.err = err
	}
}

// Pending returns the bindings buffered for the pass in replay order.
func (c *Context) Pending(pass Pass) []PendingBinding {
	return c.pending[pass.index()].bindings()
}

// SetPipelineLayout binds a layout bundle and drops every pending binding.
func (c *Context) SetPipelineLayout(layout *PipelineLayout) {
	if !layout.IsValid(c.layer.meshShaderSupported) {
		c.fail(core.ErrInvalidPipelineLayout)
		return
	}
	if c.native {
		c.cl.SetGraphicsPipelineLayout(layout.Native())
	} else {
		for i := range c.pending {
			c.pending[i].reset()
		}
	}
	c.layout = layout
	if c.pipeline != nil {
		c.state = StateReady
	} else {
		c.state = StateLayoutBound
	}
}

func (c *Context) SetPipelineState(pipeline *Pipeline) {
	if c.state == StateIdle {
		c.fail(fmt.Errorf("SetPipelineState before SetPipelineLayout: %w", core.ErrInvalidState))
		return
	}
	if !pipeline.IsValid(c.layer.meshShaderSupported) {
		c.fail(core.ErrInvalidPipeline)
		return
	}
	if c.native {
		c.cl.SetPipelineState(pipeline.Native())
	}
	c.pipeline = pipeline
	c.state = StateReady
}

// route checks a binding against the unified slot and returns the index pair
// of every pass the slot reaches. ok is false when the binding is dropped.
func (c *Context) route(op string, index uint32, kind metadata.SlotKind) (pairs [passCount]IndexPair, ok bool) {
	if c.state == StateIdle {
		c.fail(fmt.Errorf("%s(%d) before SetPipelineLayout: %w", op, index, core.ErrInvalidState))
		return pairs, false
	}
	slot, found := c.layout.slot(index)
	if !found {
		c.fail(fmt.Errorf("%s(%d) with %d slots: %w", op, index, c.layout.Len(), core.ErrSlotOutOfRange))
		return pairs, false
	}
	if slot.Kind() != kind {
		c.fail(fmt.Errorf("%s(%d) on %s slot: %w", op, index, slot.Kind(), core.ErrSlotKindMismatch))
		return pairs, false
	}
	for _, pass := range Passes() {
		pairs[pass.index()], _ = c.layout.IndexMap(pass).Lookup(index)
	}
	return pairs, true
}

func (c *Context) SetDescriptorTable(index uint32, table metadata.DescriptorTable) {
	pairs, ok := c.route("SetDescriptorTable", index, metadata.SlotKindTable)
	if !ok {
		return
	}
	if c.native {
		c.cl.SetGraphicsDescriptorTable(index, table)
		return
	}
	for i, pair := range pairs {
		if pair.Valid() {
			c.pending[i].setTable(pair, table)
		}
	}
}

func (c *Context) Set32BitConstant(index uint32, srcData uint32, destOffsetIn32BitValues uint32) {
	if !c.checkConstants("Set32BitConstant", index, 1, destOffsetIn32BitValues) {
		return
	}
	if c.native {
		c.cl.SetGraphics32BitConstant(index, srcData, destOffsetIn32BitValues)
		return
	}
	c.bufferConstants(index, []uint32{srcData}, destOffsetIn32BitValues)
}

// Set32BitConstants writes srcData to the slot starting at destOffsetIn32BitValues.
func (c *Context) Set32BitConstants(index uint32, srcData []uint32, destOffsetIn32BitValues uint32) {
	if !c.checkConstants("Set32BitConstants", index, uint32(len(srcData)), destOffsetIn32BitValues) {
		return
	}
	if c.native {
		c.cl.SetGraphics32BitConstants(index, srcData, destOffsetIn32BitValues)
		return
	}
	c.bufferConstants(index, srcData, destOffsetIn32BitValues)
}

func (c *Context) checkConstants(op string, index, count, destOffset uint32) bool {
	if _, ok := c.route(op, index, metadata.SlotKindConstant); !ok {
		return false
	}
	slot, _ := c.layout.slot(index)
	if uint64(destOffset)+uint64(count) > uint64(slot.ConstantCount()) {
		c.fail(fmt.Errorf("%s(%d) writes %d values at %d into %d: %w", op, index, count, destOffset, slot.ConstantCount(), core.ErrSlotOutOfRange))
		return false
	}
	return true
}

func (c *Context) bufferConstants(index uint32, values []uint32, destOffset uint32) {
	pairs, _ := c.route("constants", index, metadata.SlotKindConstant)
	for i, pair := range pairs {
		if pair.Valid() {
			c.pending[i].setConstants(pair, values, destOffset)
		}
	}
}

func (c *Context) SetRootConstantBufferView(index uint32, buffer metadata.Buffer, offset uint64) {
	c.setRootView("SetRootConstantBufferView", index, metadata.SlotKindRootCBV, buffer, offset, c.cl.SetGraphicsRootConstantBufferView)
}

func (c *Context) SetRootShaderResourceView(index uint32, buffer metadata.Buffer, offset uint64) {
	c.setRootView("SetRootShaderResourceView", index, metadata.SlotKindRootSRV, buffer, offset, c.cl.SetGraphicsRootShaderResourceView)
}

func (c *Context) SetRootUnorderedAccessView(index uint32, buffer metadata.Buffer, offset uint64) {
	c.setRootView("SetRootUnorderedAccessView", index, metadata.SlotKindRootUAV, buffer, offset, c.cl.SetGraphicsRootUnorderedAccessView)
}

func (c *Context) setRootView(op string, index uint32, kind metadata.SlotKind, buffer metadata.Buffer, offset uint64, native func(uint32, metadata.Buffer, uint64)) {
	pairs, ok := c.route(op, index, kind)
	if !ok {
		return
	}
	if c.native {
		native(index, buffer, offset)
		return
	}
	for i, pair := range pairs {
		if pair.Valid() {
			c.pending[i].setView(pair, buffer, offset)
		}
	}
}

// DispatchMesh records a mesh dispatch of x*y*z groups. In fallback mode each
// group is one batch of the payloads.
func (c *Context) DispatchMesh(x, y, z uint32) error {
	if c.err != nil {
		c.layer.metrics.RejectedDispatches.Add(1)
		return c.err
	}
	if c.state != StateReady {
		c.fail(fmt.Errorf("DispatchMesh in state %s: %w", c.state, core.ErrInvalidState))
		c.layer.metrics.RejectedDispatches.Add(1)
		return c.err
	}

	if c.native {
		c.cl.DispatchMesh(x, y, z)
		c.layer.metrics.NativeDispatches.Add(1)
		return nil
	}

	if err := c.emulate(x, y, z); err != nil {
		c.layer.metrics.RejectedDispatches.Add(1)
		return err
	}
	return nil
}
