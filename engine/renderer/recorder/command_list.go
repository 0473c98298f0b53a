package recorder

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

type Op int

const (
	OpSetComputePipelineLayout Op = iota
	OpSetGraphicsPipelineLayout
	OpSetPipelineState
	OpSetComputeDescriptorTable
	OpSetGraphicsDescriptorTable
	OpSetCompute32BitConstants
	OpSetGraphics32BitConstants
	OpSetComputeRootCBV
	OpSetGraphicsRootCBV
	OpSetComputeRootSRV
	OpSetGraphicsRootSRV
	OpSetComputeRootUAV
	OpSetGraphicsRootUAV
	OpBarrier
	OpDispatch
	OpDispatchIndirect
	OpIASetPrimitiveTopology
	OpIASetIndexBuffer
	OpDrawIndexedIndirect
	OpDispatchMesh
)

var opNames = [...]string{
	OpSetComputePipelineLayout:   "SetComputePipelineLayout",
	OpSetGraphicsPipelineLayout:  "SetGraphicsPipelineLayout",
	OpSetPipelineState:           "SetPipelineState",
	OpSetComputeDescriptorTable:  "SetComputeDescriptorTable",
	OpSetGraphicsDescriptorTable: "SetGraphicsDescriptorTable",
	OpSetCompute32BitConstants:   "SetCompute32BitConstants",
	OpSetGraphics32BitConstants:  "SetGraphics32BitConstants",
	OpSetComputeRootCBV:          "SetComputeRootConstantBufferView",
	OpSetGraphicsRootCBV:         "SetGraphicsRootConstantBufferView",
	OpSetComputeRootSRV:          "SetComputeRootShaderResourceView",
	OpSetGraphicsRootSRV:         "SetGraphicsRootShaderResourceView",
	OpSetComputeRootUAV:          "SetComputeRootUnorderedAccessView",
	OpSetGraphicsRootUAV:         "SetGraphicsRootUnorderedAccessView",
	OpBarrier:                    "Barrier",
	OpDispatch:                   "Dispatch",
	OpDispatchIndirect:           "DispatchIndirect",
	OpIASetPrimitiveTopology:     "IASetPrimitiveTopology",
	OpIASetIndexBuffer:           "IASetIndexBuffer",
	OpDrawIndexedIndirect:        "DrawIndexedIndirect",
	OpDispatchMesh:               "DispatchMesh",
}

func (o Op) String() string {
	if int(o) >= 0 && int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Command is one recorded call. Only the fields relevant to Op are set.
type Command struct {
	Op         Op
	Index      uint32
	Layout     metadata.PipelineLayout
	Pipeline   metadata.Pipeline
	Table      metadata.DescriptorTable
	Buffer     metadata.Buffer
	Offset     uint64
	Values     []uint32
	DestOffset uint32
	Barriers   []metadata.ResourceBarrier
	X, Y, Z    uint32
	Topology   gputypes.PrimitiveTopology
	IBV        metadata.IndexBufferView
}

func label(h interface{ Label() string }) string {
	if h == nil {
		return "<nil>"
	}
	return h.Label()
}

func (c Command) String() string {
	switch c.Op {
	case OpSetComputePipelineLayout, OpSetGraphicsPipelineLayout:
		return fmt.Sprintf("%s(%s)", c.Op, label(c.Layout))
	case OpSetPipelineState:
		return fmt.Sprintf("%s(%s)", c.Op, label(c.Pipeline))
	case OpSetComputeDescriptorTable, OpSetGraphicsDescriptorTable:
		return fmt.Sprintf("%s(%d, %s)", c.Op, c.Index, label(c.Table))
	case OpSetCompute32BitConstants, OpSetGraphics32BitConstants:
		return fmt.Sprintf("%s(%d, %v, +%d)", c.Op, c.Index, c.Values, c.DestOffset)
	case OpSetComputeRootCBV, OpSetGraphicsRootCBV, OpSetComputeRootSRV, OpSetGraphicsRootSRV, OpSetComputeRootUAV, OpSetGraphicsRootUAV:
		return fmt.Sprintf("%s(%d, %s, +%d)", c.Op, c.Index, label(c.Buffer), c.Offset)
	case OpBarrier:
		parts := make([]string, len(c.Barriers))
		for i, b := range c.Barriers {
			parts[i] = b.String()
		}
		return fmt.Sprintf("%s[%s]", c.Op, strings.Join(parts, "; "))
	case OpDispatch, OpDispatchMesh:
		return fmt.Sprintf("%s(%d, %d, %d)", c.Op, c.X, c.Y, c.Z)
	case OpDispatchIndirect, OpDrawIndexedIndirect:
		return fmt.Sprintf("%s(%s, +%d)", c.Op, label(c.Buffer), c.Offset)
	case OpIASetPrimitiveTopology:
		return fmt.Sprintf("%s(%v)", c.Op, c.Topology)
	case OpIASetIndexBuffer:
		return fmt.Sprintf("%s(%s, +%d)", c.Op, label(c.IBV.Buffer), c.IBV.Offset)
	}
	return c.Op.String()
}

// CommandList appends every call to Commands.
type CommandList struct {
	Commands []Command
}

func NewCommandList() *CommandList {
	return &CommandList{}
}

func (l *CommandList) record(c Command) {
	l.Commands = append(l.Commands, c)
}

func (l *CommandList) Reset() {
	l.Commands = l.Commands[:0]
}

// Counts returns how many commands of each op were recorded.
func (l *CommandList) Counts() map[Op]int {
	counts := map[Op]int{}
	for _, c := range l.Commands {
		counts[c.Op]++
	}
	return counts
}

// Filter returns the recorded commands of the given op, in order.
func (l *CommandList) Filter(op Op) []Command {
	var out []Command
	for _, c := range l.Commands {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Ops returns the recorded op sequence.
func (l *CommandList) Ops() []Op {
	out := make([]Op, len(l.Commands))
	for i, c := range l.Commands {
		out[i] = c.Op
	}
	return out
}

func (l *CommandList) String() string {
	var sb strings.Builder
	for i, c := range l.Commands {
		fmt.Fprintf(&sb, "%3d %s\n", i, c)
	}
	return sb.String()
}

func (l *CommandList) SetComputePipelineLayout(layout metadata.PipelineLayout) {
	l.record(Command{Op: OpSetComputePipelineLayout, Layout: layout})
}

func (l *CommandList) SetGraphicsPipelineLayout(layout metadata.PipelineLayout) {
	l.record(Command{Op: OpSetGraphicsPipelineLayout, Layout: layout})
}

func (l *CommandList) SetPipelineState(pipeline metadata.Pipeline) {
	l.record(Command{Op: OpSetPipelineState, Pipeline: pipeline})
}

func (l *CommandList) SetComputeDescriptorTable(index uint32, table metadata.DescriptorTable) {
	l.record(Command{Op: OpSetComputeDescriptorTable, Index: index, Table: table})
}

func (l *CommandList) SetGraphicsDescriptorTable(index uint32, table metadata.DescriptorTable) {
	l.record(Command{Op: OpSetGraphicsDescriptorTable, Index: index, Table: table})
}

func (l *CommandList) SetCompute32BitConstant(index uint32, srcData uint32, destOffsetIn32BitValues uint32) {
	l.record(Command{Op: OpSetCompute32BitConstants, Index: index, Values: []uint32{srcData}, DestOffset: destOffsetIn32BitValues})
}

func (l *CommandList) SetGraphics32BitConstant(index uint32, srcData uint32, destOffsetIn32BitValues uint32) {
	l.record(Command{Op: OpSetGraphics32BitConstants, Index: index, Values: []uint32{srcData}, DestOffset: destOffsetIn32BitValues})
}

func (l *CommandList) SetCompute32BitConstants(index uint32, srcData []uint32, destOffsetIn32BitValues uint32) {
	l.record(Command{Op: OpSetCompute32BitConstants, Index: index, Values: append([]uint32(nil), srcData...), DestOffset: destOffsetIn32BitValues})
}

func (l *CommandList) SetGraphics32BitConstants(index uint32, srcData []uint32, destOffsetIn32BitValues uint32) {
	l.record(Command{Op: OpSetGraphics32BitConstants, Index: index, Values: append([]uint32(nil), srcData...), DestOffset: destOffsetIn32BitValues})
}

func (l *CommandList) SetComputeRootConstantBufferView(index uint32, buffer metadata.Buffer, offset uint64) {
	l.record(Command{Op: OpSetComputeRootCBV, Index: index, Buffer: buffer, Offset: offset})
}

func (l *CommandList) SetGraphicsRootConstantBufferView(index uint32, buffer metadata.Buffer, offset uint64) {
	l.record(Command{Op: OpSetGraphicsRootCBV, Index: index, Buffer: buffer, Offset: offset})
}

func (l *CommandList) SetComputeRootShaderResourceView(index uint32, buffer metadata.Buffer, offset uint64) {
	l.record(Command{Op: OpSetComputeRootSRV, Index: index, Buffer: buffer, Offset: offset})
}

func (l *CommandList) SetGraphicsRootShaderResourceView(index uint32, buffer metadata.Buffer, offset uint64) {
	l.record(Command{Op: OpSetGraphicsRootSRV, Index: index, Buffer: buffer, Offset: offset})
}

func (l *CommandList) SetComputeRootUnorderedAccessView(index uint32, buffer metadata.Buffer, offset uint64) {
	l.record(Command{Op: OpSetComputeRootUAV, Index: index, Buffer: buffer, Offset: offset})
}

func (l *CommandList) SetGraphicsRootUnorderedAccessView(index uint32, buffer metadata.Buffer, offset uint64) {
	l.record(Command{Op: OpSetGraphicsRootUAV, Index: index, Buffer: buffer, Offset: offset})
}

func (l *CommandList) Barrier(barriers []metadata.ResourceBarrier) {
	l.record(Command{Op: OpBarrier, Barriers: append([]metadata.ResourceBarrier(nil), barriers...)})
}

func (l *CommandList) Dispatch(x, y, z uint32) {
	l.record(Command{Op: OpDispatch, X: x, Y: y, Z: z})
}

func (l *CommandList) DispatchIndirect(args metadata.Buffer, offset uint64) {
	l.record(Command{Op: OpDispatchIndirect, Buffer: args, Offset: offset})
}

func (l *CommandList) IASetPrimitiveTopology(topology gputypes.PrimitiveTopology) {
	l.record(Command{Op: OpIASetPrimitiveTopology, Topology: topology})
}

func (l *CommandList) IASetIndexBuffer(view metadata.IndexBufferView) {
	l.record(Command{Op: OpIASetIndexBuffer, IBV: view})
}

func (l *CommandList) DrawIndexedIndirect(args metadata.Buffer, offset uint64) {
	l.record(Command{Op: OpDrawIndexedIndirect, Buffer: args, Offset: offset})
}

func (l *CommandList) DispatchMesh(x, y, z uint32) {
	l.record(Command{Op: OpDispatchMesh, X: x, Y: y, Z: z})
}
