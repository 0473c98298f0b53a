package metadata

import (
	"fmt"
	"strings"
)

/**
 * @brief The view type of a descriptor range. The Root* and Constant types
 * are only valid as the single range of a root slot.
 */
type DescriptorType int

const (
	DescriptorTypeSRV DescriptorType = iota
	DescriptorTypeUAV
	DescriptorTypeCBV
	DescriptorTypeSampler
	DescriptorTypeRootSRV
	DescriptorTypeRootUAV
	DescriptorTypeRootCBV
	DescriptorTypeConstant
)

func (t DescriptorType) String() string {
	switch t {
	case DescriptorTypeSRV:
		return "srv"
	case DescriptorTypeUAV:
		return "uav"
	case DescriptorTypeCBV:
		return "cbv"
	case DescriptorTypeSampler:
		return "sampler"
	case DescriptorTypeRootSRV:
		return "root-srv"
	case DescriptorTypeRootUAV:
		return "root-uav"
	case DescriptorTypeRootCBV:
		return "root-cbv"
	case DescriptorTypeConstant:
		return "constant"
	}
	return fmt.Sprintf("DescriptorType(%d)", int(t))
}

type DescriptorFlag uint32

const (
	DescriptorFlagNone                        DescriptorFlag = 0
	DescriptorFlagDescriptorsVolatile         DescriptorFlag = 1 << 0
	DescriptorFlagDataVolatile                DescriptorFlag = 1 << 1
	DescriptorFlagDataStaticWhileSetAtExecute DescriptorFlag = 1 << 2
	DescriptorFlagDataStatic                  DescriptorFlag = 1 << 3
)

/**
 * @brief A contiguous run of descriptors of one type. For Constant ranges
 * NumDescriptors is the number of 32-bit values.
 */
type DescriptorRange struct {
	Type           DescriptorType
	NumDescriptors uint32
	BaseBinding    uint32
	Space          uint32
	Flags          DescriptorFlag
}

/** @brief What a binding call has to target to land on a slot. */
type SlotKind int

const (
	/** @brief A slot with no ranges. Never bound. */
	SlotKindNone SlotKind = iota
	SlotKindConstant
	SlotKindRootSRV
	SlotKindRootUAV
	SlotKindRootCBV
	SlotKindTable
)

func (k SlotKind) String() string {
	switch k {
	case SlotKindNone:
		return "none"
	case SlotKindConstant:
		return "constant"
	case SlotKindRootSRV:
		return "root-srv"
	case SlotKindRootUAV:
		return "root-uav"
	case SlotKindRootCBV:
		return "root-cbv"
	case SlotKindTable:
		return "table"
	}
	return fmt.Sprintf("SlotKind(%d)", int(k))
}

const LayoutSlotVersion uint32 = 1

/**
 * @brief One slot of a pipeline layout. The slot index is its position in the
 * owning layout's slot list.
 */
type LayoutSlot struct {
	/** @brief Version of the slot encoding. LayoutSlotVersion for everything built here. */
	Version uint32
	Stage   ShaderStage
	Ranges  []DescriptorRange
}

func (s LayoutSlot) Kind() SlotKind {
	if len(s.Ranges) == 0 {
		return SlotKindNone
	}
	switch s.Ranges[0].Type {
	case DescriptorTypeConstant:
		return SlotKindConstant
	case DescriptorTypeRootSRV:
		return SlotKindRootSRV
	case DescriptorTypeRootUAV:
		return SlotKindRootUAV
	case DescriptorTypeRootCBV:
		return SlotKindRootCBV
	}
	return SlotKindTable
}

// ConstantCount is the number of 32-bit values of a constant slot, zero otherwise.
func (s LayoutSlot) ConstantCount() uint32 {
	if s.Kind() != SlotKindConstant {
		return 0
	}
	return s.Ranges[0].NumDescriptors
}

// WithStage returns a deep copy of the slot retargeted to stage.
func (s LayoutSlot) WithStage(stage ShaderStage) LayoutSlot {
	ranges := make([]DescriptorRange, len(s.Ranges))
	copy(ranges, s.Ranges)
	return LayoutSlot{Version: s.Version, Stage: stage, Ranges: ranges}
}

func (s LayoutSlot) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "v%d:%s:%s[", s.Version, s.Stage, s.Kind())
	for i, r := range s.Ranges {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%s*%d@b%d.s%d.f%x", r.Type, r.NumDescriptors, r.BaseBinding, r.Space, uint32(r.Flags))
	}
	sb.WriteByte(']')
	return sb.String()
}

type PipelineLayoutFlag uint32

const (
	PipelineLayoutFlagNone                     PipelineLayoutFlag = 0
	PipelineLayoutFlagAllowInputAssemblerInput PipelineLayoutFlag = 1 << 0
)

type PipelineLayoutDesc struct {
	Label string
	Slots []LayoutSlot
	Flags PipelineLayoutFlag
}

// Key identifies layouts with identical content, whatever their labels.
func (d *PipelineLayoutDesc) Key() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "f%x|", uint32(d.Flags))
	for _, s := range d.Slots {
		sb.WriteString(s.String())
		sb.WriteByte('|')
	}
	return sb.String()
}

/**
 * @brief Builds the ordered slot list of a pipeline layout. Setting a slot past
 * the end grows the list with empty slots.
 */
type PipelineLayoutBuilder struct {
	slots []LayoutSlot
}

func NewPipelineLayoutBuilder() *PipelineLayoutBuilder {
	return &PipelineLayoutBuilder{}
}

func (b *PipelineLayoutBuilder) slot(index uint32) *LayoutSlot {
	for uint32(len(b.slots)) <= index {
		b.slots = append(b.slots, LayoutSlot{Version: LayoutSlotVersion})
	}
	return &b.slots[index]
}

func (b *PipelineLayoutBuilder) setRoot(index uint32, t DescriptorType, num, binding, space uint32, flags DescriptorFlag, stage ShaderStage) *PipelineLayoutBuilder {
	s := b.slot(index)
	s.Stage = stage
	s.Ranges = []DescriptorRange{{Type: t, NumDescriptors: num, BaseBinding: binding, Space: space, Flags: flags}}
	return b
}

func (b *PipelineLayoutBuilder) SetConstants(index, num32BitValues, binding, space uint32, stage ShaderStage) *PipelineLayoutBuilder {
	return b.setRoot(index, DescriptorTypeConstant, num32BitValues, binding, space, DescriptorFlagNone, stage)
}

func (b *PipelineLayoutBuilder) SetRootSRV(index, binding, space uint32, flags DescriptorFlag, stage ShaderStage) *PipelineLayoutBuilder {
	return b.setRoot(index, DescriptorTypeRootSRV, 1, binding, space, flags, stage)
}

func (b *PipelineLayoutBuilder) SetRootUAV(index, binding, space uint32, flags DescriptorFlag, stage ShaderStage) *PipelineLayoutBuilder {
	return b.setRoot(index, DescriptorTypeRootUAV, 1, binding, space, flags, stage)
}

func (b *PipelineLayoutBuilder) SetRootCBV(index, binding, space uint32, stage ShaderStage) *PipelineLayoutBuilder {
	return b.setRoot(index, DescriptorTypeRootCBV, 1, binding, space, DescriptorFlagNone, stage)
}

// SetRange appends a table range to the slot. The stage is set separately with SetShaderStage.
func (b *PipelineLayoutBuilder) SetRange(index uint32, t DescriptorType, num, binding, space uint32, flags DescriptorFlag) *PipelineLayoutBuilder {
	s := b.slot(index)
	s.Ranges = append(s.Ranges, DescriptorRange{Type: t, NumDescriptors: num, BaseBinding: binding, Space: space, Flags: flags})
	return b
}

func (b *PipelineLayoutBuilder) SetShaderStage(index uint32, stage ShaderStage) *PipelineLayoutBuilder {
	b.slot(index).Stage = stage
	return b
}

// Append adds a copy of slot at the end and returns its index.
func (b *PipelineLayoutBuilder) Append(slot LayoutSlot) uint32 {
	b.slots = append(b.slots, slot.WithStage(slot.Stage))
	return uint32(len(b.slots) - 1)
}

func (b *PipelineLayoutBuilder) Len() uint32 {
	return uint32(len(b.slots))
}

// Slots returns a copy of the slots built so far.
func (b *PipelineLayoutBuilder) Slots() []LayoutSlot {
	out := make([]LayoutSlot, len(b.slots))
	for i, s := range b.slots {
		out[i] = s.WithStage(s.Stage)
	}
	return out
}

func (b *PipelineLayoutBuilder) Desc(label string, flags PipelineLayoutFlag) *PipelineLayoutDesc {
	return &PipelineLayoutDesc{
		Label: label,
		Slots: b.Slots(),
		Flags: flags,
	}
}
