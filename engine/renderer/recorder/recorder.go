package recorder

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

type Buffer struct {
	Desc  metadata.BufferDesc
	label string
}

func (b *Buffer) Label() string  { return b.label }
func (b *Buffer) Size() uint64   { return b.Desc.Size }
func (b *Buffer) Stride() uint32 { return b.Desc.Stride }

type DescriptorTable struct {
	Desc  metadata.DescriptorTableDesc
	label string
}

func (t *DescriptorTable) Label() string { return t.label }

type PipelineLayout struct {
	Desc  metadata.PipelineLayoutDesc
	label string
}

func (l *PipelineLayout) Label() string { return l.label }

type PipelineKind int

const (
	PipelineKindCompute PipelineKind = iota
	PipelineKindGraphics
	PipelineKindMesh
)

type Pipeline struct {
	Kind     PipelineKind
	Layout   metadata.PipelineLayout
	Compute  *metadata.ComputePipelineDesc
	Graphics *metadata.GraphicsPipelineDesc
	Mesh     *metadata.MeshShaderStateDesc
	label    string
}

func (p *Pipeline) Label() string { return p.label }

type Option func(*Device)

// WithMeshShaderSupport makes the device report native mesh shading.
func WithMeshShaderSupport(supported bool) Option {
	return func(d *Device) {
		d.meshShader = supported
	}
}

// WithStorageBufferOffsetAlignment sets the alignment the device reports for
// storage buffer view offsets. Root views at unaligned offsets are still recorded.
func WithStorageBufferOffsetAlignment(alignment uint64) Option {
	return func(d *Device) {
		d.storageAlignment = alignment
	}
}

// WithFailure makes every creation whose label contains substr fail with err.
func WithFailure(substr string, err error) Option {
	return func(d *Device) {
		d.failures[substr] = err
	}
}

// Device records the objects it creates instead of talking to a GPU.
type Device struct {
	mu               sync.Mutex
	meshShader       bool
	storageAlignment uint64
	failures         map[string]error

	Buffers          []*Buffer
	DescriptorTables []*DescriptorTable
	PipelineLayouts  []*PipelineLayout
	Pipelines        []*Pipeline
}

func NewDevice(opts ...Option) *Device {
	d := &Device{storageAlignment: 16, failures: map[string]error{}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) SupportsMeshShader() bool {
	return d.meshShader
}

func (d *Device) StorageBufferOffsetAlignment() uint64 {
	return d.storageAlignment
}

func (d *Device) fail(label string) error {
	for substr, err := range d.failures {
		if strings.Contains(label, substr) {
			return fmt.Errorf("create %s: %w", label, err)
		}
	}
	return nil
}

func (d *Device) CreateBuffer(desc *metadata.BufferDesc) (metadata.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	label := core.Label("buffer", desc.Label)
	if err := d.fail(label); err != nil {
		return nil, err
	}
	b := &Buffer{Desc: *desc, label: label}
	d.Buffers = append(d.Buffers, b)
	return b, nil
}

func (d *Device) CreateDescriptorTable(desc *metadata.DescriptorTableDesc) (metadata.DescriptorTable, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	label := core.Label("table", desc.Label)
	if err := d.fail(label); err != nil {
		return nil, err
	}
	t := &DescriptorTable{Desc: *desc, label: label}
	d.DescriptorTables = append(d.DescriptorTables, t)
	return t, nil
}

func (d *Device) CreatePipelineLayout(desc *metadata.PipelineLayoutDesc) (metadata.PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	label := core.Label("layout", desc.Label)
	if err := d.fail(label); err != nil {
		return nil, err
	}
	l := &PipelineLayout{Desc: *desc, label: label}
	d.PipelineLayouts = append(d.PipelineLayouts, l)
	return l, nil
}

func (d *Device) CreateComputePipeline(desc *metadata.ComputePipelineDesc) (metadata.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	label := core.Label("compute", desc.Label)
	if err := d.fail(label); err != nil {
		return nil, err
	}
	if desc.CS == nil {
		return nil, fmt.Errorf("compute pipeline %s has no shader", label)
	}
	p := &Pipeline{Kind: PipelineKindCompute, Layout: desc.Layout, Compute: desc, label: label}
	d.Pipelines = append(d.Pipelines, p)
	return p, nil
}

func (d *Device) CreateGraphicsPipeline(desc *metadata.GraphicsPipelineDesc) (metadata.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	label := core.Label("graphics", desc.Label)
	if err := d.fail(label); err != nil {
		return nil, err
	}
	if desc.VS == nil {
		return nil, fmt.Errorf("graphics pipeline %s has no vertex shader", label)
	}
	p := &Pipeline{Kind: PipelineKindGraphics, Layout: desc.Layout, Graphics: desc, label: label}
	d.Pipelines = append(d.Pipelines, p)
	return p, nil
}

func (d *Device) CreateMeshPipeline(desc *metadata.MeshShaderStateDesc) (metadata.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.meshShader {
		return nil, core.ErrMeshShaderUnsupported
	}
	label := core.Label("mesh", desc.Label)
	if err := d.fail(label); err != nil {
		return nil, err
	}
	p := &Pipeline{Kind: PipelineKindMesh, Layout: desc.Layout, Mesh: desc, label: label}
	d.Pipelines = append(d.Pipelines, p)
	return p, nil
}

// FindBuffer returns the first recorded buffer with the given label.
func (d *Device) FindBuffer(label string) *Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range d.Buffers {
		if b.label == label {
			return b
		}
	}
	return nil
}
