package testbed

import (
	"fmt"
	gomath "math"

	"github.com/gogpu/gputypes"
	"github.com/spaghettifunk/meshfallback/engine"
	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/math"
	"github.com/spaghettifunk/meshfallback/engine/renderer/fallback"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

// Slots of the unified meshlet layout.
const (
	slotGlobals uint32 = iota
	slotMeshInfo
	slotInstance
	slotMeshSRVs
	slotCull
	slotTint
)

const (
	vertexBytes    = 32
	meshletBytes   = 16
	globalsBytes   = 80
	meshInfoBytes  = 16
	instanceBytes  = 64
	cullBytes      = 96
	indexBytes     = 4
	primitiveBytes = 4

	// Root constant buffer views must start on this boundary.
	constantAlignment = 256
)

// Model is a triangle mesh split into meshlets of at most groupVerts
// vertices and groupPrims primitives.
type Model struct {
	Name          string
	VertexCount   uint32
	TriangleCount uint32
}

// MeshletCount is the number of meshlets the model is split into, bounded by
// both the primitive and the vertex limit of a group.
func (m Model) MeshletCount(groupVerts, groupPrims uint32) uint32 {
	byPrims := math.DivUp(m.TriangleCount, groupPrims)
	byVerts := math.DivUp(m.VertexCount, groupVerts)
	if byVerts > byPrims {
		return byVerts
	}
	return byPrims
}

// DefaultModels fit in the default payload of 100 meshlets each.
func DefaultModels() []Model {
	return []Model{
		{Name: "grid", VertexCount: 33 * 33, TriangleCount: 2 * 32 * 32},
		{Name: "sphere", VertexCount: 1442, TriangleCount: 2880},
		{Name: "torus", VertexCount: 3072, TriangleCount: 6144},
	}
}

type object struct {
	model    Model
	meshlets uint32
	meshInfo metadata.Buffer
	instance metadata.Buffer
	srvs     metadata.DescriptorTable
}

type gameState struct {
	models  []Model
	objects []*object

	globals metadata.Buffer
	cull    metadata.Buffer

	shaders  fallback.FallbackShaders
	state    *metadata.MeshShaderStateDesc
	layout   *fallback.PipelineLayout
	pipeline *fallback.Pipeline

	elapsed float64
	tint    [4]uint32
}

type TestGame struct {
	*engine.Game
}

func NewTestGame(config *engine.ApplicationConfig, models []Model) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: config,
			State:             &gameState{models: models},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnShaderReload = tg.OnShaderReload
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize() error {
	core.LogInfo("initializing meshlet testbed...")
	s := g.state()

	if err := g.loadShaders(); err != nil {
		return err
	}
	if err := g.createPipeline(); err != nil {
		return err
	}

	device := g.Systems.Renderer.Device()
	var err error
	if s.globals, err = device.CreateBuffer(constantBuffer("Globals", globalsBytes)); err != nil {
		return err
	}
	if s.cull, err = device.CreateBuffer(constantBuffer("CullData", cullBytes)); err != nil {
		return err
	}

	payload := g.ApplicationConfig.Payload
	for _, m := range s.models {
		o, err := g.createObject(m, payload.GroupVertexCount, payload.GroupPrimitiveCount)
		if err != nil {
			return err
		}
		if o.meshlets > payload.MaxMeshletCount {
			return fmt.Errorf("model %s has %d meshlets, payload holds %d: %w", m.Name, o.meshlets, payload.MaxMeshletCount, core.ErrPayloadOverflow)
		}
		s.objects = append(s.objects, o)
	}
	core.LogInfo("Testbed ready with %d objects", len(s.objects))
	return nil
}

func constantBuffer(name string, size uint64) *metadata.BufferDesc {
	return &metadata.BufferDesc{
		Label:        name,
		Size:         math.AlignUp(size, constantAlignment),
		Usage:        gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		InitialState: metadata.ResourceStateVertexAndConstantBuffer,
	}
}

func structuredBuffer(name string, count uint64, stride uint32) *metadata.BufferDesc {
	return &metadata.BufferDesc{
		Label:        name,
		Size:         count * uint64(stride),
		Stride:       stride,
		Usage:        gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
		InitialState: metadata.ResourceStateNonPixelShaderResource,
	}
}

func (g *TestGame) createObject(m Model, groupVerts, groupPrims uint32) (*object, error) {
	device := g.Systems.Renderer.Device()
	o := &object{model: m, meshlets: m.MeshletCount(groupVerts, groupPrims)}

	var err error
	if o.meshInfo, err = device.CreateBuffer(constantBuffer(core.DerivedLabel(m.Name, "MeshInfo"), meshInfoBytes)); err != nil {
		return nil, err
	}
	if o.instance, err = device.CreateBuffer(constantBuffer(core.DerivedLabel(m.Name, "Instance"), instanceBytes)); err != nil {
		return nil, err
	}

	// Vertices, meshlets, unique vertex indices, packed primitives.
	descs := []*metadata.BufferDesc{
		structuredBuffer(core.DerivedLabel(m.Name, "Vertices"), uint64(m.VertexCount), vertexBytes),
		structuredBuffer(core.DerivedLabel(m.Name, "Meshlets"), uint64(o.meshlets), meshletBytes),
		structuredBuffer(core.DerivedLabel(m.Name, "VertexIndices"), uint64(o.meshlets)*uint64(groupVerts), indexBytes),
		structuredBuffer(core.DerivedLabel(m.Name, "PrimitiveIndices"), uint64(m.TriangleCount), primitiveBytes),
	}
	views := make([]metadata.BufferView, 0, len(descs))
	for _, desc := range descs {
		b, err := device.CreateBuffer(desc)
		if err != nil {
			return nil, err
		}
		views = append(views, metadata.BufferView{Buffer: b})
	}
	o.srvs, err = device.CreateDescriptorTable(&metadata.DescriptorTableDesc{
		Label: core.DerivedLabel(m.Name, "MeshSRVs"),
		Type:  metadata.DescriptorTypeSRV,
		Views: views,
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// LayoutDesc is the layout the mesh pipeline is written against.
func LayoutDesc() *metadata.PipelineLayoutDesc {
	b := metadata.NewPipelineLayoutBuilder()
	b.SetRootCBV(slotGlobals, 0, 0, metadata.ShaderStageAll)
	b.SetRootCBV(slotMeshInfo, 1, 0, metadata.ShaderStageAll)
	b.SetRootCBV(slotInstance, 2, 0, metadata.ShaderStageMesh)
	b.SetRange(slotMeshSRVs, metadata.DescriptorTypeSRV, 4, 0, 0, metadata.DescriptorFlagDataStatic)
	b.SetShaderStage(slotMeshSRVs, metadata.ShaderStageMesh)
	b.SetRootCBV(slotCull, 3, 0, metadata.ShaderStageAmplification)
	b.SetConstants(slotTint, 4, 4, 0, metadata.ShaderStagePixel)
	return b.Desc("Meshlet", metadata.PipelineLayoutFlagNone)
}

func (g *TestGame) loadShaders() error {
	s := g.state()
	am := g.Systems.Assets

	required, err := am.LoadShaders("meshlet.comp", "meshlet.vert", "meshlet.frag")
	if err != nil {
		return err
	}
	s.shaders.MS = required["meshlet.comp"]
	s.shaders.VS = required["meshlet.vert"]
	ps := required["meshlet.frag"]

	// The amplification stage is optional, without it every meshlet is drawn.
	if s.shaders.AS, err = am.LoadShader("cull.comp"); err != nil {
		core.LogWarn("No culling shader, drawing every meshlet: %s", err)
		s.shaders.AS = nil
	}

	s.state = &metadata.MeshShaderStateDesc{
		Version: metadata.MeshShaderStateVersion,
		Label:   "Meshlet",
		PS:      ps,
		Output: metadata.OutputState{
			Blend:       metadata.BlendModeOpaque,
			Rasterizer:  metadata.RasterizerDesc{CullMode: metadata.FaceCullModeBack},
			RTVFormats:  []gputypes.TextureFormat{gputypes.TextureFormatRGBA8Unorm},
			SampleCount: 1,
			SampleMask:  gomath.MaxUint32,
		},
	}
	// Native stages are only compiled offline, use them when present.
	if ms, err := am.LoadShader("meshlet.mesh"); err == nil {
		s.state.MS = ms
	}
	if as, err := am.LoadShader("cull.task"); err == nil {
		s.state.AS = as
	}
	return nil
}

func (g *TestGame) createPipeline() error {
	s := g.state()
	layer := g.Systems.Layer

	layout, err := layer.GetPipelineLayout(LayoutDesc())
	if err != nil {
		return err
	}
	pipeline, err := layer.GetPipeline(layout, s.shaders, s.state)
	if err != nil {
		return err
	}
	s.layout, s.pipeline = layout, pipeline
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	s := g.state()
	s.elapsed += deltaTime
	// Cycle the tint so consecutive frames differ.
	phase := uint32(s.elapsed*255) % 256
	s.tint = [4]uint32{phase, 255 - phase, 128, 255}
	return nil
}

func (g *TestGame) Render(ctx *fallback.Context, deltaTime float64) error {
	s := g.state()
	// One group per batch of meshlets, culled together by the amplification stage.
	batch := g.ApplicationConfig.Payload.BatchSize

	ctx.SetPipelineLayout(s.layout)
	ctx.SetPipelineState(s.pipeline)
	ctx.SetRootConstantBufferView(slotGlobals, s.globals, 0)
	ctx.Set32BitConstants(slotTint, s.tint[:], 0)
	if s.shaders.AS != nil {
		ctx.SetRootConstantBufferView(slotCull, s.cull, 0)
	}

	for _, o := range s.objects {
		ctx.SetRootConstantBufferView(slotMeshInfo, o.meshInfo, 0)
		ctx.SetRootConstantBufferView(slotInstance, o.instance, 0)
		ctx.SetDescriptorTable(slotMeshSRVs, o.srvs)
		if err := ctx.DispatchMesh(math.DivUp(o.meshlets, batch), 1, 1); err != nil {
			return fmt.Errorf("draw %s: %w", o.model.Name, err)
		}
	}
	return nil
}

// OnShaderReload swaps the changed stage in and rebuilds the pipelines.
func (g *TestGame) OnShaderReload(blob *metadata.ShaderBlob) error {
	s := g.state()
	switch blob.Name {
	case "meshlet.comp":
		s.shaders.MS = blob
	case "meshlet.vert":
		s.shaders.VS = blob
	case "cull.comp":
		s.shaders.AS = blob
	case "meshlet.frag":
		s.state.PS = blob
	case "meshlet.mesh":
		s.state.MS = blob
	case "cull.task":
		s.state.AS = blob
	default:
		return nil
	}
	core.LogInfo("Rebuilding meshlet pipeline for %s", blob.Name)
	return g.createPipeline()
}

func (g *TestGame) Shutdown() error {
	s := g.state()
	core.LogInfo("testbed shutting down after %.2fs", s.elapsed)
	return nil
}
