package renderer

import (
	"fmt"

	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer/recorder"
	"github.com/spaghettifunk/meshfallback/engine/renderer/vulkan"
)

// RendererBackend is a Device that records and submits frames.
type RendererBackend interface {
	Device
	BeginFrame() (CommandList, error)
	EndFrame() error
	Shutdown()
}

type RendererType uint8

const (
	Recorder RendererType = iota
	Vulkan
)

func (t RendererType) String() string {
	switch t {
	case Recorder:
		return "recorder"
	case Vulkan:
		return "vulkan"
	}
	return fmt.Sprintf("RendererType(%d)", int(t))
}

func ParseRendererType(s string) (RendererType, error) {
	switch s {
	case "recorder":
		return Recorder, nil
	case "vulkan":
		return Vulkan, nil
	}
	return 0, fmt.Errorf("renderer %q: %w", s, core.ErrInvalidConfig)
}

var (
	_ Device      = (*recorder.Device)(nil)
	_ CommandList = (*recorder.CommandList)(nil)
	_ Device      = (*vulkan.VulkanRenderer)(nil)
	_ CommandList = (*vulkan.VulkanCommandBuffer)(nil)

	_ RendererBackend = (*recorderBackend)(nil)
	_ RendererBackend = (*vulkanBackend)(nil)
)

type recorderBackend struct {
	*recorder.Device
	list *recorder.CommandList
}

func (b *recorderBackend) BeginFrame() (CommandList, error) {
	b.list.Reset()
	return b.list, nil
}

func (b *recorderBackend) EndFrame() error {
	core.LogDebug("Recorded %d commands", len(b.list.Commands))
	return nil
}

func (b *recorderBackend) Shutdown() {}

type vulkanBackend struct {
	*vulkan.VulkanRenderer
}

func (b *vulkanBackend) BeginFrame() (CommandList, error) {
	cb, err := b.VulkanRenderer.BeginFrame()
	if err != nil {
		return nil, err
	}
	return cb, nil
}

// Renderer owns a backend and the caching device handed to the fallback layer.
type Renderer struct {
	backend     RendererBackend
	device      *CachedDevice
	recording   *recorder.CommandList
	FrameNumber uint64
}

type Options struct {
	// Recorder options, ignored by the vulkan backend.
	Recorder []recorder.Option
	Vulkan   vulkan.Options
}

func DefaultOptions() Options {
	return Options{Vulkan: vulkan.DefaultOptions()}
}

func New(appName string, t RendererType, opts Options) (*Renderer, error) {
	r := &Renderer{}
	switch t {
	case Recorder:
		b := &recorderBackend{
			Device: recorder.NewDevice(opts.Recorder...),
			list:   recorder.NewCommandList(),
		}
		r.backend = b
		r.recording = b.list
	case Vulkan:
		vr, err := vulkan.New(appName, opts.Vulkan)
		if err != nil {
			return nil, err
		}
		r.backend = &vulkanBackend{VulkanRenderer: vr}
	default:
		return nil, fmt.Errorf("renderer %s: %w", t, core.ErrInvalidConfig)
	}
	r.device = NewCachedDevice(r.backend)
	core.LogInfo("%s renderer initialized.", t)
	return r, nil
}

// Device returns the caching device every object should be created through.
func (r *Renderer) Device() *CachedDevice {
	return r.device
}

// Recording returns the command list of the recorder backend, nil otherwise.
func (r *Renderer) Recording() *recorder.CommandList {
	return r.recording
}

func (r *Renderer) BeginFrame() (CommandList, error) {
	return r.backend.BeginFrame()
}

func (r *Renderer) EndFrame() error {
	if err := r.backend.EndFrame(); err != nil {
		return err
	}
	r.FrameNumber++
	return nil
}

func (r *Renderer) Shutdown() {
	r.device.Purge()
	r.backend.Shutdown()
}
