package vulkan

import (
	"fmt"
	"math"
	"runtime"
	"unsafe"

	"github.com/gogpu/gputypes"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

type Options struct {
	// Size and format of the offscreen target drawn by the raster pass.
	Width  uint32
	Height uint32
	Format gputypes.TextureFormat
	// Debug enables the validation layers when they are installed.
	Debug       bool
	DiscreteGPU bool
}

func DefaultOptions() Options {
	return Options{
		Width:  1280,
		Height: 720,
		Format: gputypes.TextureFormatRGBA8Unorm,
	}
}

type destroyer interface {
	Destroy(context *VulkanContext)
}

// VulkanRenderer is a headless Vulkan device. Mesh shading is never
// reported, so the fallback layer always emulates DispatchMesh with the
// compute and raster pipelines created here.
type VulkanRenderer struct {
	FrameNumber uint64
	context     *VulkanContext
	options     Options

	// Objects created through the device, destroyed in reverse order on shutdown.
	owned []destroyer
}

func New(appName string, options Options) (*VulkanRenderer, error) {
	vr := &VulkanRenderer{
		context: &VulkanContext{
			FramebufferWidth:  options.Width,
			FramebufferHeight: options.Height,
			Allocator:         nil,
		},
		options: options,
	}
	if err := vr.initialize(appName); err != nil {
		vr.Shutdown()
		return nil, err
	}
	return vr, nil
}

func (vr *VulkanRenderer) initialize(appName string) error {
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		core.LogError("failed to load the vulkan loader: %s", err)
		return fmt.Errorf("vulkan loader: %w", core.ErrNotInitialized)
	}
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return fmt.Errorf("vk.Init: %w", core.ErrNotInitialized)
	}

	// Setup Vulkan instance.
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Mesh Fallback"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// No surface: the target is an offscreen image.
	requiredExtensions := []string{}
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1
	}

	requiredValidationLayerNames := []string{}
	if vr.options.Debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		if vr.validationLayerAvailable("VK_LAYER_KHRONOS_validation") {
			requiredValidationLayerNames = append(requiredValidationLayerNames, "VK_LAYER_KHRONOS_validation")
		} else {
			core.LogWarn("Validation layer VK_LAYER_KHRONOS_validation is not installed, continuing without it.")
		}
		core.LogInfo("Required extensions:")
		for _, name := range requiredExtensions {
			core.LogInfo("  %s", name)
		}
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(requiredValidationLayerNames))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredValidationLayerNames)

	if err := lockPool.SafeCall(InstanceManagement, func() error {
		return vkError("vkCreateInstance", vk.CreateInstance(&createInfo, vr.context.Allocator, &vr.context.Instance))
	}); err != nil {
		return err
	}
	if err := vk.InitInstance(vr.context.Instance); err != nil {
		core.LogError("%s", err)
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	// Debugger
	if vr.options.Debug {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogError("vk.CreateDebugReportCallback failed with %s", err)
			return err
		}
		vr.context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	// Device creation
	if err := DeviceCreate(vr.context, &VulkanPhysicalDeviceRequirements{
		Graphics:    true,
		Compute:     true,
		DiscreteGPU: vr.options.DiscreteGPU,
	}); err != nil {
		core.LogError("Failed to create device!")
		return err
	}

	pool, err := createDescriptorPool(vr.context, VULKAN_MAX_DESCRIPTOR_SETS, 0)
	if err != nil {
		return err
	}
	vr.context.DescriptorPool = pool

	// Offscreen target.
	target, err := ImageCreate(vr.context, vr.context.FramebufferWidth, vr.context.FramebufferHeight, vr.options.Format)
	if err != nil {
		return err
	}
	vr.context.Target = target

	rp, err := RenderpassCreate(
		vr.context,
		vr.options.Format,
		0, 0, float32(vr.context.FramebufferWidth), float32(vr.context.FramebufferHeight),
		0.0, 0.0, 0.2, 1.0)
	if err != nil {
		return err
	}
	vr.context.MainRenderpass = rp

	fb, err := FramebufferCreate(vr.context, rp, vr.context.FramebufferWidth, vr.context.FramebufferHeight, []vk.ImageView{target.View})
	if err != nil {
		return err
	}
	vr.context.Framebuffer = fb

	cb, err := NewVulkanCommandBuffer(vr.context, vr.context.Device.CommandPool, true)
	if err != nil {
		return err
	}
	vr.context.CommandBuffer = cb

	fence, err := NewFence(vr.context, true)
	if err != nil {
		return err
	}
	vr.context.InFlightFence = fence

	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (vr *VulkanRenderer) validationLayerAvailable(name string) bool {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return false
	}
	layers := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, layers); res != vk.Success {
		return false
	}
	for i := range layers {
		layers[i].Deref()
		end := FindFirstZeroInByteArray(layers[i].LayerName[:])
		if name == string(layers[i].LayerName[:end]) {
			return true
		}
	}
	return false
}

func (vr *VulkanRenderer) Shutdown() {
	c := vr.context
	if c.Device != nil && c.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(c.Device.LogicalDevice)

		for i := len(vr.owned) - 1; i >= 0; i-- {
			vr.owned[i].Destroy(c)
		}
		vr.owned = nil

		if c.InFlightFence != nil {
			c.InFlightFence.FenceDestroy(c)
			c.InFlightFence = nil
		}
		if c.CommandBuffer != nil {
			c.CommandBuffer.Free(c, c.Device.CommandPool)
			c.CommandBuffer = nil
		}
		if c.Framebuffer != nil {
			c.Framebuffer.Destroy(c)
			c.Framebuffer = nil
		}
		if c.MainRenderpass != nil {
			c.MainRenderpass.RenderpassDestroy(c)
			c.MainRenderpass = nil
		}
		if c.Target != nil {
			c.Target.Destroy(c)
			c.Target = nil
		}
		if c.DescriptorPool != nil {
			vk.DestroyDescriptorPool(c.Device.LogicalDevice, c.DescriptorPool, c.Allocator)
			c.DescriptorPool = nil
		}
	}
	DeviceDestroy(c)

	if c.debugMessenger != nil {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(c.Instance, c.debugMessenger, c.Allocator)
		c.debugMessenger = nil
	}
	if c.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(c.Instance, c.Allocator)
		c.Instance = nil
	}
}

// BeginFrame waits for the previous submission and starts recording.
func (vr *VulkanRenderer) BeginFrame() (*VulkanCommandBuffer, error) {
	c := vr.context
	if err := c.InFlightFence.FenceWait(c, math.MaxUint64); err != nil {
		return nil, err
	}
	if err := c.InFlightFence.FenceReset(c); err != nil {
		return nil, err
	}
	if err := vkError("vkResetDescriptorPool", vk.ResetDescriptorPool(c.Device.LogicalDevice, c.DescriptorPool, 0)); err != nil {
		return nil, err
	}

	cb := c.CommandBuffer
	cb.Reset()
	if err := cb.Begin(true, false, false); err != nil {
		return nil, err
	}
	c.Target.Prepare(cb)
	return cb, nil
}

// EndFrame submits the frame and waits for it, returning the first recording
// error if there was one.
func (vr *VulkanRenderer) EndFrame() error {
	c := vr.context
	cb := c.CommandBuffer
	if err := cb.Submit(uint32(c.Device.QueueIndex), c.Device.Queue, c.InFlightFence); err != nil {
		return err
	}
	if err := c.InFlightFence.FenceWait(c, math.MaxUint64); err != nil {
		return err
	}
	vr.FrameNumber++
	return cb.Err()
}

func (vr *VulkanRenderer) SupportsMeshShader() bool {
	return false
}

func (vr *VulkanRenderer) StorageBufferOffsetAlignment() uint64 {
	return vr.context.Device.StorageAlignment
}

func (vr *VulkanRenderer) own(d destroyer) {
	vr.owned = append(vr.owned, d)
}

func (vr *VulkanRenderer) CreateBuffer(desc *metadata.BufferDesc) (metadata.Buffer, error) {
	b, err := NewBuffer(vr.context, desc)
	if err != nil {
		return nil, err
	}
	vr.own(b)
	return b, nil
}

func (vr *VulkanRenderer) CreateDescriptorTable(desc *metadata.DescriptorTableDesc) (metadata.DescriptorTable, error) {
	t, err := NewDescriptorTable(vr.context, desc)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (vr *VulkanRenderer) CreatePipelineLayout(desc *metadata.PipelineLayoutDesc) (metadata.PipelineLayout, error) {
	l, err := NewPipelineLayout(vr.context, desc)
	if err != nil {
		return nil, err
	}
	vr.own(l)
	return l, nil
}

func (vr *VulkanRenderer) CreateComputePipeline(desc *metadata.ComputePipelineDesc) (metadata.Pipeline, error) {
	p, err := NewComputePipeline(vr.context, desc)
	if err != nil {
		return nil, err
	}
	vr.own(p)
	return p, nil
}

func (vr *VulkanRenderer) CreateGraphicsPipeline(desc *metadata.GraphicsPipelineDesc) (metadata.Pipeline, error) {
	p, err := NewGraphicsPipeline(vr.context, desc)
	if err != nil {
		return nil, err
	}
	vr.own(p)
	return p, nil
}

func (vr *VulkanRenderer) CreateMeshPipeline(desc *metadata.MeshShaderStateDesc) (metadata.Pipeline, error) {
	return nil, fmt.Errorf("mesh pipeline %q: %w", desc.Label, core.ErrMeshShaderUnsupported)
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
