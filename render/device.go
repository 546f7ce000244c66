package render

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}
var deviceExtensions = []string{khr_swapchain.ExtensionName}

// SurfaceDetails is the capability snapshot a candidate device reports for
// the target surface. Captured at selection time and refreshed on every
// swapchain build, since a resize can invalidate the extent bounds.
type SurfaceDetails struct {
	Capabilities *khr_surface.SurfaceCapabilities
	Formats      []khr_surface.SurfaceFormat
	PresentModes []khr_surface.PresentMode
}

// RenderGroup binds a physical device to the one queue family that can
// both run graphics work and present to the surface.
type RenderGroup struct {
	Device      core1_0.PhysicalDevice
	QueueFamily int
	Details     SurfaceDetails
}

// DeviceInfo summarizes the selected device for diagnostics.
type DeviceInfo struct {
	Name            string
	DeviceType      core1_0.PhysicalDeviceType
	DriverVersion   common.Version
	PipelineCacheID uuid.UUID
	QueueFamily     int
}

func (info DeviceInfo) discrete() bool {
	return info.DeviceType == core1_0.PhysicalDeviceTypeDiscreteGPU
}

// newDeviceInfo captures the diagnostics summary for one candidate queue
// family. The binding reports Vulkan's deviceName and deviceType as
// DriverName and DriverType.
func newDeviceInfo(properties *core1_0.PhysicalDeviceProperties, familyIndex int) DeviceInfo {
	return DeviceInfo{
		Name:            properties.DriverName,
		DeviceType:      properties.DriverType,
		DriverVersion:   properties.DriverVersion,
		PipelineCacheID: properties.PipelineCacheUUID,
		QueueFamily:     familyIndex,
	}
}

type deviceCandidate struct {
	group RenderGroup
	info  DeviceInfo
}

// pickRenderGroup applies the selection policy to the gathered candidates:
// the first discrete GPU wins no matter where enumeration found it,
// otherwise the first candidate of any type is used.
func pickRenderGroup(candidates []deviceCandidate) (deviceCandidate, error) {
	for _, candidate := range candidates {
		if candidate.info.discrete() {
			return candidate, nil
		}
	}
	if len(candidates) == 0 {
		return deviceCandidate{}, errors.Mark(errors.New("enumeration produced no usable device and queue family"), ErrNoSuitableDevice)
	}
	return candidates[0], nil
}

// isRenderFamily reports whether a queue family can serve the render
// group: it must advertise graphics support and present to the surface.
func isRenderFamily(family core1_0.QueueFamilyProperties, presentable bool) bool {
	return (family.QueueFlags&core1_0.QueueGraphics) != 0 && presentable
}

func (r *Renderer) createInstance() error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    r.cfg.AppName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "vgfx",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	sdlExtensions := r.window.InstanceExtensions()
	extensions, _, err := r.globalDriver.AvailableExtensions()
	if err != nil {
		return err
	}

	for _, ext := range sdlExtensions {
		_, hasExt := extensions[ext]
		if !hasExt {
			return errors.Newf("window system requires unavailable instance extension %s", ext)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext)
	}

	if r.cfg.Validation {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)
	}

	_, enumerationSupported := extensions[khr_portability_enumeration.ExtensionName]
	if enumerationSupported {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	layers, _, err := r.globalDriver.AvailableLayers()
	if err != nil {
		return err
	}

	if r.cfg.Validation {
		for _, layer := range validationLayers {
			_, hasValidation := layers[layer]
			if !hasValidation {
				return errors.Newf("validation layer %s not available, install the LunarG Vulkan SDK or disable validation", layer)
			}
			instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, layer)
		}

		instanceOptions.Next = r.debugMessengerOptions()
	}

	r.instanceDriver, _, err = r.globalDriver.CreateInstance(nil, instanceOptions)
	if err != nil {
		return err
	}
	r.base.push("instance", func() {
		r.instanceDriver.DestroyInstance(nil)
		r.instanceDriver = nil
	})

	return nil
}

func (r *Renderer) debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    logDebug,
	}
}

func (r *Renderer) setupDebugMessenger() error {
	if !r.cfg.Validation {
		return nil
	}

	var err error
	r.debugDriver = ext_debug_utils.CreateExtensionDriverFromCoreDriver(r.instanceDriver)
	r.debugMessenger, _, err = r.debugDriver.CreateDebugUtilsMessenger(nil, r.debugMessengerOptions())
	if err != nil {
		return err
	}
	r.base.push("debug messenger", func() {
		r.debugDriver.DestroyDebugUtilsMessenger(r.debugMessenger, nil)
		r.debugMessenger = ext_debug_utils.DebugUtilsMessenger{}
	})

	return nil
}

func logDebug(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	switch {
	case (severity & ext_debug_utils.SeverityError) != 0:
		log.Errorf("[%s] %s", msgType, data.Message)
	case (severity & ext_debug_utils.SeverityWarning) != 0:
		log.Warnf("[%s] %s", msgType, data.Message)
	default:
		log.Debugf("[%s] %s", msgType, data.Message)
	}
	return false
}

func (r *Renderer) createSurface() error {
	r.surfaceExtension = khr_surface.CreateExtensionDriverFromCoreDriver(r.instanceDriver)
	surface, err := vkng_sdl2.CreateSurface(r.instanceDriver.Instance(), r.surfaceExtension, r.window.Handle())
	if err != nil {
		return err
	}

	r.surface = surface
	r.base.push("surface", func() {
		r.surfaceExtension.DestroySurface(r.surface, nil)
		r.surface = khr_surface.Surface{}
	})
	return nil
}

func (r *Renderer) querySurfaceDetails(device core1_0.PhysicalDevice) (SurfaceDetails, error) {
	var details SurfaceDetails
	var err error

	details.Capabilities, _, err = r.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(r.surface, device)
	if err != nil {
		return details, err
	}

	details.Formats, _, err = r.surfaceExtension.GetPhysicalDeviceSurfaceFormats(r.surface, device)
	if err != nil {
		return details, err
	}

	details.PresentModes, _, err = r.surfaceExtension.GetPhysicalDeviceSurfacePresentModes(r.surface, device)
	return details, err
}

// chooseRenderGroup walks every physical device and queue family, keeping
// the ones that can drive this surface, and selects per pickRenderGroup.
func (r *Renderer) chooseRenderGroup() error {
	physicalDevices, _, err := r.instanceDriver.EnumeratePhysicalDevices()
	if err != nil {
		return err
	}

	var candidates []deviceCandidate
	for _, device := range physicalDevices {
		details, err := r.querySurfaceDetails(device)
		if err != nil || len(details.Formats) == 0 || len(details.PresentModes) == 0 {
			continue
		}

		properties, err := r.instanceDriver.GetPhysicalDeviceProperties(device)
		if err != nil {
			continue
		}

		families := r.instanceDriver.GetPhysicalDeviceQueueFamilyProperties(device)
		for familyIndex, family := range families {
			presentable, _, err := r.surfaceExtension.GetPhysicalDeviceSurfaceSupport(r.surface, device, familyIndex)
			if err != nil || !isRenderFamily(*family, presentable) {
				continue
			}

			candidates = append(candidates, deviceCandidate{
				group: RenderGroup{
					Device:      device,
					QueueFamily: familyIndex,
					Details:     details,
				},
				info: newDeviceInfo(properties, familyIndex),
			})
		}
	}

	chosen, err := pickRenderGroup(candidates)
	if err != nil {
		return err
	}
	r.group = chosen.group
	r.info = chosen.info

	log.WithFields(log.Fields{
		"device":        r.info.Name,
		"type":          r.info.DeviceType,
		"driver":        r.info.DriverVersion,
		"pipelineCache": r.info.PipelineCacheID,
		"queueFamily":   r.info.QueueFamily,
	}).Info("selected rendering device")

	return nil
}

// createLogicalDevice builds the one-queue logical device, forwarding the
// physical device's reported feature set unmodified.
func (r *Renderer) createLogicalDevice() error {
	queuePriority := float32(1.0)
	queueOptions := []core1_0.DeviceQueueCreateInfo{
		{
			QueueFamilyIndex: r.group.QueueFamily,
			QueuePriorities:  []float32{queuePriority},
		},
	}

	var extensionNames []string
	extensionNames = append(extensionNames, deviceExtensions...)

	// Required on portability implementations such as MoltenVK.
	extensions, _, err := r.instanceDriver.EnumerateDeviceExtensionProperties(r.group.Device)
	if err != nil {
		return err
	}

	_, supported := extensions[khr_portability_subset.ExtensionName]
	if supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	features := r.instanceDriver.GetPhysicalDeviceFeatures(r.group.Device)

	r.deviceDriver, _, err = r.instanceDriver.CreateDevice(r.group.Device, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos:      queueOptions,
		EnabledFeatures:       features,
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return err
	}
	r.base.push("device", func() {
		r.deviceDriver.DestroyDevice(nil)
		r.deviceDriver = nil
	})

	r.queue = r.deviceDriver.GetQueue(r.group.QueueFamily, 0)
	r.swapchainExtension = khr_swapchain.CreateExtensionDriverFromCoreDriver(r.deviceDriver)

	return nil
}
