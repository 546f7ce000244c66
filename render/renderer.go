// Package render drives a Vulkan device from selection through steady-state
// presentation: it picks the physical device and queue family, owns the
// swapchain and everything whose lifetime is bound to it, and schedules
// frames with per-slot fences and semaphores. All methods must run on the
// thread that owns the window.
package render

import (
	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/nickelpro/vgfx/window"
)

type Config struct {
	// AppName is reported to the driver at instance creation.
	AppName string

	// Validation enables the Khronos validation layer and routes its
	// messages through the debug messenger into the log.
	Validation bool

	// ShaderDir holds the precompiled SPIR-V artifacts.
	ShaderDir string

	// StatsInterval is the number of presented frames between frame-rate
	// log lines. Zero disables reporting.
	StatsInterval int
}

// Renderer owns every Vulkan handle from the instance down. Resources
// with the swapchain's lifetime sit behind chainReleases and are torn
// down and rebuilt as a unit; everything longer-lived sits behind base.
type Renderer struct {
	window *window.Window
	cfg    Config

	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver
	deviceDriver   core1_0.CoreDeviceDriver

	debugDriver      ext_debug_utils.ExtensionDriver
	debugMessenger   ext_debug_utils.DebugUtilsMessenger
	surfaceExtension khr_surface.ExtensionDriver
	surface          khr_surface.Surface

	group RenderGroup
	info  DeviceInfo
	queue core1_0.Queue

	swapchainExtension khr_swapchain.ExtensionDriver
	chain              swapchainState
	commandPool        core1_0.CommandPool

	frames *frameSet
	loop   frameLoop
	stats  *frameStats

	base          releaseStack
	chainReleases releaseStack
}

// New brings up the full rendering stack against an already-created
// window. On failure every resource acquired so far is released before
// the error returns.
func New(win *window.Window, cfg Config) (*Renderer, error) {
	r := &Renderer{
		window: win,
		cfg:    cfg,
		stats:  newFrameStats(cfg.StatsInterval),
	}

	err := r.initVulkan()
	if err != nil {
		r.teardown()
		return nil, errors.Mark(err, ErrInitialization)
	}

	return r, nil
}

func (r *Renderer) initVulkan() error {
	var err error
	r.globalDriver, err = core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return errors.Wrap(err, "loading the vulkan driver")
	}

	err = r.createInstance()
	if err != nil {
		return err
	}

	err = r.setupDebugMessenger()
	if err != nil {
		return err
	}

	err = r.createSurface()
	if err != nil {
		return err
	}

	err = r.chooseRenderGroup()
	if err != nil {
		return err
	}

	err = r.createLogicalDevice()
	if err != nil {
		return err
	}

	err = r.createCommandPool()
	if err != nil {
		return err
	}

	err = r.buildSwapchain()
	if err != nil {
		return err
	}

	// One scheduler slot per swapchain image. The slot count is fixed
	// for the renderer's life; a rebuilt chain reuses the same slots.
	r.frames, err = newFrameSet(r.deviceDriver, len(r.chain.images))
	if err != nil {
		return err
	}
	r.loop = newFrameLoop(r.frames.slots(), len(r.chain.images))

	return nil
}

// Info returns the diagnostics summary for the selected device.
func (r *Renderer) Info() DeviceInfo {
	return r.info
}

// Draw runs one frame through the scheduler. A stale swapchain is
// absorbed here: the dependent chain is rebuilt and Draw returns nil, so
// the caller's loop just calls Draw again. Everything else propagates.
func (r *Renderer) Draw() error {
	err := r.loop.tick(r)
	if err != nil {
		if IsStale(err) {
			log.Debug("swapchain stale, rebuilding")
			return r.Recreate()
		}
		return err
	}

	if fps, ok := r.stats.observe(); ok {
		log.Debugf("presenting at %.2f fps", fps)
	}

	return nil
}

// Recreate tears down the swapchain and its dependent chain and builds
// them again against fresh surface capabilities. While the window is
// minimized or has a zero-sized drawable the old chain is left in place;
// presentation resumes on the next resize or restore.
func (r *Renderer) Recreate() error {
	w, h := r.window.DrawableSize()
	if w == 0 || h == 0 {
		return nil
	}
	if r.window.Minimized() {
		return nil
	}

	res, err := r.deviceDriver.DeviceWaitIdle()
	if err != nil {
		return classify(res, err)
	}

	r.chainReleases.release()

	err = r.buildSwapchain()
	if err != nil {
		return err
	}

	// Old image associations point at a swapchain that no longer
	// exists. The slot cursor survives.
	r.loop.resetImages(len(r.chain.images))

	return nil
}

// idleWaiter is the one device call teardown needs, split out so the
// release ordering is testable without a device.
type idleWaiter interface {
	DeviceWaitIdle() (common.VkResult, error)
}

// Destroy drains the device and releases every held resource in reverse
// acquisition order: synchronization primitives first, then the
// swapchain's dependent chain, then the instance-level state. Safe on a
// partially constructed renderer and safe to call twice: the device
// release clears the driver, so the second pass waits on nothing.
func (r *Renderer) Destroy() {
	r.destroyWith(r.deviceDriver)
}

func (r *Renderer) destroyWith(device idleWaiter) {
	if device != nil {
		_, err := device.DeviceWaitIdle()
		if err != nil {
			log.WithError(err).Error("waiting for device idle before teardown")
		}
	}

	r.teardown()
}

func (r *Renderer) teardown() {
	if r.frames != nil {
		r.frames.release()
		r.frames = nil
	}
	r.chainReleases.release()
	r.base.release()
}
