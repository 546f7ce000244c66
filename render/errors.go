package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// Error kinds. Every fallible GPU operation reports one of these so the
// frame loop can tell recoverable conditions (a stale swapchain, a slow
// fence) apart from failures that must unwind the process.
var (
	// ErrInitialization covers window, instance, surface, and device
	// creation failures. Raised before any steady-state resource exists.
	ErrInitialization = errors.New("renderer initialization failed")

	// ErrNoSuitableDevice means enumeration found no device and queue
	// family combination capable of graphics work and presentation.
	ErrNoSuitableDevice = errors.New("no suitable rendering device")

	// ErrAssetMissing means a precompiled shader artifact was absent,
	// unreadable, or not valid SPIR-V.
	ErrAssetMissing = errors.New("shader artifact missing or malformed")

	// ErrSyncTimeout means a fence wait exhausted its retry budget. The
	// GPU may be wedged, but the device has not reported itself lost.
	ErrSyncTimeout = errors.New("gpu synchronization timed out")

	// ErrSwapchainStale means acquire or present reported the swapchain
	// out of date. Recoverable: the dependent chain must be rebuilt.
	ErrSwapchainStale = errors.New("swapchain out of date")

	// ErrDeviceLost means the driver reported VK_ERROR_DEVICE_LOST.
	ErrDeviceLost = errors.New("gpu device lost")
)

var (
	errStaleAcquire = errors.Mark(errors.New("stale swapchain reported on acquire"), ErrSwapchainStale)
	errStalePresent = errors.Mark(errors.New("stale swapchain reported on present"), ErrSwapchainStale)
)

// IsStale reports whether err signals a rebuildable swapchain condition.
func IsStale(err error) bool { return errors.Is(err, ErrSwapchainStale) }

// IsSyncTimeout reports whether err is an exhausted fence-wait budget.
func IsSyncTimeout(err error) bool { return errors.Is(err, ErrSyncTimeout) }

// IsDeviceLost reports whether err carries a device-loss result.
func IsDeviceLost(err error) bool { return errors.Is(err, ErrDeviceLost) }

// classify attaches the device-lost kind to driver errors that carry the
// corresponding result code, so the frame loop never confuses a dead
// device with a stale swapchain or a slow fence.
func classify(res common.VkResult, err error) error {
	if err == nil {
		return nil
	}
	if res == core1_0.VKErrorDeviceLost {
		return errors.Mark(err, ErrDeviceLost)
	}
	return err
}
