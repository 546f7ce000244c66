package render

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// Fence waits run in short slices so the host can notice a wedged GPU.
// Slices that time out are retried until the budget is exhausted, at
// which point the wait fails with ErrSyncTimeout.
const (
	fenceTimeout = 100 * time.Millisecond
	fenceBudget  = 5 * time.Second
)

const noOwner = -1

// frameSet owns the per-slot synchronization primitives. One slot per
// swapchain image: an image-available semaphore, a render-finished
// semaphore, and an in-flight fence created signaled so a fresh slot's
// first wait passes. Created once at startup and released once at
// shutdown; recreation does not touch it.
type frameSet struct {
	driver         core1_0.CoreDeviceDriver
	imageAvailable []core1_0.Semaphore
	renderFinished []core1_0.Semaphore
	inFlight       []core1_0.Fence
}

func newFrameSet(driver core1_0.CoreDeviceDriver, slots int) (*frameSet, error) {
	set := &frameSet{driver: driver}

	for i := 0; i < slots; i++ {
		available, _, err := driver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			set.release()
			return nil, err
		}
		set.imageAvailable = append(set.imageAvailable, available)

		finished, _, err := driver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			set.release()
			return nil, err
		}
		set.renderFinished = append(set.renderFinished, finished)

		fence, _, err := driver.CreateFence(nil, core1_0.FenceCreateInfo{
			Flags: core1_0.FenceCreateSignaled,
		})
		if err != nil {
			set.release()
			return nil, err
		}
		set.inFlight = append(set.inFlight, fence)
	}

	return set, nil
}

func (s *frameSet) slots() int {
	return len(s.inFlight)
}

// release destroys whatever primitives exist, tolerating the partial
// state left by a failed constructor. Safe to call twice.
func (s *frameSet) release() {
	for _, fence := range s.inFlight {
		s.driver.DestroyFence(fence, nil)
	}
	for _, semaphore := range s.renderFinished {
		s.driver.DestroySemaphore(semaphore, nil)
	}
	for _, semaphore := range s.imageAvailable {
		s.driver.DestroySemaphore(semaphore, nil)
	}
	s.inFlight = nil
	s.renderFinished = nil
	s.imageAvailable = nil
}

// frameHost is the queue-facing side of the frame loop, narrow enough to
// drive from tests without a device. Slot arguments index the frameSet
// arrays; image arguments index the swapchain.
type frameHost interface {
	waitFrame(slot int) error
	resetFrame(slot int) error
	acquireImage(slot int) (image int, stale bool, err error)
	submitFrame(slot, image int) error
	presentImage(slot, image int) (stale bool, err error)
}

// frameLoop tracks the round-robin slot cursor and which slot most
// recently rendered into each swapchain image. Fences are per slot, so
// the image association is a slot index: waiting on an image means
// waiting on its owner slot's fence.
type frameLoop struct {
	slot   int
	slots  int
	owners []int
}

func newFrameLoop(slots, images int) frameLoop {
	loop := frameLoop{slots: slots}
	loop.resetImages(images)
	return loop
}

// resetImages clears the image associations after a swapchain rebuild.
// The cursor and slot count survive; stale associations must not.
func (l *frameLoop) resetImages(images int) {
	l.owners = make([]int, images)
	for i := range l.owners {
		l.owners[i] = noOwner
	}
}

// tick runs one frame: wait for this slot's previous submission to
// retire, acquire an image, fence off any other slot still rendering
// into that image, then submit and present. The cursor only advances
// after a successful present, so a stale result replays the same slot
// once the chain has been rebuilt.
func (l *frameLoop) tick(host frameHost) error {
	if err := host.waitFrame(l.slot); err != nil {
		return err
	}

	image, stale, err := host.acquireImage(l.slot)
	if err != nil {
		return err
	}
	if stale {
		return errStaleAcquire
	}

	if owner := l.owners[image]; owner != noOwner && owner != l.slot {
		if err := host.waitFrame(owner); err != nil {
			return err
		}
	}
	l.owners[image] = l.slot

	if err := host.resetFrame(l.slot); err != nil {
		return err
	}

	if err := host.submitFrame(l.slot, image); err != nil {
		return err
	}

	stale, err = host.presentImage(l.slot, image)
	if err != nil {
		return err
	}
	if stale {
		return errStalePresent
	}

	l.slot = (l.slot + 1) % l.slots
	return nil
}

func (r *Renderer) waitFrame(slot int) error {
	return r.waitFence(r.frames.inFlight[slot])
}

// waitFence blocks in bounded slices, retrying timeouts until the budget
// runs out. Driver errors pass through classify so device loss keeps its
// own kind.
func (r *Renderer) waitFence(fence core1_0.Fence) error {
	deadline := time.Now().Add(fenceBudget)
	for {
		res, err := r.deviceDriver.WaitForFences(true, fenceTimeout, fence)
		if err != nil {
			return classify(res, err)
		}
		if res != core1_0.VKTimeout {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Mark(errors.Newf("fence still unsignaled after %s", fenceBudget), ErrSyncTimeout)
		}
	}
}

func (r *Renderer) resetFrame(slot int) error {
	_, err := r.deviceDriver.ResetFences(r.frames.inFlight[slot])
	return err
}

func (r *Renderer) acquireImage(slot int) (int, bool, error) {
	image, res, err := r.swapchainExtension.AcquireNextImage(r.chain.swapchain, common.NoTimeout, &r.frames.imageAvailable[slot], nil)
	if res == khr_swapchain.VKErrorOutOfDate {
		return 0, true, nil
	}
	if err != nil {
		return 0, false, classify(res, err)
	}
	return image, false, nil
}

func (r *Renderer) submitFrame(slot, image int) error {
	res, err := r.deviceDriver.QueueSubmit(r.queue, &r.frames.inFlight[slot],
		core1_0.SubmitInfo{
			WaitSemaphores:   []core1_0.Semaphore{r.frames.imageAvailable[slot]},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
			CommandBuffers:   []core1_0.CommandBuffer{r.chain.buffers[image]},
			SignalSemaphores: []core1_0.Semaphore{r.frames.renderFinished[slot]},
		},
	)
	if err != nil {
		return classify(res, err)
	}
	return nil
}

func (r *Renderer) presentImage(slot, image int) (bool, error) {
	res, err := r.swapchainExtension.QueuePresent(r.queue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{r.frames.renderFinished[slot]},
		Swapchains:     []khr_swapchain.Swapchain{r.chain.swapchain},
		ImageIndices:   []int{image},
	})
	if res == khr_swapchain.VKErrorOutOfDate || res == khr_swapchain.VKSuboptimal {
		return true, nil
	}
	if err != nil {
		return false, classify(res, err)
	}
	return false, nil
}
