package render

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

type acquireResult struct {
	image int
	stale bool
	err   error
}

// scriptedHost replays canned acquire and present results and records
// every call the loop makes, so a test can assert on the exact order of
// waits, submits, and presents.
type scriptedHost struct {
	acquires     []acquireResult
	presentStale []bool

	acquireCalls int
	presentCalls int

	waitErrs map[int]error
	calls    []string
}

func (h *scriptedHost) record(format string, args ...interface{}) {
	h.calls = append(h.calls, fmt.Sprintf(format, args...))
}

func (h *scriptedHost) waitFrame(slot int) error {
	h.record("wait %d", slot)
	return h.waitErrs[slot]
}

func (h *scriptedHost) resetFrame(slot int) error {
	h.record("reset %d", slot)
	return nil
}

func (h *scriptedHost) acquireImage(slot int) (int, bool, error) {
	result := h.acquires[h.acquireCalls]
	h.acquireCalls++
	h.record("acquire %d", slot)
	return result.image, result.stale, result.err
}

func (h *scriptedHost) submitFrame(slot, image int) error {
	h.record("submit %d image %d", slot, image)
	return nil
}

func (h *scriptedHost) presentImage(slot, image int) (bool, error) {
	stale := false
	if h.presentCalls < len(h.presentStale) {
		stale = h.presentStale[h.presentCalls]
	}
	h.presentCalls++
	h.record("present %d image %d", slot, image)
	return stale, nil
}

func TestFrameLoopRoundRobin(t *testing.T) {
	host := &scriptedHost{
		acquires: []acquireResult{{image: 0}, {image: 1}, {image: 0}},
	}
	loop := newFrameLoop(2, 2)

	for i := 0; i < 3; i++ {
		require.NoError(t, loop.tick(host))
	}

	// Each slot waits only on its own fence: by the time slot 0 comes
	// back around, image 0's owner is slot 0 itself.
	require.Equal(t, []string{
		"wait 0", "acquire 0", "reset 0", "submit 0 image 0", "present 0 image 0",
		"wait 1", "acquire 1", "reset 1", "submit 1 image 1", "present 1 image 1",
		"wait 0", "acquire 0", "reset 0", "submit 0 image 0", "present 0 image 0",
	}, host.calls)
	require.Equal(t, 1, loop.slot)
}

func TestFrameLoopWaitsForImageOwner(t *testing.T) {
	// Both ticks acquire image 1. The second tick runs on slot 1 and
	// must wait for slot 0's fence before reusing the image.
	host := &scriptedHost{
		acquires: []acquireResult{{image: 1}, {image: 1}},
	}
	loop := newFrameLoop(2, 2)

	require.NoError(t, loop.tick(host))
	require.NoError(t, loop.tick(host))

	require.Equal(t, []string{
		"wait 0", "acquire 0", "reset 0", "submit 0 image 1", "present 0 image 1",
		"wait 1", "acquire 1", "wait 0", "reset 1", "submit 1 image 1", "present 1 image 1",
	}, host.calls)
	require.Equal(t, []int{noOwner, 1}, loop.owners)
}

func TestFrameLoopStaleAcquire(t *testing.T) {
	host := &scriptedHost{
		acquires: []acquireResult{{stale: true}},
	}
	loop := newFrameLoop(2, 2)

	err := loop.tick(host)
	require.True(t, IsStale(err))

	// Nothing was reset, submitted, or presented, the cursor stayed
	// put, and no image association was recorded.
	require.Equal(t, []string{"wait 0", "acquire 0"}, host.calls)
	require.Equal(t, 0, loop.slot)
	require.Equal(t, []int{noOwner, noOwner}, loop.owners)
}

func TestFrameLoopStalePresent(t *testing.T) {
	host := &scriptedHost{
		acquires:     []acquireResult{{image: 0}, {image: 0}},
		presentStale: []bool{true, false},
	}
	loop := newFrameLoop(2, 2)

	err := loop.tick(host)
	require.True(t, IsStale(err))

	// The submission went through, so the association stands, but the
	// cursor must not advance: the same slot replays after the rebuild.
	require.Equal(t, []string{
		"wait 0", "acquire 0", "reset 0", "submit 0 image 0", "present 0 image 0",
	}, host.calls)
	require.Equal(t, 0, loop.slot)
	require.Equal(t, []int{0, noOwner}, loop.owners)

	require.NoError(t, loop.tick(host))
	require.Equal(t, 1, loop.slot)
}

func TestFrameLoopAcquireErrorPropagates(t *testing.T) {
	boom := errors.New("acquire exploded")
	host := &scriptedHost{
		acquires: []acquireResult{{err: boom}},
	}
	loop := newFrameLoop(2, 2)

	err := loop.tick(host)
	require.ErrorIs(t, err, boom)
	require.False(t, IsStale(err))
	require.Equal(t, []string{"wait 0", "acquire 0"}, host.calls)
	require.Equal(t, 0, loop.slot)
}

func TestFrameLoopWaitErrorPropagates(t *testing.T) {
	wedged := errors.Mark(errors.New("fence never signaled"), ErrSyncTimeout)
	host := &scriptedHost{
		acquires: []acquireResult{{image: 0}},
		waitErrs: map[int]error{0: wedged},
	}
	loop := newFrameLoop(2, 2)

	err := loop.tick(host)
	require.True(t, IsSyncTimeout(err))
	require.Equal(t, []string{"wait 0"}, host.calls)
}

func TestFrameLoopEverySlotWaitsBeforeReuse(t *testing.T) {
	// Over many frames, a slot's fence is waited on before each of its
	// submissions. That wait is what bounds the outstanding work to the
	// slot count.
	const frames = 12
	host := &scriptedHost{}
	for i := 0; i < frames; i++ {
		host.acquires = append(host.acquires, acquireResult{image: i % 3})
	}
	loop := newFrameLoop(3, 3)

	for i := 0; i < frames; i++ {
		require.NoError(t, loop.tick(host))
	}

	pending := map[int]bool{}
	for _, call := range host.calls {
		var slot, image int
		if _, err := fmt.Sscanf(call, "submit %d image %d", &slot, &image); err == nil {
			require.False(t, pending[slot], "slot %d submitted twice without an intervening wait", slot)
			pending[slot] = true
			continue
		}
		if _, err := fmt.Sscanf(call, "wait %d", &slot); err == nil {
			pending[slot] = false
		}
	}
}

func TestFrameLoopResetImages(t *testing.T) {
	host := &scriptedHost{
		acquires: []acquireResult{{image: 0}, {image: 1}},
	}
	loop := newFrameLoop(2, 2)

	require.NoError(t, loop.tick(host))
	require.NoError(t, loop.tick(host))
	require.Equal(t, []int{0, 1}, loop.owners)

	// A rebuilt swapchain can change the image count. Associations are
	// dropped wholesale; the cursor survives.
	loop.resetImages(3)
	require.Equal(t, []int{noOwner, noOwner, noOwner}, loop.owners)
	require.Equal(t, 0, loop.slot)
}
