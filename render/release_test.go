package render

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReleaseStackRunsNewestFirst(t *testing.T) {
	var stack releaseStack
	var order []string

	stack.push("instance", func() { order = append(order, "instance") })
	stack.push("surface", func() { order = append(order, "surface") })
	stack.push("device", func() { order = append(order, "device") })
	require.Equal(t, 3, stack.depth())

	stack.release()

	require.Equal(t, []string{"device", "surface", "instance"}, order)
	require.Equal(t, 0, stack.depth())
}

func TestReleaseStackSecondReleaseIsNoOp(t *testing.T) {
	var stack releaseStack
	calls := 0
	stack.push("only", func() { calls++ })

	stack.release()
	stack.release()

	require.Equal(t, 1, calls)
}

func TestReleaseStackUnwindsAcrossBuilds(t *testing.T) {
	// A failed build releases its partial state; pushes after that must
	// not resurrect the already-released entries.
	var stack releaseStack
	var order []string

	stack.push("swapchain", func() { order = append(order, "swapchain") })
	stack.release()

	stack.push("swapchain 2", func() { order = append(order, "swapchain 2") })
	stack.push("views 2", func() { order = append(order, "views 2") })
	stack.release()

	require.Equal(t, []string{"swapchain", "views 2", "swapchain 2"}, order)
}
