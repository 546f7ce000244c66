package render

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/core1_0"
)

func TestClassifyMarksDeviceLoss(t *testing.T) {
	driverErr := errors.New("vkQueueSubmit failed")

	err := classify(core1_0.VKErrorDeviceLost, driverErr)
	require.True(t, IsDeviceLost(err))
	require.False(t, IsStale(err))
	require.False(t, IsSyncTimeout(err))
}

func TestClassifyLeavesOtherResultsAlone(t *testing.T) {
	driverErr := errors.New("vkQueueSubmit failed")

	err := classify(core1_0.VKErrorOutOfDeviceMemory, driverErr)
	require.Equal(t, driverErr, err)
	require.False(t, IsDeviceLost(err))
}

func TestClassifyNilError(t *testing.T) {
	require.NoError(t, classify(core1_0.VKSuccess, nil))
}

func TestKindsSurviveWrapping(t *testing.T) {
	err := errors.Wrap(errStaleAcquire, "frame 17")
	require.True(t, IsStale(err))

	err = errors.Wrapf(errors.Mark(errors.New("fence"), ErrSyncTimeout), "slot %d", 1)
	require.True(t, IsSyncTimeout(err))
	require.False(t, IsDeviceLost(err))
}

func TestInitializationMarkKeepsInnerKind(t *testing.T) {
	// New marks every startup failure, but the cause stays detectable.
	inner := errors.Mark(errors.New("nothing can present"), ErrNoSuitableDevice)
	err := errors.Mark(inner, ErrInitialization)

	require.True(t, errors.Is(err, ErrInitialization))
	require.True(t, errors.Is(err, ErrNoSuitableDevice))
}
