package render

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

func candidate(name string, deviceType core1_0.PhysicalDeviceType, family int) deviceCandidate {
	return deviceCandidate{
		group: RenderGroup{QueueFamily: family},
		info: DeviceInfo{
			Name:        name,
			DeviceType:  deviceType,
			QueueFamily: family,
		},
	}
}

func TestNewDeviceInfoReadsDriverFields(t *testing.T) {
	// The binding reports Vulkan's deviceName and deviceType as
	// DriverName and DriverType.
	properties := &core1_0.PhysicalDeviceProperties{
		DriverName:        "integrated",
		DriverType:        core1_0.PhysicalDeviceTypeIntegratedGPU,
		DriverVersion:     common.CreateVersion(1, 3, 250),
		PipelineCacheUUID: uuid.MustParse("c4a59764-51b2-4c5c-86d1-3e6a2b1c9f4d"),
	}

	info := newDeviceInfo(properties, 3)
	require.Equal(t, "integrated", info.Name)
	require.Equal(t, core1_0.PhysicalDeviceTypeIntegratedGPU, info.DeviceType)
	require.Equal(t, common.CreateVersion(1, 3, 250), info.DriverVersion)
	require.Equal(t, properties.PipelineCacheUUID, info.PipelineCacheID)
	require.Equal(t, 3, info.QueueFamily)
	require.False(t, info.discrete())
}

func TestPickRenderGroupPrefersDiscrete(t *testing.T) {
	// Enumeration order does not matter: a discrete GPU anywhere in the
	// list beats every other device type.
	for _, tc := range []struct {
		name       string
		candidates []deviceCandidate
	}{
		{"discrete last", []deviceCandidate{
			candidate("integrated", core1_0.PhysicalDeviceTypeIntegratedGPU, 0),
			candidate("discrete", core1_0.PhysicalDeviceTypeDiscreteGPU, 1),
		}},
		{"discrete first", []deviceCandidate{
			candidate("discrete", core1_0.PhysicalDeviceTypeDiscreteGPU, 1),
			candidate("integrated", core1_0.PhysicalDeviceTypeIntegratedGPU, 0),
		}},
		{"discrete mid-list", []deviceCandidate{
			candidate("integrated", core1_0.PhysicalDeviceTypeIntegratedGPU, 0),
			candidate("discrete", core1_0.PhysicalDeviceTypeDiscreteGPU, 1),
			candidate("virtual", core1_0.PhysicalDeviceTypeVirtualGPU, 2),
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			chosen, err := pickRenderGroup(tc.candidates)
			require.NoError(t, err)
			require.Equal(t, "discrete", chosen.info.Name)
			require.Equal(t, 1, chosen.group.QueueFamily)
		})
	}
}

func TestPickRenderGroupFallsBackToFirst(t *testing.T) {
	chosen, err := pickRenderGroup([]deviceCandidate{
		candidate("integrated", core1_0.PhysicalDeviceTypeIntegratedGPU, 2),
		candidate("virtual", core1_0.PhysicalDeviceTypeVirtualGPU, 0),
	})
	require.NoError(t, err)
	require.Equal(t, "integrated", chosen.info.Name)
}

func TestPickRenderGroupNoCandidates(t *testing.T) {
	_, err := pickRenderGroup(nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNoSuitableDevice))
}

func TestIsRenderFamily(t *testing.T) {
	for _, tc := range []struct {
		name        string
		flags       core1_0.QueueFlags
		presentable bool
		want        bool
	}{
		{"graphics and present", core1_0.QueueGraphics | core1_0.QueueTransfer, true, true},
		{"graphics without present", core1_0.QueueGraphics, false, false},
		{"present without graphics", core1_0.QueueCompute, true, false},
		{"neither", core1_0.QueueTransfer, false, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			family := core1_0.QueueFamilyProperties{QueueFlags: tc.flags}
			require.Equal(t, tc.want, isRenderFamily(family, tc.presentable))
		})
	}
}
