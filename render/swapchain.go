package render

import (
	log "github.com/sirupsen/logrus"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// swapchainState is the swapchain plus everything whose lifetime is bound
// to it. Destroyed and rebuilt as one unit on recreation; all per-image
// slices share the same length.
type swapchainState struct {
	format       khr_surface.SurfaceFormat
	extent       core1_0.Extent2D
	swapchain    khr_swapchain.Swapchain
	images       []core1_0.Image
	views        []core1_0.ImageView
	renderPass   core1_0.RenderPass
	layout       core1_0.PipelineLayout
	pipeline     core1_0.Pipeline
	framebuffers []core1_0.Framebuffer
	buffers      []core1_0.CommandBuffer
}

// chooseSurfaceFormat prefers 8-bit BGRA sRGB with the nonlinear color
// space, falling back to whatever the surface reports first.
func chooseSurfaceFormat(available []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, format := range available {
		if format.Format == core1_0.FormatB8G8R8A8SRGB && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return available[0]
}

// choosePresentMode scans in report order: mailbox wins outright the
// moment it appears, immediate is remembered as a fallback, and FIFO (the
// only mode Vulkan guarantees) backstops everything.
func choosePresentMode(available []khr_surface.PresentMode) khr_surface.PresentMode {
	chosen := khr_surface.PresentModeFIFO
	for _, presentMode := range available {
		if presentMode == khr_surface.PresentModeMailbox {
			return presentMode
		}
		if presentMode == khr_surface.PresentModeImmediate {
			chosen = presentMode
		}
	}

	return chosen
}

// chooseImageCount asks for one image beyond the minimum so acquisition
// rarely blocks on the display engine. MaxImageCount of zero means the
// surface imposes no upper bound.
func chooseImageCount(capabilities *khr_surface.SurfaceCapabilities) int {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && capabilities.MaxImageCount < imageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

// chooseExtent uses the surface's current extent when defined. A width of
// -1 is the wrapped undefined sentinel, meaning the window system leaves
// sizing to us: take the drawable size clamped per axis into the surface
// bounds.
func chooseExtent(capabilities *khr_surface.SurfaceCapabilities, drawableWidth, drawableHeight int) core1_0.Extent2D {
	if capabilities.CurrentExtent.Width != -1 {
		return capabilities.CurrentExtent
	}

	width := drawableWidth
	height := drawableHeight

	if width < capabilities.MinImageExtent.Width {
		width = capabilities.MinImageExtent.Width
	}
	if width > capabilities.MaxImageExtent.Width {
		width = capabilities.MaxImageExtent.Width
	}
	if height < capabilities.MinImageExtent.Height {
		height = capabilities.MinImageExtent.Height
	}
	if height > capabilities.MaxImageExtent.Height {
		height = capabilities.MaxImageExtent.Height
	}

	return core1_0.Extent2D{Width: width, Height: height}
}

// buildSwapchain constructs the swapchain and its full dependent chain:
// image views, render pass, pipeline, framebuffers, and recorded command
// buffers. Surface details are re-queried on every build so a resized
// window never reuses stale extent bounds. Each resource pushes its
// release onto the chain stack as soon as it exists.
func (r *Renderer) buildSwapchain() error {
	details, err := r.querySurfaceDetails(r.group.Device)
	if err != nil {
		return err
	}
	r.group.Details = details

	surfaceFormat := chooseSurfaceFormat(details.Formats)
	presentMode := choosePresentMode(details.PresentModes)
	imageCount := chooseImageCount(details.Capabilities)
	drawableWidth, drawableHeight := r.window.DrawableSize()
	extent := chooseExtent(details.Capabilities, drawableWidth, drawableHeight)

	swapchain, _, err := r.swapchainExtension.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: r.surface,

		MinImageCount:    imageCount,
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		// One queue family owns every image, so no ownership transfers.
		ImageSharingMode: core1_0.SharingModeExclusive,

		PreTransform:   details.Capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    presentMode,
		Clipped:        true,
	})
	if err != nil {
		return err
	}
	r.chain.format = surfaceFormat
	r.chain.extent = extent
	r.chain.swapchain = swapchain
	r.chainReleases.push("swapchain", func() {
		r.swapchainExtension.DestroySwapchain(r.chain.swapchain, nil)
		r.chain.swapchain = khr_swapchain.Swapchain{}
	})

	err = r.createImageViews()
	if err != nil {
		return err
	}

	err = r.createRenderPass()
	if err != nil {
		return err
	}

	err = r.createGraphicsPipeline()
	if err != nil {
		return err
	}

	err = r.createFramebuffers()
	if err != nil {
		return err
	}

	err = r.recordCommandBuffers()
	if err != nil {
		return err
	}

	log.Debugf("swapchain built: %d images at %dx%d, %s", len(r.chain.images), extent.Width, extent.Height, presentMode)
	return nil
}

func (r *Renderer) createImageViews() error {
	images, _, err := r.swapchainExtension.GetSwapchainImages(r.chain.swapchain)
	if err != nil {
		return err
	}
	r.chain.images = images

	// Pushed before the loop so a failure partway through still releases
	// the views created so far.
	r.chainReleases.push("image views", func() {
		for _, view := range r.chain.views {
			r.deviceDriver.DestroyImageView(view, nil)
		}
		r.chain.views = nil
		r.chain.images = nil
	})

	for _, image := range images {
		view, _, err := r.deviceDriver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
			Image:    image,
			ViewType: core1_0.ImageViewType2D,
			Format:   r.chain.format.Format,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     core1_0.ImageAspectColor,
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		})
		if err != nil {
			return err
		}

		r.chain.views = append(r.chain.views, view)
	}

	return nil
}

// createRenderPass describes the single full-screen-clear color pass. The
// external dependency holds color-attachment output until the acquired
// image's layout transition completes.
func (r *Renderer) createRenderPass() error {
	renderPass, _, err := r.deviceDriver.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         r.chain.format.Format,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				DstAccessMask: core1_0.AccessColorAttachmentWrite,
			},
		},
	})
	if err != nil {
		return err
	}

	r.chain.renderPass = renderPass
	r.chainReleases.push("render pass", func() {
		r.deviceDriver.DestroyRenderPass(r.chain.renderPass, nil)
		r.chain.renderPass = core1_0.RenderPass{}
	})

	return nil
}

func (r *Renderer) createFramebuffers() error {
	r.chainReleases.push("framebuffers", func() {
		for _, framebuffer := range r.chain.framebuffers {
			r.deviceDriver.DestroyFramebuffer(framebuffer, nil)
		}
		r.chain.framebuffers = nil
	})

	for _, view := range r.chain.views {
		framebuffer, _, err := r.deviceDriver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass: r.chain.renderPass,
			Layers:     1,
			Attachments: []core1_0.ImageView{
				view,
			},
			Width:  r.chain.extent.Width,
			Height: r.chain.extent.Height,
		})
		if err != nil {
			return err
		}

		r.chain.framebuffers = append(r.chain.framebuffers, framebuffer)
	}

	return nil
}
