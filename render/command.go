package render

import (
	"github.com/vkngwrapper/core/v3/core1_0"
)

func (r *Renderer) createCommandPool() error {
	pool, _, err := r.deviceDriver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: r.group.QueueFamily,
	})
	if err != nil {
		return err
	}
	r.commandPool = pool
	r.base.push("command pool", func() {
		r.deviceDriver.DestroyCommandPool(r.commandPool, nil)
		r.commandPool = core1_0.CommandPool{}
	})

	return nil
}

// recordCommandBuffers allocates one primary buffer per framebuffer and
// records the whole frame up front: clear to black, bind the pipeline,
// draw the three hardcoded vertices. The buffers are static for the life
// of the swapchain; the per-tick work is submission only.
func (r *Renderer) recordCommandBuffers() error {
	buffers, _, err := r.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        r.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: len(r.chain.framebuffers),
	})
	if err != nil {
		return err
	}
	r.chain.buffers = buffers
	r.chainReleases.push("command buffers", func() {
		r.deviceDriver.FreeCommandBuffers(r.chain.buffers...)
		r.chain.buffers = nil
	})

	for bufferIndex, buffer := range buffers {
		_, err = r.deviceDriver.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{})
		if err != nil {
			return err
		}

		err = r.deviceDriver.CmdBeginRenderPass(buffer, core1_0.SubpassContentsInline,
			core1_0.RenderPassBeginInfo{
				RenderPass:  r.chain.renderPass,
				Framebuffer: r.chain.framebuffers[bufferIndex],
				RenderArea: core1_0.Rect2D{
					Offset: core1_0.Offset2D{X: 0, Y: 0},
					Extent: r.chain.extent,
				},
				ClearValues: []core1_0.ClearValue{
					core1_0.ClearValueFloat{0, 0, 0, 1},
				},
			})
		if err != nil {
			return err
		}

		r.deviceDriver.CmdBindPipeline(buffer, core1_0.PipelineBindPointGraphics, r.chain.pipeline)
		r.deviceDriver.CmdDraw(buffer, 3, 1, 0, 0)
		r.deviceDriver.CmdEndRenderPass(buffer)

		_, err = r.deviceDriver.EndCommandBuffer(buffer)
		if err != nil {
			return err
		}
	}

	return nil
}
