// Package window wraps the SDL window and event loop behind the narrow
// surface the renderer needs: a Vulkan-capable drawable plus resize and
// minimize notifications.
package window

import (
	"github.com/veandco/go-sdl2/sdl"
)

type Config struct {
	Title  string
	Width  int
	Height int
}

type Window struct {
	handle   *sdl.Window
	onResize func(width, height int) error
}

// New initializes SDL's video subsystem and creates a resizable window
// backed by a Vulkan surface.
func New(cfg Config) (*Window, error) {
	err := sdl.Init(sdl.INIT_VIDEO)
	if err != nil {
		return nil, err
	}

	handle, err := sdl.CreateWindow(cfg.Title,
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(cfg.Width), int32(cfg.Height),
		sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return nil, err
	}

	return &Window{handle: handle}, nil
}

// Handle exposes the underlying SDL window for surface creation.
func (w *Window) Handle() *sdl.Window {
	return w.handle
}

// DrawableSize returns the Vulkan drawable size in pixels, which can
// differ from the window size on high-DPI displays.
func (w *Window) DrawableSize() (int, int) {
	width, height := w.handle.VulkanGetDrawableSize()
	return int(width), int(height)
}

// InstanceExtensions lists the instance extensions the window system
// requires for surface creation.
func (w *Window) InstanceExtensions() []string {
	return w.handle.VulkanGetInstanceExtensions()
}

func (w *Window) Minimized() bool {
	return (w.handle.GetFlags() & sdl.WINDOW_MINIMIZED) != 0
}

// OnResize registers the callback Run invokes when the window is resized
// to a usable size. An error from the callback stops the loop.
func (w *Window) OnResize(fn func(width, height int) error) {
	w.onResize = fn
}

// Run pumps events and calls tick once per iteration while the window is
// visible. Rendering pauses while minimized and resumes on restore. Run
// returns nil when the user closes the window, or the first error from
// tick or the resize callback.
func (w *Window) Run(tick func() error) error {
	rendering := true

appLoop:
	for {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch e := event.(type) {
			case *sdl.QuitEvent:
				break appLoop
			case *sdl.WindowEvent:
				switch e.Event {
				case sdl.WINDOWEVENT_MINIMIZED:
					rendering = false
				case sdl.WINDOWEVENT_RESTORED:
					rendering = true
				case sdl.WINDOWEVENT_RESIZED:
					width, height := w.handle.GetSize()
					if width > 0 && height > 0 {
						rendering = true
						if w.onResize != nil {
							err := w.onResize(int(width), int(height))
							if err != nil {
								return err
							}
						}
					} else {
						rendering = false
					}
				}
			}
		}

		if rendering {
			err := tick()
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// Destroy closes the window and shuts SDL down. Safe to call twice.
func (w *Window) Destroy() {
	if w.handle != nil {
		w.handle.Destroy()
		w.handle = nil
	}
	sdl.Quit()
}
