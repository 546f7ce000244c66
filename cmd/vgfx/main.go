package main

import (
	"runtime"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/gobuffalo/envy"
	log "github.com/sirupsen/logrus"

	"github.com/nickelpro/vgfx/render"
	"github.com/nickelpro/vgfx/window"
)

// The window and every Vulkan call must stay on the main thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	level, err := log.ParseLevel(envy.Get("VGFX_LOG_LEVEL", "info"))
	if err != nil {
		log.Fatalf("%+v", err)
	}
	log.SetLevel(level)

	err = run()
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run() error {
	title := envy.Get("VGFX_TITLE", "Test Window")

	width, err := intEnv("VGFX_WIDTH", "500")
	if err != nil {
		return err
	}
	height, err := intEnv("VGFX_HEIGHT", "500")
	if err != nil {
		return err
	}
	statsInterval, err := intEnv("VGFX_STATS_INTERVAL", "120")
	if err != nil {
		return err
	}
	validation, err := strconv.ParseBool(envy.Get("VGFX_VALIDATION", "true"))
	if err != nil {
		return errors.Wrap(err, "parsing VGFX_VALIDATION")
	}

	win, err := window.New(window.Config{
		Title:  title,
		Width:  width,
		Height: height,
	})
	if err != nil {
		return err
	}
	defer win.Destroy()

	renderer, err := render.New(win, render.Config{
		AppName:       title,
		Validation:    validation,
		ShaderDir:     envy.Get("VGFX_SHADER_DIR", "shaders"),
		StatsInterval: statsInterval,
	})
	if err != nil {
		return err
	}
	defer renderer.Destroy()

	win.OnResize(func(width, height int) error {
		log.Debugf("window resized to %dx%d", width, height)
		return renderer.Recreate()
	})

	err = win.Run(renderer.Draw)
	switch {
	case render.IsDeviceLost(err):
		log.Errorf("device %s reported lost, cannot continue", renderer.Info().Name)
	case render.IsSyncTimeout(err):
		log.Error("gpu stopped retiring work, exiting rather than hanging")
	}
	return err
}

func intEnv(key, fallback string) (int, error) {
	value, err := strconv.Atoi(envy.Get(key, fallback))
	if err != nil {
		return 0, errors.Wrapf(err, "parsing %s", key)
	}
	return value, nil
}
