// Command viewer opens a window and draws a graph from an HCL configuration or a built-in
// example.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine"
	"github.com/Carmen-Shannon/oxy-graph/engine/camera"
	"github.com/Carmen-Shannon/oxy-graph/engine/config"
	"github.com/Carmen-Shannon/oxy-graph/engine/events"
	"github.com/Carmen-Shannon/oxy-graph/engine/loader"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/window"
	"github.com/Carmen-Shannon/oxy-graph/internal/viewer"
)

func main() {
	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		var exitErr *viewer.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(outW, errW io.Writer, args []string) error {
	opts, shouldExit, err := viewer.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}
	common.SetLogger(viewer.NewLogger(opts, errW))

	var cfg *config.Config
	if opts.ConfigPath != "" {
		if cfg, err = config.Load(opts.ConfigPath); err != nil {
			return &viewer.ExitError{Code: 1, Message: err.Error()}
		}
	} else {
		cfg = &config.Config{}
	}
	rendererOpts, err := cfg.RendererOptions()
	if err != nil {
		return &viewer.ExitError{Code: 1, Message: err.Error()}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	win := window.NewWindow(cfg.WindowOptions()...)
	eng := engine.NewEngine(
		engine.WithWindow(win),
		engine.WithProfiling(opts.Profile),
	)
	r := renderer.NewRenderer(renderer.BackendTypeWGPU, win, rendererOpts...)
	defer r.Release()

	cam := camera.NewCamera(append(cfg.CameraOptions(),
		camera.WithViewport(float32(win.Width()), float32(win.Height())))...)
	fit, padding := cfg.FitCamera()
	session := loader.NewSession(r,
		loader.WithCamera(cam),
		loader.WithWorkers(viewer.Workers(opts, cfg)),
		loader.WithFit(fit, padding),
	)
	defer session.Close()

	sc, err := viewer.LoadGraph(ctx, session, cfg, opts.Example)
	if err != nil {
		return err
	}
	eng.AddScene(0, sc)

	// reload reads the file again and rebuilds the scene on the render goroutine.
	reload := func() {
		eng.Do(func() {
			next := cfg
			if opts.ConfigPath != "" {
				loaded, err := config.Load(opts.ConfigPath)
				if err != nil {
					common.Logger().Error("reload failed", "path", opts.ConfigPath, "error", err)
					return
				}
				next = loaded
			}
			sc, err := viewer.LoadGraph(ctx, session, next, opts.Example)
			if err != nil {
				common.Logger().Error("reload failed", "error", err)
				return
			}
			cfg = next
			eng.AddScene(0, sc)
		})
	}

	controls := viewer.NewControls(eng, session,
		viewer.WithFitPadding(padding),
		viewer.WithReload(reload),
		viewer.WithProfiling(opts.Profile),
		viewer.WithPickHandler(func(p events.Picked) {
			if p.Hit {
				win.SetTitle(fmt.Sprintf("%s: %s %v", p.Layer, p.Family, p.ID))
			}
		}),
	)
	bindInput(win, controls)

	if opts.Watch && opts.ConfigPath != "" {
		go func() {
			err := config.Watch(ctx, opts.ConfigPath, func(next *config.Config, err error) {
				if err != nil {
					common.Logger().Warn("configuration not reloaded", "error", err)
					return
				}
				eng.Do(func() {
					if _, err := session.Apply(ctx, next.Style()); err != nil {
						common.Logger().Error("style not applied", "error", err)
					}
				})
			})
			if err != nil {
				common.Logger().Error("watch stopped", "path", opts.ConfigPath, "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		eng.Quit()
	}()

	common.Logger().Info("viewer started", slog.String("config", opts.ConfigPath), slog.String("example", opts.Example))
	eng.Run()
	stop()
	return nil
}

// bindInput routes window events to the controls.
func bindInput(win window.Window, c *viewer.Controls) {
	win.SetMouseDownCallback(func(button window.MouseButton, x, y int32) {
		if button == window.MouseLeft {
			c.MouseDown(float32(x), float32(y))
		}
	})
	win.SetMouseUpCallback(func(button window.MouseButton, x, y int32) {
		if button == window.MouseLeft {
			c.MouseUp(float32(x), float32(y))
		}
	})
	win.SetMouseMoveCallback(func(x, y int32) {
		c.MouseMove(float32(x), float32(y))
	})
	win.SetScrollCallback(c.Scroll)
	win.SetKeyDownCallback(func(key uint32) {
		c.Key(key)
	})
}
