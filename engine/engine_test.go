package engine

import (
	"errors"
	"image/color"
	"io"
	"testing"

	"github.com/spaghettifunk/xrender/engine/config"
	"github.com/spaghettifunk/xrender/engine/core"
	"github.com/spaghettifunk/xrender/engine/platform"
	"github.com/spaghettifunk/xrender/engine/renderer"
	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
)

type recorder struct {
	updates int
	renders int
	resized [][2]int
	closed  bool
}

func newTestEngine(t *testing.T, backend string) (*Engine, *platform.Headless, *recorder) {
	t.Helper()
	core.SetLogOutput(io.Discard)

	cfg := config.Default()
	cfg.Window.Width, cfg.Window.Height = 64, 48
	cfg.Render.ScreenWidth, cfg.Render.ScreenHeight = 64, 48
	cfg.Render.Backend = backend
	cfg.Assets.Dir = t.TempDir()

	rec := &recorder{}
	g := &Game{
		ApplicationConfig: &ApplicationConfig{Name: "test", Config: cfg},
		FnUpdate: func(deltaTime float64) error {
			rec.updates++
			return nil
		},
		FnRender: func(r *renderer.Renderer, deltaTime float64) error {
			rec.renders++
			r.RenderRect(0, 0, 64, 48, metadata.Color{R: 1, A: 1}, true)
			return nil
		},
		FnOnResize: func(width, height int) error {
			rec.resized = append(rec.resized, [2]int{width, height})
			return nil
		},
		FnShutdown: func() error {
			rec.closed = true
			return nil
		},
	}

	events := core.NewEventBus()
	window := platform.NewHeadless(64, 48)
	window.SetEventBus(events)
	e, err := NewWithWindow(g, window, events)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return e, window, rec
}

func TestRunPresentsFrames(t *testing.T) {
	for _, backend := range []string{"software", "immediate"} {
		t.Run(backend, func(t *testing.T) {
			e, window, rec := newTestEngine(t, backend)
			window.StopAfter(3)

			if err := e.Run(); err != nil {
				t.Fatalf("run: %v", err)
			}
			if window.Frames() != 3 || rec.updates != 3 || rec.renders != 3 {
				t.Errorf("frames %d updates %d renders %d", window.Frames(), rec.updates, rec.renders)
			}
			if got := window.LastFrame().RGBAAt(10, 10); got != (color.RGBA{R: 255, A: 255}) {
				t.Errorf("pixel = %v", got)
			}
			m := e.Metrics()
			if m.OpaqueDrawCalls+m.OrderedDrawCalls == 0 {
				t.Error("draw statistics not recorded")
			}

			if err := e.Shutdown(); err != nil {
				t.Fatalf("shutdown: %v", err)
			}
			if !rec.closed || e.Stage() != EngineStageUninitialized {
				t.Error("game not shut down")
			}
		})
	}
}

func TestQuitEventStopsRun(t *testing.T) {
	e, window, rec := newTestEngine(t, "")
	defer e.Shutdown()

	e.gameInstance.FnUpdate = func(deltaTime float64) error {
		rec.updates++
		if rec.updates == 2 {
			window.Quit()
		}
		return nil
	}
	if err := e.Run(); err != nil {
		t.Fatal(err)
	}
	if rec.updates != 2 {
		t.Errorf("ran %d updates after quit", rec.updates)
	}
}

func TestResizeReachesGame(t *testing.T) {
	e, window, rec := newTestEngine(t, "software")
	defer e.Shutdown()

	window.Resize(128, 96)
	window.Resize(0, 0)

	want := [][2]int{{64, 48}, {128, 96}}
	if len(rec.resized) != len(want) {
		t.Fatalf("resized = %v, want %v", rec.resized, want)
	}
	for i := range want {
		if rec.resized[i] != want[i] {
			t.Errorf("resize %d = %v, want %v", i, rec.resized[i], want[i])
		}
	}
}

func TestFailingUpdateStopsRun(t *testing.T) {
	e, _, _ := newTestEngine(t, "software")
	defer e.Shutdown()

	boom := errors.New("boom")
	e.gameInstance.FnUpdate = func(deltaTime float64) error {
		return boom
	}
	if err := e.Run(); !errors.Is(err, boom) {
		t.Errorf("run = %v, want the update error", err)
	}
}

func TestUnknownBackend(t *testing.T) {
	core.SetLogOutput(io.Discard)
	cfg := config.Default()
	cfg.Render.Backend = "vulkan"
	cfg.Assets.Dir = t.TempDir()
	events := core.NewEventBus()
	e, err := NewWithWindow(&Game{ApplicationConfig: &ApplicationConfig{Config: cfg}}, platform.NewHeadless(8, 8), events)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); !errors.Is(err, core.ErrBackendNotAvailable) {
		t.Errorf("initialize = %v, want ErrBackendNotAvailable", err)
	}
	if err := e.Run(); err == nil {
		t.Error("run of an uninitialized engine succeeded")
	}
}
