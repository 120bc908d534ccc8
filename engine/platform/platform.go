package platform

import (
	"fmt"
	"image"
	"runtime"
	"unsafe"

	"github.com/spaghettifunk/xrender/engine/core"
	"github.com/veandco/go-sdl2/sdl"
)

func init() {
	// SDL event handling must run on the main OS thread
	runtime.LockOSThread()
}

/**
 * @brief Platform owns the SDL window. Frames are presented by blitting the backend's
 * CPU image onto the window surface.
 */
type Platform struct {
	Window *sdl.Window
	events *core.EventBus

	rmask uint32
	gmask uint32
	bmask uint32
	amask uint32
}

func New(events *core.EventBus) (*Platform, error) {
	p := &Platform{
		Window: nil,
		events: events,
	}
	if sdl.BYTEORDER == sdl.BIG_ENDIAN {
		p.rmask, p.gmask, p.bmask, p.amask = 0xff000000, 0x00ff0000, 0x0000ff00, 0x000000ff
	} else {
		p.rmask, p.gmask, p.bmask, p.amask = 0x000000ff, 0x0000ff00, 0x00ff0000, 0xff000000
	}
	return p, nil
}

func (p *Platform) Startup(applicationName string, width, height int) error {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		core.LogFatal("failed to initialize sdl: %s", err)
		return err
	}

	window, err := sdl.CreateWindow(applicationName, sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		int32(width), int32(height), sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE|sdl.WINDOW_ALLOW_HIGHDPI)
	if err != nil {
		core.LogFatal("failed to create window: %s", err)
		sdl.Quit()
		return err
	}
	p.Window = window
	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		if err := p.Window.Destroy(); err != nil {
			core.LogWarn("failed to destroy the window: %s", err)
		}
		p.Window = nil
	}
	sdl.Quit()
	return nil
}

// PumpMessages drains the SDL event queue. It returns false once the user asked to quit.
func (p *Platform) PumpMessages() bool {
	running := true
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			running = false
			if p.events != nil {
				p.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, p, core.EventContext{})
			}
		case *sdl.WindowEvent:
			if e.Event != sdl.WINDOWEVENT_SIZE_CHANGED {
				continue
			}
			winW, winH := p.Size()
			hwW, hwH := p.DrawableSize()
			if p.events != nil {
				p.events.Fire(core.EVENT_CODE_RESIZED, p, core.EventContext{
					I32: [4]int32{int32(winW), int32(winH), int32(hwW), int32(hwH)},
				})
			}
		}
	}
	return running
}

func (p *Platform) Size() (int, int) {
	if p.Window == nil {
		return 0, 0
	}
	w, h := p.Window.GetSize()
	return int(w), int(h)
}

// DrawableSize is the size of the window surface in pixels.
func (p *Platform) DrawableSize() (int, int) {
	if p.Window == nil {
		return 0, 0
	}
	surface, err := p.Window.GetSurface()
	if err != nil {
		return p.Size()
	}
	return int(surface.W), int(surface.H)
}

func (p *Platform) Present(img *image.RGBA) error {
	if p.Window == nil || len(img.Pix) == 0 {
		return nil
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()

	frame, err := sdl.CreateRGBSurfaceFrom(unsafe.Pointer(&img.Pix[0]),
		int32(w), int32(h), 32, img.Stride,
		p.rmask, p.gmask, p.bmask, p.amask,
	)
	if err != nil {
		return fmt.Errorf("cannot create rgb surface: %w", err)
	}
	defer frame.Free()

	windowSurface, err := p.Window.GetSurface()
	if err != nil {
		return fmt.Errorf("cannot get window surface: %w", err)
	}
	rect := &sdl.Rect{X: 0, Y: 0, W: int32(w), H: int32(h)}
	if err := frame.Blit(rect, windowSurface, rect); err != nil {
		return fmt.Errorf("blit: %w", err)
	}
	return p.Window.UpdateSurface()
}
