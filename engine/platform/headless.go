package platform

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/spaghettifunk/xrender/engine/core"
)

// Headless is a window-less surface. It keeps the last presented frame and can write
// every frame to a directory as PNG.
type Headless struct {
	mutex  sync.Mutex
	events *core.EventBus
	width  int
	height int
	frames int
	limit  int
	quit   bool
	last   *image.RGBA
	dumpTo string
}

func NewHeadless(width, height int) *Headless {
	return &Headless{width: width, height: height}
}

// Startup sets the initial size. The name is only used in logs.
func (h *Headless) Startup(applicationName string, width, height int) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.width, h.height = width, height
	h.quit = false
	core.LogInfo("%s running headless at %dx%d", applicationName, width, height)
	return nil
}

func (h *Headless) Shutdown() error {
	return nil
}

// SetEventBus makes Resize and Quit fire EVENT_CODE_RESIZED and EVENT_CODE_APPLICATION_QUIT.
func (h *Headless) SetEventBus(events *core.EventBus) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.events = events
}

// StopAfter makes PumpMessages report a quit once n frames were presented. Zero disables it.
func (h *Headless) StopAfter(n int) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.limit = n
}

// Quit makes the next PumpMessages return false.
func (h *Headless) Quit() {
	h.mutex.Lock()
	h.quit = true
	events := h.events
	h.mutex.Unlock()
	if events != nil {
		events.Fire(core.EVENT_CODE_APPLICATION_QUIT, h, core.EventContext{})
	}
}

// PumpMessages returns false once Quit was called or the frame limit is reached.
func (h *Headless) PumpMessages() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.limit > 0 && h.frames >= h.limit {
		return false
	}
	return !h.quit
}

// DumpFrames writes each presented frame to dir as frame-NNNNN.png. Empty disables it.
func (h *Headless) DumpFrames(dir string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.dumpTo = dir
}

func (h *Headless) Size() (int, int) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.width, h.height
}

func (h *Headless) DrawableSize() (int, int) {
	return h.Size()
}

// Resize changes the reported size and fires EVENT_CODE_RESIZED when an event bus is set.
func (h *Headless) Resize(width, height int) {
	h.mutex.Lock()
	h.width, h.height = width, height
	events := h.events
	h.mutex.Unlock()

	if events != nil {
		size := [4]int32{int32(width), int32(height), int32(width), int32(height)}
		events.Fire(core.EVENT_CODE_RESIZED, h, core.EventContext{I32: size})
	}
}

func (h *Headless) Present(img *image.RGBA) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.last == nil || h.last.Rect != img.Rect {
		h.last = image.NewRGBA(img.Rect)
	}
	copy(h.last.Pix, img.Pix)
	h.frames++

	if h.dumpTo == "" {
		return nil
	}
	name := filepath.Join(h.dumpTo, fmt.Sprintf("frame-%05d.png", h.frames))
	f, err := os.Create(name)
	if err != nil {
		core.LogError("failed to write frame %s: %s", name, err.Error())
		return err
	}
	defer f.Close()
	return png.Encode(f, h.last)
}

// Frames returns how many frames were presented.
func (h *Headless) Frames() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.frames
}

// LastFrame returns a copy of the last presented frame, or nil.
func (h *Headless) LastFrame() *image.RGBA {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.last == nil {
		return nil
	}
	out := image.NewRGBA(h.last.Rect)
	copy(out.Pix, h.last.Pix)
	return out
}
