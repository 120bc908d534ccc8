package testbed

import (
	"fmt"
	"image"
	"math"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/spaghettifunk/xrender/engine"
	"github.com/spaghettifunk/xrender/engine/core"
	"github.com/spaghettifunk/xrender/engine/renderer"
	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
	"github.com/spaghettifunk/xrender/engine/systems"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	elapsed float64
	width   int
	height  int

	coin    *metadata.Picture
	shadow  *metadata.Picture
	block   *metadata.Picture
	ghost   *metadata.Picture
	font    *systems.Font
	sprites []*metadata.Picture
	cameras [2]*systems.Camera

	background metadata.Color
	overlay    metadata.Color
}

func NewTestGame(configPath string) (*TestGame, error) {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				Name:       "XRender testbed",
				ConfigPath: configPath,
			},
			State: &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

// sprite draws a procedural picture with gg.
func sprite(size int, draw func(dc *gg.Context)) image.Image {
	dc := gg.NewContext(size, size)
	draw(dc)
	return dc.Image()
}

func (g *TestGame) Initialize() error {
	core.LogInfo("initializing testbed...")
	s := g.state()
	ts := g.SystemManager.TextureSystem

	s.coin = ts.LoadPictureFromImage(sprite(32, func(dc *gg.Context) {
		dc.DrawCircle(16, 16, 14)
		dc.SetHexColor("#f5c542")
		dc.FillPreserve()
		dc.SetHexColor("#a37a12")
		dc.SetLineWidth(3)
		dc.Stroke()
	}), nil)

	// legacy AND/OR masked sprite: black mask pixels show the front, white ones the background
	front := sprite(32, func(dc *gg.Context) {
		dc.SetRGB(0, 0, 0)
		dc.Clear()
		dc.DrawRectangle(4, 4, 24, 24)
		dc.SetHexColor("#4a90d9")
		dc.Fill()
	})
	mask := sprite(32, func(dc *gg.Context) {
		dc.SetRGB(1, 1, 1)
		dc.Clear()
		dc.DrawRectangle(4, 4, 24, 24)
		dc.SetRGB(0, 0, 0)
		dc.Fill()
	})
	s.block = ts.LoadPictureFromImage(front, mask)

	s.shadow = ts.LoadPictureFromImage(sprite(32, func(dc *gg.Context) {
		dc.DrawEllipse(16, 24, 14, 5)
		dc.SetRGBA(0, 0, 0, 0.5)
		dc.Fill()
	}), nil)

	s.ghost = ts.LoadPictureFromImage(sprite(32, func(dc *gg.Context) {
		dc.DrawRoundedRectangle(2, 2, 28, 28, 8)
		dc.SetHexColor("#e0e0ff")
		dc.Fill()
	}), nil)
	s.ghost.Program = g.Renderer.Program("invert")

	var err error
	if s.background, err = metadata.ParseColor("#5c94fc"); err != nil {
		return err
	}
	if s.overlay, err = metadata.ParseColor("rgba(0, 0, 0, 0.35)"); err != nil {
		return err
	}

	assets := g.Config.Assets.Dir
	if s.font, err = g.SystemManager.FontSystem.LoadFont(filepath.Join(assets, "fonts", "font.fnt")); err != nil {
		core.LogWarn("no demo font, text disabled: %s", err.Error())
	}
	for i := 1; i <= 3; i++ {
		path := filepath.Join(assets, "graphics", "npc", fmt.Sprintf("npc-%d.png", i))
		if p := ts.LazyLoadPicture(path, "", ""); p.Inited {
			s.sprites = append(s.sprites, p)
		}
	}
	ts.Preload(s.sprites)

	for i, name := range []string{"left", "right"} {
		if s.cameras[i], err = g.SystemManager.CameraSystem.Acquire(name); err != nil {
			return err
		}
	}
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	g.state().elapsed += deltaTime
	return nil
}

func (g *TestGame) Render(r *renderer.Renderer, deltaTime float64) error {
	s := g.state()
	w, h := g.Config.Render.ScreenWidth, g.Config.Render.ScreenHeight

	// split screen: both halves draw the same scene, the right camera scrolls
	s.cameras[1].SetPosition(math.Mod(s.elapsed*20, 64), 0)
	for _, c := range s.cameras {
		c.Apply(r)
		g.drawScene(r, c.Viewport.W, c.Viewport.H)
		r.ResetViewport()
	}

	// HUD
	r.OffsetViewportIgnore(true)
	r.RenderRectBR(0, h-24, w, h, s.overlay)
	r.RenderRect(1, 1, w-2, h-2, metadata.ColorWhite, false)
	if s.font != nil {
		g.SystemManager.FontSystem.Print(s.font, "XRender testbed", 8, float64(h-20), metadata.ColorWhite)
	}
	r.OffsetViewportIgnore(false)
	return nil
}

func (g *TestGame) drawScene(r *renderer.Renderer, w, h int) {
	s := g.state()
	r.RenderRect(0, 0, w, h, s.background, true)

	// ground tiles, opaque queue
	for x := 0; x < w; x += 32 {
		r.RenderTextureAt(s.block, float64(x), float64(h-56), metadata.ColorWhite)
	}

	bob := 6 * math.Sin(s.elapsed*3)
	r.RenderTextureAt(s.shadow, 40, float64(h-88), metadata.ColorWhite)
	r.RenderTextureFL(s.coin, 40, float64(h-96)+bob, 32, 32, 0, 0, s.elapsed*90, nil, metadata.FlipNone, metadata.ColorWhite)
	r.RenderTextureScaleEx(s.coin, 90, 40, 48, 48, 0, 0, 32, 32, 0, nil, metadata.FlipX,
		metadata.Color{R: 1, G: 0.6, B: 0.6, A: 0.8})
	r.RenderTextureScale(s.ghost, 150, 30, 40, 40, metadata.ColorWhite)

	for i, p := range s.sprites {
		r.RenderTexture(p, float64(200+i*40), float64(h-56-p.H), float64(p.W), float64(p.H), 0, 0, metadata.ColorWhite)
	}

	r.RenderCircle(w-40, 40, 20, metadata.Color{R: 1, G: 1, B: 0.4, A: 1}, true)
	r.RenderCircleHole(w/2, h/2, h/3, metadata.Color{A: 0.25 + 0.25*math.Sin(s.elapsed)})
}

// OnResize keeps the split in logical screen space, the window size only changes the scaling.
func (g *TestGame) OnResize(width int, height int) error {
	s := g.state()
	s.width, s.height = width, height
	w, h := g.Config.Render.ScreenWidth, g.Config.Render.ScreenHeight
	for i, c := range s.cameras {
		if c != nil {
			c.Viewport = metadata.Rect{X: i * w / 2, Y: 0, W: w / 2, H: h}
		}
	}
	return nil
}

func (g *TestGame) Shutdown() error {
	s := g.state()
	ts := g.SystemManager.TextureSystem
	for _, p := range append([]*metadata.Picture{s.coin, s.shadow, s.block, s.ghost}, s.sprites...) {
		ts.DeleteTexture(p, false)
	}
	g.SystemManager.CameraSystem.Release("left")
	g.SystemManager.CameraSystem.Release("right")
	core.LogInfo("testbed shut down")
	return nil
}
