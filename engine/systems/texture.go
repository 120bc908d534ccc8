package systems

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spaghettifunk/xrender/engine/assets"
	"github.com/spaghettifunk/xrender/engine/config"
	"github.com/spaghettifunk/xrender/engine/containers"
	"github.com/spaghettifunk/xrender/engine/core"
	"github.com/spaghettifunk/xrender/engine/graphics"
	"github.com/spaghettifunk/xrender/engine/renderer"
	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
)

const (
	// maxListedSize bounds the dimensions accepted from a picture list.
	maxListedSize = 8192
	// defaultLazyResident is used when no limit is configured.
	defaultLazyResident = 512
)

type TextureSystemConfig struct {
	/** @brief The maximum number of lazily loaded pictures resident at once. The least recently drawn one is released past it. */
	MaxLazyResident int
	/** @brief Store pictures whose pixels are 2x redundant at half size. */
	ScaleDownTextures bool
}

type colorKey struct {
	src color.NRGBA
	dst color.NRGBA
}

/**
 * @brief TextureSystem loads pictures, materialises lazily loaded ones on first draw and
 * keeps a non-owning registry of every picture holding backend textures, so a global
 * teardown frees them exactly once.
 */
type TextureSystem struct {
	config   *TextureSystemConfig
	renderer *renderer.Renderer
	assets   *assets.AssetManager
	jobs     *JobSystem
	events   *core.EventBus
	bitblit  *graphics.BitBlit

	// guards registry, resident, used, pending and key
	mutex    sync.Mutex
	registry map[uuid.UUID]*metadata.Picture
	resident *containers.RingQueue[*metadata.Picture]
	// resident lazy pictures, true when drawn since the eviction scan last passed them
	used    map[*metadata.Picture]bool
	pending []string
	key     *colorKey

	// backends are driven from one goroutine at a time
	upload sync.Mutex
}

var _ renderer.Materializer = (*TextureSystem)(nil)

func NewTextureSystem(config *TextureSystemConfig, r *renderer.Renderer, am *assets.AssetManager, js *JobSystem, events *core.EventBus) (*TextureSystem, error) {
	if config.MaxLazyResident <= 0 {
		err := fmt.Errorf("func NewTextureSystem - config.MaxLazyResident must be > 0: %w", core.ErrInvalidConfiguration)
		core.LogError(err.Error())
		return nil, err
	}
	if r == nil || am == nil {
		return nil, fmt.Errorf("func NewTextureSystem - renderer and asset manager are required: %w", core.ErrInvalidConfiguration)
	}

	ts := &TextureSystem{
		config:   config,
		renderer: r,
		assets:   am,
		jobs:     js,
		events:   events,
		bitblit:  graphics.NewBitBlit(),
		registry: make(map[uuid.UUID]*metadata.Picture),
		resident: containers.NewRingQueue[*metadata.Picture](config.MaxLazyResident),
		used:     make(map[*metadata.Picture]bool, config.MaxLazyResident),
	}
	return ts, nil
}

// TextureSystemConfigFrom derives the texture system settings from the engine configuration.
func TextureSystemConfigFrom(cfg *config.Config) *TextureSystemConfig {
	resident := cfg.Render.MaxLazyResident
	if resident <= 0 {
		resident = defaultLazyResident
	}
	return &TextureSystemConfig{
		MaxLazyResident:   resident,
		ScaleDownTextures: cfg.Render.ScaleDownTextures,
	}
}

func (ts *TextureSystem) Initialize() error {
	ts.renderer.SetMaterializer(ts)
	if ts.events != nil {
		ts.events.Register(core.EVENT_CODE_ASSET_CHANGED, ts, ts.onAssetChanged)
	}
	return nil
}

func (ts *TextureSystem) Shutdown() error {
	if ts.events != nil {
		ts.events.Unregister(core.EVENT_CODE_ASSET_CHANGED, ts)
	}
	ts.renderer.SetMaterializer(nil)
	ts.ClearAllTextures()
	return nil
}

func (ts *TextureSystem) SetBitBlitBG(red, green, blue uint8) {
	ts.bitblit.SetBitBlitBG(red, green, blue)
}

func (ts *TextureSystem) ResetBitBlitBG() {
	ts.bitblit.ResetBitBlitBG()
}

// SetColorKey replaces every pixel exactly equal to src with dst in pictures loaded afterwards.
func (ts *TextureSystem) SetColorKey(src, dst color.NRGBA) {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()
	ts.key = &colorKey{src: src, dst: dst}
}

func (ts *TextureSystem) ClearColorKey() {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()
	ts.key = nil
}

/**
 * @brief Loads a picture from disk and uploads it. Never fails: on error the returned
 * picture has Inited set to false.
 * @param path The image file.
 * @param maskPath An optional separate bit-mask image. Empty for none.
 * @param maskFallback An optional image whose alpha channel makes the mask when maskPath does not exist.
 */
func (ts *TextureSystem) LoadPicture(path, maskPath, maskFallback string) *metadata.Picture {
	p := metadata.NewPicture()
	p.Path = path
	p.MaskPath = maskPath
	p.MaskFallbackPath = maskFallback

	img, mask, err := ts.decode(p)
	if err == nil {
		err = ts.prepare(p, img, mask)
	}
	if err != nil {
		core.LogError("failed to load picture %s: %s", path, err.Error())
		p.Inited = false
		return p
	}
	return p
}

// LoadPictureFromImage uploads an in-memory image. Such pictures can't be lazily released.
func (ts *TextureSystem) LoadPictureFromImage(img image.Image, mask image.Image) *metadata.Picture {
	p := metadata.NewPicture()
	if img == nil || img.Bounds().Empty() {
		core.LogError("failed to load picture from image: %s", core.ErrEmptyImage.Error())
		return p
	}
	var m *image.NRGBA
	if mask != nil {
		m = graphics.ToNRGBA(mask)
	}
	// the caller keeps ownership of img
	rgba := graphics.Clone(graphics.ToNRGBA(img))
	if err := ts.prepare(p, rgba, m); err != nil {
		core.LogError("failed to load picture from image: %s", err.Error())
		p.Inited = false
	}
	return p
}

/**
 * @brief Creates a picture whose pixels are loaded on its first draw. The size is read
 * from the "<path>.size" sidecar; without one the image is fully loaded once to learn
 * it and released again.
 */
func (ts *TextureSystem) LazyLoadPicture(path, maskPath, maskFallback string) *metadata.Picture {
	p := metadata.NewPicture()
	p.Path = path
	p.MaskPath = maskPath
	p.MaskFallbackPath = maskFallback

	res, err := ts.assets.LoadAsset(path+".size", metadata.ResourceTypeSizeDescriptor, nil)
	if err == nil {
		size := res.Data.(metadata.SizeDescriptor)
		p.W, p.H = size.W, size.H
		p.Inited = true
		p.LazyLoaded = true
		return p
	}

	core.LogWarn("missing size descriptor for %s, falling back to a full load", path)
	img, mask, err := ts.decode(p)
	if err == nil {
		err = ts.prepare(p, img, mask)
	}
	if err != nil {
		core.LogError("failed to lazy load picture %s: %s", path, err.Error())
		p.Inited = false
		return p
	}
	ts.DeleteTexture(p, true)
	return p
}

/**
 * @brief Reads a picture list: triples of lines holding a path relative to dir, the
 * width and the height. Every entry becomes a lazily loaded picture.
 */
func (ts *TextureSystem) LazyLoadPictureFromList(r io.Reader, dir string) ([]*metadata.Picture, error) {
	var pictures []*metadata.Picture
	scanner := bufio.NewScanner(r)
	line := 0

	next := func() (string, bool) {
		for scanner.Scan() {
			line++
			if s := strings.TrimSpace(scanner.Text()); s != "" {
				return s, true
			}
		}
		return "", false
	}
	dimension := func(name string) (int, error) {
		s, ok := next()
		if !ok {
			return 0, fmt.Errorf("picture list line %d: missing %s: %w", line, name, core.ErrInvalidSizeDescriptor)
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("picture list line %d: bad %s %q: %w", line, name, s, core.ErrInvalidSizeDescriptor)
		}
		return v, nil
	}

	for {
		path, ok := next()
		if !ok {
			break
		}
		w, err := dimension("width")
		if err != nil {
			return pictures, err
		}
		h, err := dimension("height")
		if err != nil {
			return pictures, err
		}

		p := metadata.NewPicture()
		p.Path = filepath.Join(dir, path)
		if w < 0 || w > maxListedSize || h < 0 || h > maxListedSize {
			core.LogWarn("picture list: %s has invalid size %d x %d", p.Path, w, h)
			pictures = append(pictures, p)
			continue
		}
		p.W, p.H = w, h
		p.Inited = true
		p.LazyLoaded = true
		pictures = append(pictures, p)
	}
	if err := scanner.Err(); err != nil {
		return pictures, err
	}
	return pictures, nil
}

/**
 * @brief Loads the pixels of a lazily loaded picture. For resident lazy pictures it only
 * records the use; eager pictures are left alone. A failed load marks the picture unusable.
 * @return True if the picture has a texture afterwards.
 */
func (ts *TextureSystem) Materialize(p *metadata.Picture) bool {
	if p == nil {
		return false
	}
	p.Lock()
	defer p.Unlock()

	if !p.Inited || !p.LazyLoaded {
		return p.Inited && p.HasTexture()
	}
	if p.HasTexture() {
		ts.touch(p)
		return true
	}

	img, mask, err := ts.decode(p)
	if err == nil {
		err = ts.prepare(p, img, mask)
	}
	if err != nil {
		core.LogError("failed to materialize picture %s: %s", p, err.Error())
		p.Inited = false
		return false
	}
	ts.trackResident(p)
	return true
}

// Preload materialises the given lazy pictures in parallel on the job system and waits for them.
func (ts *TextureSystem) Preload(pictures []*metadata.Picture) {
	if ts.jobs == nil {
		for _, p := range pictures {
			ts.Materialize(p)
		}
		return
	}

	var wg sync.WaitGroup
	for _, p := range pictures {
		if p == nil || !p.LazyLoaded || p.HasTexture() {
			continue
		}
		wg.Add(1)
		err := ts.jobs.Submit(metadata.JobTask{
			JobType:     metadata.JOB_TYPE_RESOURCE_LOAD,
			Priority:    metadata.JOB_PRIORITY_NORMAL,
			InputParams: []interface{}{p},
			OnStart: func(params []interface{}) (interface{}, error) {
				pic := params[0].(*metadata.Picture)
				if !ts.Materialize(pic) {
					return nil, fmt.Errorf("preload %s: %w", pic, core.ErrPictureNotInited)
				}
				return pic, nil
			},
			OnCompletionCallback: wg.Done,
		})
		if err != nil {
			wg.Done()
			ts.Materialize(p)
		}
	}
	wg.Wait()
}

/**
 * @brief Frees the backend textures of a picture. Safe on released pictures.
 * @param lazy When true only the textures are dropped and the picture reloads on its next
 * draw; otherwise the whole descriptor is reset.
 */
func (ts *TextureSystem) DeleteTexture(p *metadata.Picture, lazy bool) {
	if p == nil {
		return
	}
	if p.HasTexture() || p.HasMask() {
		ts.upload.Lock()
		ts.renderer.TextureDestroy(p)
		ts.upload.Unlock()
	}
	ts.unregister(p)
	ts.forgetResident(p)

	if !lazy {
		p.Reset()
		return
	}
	if p.Path != "" {
		p.LazyLoaded = true
	} else {
		// nothing to reload from
		p.Inited = false
	}
}

// ClearAllTextures frees every registered picture's textures. The pictures stay lazily reloadable.
func (ts *TextureSystem) ClearAllTextures() {
	ts.mutex.Lock()
	pictures := make([]*metadata.Picture, 0, len(ts.registry))
	for _, p := range ts.registry {
		pictures = append(pictures, p)
	}
	ts.mutex.Unlock()

	for _, p := range pictures {
		ts.DeleteTexture(p, true)
	}
	core.LogDebug("released %d pictures", len(pictures))
}

func (ts *TextureSystem) RegisteredCount() int {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()
	return len(ts.registry)
}

/**
 * @brief Applies the asset changes reported since the last call. Lazy pictures are
 * released and reload on their next draw; eager ones are reloaded in place.
 */
func (ts *TextureSystem) Update() {
	ts.mutex.Lock()
	changed := ts.pending
	ts.pending = nil
	var affected []*metadata.Picture
	if len(changed) > 0 {
		for _, p := range ts.registry {
			for _, path := range changed {
				if uses(p, path) {
					affected = append(affected, p)
					break
				}
			}
		}
	}
	ts.mutex.Unlock()

	for _, p := range affected {
		core.LogInfo("reloading picture %s", p)
		if p.LazyLoaded {
			ts.DeleteTexture(p, true)
			continue
		}
		ts.reload(p)
	}
}

func (ts *TextureSystem) reload(p *metadata.Picture) {
	p.Lock()
	defer p.Unlock()
	img, mask, err := ts.decode(p)
	if err == nil {
		err = ts.prepare(p, img, mask)
	}
	if err != nil {
		core.LogError("failed to reload picture %s: %s", p, err.Error())
	}
}

func (ts *TextureSystem) onAssetChanged(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()
	ts.pending = append(ts.pending, data.Str)
	// other systems may watch the same file
	return false
}

func uses(p *metadata.Picture, path string) bool {
	for _, own := range []string{p.Path, p.MaskPath, p.MaskFallbackPath} {
		if own != "" && assets.SamePath(own, path) {
			return true
		}
	}
	return false
}

// decode reads the image of p and its mask, if any.
func (ts *TextureSystem) decode(p *metadata.Picture) (*image.NRGBA, *image.NRGBA, error) {
	res, err := ts.assets.LoadAsset(p.Path, metadata.ResourceTypeImage, nil)
	if err != nil {
		return nil, nil, err
	}
	img := res.Data.(*image.NRGBA)

	var mask *image.NRGBA
	switch {
	case p.MaskPath != "" && exists(p.MaskPath):
		if res, err = ts.assets.LoadAsset(p.MaskPath, metadata.ResourceTypeImage, nil); err != nil {
			return nil, nil, err
		}
		mask = res.Data.(*image.NRGBA)
	case p.MaskFallbackPath != "":
		res, err = ts.assets.LoadAsset(p.MaskFallbackPath, metadata.ResourceTypeImage, &metadata.ImageLoadParams{MaskIsPNG: true})
		if err != nil {
			core.LogWarn("mask fallback of %s unusable: %s", p, err.Error())
			break
		}
		mask = res.Data.(*image.NRGBA)
	}
	return img, mask, nil
}

// prepare picks how img and mask are composited and uploads them, evicting lazy
// pictures and retrying once when the backend runs out of texture memory.
func (ts *TextureSystem) prepare(p *metadata.Picture, img, mask *image.NRGBA) error {
	ts.mutex.Lock()
	key := ts.key
	ts.mutex.Unlock()
	if key != nil {
		graphics.ReplaceColor(img, key.src, key.dst)
	}

	if p.W == 0 || p.H == 0 {
		p.W, p.H = img.Rect.Dx(), img.Rect.Dy()
	}

	if mask != nil {
		caps := ts.renderer.Capabilities()
		if !caps.MaskTextures || !graphics.ValidateBitmaskRequired(img, mask, p.Path) {
			ts.bitblit.MergeWithMask(img, mask)
			mask = nil
		}
	}
	p.DepthTest = mask == nil && graphics.ValidateForDepthTest(img, p.Path)

	if ts.config.ScaleDownTextures && graphics.ValidateFor2xScaleDown(img, p.Path) &&
		(mask == nil || graphics.ValidateFor2xScaleDown(mask, p.MaskPath)) {
		img = graphics.ScaleDown2x(img)
		if mask != nil {
			mask = graphics.ScaleDown2x(mask)
		}
	}

	ts.upload.Lock()
	err := ts.renderer.TextureCreate(p, img, mask)
	if errors.Is(err, core.ErrOutOfTextureMemory) {
		ts.upload.Unlock()
		freed := ts.evict(p)
		core.LogWarn("out of texture memory loading %s, released %d lazy pictures, retrying", p, freed)
		ts.upload.Lock()
		err = ts.renderer.TextureCreate(p, img, mask)
	}
	ts.upload.Unlock()
	if err != nil {
		return err
	}

	p.Inited = true
	ts.register(p)
	return nil
}

// trackResident adds a freshly materialised lazy picture to the resident ring. When the
// ring is full a victim is picked second-chance style: the oldest entry not drawn again
// since it was materialised or since the scan last passed it.
func (ts *TextureSystem) trackResident(p *metadata.Picture) {
	ts.mutex.Lock()
	if _, ok := ts.used[p]; ok {
		ts.used[p] = true
		ts.mutex.Unlock()
		return
	}
	var victim *metadata.Picture
	if ts.resident.IsFull() {
		victim = ts.pickVictim()
	}
	ts.resident.Enqueue(p)
	ts.used[p] = false
	ts.mutex.Unlock()

	if victim != nil {
		ts.DeleteTexture(victim, true)
	}
}

// pickVictim removes and returns the resident picture to release. Callers hold the mutex.
func (ts *TextureSystem) pickVictim() *metadata.Picture {
	for {
		p, err := ts.resident.Dequeue()
		if err != nil {
			return nil
		}
		if ts.used[p] {
			ts.used[p] = false
			ts.resident.Enqueue(p)
			continue
		}
		delete(ts.used, p)
		return p
	}
}

// touch marks a resident lazy picture as drawn.
func (ts *TextureSystem) touch(p *metadata.Picture) {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()
	if _, ok := ts.used[p]; ok {
		ts.used[p] = true
	}
}

func (ts *TextureSystem) forgetResident(p *metadata.Picture) {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()
	if _, ok := ts.used[p]; !ok {
		return
	}
	delete(ts.used, p)
	ts.resident.RemoveFunc(func(q *metadata.Picture) bool {
		return q == p
	})
}

// evict releases every resident lazy picture except keep. Returns how many were freed.
func (ts *TextureSystem) evict(keep *metadata.Picture) int {
	ts.mutex.Lock()
	var victims []*metadata.Picture
	kept := false
	for !ts.resident.IsEmpty() {
		p, _ := ts.resident.Dequeue()
		if p == keep {
			kept = true
			continue
		}
		delete(ts.used, p)
		victims = append(victims, p)
	}
	if kept {
		ts.resident.Enqueue(keep)
	}
	ts.mutex.Unlock()

	freed := 0
	for _, p := range victims {
		if p.HasTexture() {
			ts.DeleteTexture(p, true)
			freed++
		}
	}
	return freed
}

func (ts *TextureSystem) register(p *metadata.Picture) {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()
	ts.registry[p.ID] = p
}

func (ts *TextureSystem) unregister(p *metadata.Picture) {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()
	delete(ts.registry, p.ID)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
