package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/xrender/engine/assets/loaders"
	"github.com/spaghettifunk/xrender/engine/core"
	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
)

type AssetInfo struct {
	Path       string
	Type       metadata.ResourceType
	LastLoaded time.Time
}

/**
 * @brief AssetManager indexes the asset directory, decodes files through the loader
 * registered for their type and, when watching, fires EVENT_CODE_ASSET_CHANGED for
 * every file created or rewritten on disk.
 */
type AssetManager struct {
	assets  map[string]AssetInfo
	loaders map[metadata.ResourceType]Loader
	events  *core.EventBus

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewAssetManager(events *core.EventBus) *AssetManager {
	am := &AssetManager{
		assets:  make(map[string]AssetInfo),
		loaders: make(map[metadata.ResourceType]Loader),
		events:  events,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	am.RegisterLoader(metadata.ResourceTypeImage, &loaders.ImageLoader{})
	am.RegisterLoader(metadata.ResourceTypeSizeDescriptor, &loaders.SizeLoader{})
	am.RegisterLoader(metadata.ResourceTypeBitmapFont, &loaders.BitmapFontLoader{})
	return am
}

// Initialize indexes assetsDir and, when watch is set, starts watching it recursively.
func (am *AssetManager) Initialize(assetsDir string, watch bool) error {
	if _, err := os.Stat(assetsDir); err != nil {
		core.LogWarn("asset directory %s is not available: %s", assetsDir, err.Error())
		return nil
	}
	if !watch {
		return am.index(assetsDir)
	}

	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		core.LogError("failed to create the asset watcher: %s", err.Error())
		return err
	}
	am.fsnotify = fsWatch
	go am.start()

	if err := am.watchRecursive(assetsDir, false); err != nil {
		return err
	}
	core.LogInfo("watching %s for asset changes", assetsDir)
	return nil
}

func (am *AssetManager) Shutdown() {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return
	}
	am.isClosed = true
	am.mutex.Unlock()

	if am.fsnotify != nil {
		close(am.done)
		<-am.stopped
	}
}

// RegisterLoader sets the loader of an asset type, replacing any previous one.
func (am *AssetManager) RegisterLoader(assetType metadata.ResourceType, loader Loader) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.loaders[assetType] = loader
}

// LoadAsset decodes the file at path with the loader of resourceType. Files outside the
// index can be loaded too; they are indexed on success.
func (am *AssetManager) LoadAsset(path string, resourceType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	am.mutex.RLock()
	closed := am.isClosed
	loader, exists := am.loaders[resourceType]
	am.mutex.RUnlock()

	if closed {
		return nil, core.ErrAssetManagerClosed
	}
	if !exists {
		return nil, fmt.Errorf("%s (%s): %w", path, resourceType, core.ErrLoaderNotFound)
	}

	res, err := loader.Load(path, resourceType, params)
	if err != nil {
		return nil, err
	}

	am.mutex.Lock()
	am.assets[filepath.Clean(path)] = AssetInfo{
		Path:       path,
		Type:       resourceType,
		LastLoaded: time.Now(),
	}
	am.mutex.Unlock()
	return res, nil
}

func (am *AssetManager) UnloadAsset(resource *metadata.Resource) error {
	am.mutex.RLock()
	loader, exists := am.loaders[resource.Type]
	am.mutex.RUnlock()
	if !exists {
		return fmt.Errorf("%s: %w", resource.Type, core.ErrLoaderNotFound)
	}
	return loader.Unload(resource)
}

// Asset returns the index entry of path.
func (am *AssetManager) Asset(path string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[filepath.Clean(path)]
	return info, ok
}

// Count returns the number of indexed assets.
func (am *AssetManager) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					am.watchRecursive(e.Name, false)
				}
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if am.handleFileEvent(e.Name) && am.events != nil {
					am.events.Fire(core.EVENT_CODE_ASSET_CHANGED, am, core.EventContext{Str: e.Name})
				}
			}
			// a removed directory can't be stat'ed, so try to unwatch every removed path
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
				am.fsnotify.Remove(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err.Error())

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) index(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			am.handleFileEvent(walkPath)
		}
		return nil
	})
}

// watchRecursive adds all directories under the given one to the watch list.
func (am *AssetManager) watchRecursive(path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			am.handleFileEvent(walkPath)
			return nil
		}
		if unWatch {
			return am.fsnotify.Remove(walkPath)
		}
		return am.fsnotify.Add(walkPath)
	})
}

// handleFileEvent indexes a created or modified file. It reports whether the file is
// an asset.
func (am *AssetManager) handleFileEvent(path string) bool {
	assetType := DetermineAssetType(path)
	if assetType == metadata.ResourceTypeNone {
		return false
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	key := filepath.Clean(path)
	info := am.assets[key]
	info.Path = path
	info.Type = assetType
	am.assets[key] = info
	return true
}

func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	delete(am.assets, filepath.Clean(path))
}

func DetermineAssetType(path string) metadata.ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".gif", ".bmp", ".jpg", ".jpeg", ".tif", ".tiff":
		return metadata.ResourceTypeImage
	case ".size":
		return metadata.ResourceTypeSizeDescriptor
	case ".fnt":
		return metadata.ResourceTypeBitmapFont
	case ".toml":
		return metadata.ResourceTypeConfig
	default:
		return metadata.ResourceTypeNone
	}
}

// SamePath reports whether two paths name the same file.
func SamePath(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
