package assets

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/xrender/engine/core"
	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
)

func writeSprite(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewNRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
}

func TestDetermineAssetType(t *testing.T) {
	tests := []struct {
		path string
		want metadata.ResourceType
	}{
		{"graphics/block/block-1.png", metadata.ResourceTypeImage},
		{"graphics/block/block-1m.GIF", metadata.ResourceTypeImage},
		{"bg.jpeg", metadata.ResourceTypeImage},
		{"bg.tiff", metadata.ResourceTypeImage},
		{"graphics/npc/npc-4.size", metadata.ResourceTypeSizeDescriptor},
		{"fonts/font1.fnt", metadata.ResourceTypeBitmapFont},
		{"xrender.toml", metadata.ResourceTypeConfig},
		{"readme.txt", metadata.ResourceTypeNone},
		{"noext", metadata.ResourceTypeNone},
	}
	for _, tt := range tests {
		if got := DetermineAssetType(tt.path); got != tt.want {
			t.Errorf("DetermineAssetType(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestIndexAndLoad(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "npc"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeSprite(t, filepath.Join(dir, "npc", "npc-1.png"))
	if err := os.WriteFile(filepath.Join(dir, "npc", "npc-1.size"), []byte("0002\n0002\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	am := NewAssetManager(core.NewEventBus())
	defer am.Shutdown()
	if err := am.Initialize(dir, false); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if am.Count() != 2 {
		t.Errorf("indexed %d assets, want 2", am.Count())
	}
	info, ok := am.Asset(filepath.Join(dir, "npc", "..", "npc", "npc-1.size"))
	if !ok || info.Type != metadata.ResourceTypeSizeDescriptor {
		t.Errorf("size sidecar entry = %+v, %v", info, ok)
	}

	res, err := am.LoadAsset(filepath.Join(dir, "npc", "npc-1.size"), metadata.ResourceTypeSizeDescriptor, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Data.(metadata.SizeDescriptor) != (metadata.SizeDescriptor{W: 2, H: 2}) {
		t.Errorf("size = %+v", res.Data)
	}
	if info, _ := am.Asset(filepath.Join(dir, "npc", "npc-1.size")); info.LastLoaded.IsZero() {
		t.Error("LastLoaded not recorded")
	}

	if _, err := am.LoadAsset("xrender.toml", metadata.ResourceTypeConfig, nil); !errors.Is(err, core.ErrLoaderNotFound) {
		t.Errorf("expected ErrLoaderNotFound, got %v", err)
	}

	am.Shutdown()
	if _, err := am.LoadAsset(filepath.Join(dir, "npc", "npc-1.png"), metadata.ResourceTypeImage, nil); !errors.Is(err, core.ErrAssetManagerClosed) {
		t.Errorf("expected ErrAssetManagerClosed, got %v", err)
	}
}

func TestWatchFiresAssetChanged(t *testing.T) {
	dir := t.TempDir()
	events := core.NewEventBus()
	changed := make(chan string, 16)
	events.Register(core.EVENT_CODE_ASSET_CHANGED, t, func(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
		select {
		case changed <- data.Str:
		default:
		}
		return true
	})

	am := NewAssetManager(events)
	defer am.Shutdown()
	if err := am.Initialize(dir, true); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	path := filepath.Join(dir, "block-3.png")
	writeSprite(t, path)

	timeout := time.After(5 * time.Second)
	for {
		select {
		case got := <-changed:
			if SamePath(got, path) {
				if _, ok := am.Asset(path); !ok {
					t.Error("changed file not indexed")
				}
				return
			}
		case <-timeout:
			t.Fatal("no EVENT_CODE_ASSET_CHANGED for the new file")
		}
	}
}

func TestSamePath(t *testing.T) {
	if !SamePath("a/b/../c.png", "a/c.png") {
		t.Error("cleaned paths must match")
	}
	if SamePath("a/c.png", "a/d.png") {
		t.Error("different files matched")
	}
}
