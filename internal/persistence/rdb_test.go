package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/szt-redis/moonlight-kv/internal/storage"
	"go.uber.org/zap"
)

func TestRDBSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.rdb")

	m, err := storage.NewManager(4, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	s0, _ := m.Shard(0)
	s0.Set("k", "v", storage.SetOptions{})
	s0.LPush("list", "a", "b")

	rdb := NewRDB(path, true, 100, zap.NewNop())
	if err := rdb.Save(m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := storage.NewManager(4, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := rdb.Load(loaded); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ls0, _ := loaded.Shard(0)
	if v, ok := ls0.Get("k"); !ok || v.Str != "v" {
		t.Fatalf("expected k=v to survive round trip, got %v ok=%v", v, ok)
	}
	list, _ := ls0.LRange("list", 0, -1)
	if len(list) != 2 {
		t.Fatalf("expected 2-element list, got %v", list)
	}
}

func TestRDBLoadMissingFileInitializesEmptySnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.rdb")

	m, _ := storage.NewManager(2, zap.NewNop())
	rdb := NewRDB(path, false, 100, zap.NewNop())

	if err := rdb.Load(m); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected Load to create an empty snapshot file: %v", err)
	}
}

func TestRDBLoadCorruptFileIsQuarantined(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.rdb")

	if err := os.WriteFile(path, []byte("not a valid rdb file at all"), 0644); err != nil {
		t.Fatalf("seeding corrupt file: %v", err)
	}

	m, _ := storage.NewManager(2, zap.NewNop())
	rdb := NewRDB(path, false, 100, zap.NewNop())

	if err := rdb.Load(m); err != nil {
		t.Fatalf("expected corrupt load to recover rather than fail: %v", err)
	}

	matches, _ := filepath.Glob(path + ".bak.*")
	if len(matches) != 1 {
		t.Fatalf("expected exactly one quarantine backup, got %v", matches)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected a fresh empty snapshot at the original path: %v", err)
	}
}

func TestRDBUncompressedFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.rdb")

	m, _ := storage.NewManager(2, zap.NewNop())
	s0, _ := m.Shard(0)
	s0.Set("k", "v", storage.SetOptions{})

	saver := NewRDB(path, false, 100, zap.NewNop())
	if err := saver.Save(m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loader := NewRDB(path, true, 100, zap.NewNop())
	loaded, _ := storage.NewManager(2, zap.NewNop())
	if err := loader.Load(loaded); err != nil {
		t.Fatalf("expected loader to fall back to the uncompressed read: %v", err)
	}
	ls0, _ := loaded.Shard(0)
	if v, ok := ls0.Get("k"); !ok || v.Str != "v" {
		t.Fatalf("expected k=v after uncompressed fallback, got %v ok=%v", v, ok)
	}
}
