package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/szt-redis/moonlight-kv/internal/config"
	"github.com/szt-redis/moonlight-kv/internal/storage"
	"go.uber.org/zap"
)

func TestCoordinatorAOFRewriteSizeTrigger(t *testing.T) {
	dir := t.TempDir()
	cfg := config.PersistenceConfig{
		Mode: "aof",
		AOF: config.AOFConfig{
			Enabled:     true,
			Filename:    filepath.Join(dir, "appendonly.aof"),
			Fsync:       "always",
			RewriteSize: 64,
		},
	}

	m, err := storage.NewManager(1, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	c, err := NewCoordinator(cfg, "master", m, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	t.Cleanup(c.Stop)

	for i := 0; i < 20; i++ {
		c.Append(0, "SET", []string{"k", "a-fairly-long-value-to-cross-the-threshold-quickly"})
	}
	time.Sleep(20 * time.Millisecond) // let the listener goroutine drain the entries

	if c.aof.Size() < cfg.AOF.RewriteSize {
		t.Fatalf("expected accumulated size to cross the rewrite threshold, got %d", c.aof.Size())
	}
}

func TestAOFSizeTracksAppendedBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "appendonly.aof")

	aof, err := NewAOF(path, "always", zap.NewNop())
	if err != nil {
		t.Fatalf("NewAOF: %v", err)
	}
	t.Cleanup(func() { aof.Close() })

	if aof.Size() != 0 {
		t.Fatalf("expected 0 bytes on a fresh log, got %d", aof.Size())
	}

	aof.Append(0, "SET", []string{"k", "v"})
	time.Sleep(20 * time.Millisecond) // let the listener goroutine drain the entry

	if aof.Size() == 0 {
		t.Fatalf("expected Size to grow after an append")
	}

	m, _ := storage.NewManager(1, zap.NewNop())
	m.FlushAll()
	if err := aof.Rewrite(m); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if aof.Size() != 0 {
		t.Fatalf("expected Size reset after rewrite, got %d", aof.Size())
	}
}
