package persistence

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/szt-redis/moonlight-kv/internal/storage"
	"go.uber.org/zap"
)

func TestAOFAppendAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "appendonly.aof")

	aof, err := NewAOF(path, "always", zap.NewNop())
	if err != nil {
		t.Fatalf("NewAOF: %v", err)
	}
	aof.Append(0, "SET", []string{"k", "v"})
	aof.Append(1, "LPUSH", []string{"list", "a"})
	aof.Append(1, "LPUSH", []string{"list", "b"})
	if err := aof.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading aof file: %v", err)
	}
	text := string(raw)
	if !strings.Contains(text, "SELECT 0") || !strings.Contains(text, "SELECT 1") {
		t.Fatalf("expected SELECT lines on shard change, got:\n%s", text)
	}

	m, _ := storage.NewManager(4, zap.NewNop())
	if err := LoadAOF(path, m, zap.NewNop()); err != nil {
		t.Fatalf("LoadAOF: %v", err)
	}

	s0, _ := m.Shard(0)
	if v, ok := s0.Get("k"); !ok || v.Str != "v" {
		t.Fatalf("expected k=v after replay, got %v ok=%v", v, ok)
	}
	s1, _ := m.Shard(1)
	list, _ := s1.LRange("list", 0, -1)
	if len(list) != 2 || list[0] != "b" || list[1] != "a" {
		t.Fatalf("expected [b a] after replay, got %v", list)
	}
}

func TestAOFLoadSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "appendonly.aof")

	content := "SELECT 0\nSET k v\ngarbage line with no meaning\nZADD z notanumber m\nUNKNOWNCMD x y\nSET k2 v2\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("seeding aof file: %v", err)
	}

	m, _ := storage.NewManager(2, zap.NewNop())
	if err := LoadAOF(path, m, zap.NewNop()); err != nil {
		t.Fatalf("expected malformed lines to be skipped, not fail the load: %v", err)
	}

	s0, _ := m.Shard(0)
	if v, ok := s0.Get("k"); !ok || v.Str != "v" {
		t.Fatalf("expected k=v despite surrounding malformed lines, got %v ok=%v", v, ok)
	}
	if v, ok := s0.Get("k2"); !ok || v.Str != "v2" {
		t.Fatalf("expected k2=v2 after the malformed lines, got %v ok=%v", v, ok)
	}
}

func TestAOFRewriteProducesReplayableLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "appendonly.aof")

	aof, err := NewAOF(path, "always", zap.NewNop())
	if err != nil {
		t.Fatalf("NewAOF: %v", err)
	}
	defer aof.Close()

	m, _ := storage.NewManager(2, zap.NewNop())
	s0, _ := m.Shard(0)
	s0.Set("k", "v", storage.SetOptions{})
	s0.RPush("list", "a", "b", "c")
	s0.SAdd("s", "x", "y")
	s0.HSet("h", map[string]string{"f": "val"})
	s0.ZAdd("z", map[string]float64{"a": 1, "b": 2})
	s0.Expire("k", time.Hour)

	if err := aof.Rewrite(m); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	loaded, _ := storage.NewManager(2, zap.NewNop())
	if err := LoadAOF(path, loaded, zap.NewNop()); err != nil {
		t.Fatalf("LoadAOF after rewrite: %v", err)
	}

	ls0, _ := loaded.Shard(0)
	if v, ok := ls0.Get("k"); !ok || v.Str != "v" {
		t.Fatalf("expected k=v after rewrite+replay, got %v ok=%v", v, ok)
	}
	if ttl := ls0.TTL("k"); ttl <= 0 {
		t.Fatalf("expected PEXPIRE to survive rewrite+replay, got ttl=%d", ttl)
	}
	list, _ := ls0.LRange("list", 0, -1)
	if !reflect.DeepEqual(list, []string{"a", "b", "c"}) {
		t.Fatalf("expected list order preserved by rewrite+replay, got %v", list)
	}
	members, _ := ls0.SMembers("s")
	if len(members) != 2 {
		t.Fatalf("expected 2 set members after rewrite+replay, got %v", members)
	}
	val, ok, _ := ls0.HGet("h", "f")
	if !ok || val != "val" {
		t.Fatalf("expected h.f=val after rewrite+replay, got %q ok=%v", val, ok)
	}
	zord, _ := ls0.ZRange("z", 0, -1)
	if len(zord) != 2 {
		t.Fatalf("expected 2 zset members after rewrite+replay (ZADD-per-member), got %v", zord)
	}
}
