package server

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/szt-redis/moonlight-kv/internal/config"
	"github.com/szt-redis/moonlight-kv/internal/resp"
	"go.uber.org/zap"
)

// setupEngine builds a fully wired master-role engine against a scratch
// directory, the same way a real process would after config.Load, minus
// the file lookup. Command port is fixed but arbitrary per test to keep
// the replication listener from colliding across parallel test binaries.
func setupEngine(t *testing.T, commandPort int) *Engine {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		Server:  config.ServerConfig{Host: "127.0.0.1", Port: strconv.Itoa(commandPort)},
		Storage: config.StorageConfig{Shards: 4},
		Persistence: config.PersistenceConfig{
			Mode: "rdb",
			RDB: config.RDBConfig{
				Enabled:   true,
				Filename:  dir + "/dump.rdb",
				Interval:  time.Hour,
				MaxShards: 100,
			},
		},
		Replication: config.ReplicationConfig{Role: "master"},
	}

	e, err := NewEngine(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(e.Shutdown)
	return e
}

// newTestPeer wires a Peer to one end of an in-memory pipe. Nothing reads
// the other end in these tests since Engine.Execute is called directly.
func newTestPeer(t *testing.T) *Peer {
	t.Helper()
	client, srv := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		srv.Close()
	})
	return NewPeer(srv)
}

func TestPing(t *testing.T) {
	e := setupEngine(t, 16400)
	p := newTestPeer(t)

	res := e.Execute(p, "PING", nil)
	if string(res.String) != "PONG" {
		t.Fatalf("expected PONG, got %q", res.String)
	}

	res = e.Execute(p, "PING", []string{"hello"})
	if string(res.String) != "hello" {
		t.Fatalf("expected echoed arg, got %q", res.String)
	}
}

func TestBasicSetGetDel(t *testing.T) {
	e := setupEngine(t, 16401)
	p := newTestPeer(t)

	if res := e.Execute(p, "SET", []string{"foo", "bar"}); string(res.String) != "OK" {
		t.Fatalf("SET failed: %+v", res)
	}
	res := e.Execute(p, "GET", []string{"foo"})
	if string(res.String) != "bar" {
		t.Fatalf("GET mismatch: %+v", res)
	}
	res = e.Execute(p, "DEL", []string{"foo"})
	if res.Integer != 1 {
		t.Fatalf("DEL expected 1, got %+v", res)
	}
	res = e.Execute(p, "GET", []string{"foo"})
	if !res.IsNull {
		t.Fatalf("GET after DEL expected nil, got %+v", res)
	}
}

func TestSetNX_XX(t *testing.T) {
	e := setupEngine(t, 16402)
	p := newTestPeer(t)

	res := e.Execute(p, "SET", []string{"k", "v1", "NX"})
	if string(res.String) != "OK" {
		t.Fatalf("first NX SET should succeed: %+v", res)
	}
	res = e.Execute(p, "SET", []string{"k", "v2", "NX"})
	if !res.IsNull {
		t.Fatalf("second NX SET should be nil, got %+v", res)
	}
	res = e.Execute(p, "SET", []string{"missing", "v", "XX"})
	if !res.IsNull {
		t.Fatalf("XX SET on missing key should be nil, got %+v", res)
	}
	res = e.Execute(p, "SET", []string{"k", "v3", "XX"})
	if string(res.String) != "OK" {
		t.Fatalf("XX SET on existing key should succeed: %+v", res)
	}
}

func TestSetTTL(t *testing.T) {
	e := setupEngine(t, 16403)
	p := newTestPeer(t)

	res := e.Execute(p, "SET", []string{"k", "v", "EX", "100"})
	if string(res.String) != "OK" {
		t.Fatalf("SET EX failed: %+v", res)
	}
	res = e.Execute(p, "TTL", []string{"k"})
	if res.Integer <= 0 || res.Integer > 100 {
		t.Fatalf("TTL out of expected range: %+v", res)
	}
}

func TestSetKeepTTL(t *testing.T) {
	e := setupEngine(t, 16404)
	p := newTestPeer(t)

	e.Execute(p, "SET", []string{"k", "v", "EX", "100"})
	res := e.Execute(p, "SET", []string{"k", "v2", "KEEPTTL"})
	if string(res.String) != "OK" {
		t.Fatalf("SET KEEPTTL failed: %+v", res)
	}
	res = e.Execute(p, "TTL", []string{"k"})
	if res.Integer <= 0 {
		t.Fatalf("TTL should have survived KEEPTTL, got %+v", res)
	}

	res = e.Execute(p, "SET", []string{"k", "v3"})
	if string(res.String) != "OK" {
		t.Fatalf("bare SET failed: %+v", res)
	}
	res = e.Execute(p, "TTL", []string{"k"})
	if res.Integer != -1 {
		t.Fatalf("TTL should be cleared by bare SET, got %+v", res)
	}
}

func TestSetTimestamps(t *testing.T) {
	e := setupEngine(t, 16405)
	p := newTestPeer(t)

	future := time.Now().Add(time.Minute).Unix()
	res := e.Execute(p, "SET", []string{"k", "v", "EXAT", strconv.FormatInt(future, 10)})
	if string(res.String) != "OK" {
		t.Fatalf("SET EXAT failed: %+v", res)
	}
	res = e.Execute(p, "TTL", []string{"k"})
	if res.Integer <= 0 {
		t.Fatalf("TTL after EXAT should be positive, got %+v", res)
	}
}

func TestTTL_PTTL_Codes(t *testing.T) {
	e := setupEngine(t, 16406)
	p := newTestPeer(t)

	res := e.Execute(p, "TTL", []string{"nosuchkey"})
	if res.Integer != -2 {
		t.Fatalf("TTL on missing key should be -2, got %+v", res)
	}
	e.Execute(p, "SET", []string{"k", "v"})
	res = e.Execute(p, "TTL", []string{"k"})
	if res.Integer != -1 {
		t.Fatalf("TTL on key without expiry should be -1, got %+v", res)
	}
	res = e.Execute(p, "PTTL", []string{"nosuchkey"})
	if res.Integer != -2 {
		t.Fatalf("PTTL on missing key should be -2, got %+v", res)
	}
}

func TestSetSyntaxErrors(t *testing.T) {
	e := setupEngine(t, 16407)
	p := newTestPeer(t)

	cases := []struct {
		name string
		args []string
	}{
		{"NX and XX together", []string{"k", "v", "NX", "XX"}},
		{"EX and PX together", []string{"k", "v", "EX", "10", "PX", "10000"}},
		{"EX and KEEPTTL together", []string{"k", "v", "EX", "10", "KEEPTTL"}},
		{"non-numeric EX", []string{"k", "v", "EX", "soon"}},
		{"unknown option", []string{"k", "v", "BOGUS"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := e.Execute(p, "SET", tc.args)
			if res.Type != resp.TypeError {
				t.Fatalf("expected error for %s, got %+v", tc.name, res)
			}
		})
	}
}
