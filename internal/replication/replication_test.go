package replication

import (
	"testing"
	"time"

	"github.com/szt-redis/moonlight-kv/internal/storage"
	"go.uber.org/zap"
)

func TestPullerReplicatesFromServer(t *testing.T) {
	masterManager, err := storage.NewManager(2, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	s0, _ := masterManager.Shard(0)
	s0.Set("k", "v", storage.SetOptions{})
	s0.LPush("list", "a", "b")

	// Command port 16380 is arbitrary but fixed so the puller's derived
	// replication port matches the server's bound port.
	const commandPort = 16380

	server, err := Listen("127.0.0.1", commandPort, masterManager, zap.NewNop())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer server.Stop()
	go server.Serve()

	slaveManager, err := storage.NewManager(2, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	puller := NewPuller("slave-1", "127.0.0.1", commandPort, 50*time.Millisecond, time.Second, time.Second, slaveManager, zap.NewNop())
	if err := puller.pullOnce(); err != nil {
		t.Fatalf("pullOnce: %v", err)
	}

	ls0, _ := slaveManager.Shard(0)
	if v, ok := ls0.Get("k"); !ok || v.Str != "v" {
		t.Fatalf("expected k=v to replicate, got %v ok=%v", v, ok)
	}
	list, _ := ls0.LRange("list", 0, -1)
	if len(list) != 2 {
		t.Fatalf("expected replicated list of 2, got %v", list)
	}
}

func TestPullerFailsAgainstUnreachableMaster(t *testing.T) {
	_, err := storage.NewManager(1, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	const commandPort = 16390

	// No server listens on either the primary or the fallback replication
	// port, so this test only checks that pullOnce reports an error; the
	// fallback path succeeding is not exercised here.
	slaveManager, _ := storage.NewManager(1, zap.NewNop())
	puller := NewPuller("slave-1", "127.0.0.1", commandPort, 50*time.Millisecond, 50*time.Millisecond, 50*time.Millisecond, slaveManager, zap.NewNop())

	err = puller.pullOnce()
	if err == nil {
		t.Fatalf("expected pullOnce to fail against an unreachable master")
	}
}
