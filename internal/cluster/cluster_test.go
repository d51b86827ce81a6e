package cluster

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRegistryUpsertGetRemove(t *testing.T) {
	r := NewRegistry()
	r.Upsert(Node{ID: "n1", Host: "127.0.0.1", Port: 7000, Role: RoleSlave, Status: StatusHandshake})

	n, ok := r.Get("n1")
	if !ok || n.Port != 7000 {
		t.Fatalf("expected n1 to be present with port 7000, got %v ok=%v", n, ok)
	}

	if !r.Update("n1", func(n *Node) { n.Status = StatusOnline }) {
		t.Fatalf("expected Update to find n1")
	}
	n, _ = r.Get("n1")
	if n.Status != StatusOnline {
		t.Fatalf("expected status online, got %v", n.Status)
	}

	if !r.Remove("n1") {
		t.Fatalf("expected Remove to report n1 was present")
	}
	if _, ok := r.Get("n1"); ok {
		t.Fatalf("expected n1 to be gone after Remove")
	}
}

func TestGossiperHeartbeatExchangeKeepsPeerOnline(t *testing.T) {
	registryA := NewRegistry()
	registryB := NewRegistry()

	nodeA := Node{ID: "a", Host: "127.0.0.1", Port: 17100, Role: RoleMaster, Status: StatusOnline}
	nodeB := Node{ID: "b", Host: "127.0.0.1", Port: 17101, Role: RoleSlave, Status: StatusOnline, MasterID: "a"}

	registryA.Upsert(nodeB)
	registryB.Upsert(nodeA)

	gA := New(nodeA, registryA, 30*time.Millisecond, 60*time.Millisecond, 200*time.Millisecond, nil, zap.NewNop())
	gB := New(nodeB, registryB, 30*time.Millisecond, 60*time.Millisecond, 200*time.Millisecond, nil, zap.NewNop())

	if err := gA.Start(); err != nil {
		t.Fatalf("gA.Start: %v", err)
	}
	defer gA.Stop()
	if err := gB.Start(); err != nil {
		t.Fatalf("gB.Start: %v", err)
	}
	defer gB.Stop()

	time.Sleep(150 * time.Millisecond)

	bSeenByA, ok := registryA.Get("b")
	if !ok || bSeenByA.Status != StatusOnline {
		t.Fatalf("expected A to see B online after heartbeat exchange, got %v ok=%v", bSeenByA, ok)
	}
	aSeenByB, ok := registryB.Get("a")
	if !ok || aSeenByB.Status != StatusOnline {
		t.Fatalf("expected B to see A online after heartbeat exchange, got %v ok=%v", aSeenByB, ok)
	}
}

func TestGossiperPickNewMasterPicksMostRecentHeartbeat(t *testing.T) {
	registry := NewRegistry()
	now := time.Now()
	registry.Upsert(Node{ID: "slave-stale", Role: RoleSlave, MasterID: "master-1", Status: StatusOnline, LastHeartbeat: now.Add(-5 * time.Second)})
	registry.Upsert(Node{ID: "slave-fresh", Role: RoleSlave, MasterID: "master-1", Status: StatusOnline, LastHeartbeat: now})
	registry.Upsert(Node{ID: "slave-offline", Role: RoleSlave, MasterID: "master-1", Status: StatusOffline, LastHeartbeat: now})
	registry.Upsert(Node{ID: "slave-other-master", Role: RoleSlave, MasterID: "master-2", Status: StatusOnline, LastHeartbeat: now})

	self := Node{ID: "slave-fresh", Role: RoleSlave, MasterID: "master-1"}
	g := New(self, registry, time.Hour, time.Hour, time.Hour, nil, zap.NewNop())

	got := g.pickNewMaster("master-1")
	if got != "slave-fresh" {
		t.Fatalf("expected slave-fresh to be picked, got %q", got)
	}
}

func TestApplyFailoverStartPromotesNewMasterAndRebindsFollowers(t *testing.T) {
	registry := NewRegistry()
	registry.Upsert(Node{ID: "new-master", Role: RoleSlave, MasterID: "old-master", Status: StatusOnline})
	registry.Upsert(Node{ID: "other-slave", Role: RoleSlave, MasterID: "old-master", Status: StatusOnline})

	var gotRole Role
	var gotMaster string
	onRoleChange := func(role Role, masterID string) {
		gotRole = role
		gotMaster = masterID
	}

	self := Node{ID: "other-slave", Role: RoleSlave, MasterID: "old-master"}
	g := New(self, registry, time.Hour, time.Hour, time.Hour, onRoleChange, zap.NewNop())

	g.applyFailoverStart("old-master", "new-master")

	promoted, _ := registry.Get("new-master")
	if promoted.Role != RoleMaster {
		t.Fatalf("expected new-master to be promoted in registry, got role %v", promoted.Role)
	}
	rebound, _ := registry.Get("other-slave")
	if rebound.MasterID != "new-master" {
		t.Fatalf("expected other-slave to be rebound to new-master, got %v", rebound.MasterID)
	}
	if gotRole != RoleSlave || gotMaster != "new-master" {
		t.Fatalf("expected onRoleChange(slave, new-master), got (%v, %v)", gotRole, gotMaster)
	}
}

func TestApplyFailoverStartPromotesSelfWhenSelfIsNewMaster(t *testing.T) {
	registry := NewRegistry()
	registry.Upsert(Node{ID: "self-node", Role: RoleSlave, MasterID: "old-master", Status: StatusOnline})

	var gotRole Role
	onRoleChange := func(role Role, masterID string) { gotRole = role }

	self := Node{ID: "self-node", Role: RoleSlave, MasterID: "old-master"}
	g := New(self, registry, time.Hour, time.Hour, time.Hour, onRoleChange, zap.NewNop())

	g.applyFailoverStart("old-master", "self-node")

	if gotRole != RoleMaster {
		t.Fatalf("expected self to be promoted to master, got %v", gotRole)
	}
}
