package storage

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestShard() *Shard {
	return newShard(0, zap.NewNop())
}

func TestShardSetGetDelete(t *testing.T) {
	s := newTestShard()

	if _, ok := s.Get("missing"); ok {
		t.Fatalf("expected absent key to be absent")
	}

	s.Set("k", "v", SetOptions{})
	v, ok := s.Get("k")
	if !ok || v.Str != "v" {
		t.Fatalf("expected v, got %v ok=%v", v, ok)
	}

	if !s.Delete("k") {
		t.Fatalf("expected delete to report key was present")
	}
	if s.Exists("k") {
		t.Fatalf("expected key to be gone after delete")
	}
	if s.Delete("k") {
		t.Fatalf("expected second delete to report false")
	}
}

func TestShardExpire(t *testing.T) {
	s := newTestShard()
	s.Set("k", "v", SetOptions{})

	if ttl := s.TTL("k"); ttl != TTLNoTimeout {
		t.Fatalf("expected TTLNoTimeout, got %d", ttl)
	}
	if ttl := s.TTL("missing"); ttl != TTLAbsent {
		t.Fatalf("expected TTLAbsent, got %d", ttl)
	}

	if !s.Expire("k", 50*time.Millisecond) {
		t.Fatalf("expected Expire to succeed on existing key")
	}

	time.Sleep(80 * time.Millisecond)

	if _, ok := s.Get("k"); ok {
		t.Fatalf("expected key to be logically absent after expiration")
	}
	if s.Exists("k") {
		t.Fatalf("expected Exists to be false after expiration")
	}
	if ttl := s.TTL("k"); ttl != TTLAbsent {
		t.Fatalf("expected TTLAbsent after expiration, got %d", ttl)
	}
}

func TestShardWrongType(t *testing.T) {
	s := newTestShard()
	s.Set("k", "v", SetOptions{})

	if _, err := s.LPush("k", "x"); err == nil {
		t.Fatalf("expected WRONGTYPE error pushing onto a string key")
	}

	v, ok := s.Get("k")
	if !ok || v.Str != "v" {
		t.Fatalf("expected string value unchanged after failed wrong-type op")
	}
}

func TestShardSetOptionsNXXX(t *testing.T) {
	s := newTestShard()

	if !s.Set("k", "v1", SetOptions{NX: true}) {
		t.Fatalf("expected NX set on new key to succeed")
	}
	if s.Set("k", "v2", SetOptions{NX: true}) {
		t.Fatalf("expected NX set on existing key to fail")
	}
	if v, _ := s.Get("k"); v.Str != "v1" {
		t.Fatalf("expected NX failure to leave value unchanged, got %q", v.Str)
	}

	if s.Set("missing", "v", SetOptions{XX: true}) {
		t.Fatalf("expected XX set on missing key to fail")
	}
	if !s.Set("k", "v3", SetOptions{XX: true}) {
		t.Fatalf("expected XX set on existing key to succeed")
	}
}

func TestShardKeepTTL(t *testing.T) {
	s := newTestShard()
	s.Set("k", "v1", SetOptions{TTL: time.Minute})
	s.Set("k", "v2", SetOptions{KeepTTL: true})

	v, _ := s.Get("k")
	if v.Str != "v2" {
		t.Fatalf("expected value updated, got %q", v.Str)
	}
	if v.ExpireAt == nil {
		t.Fatalf("expected KEEPTTL to preserve existing expiration")
	}
}

func TestShardListOps(t *testing.T) {
	s := newTestShard()
	s.LPush("nums", "a")
	s.LPush("nums", "b")
	s.LPush("nums", "c")

	got, _ := s.LRange("nums", 0, -1)
	want := []string{"c", "b", "a"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}

	last, ok, _ := s.LIndex("nums", -1)
	if !ok || last != "a" {
		t.Fatalf("expected last element a, got %q ok=%v", last, ok)
	}
}

func TestShardSetOps(t *testing.T) {
	s := newTestShard()
	added, _ := s.SAdd("s", "x", "y", "z")
	if added != 3 {
		t.Fatalf("expected 3 newly added, got %d", added)
	}
	added, _ = s.SAdd("s", "x")
	if added != 0 {
		t.Fatalf("expected 0 newly added for duplicate, got %d", added)
	}

	members, _ := s.SMembers("s")
	want := []string{"x", "y", "z"}
	for i := range want {
		if members[i] != want[i] {
			t.Fatalf("expected lexicographic order, got %v", members)
		}
	}

	inter, _ := s.SInter([]string{"s", "t"})
	if len(inter) != 0 {
		t.Fatalf("expected empty intersection against missing set, got %v", inter)
	}
}

func TestShardSRandMember(t *testing.T) {
	s := newTestShard()
	s.SAdd("s", "x", "y", "z")

	bare, err := s.SRandMember("s", 0)
	if err != nil {
		t.Fatalf("SRandMember bare count: %v", err)
	}
	if len(bare) != 1 {
		t.Fatalf("expected bare SRANDMEMBER to return exactly one member, got %v", bare)
	}

	some, err := s.SRandMember("s", 2)
	if err != nil {
		t.Fatalf("SRandMember positive count: %v", err)
	}
	if len(some) != 2 {
		t.Fatalf("expected 2 members without replacement, got %v", some)
	}
	if some[0] == some[1] {
		t.Fatalf("expected distinct members without replacement, got %v", some)
	}

	dup, err := s.SRandMember("s", -5)
	if err != nil {
		t.Fatalf("SRandMember negative count: %v", err)
	}
	if len(dup) != 5 {
		t.Fatalf("expected 5 members with replacement allowed, got %v", dup)
	}

	empty, err := s.SRandMember("nosuchset", 0)
	if err != nil {
		t.Fatalf("SRandMember on missing set: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no members for a missing set, got %v", empty)
	}
}

func TestShardZSetConsistency(t *testing.T) {
	s := newTestShard()
	s.ZAdd("z", map[string]float64{"a": 1, "b": 2, "c": 2})

	ordered, _ := s.ZRange("z", 0, -1)
	wantOrder := []string{"a", "b", "c"}
	for i, m := range ordered {
		if m.Member != wantOrder[i] {
			t.Fatalf("expected tie-break by lex order, got %v", ordered)
		}
	}

	rank, ok, _ := s.ZRank("z", "b")
	if !ok || rank != 1 {
		t.Fatalf("expected rank 1 for b, got %d ok=%v", rank, ok)
	}
	revRank, ok, _ := s.ZRevRank("z", "b")
	if !ok || revRank != 1 {
		t.Fatalf("expected rev-rank 1 for b, got %d ok=%v", revRank, ok)
	}

	s.ZRem("z", "b")
	if _, ok, _ := s.ZScore("z", "b"); ok {
		t.Fatalf("expected b removed from both indices")
	}
}

func TestShardHashOps(t *testing.T) {
	s := newTestShard()
	s.HSet("h", map[string]string{"f1": "v1"})
	s.HIncrBy("h", "counter", 5)
	n, _ := s.HIncrBy("h", "counter", 3)
	if n != 8 {
		t.Fatalf("expected 8, got %d", n)
	}

	val, ok, _ := s.HGet("h", "f1")
	if !ok || val != "v1" {
		t.Fatalf("expected v1, got %q ok=%v", val, ok)
	}
}

func TestShardReaperSweepsExpired(t *testing.T) {
	s := newTestShard()
	s.Set("k1", "v", SetOptions{TTL: time.Millisecond})
	s.Set("k2", "v", SetOptions{})

	time.Sleep(10 * time.Millisecond)

	removed := s.SweepExpired(time.Now())
	if removed != 1 {
		t.Fatalf("expected 1 expired key removed, got %d", removed)
	}
	if !s.Exists("k2") {
		t.Fatalf("expected non-expiring key to survive sweep")
	}
}

func TestShardEventIsolation(t *testing.T) {
	s := newTestShard()

	var secondFired bool
	s.Subscribe(func(Event) { panic("boom") })
	s.Subscribe(func(Event) { secondFired = true })

	s.Set("k", "v", SetOptions{})

	if !secondFired {
		t.Fatalf("expected second subscriber to observe the event despite the first panicking")
	}
}
