package storage

import (
	"bytes"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestManagerSnapshotRoundTrip(t *testing.T) {
	m, err := NewManager(4, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	s0, _ := m.Shard(0)
	s0.Set("str", "hello", SetOptions{})
	s0.LPush("list", "a", "b", "c")
	s0.SAdd("set", "x", "y")
	s0.HSet("hash", map[string]string{"f": "v"})
	s0.ZAdd("zset", map[string]float64{"a": 1, "b": 2, "c": 2})

	s2, _ := m.Shard(2)
	expireKey := "expiring"
	s2.Set(expireKey, "soon", SetOptions{TTL: time.Hour})

	var buf bytes.Buffer
	if err := m.EncodeSnapshot(&buf); err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}

	loaded, err := NewManager(4, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := loaded.DecodeSnapshot(&buf, 100, zap.NewNop()); err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}

	ls0, _ := loaded.Shard(0)
	if v, ok := ls0.Get("str"); !ok || v.Str != "hello" {
		t.Fatalf("string round trip failed: %v ok=%v", v, ok)
	}
	list, _ := ls0.LRange("list", 0, -1)
	if len(list) != 3 || list[0] != "c" {
		t.Fatalf("list round trip failed: %v", list)
	}
	members, _ := ls0.SMembers("set")
	if len(members) != 2 {
		t.Fatalf("set round trip failed: %v", members)
	}
	val, ok, _ := ls0.HGet("hash", "f")
	if !ok || val != "v" {
		t.Fatalf("hash round trip failed: %q ok=%v", val, ok)
	}
	zord, _ := ls0.ZRange("zset", 0, -1)
	if len(zord) != 3 || zord[0].Member != "a" || zord[1].Member != "b" {
		t.Fatalf("zset round trip failed: %v", zord)
	}

	ls2, _ := loaded.Shard(2)
	if ttl := ls2.TTL(expireKey); ttl <= 0 {
		t.Fatalf("expected positive TTL to survive round trip, got %d", ttl)
	}
}

func TestManagerSnapshotBoundsCheck(t *testing.T) {
	var buf bytes.Buffer
	writeUint32(&buf, 101) // exceeds the [0,100] bound from §4.4

	m, _ := NewManager(4, zap.NewNop())
	if err := m.DecodeSnapshot(&buf, 100, zap.NewNop()); err == nil {
		t.Fatalf("expected bounds-check error for shard count 101")
	}
}

func TestDecodeEntriesSkipsMalformedRecord(t *testing.T) {
	var buf bytes.Buffer
	writeUint32(&buf, 2)

	var good bytes.Buffer
	writeBytes(&good, []byte("ok"))
	v := newValue(KindString)
	v.Str = "fine"
	if err := EncodeValue(&good, v); err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}
	writeBytes(&buf, good.Bytes())

	var bad bytes.Buffer
	writeBytes(&bad, []byte("broken"))
	bad.WriteByte(0xFF) // invalid Kind byte, decode should fail on this record only

	writeBytes(&buf, bad.Bytes())

	m, err := NewManager(1, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	s0, _ := m.Shard(0)
	if err := s0.DecodeEntries(&buf, zap.NewNop()); err != nil {
		t.Fatalf("DecodeEntries should isolate the malformed record, got: %v", err)
	}

	if got, ok := s0.Get("ok"); !ok || got.Str != "fine" {
		t.Fatalf("expected surviving good entry, got %v ok=%v", got, ok)
	}
	if _, ok := s0.Get("broken"); ok {
		t.Fatalf("malformed entry should have been skipped, not stored")
	}
}

func TestValueCodecRoundTrip(t *testing.T) {
	v := newValue(KindZSet)
	v.ZSet.add("m1", 3.5)
	v.ZSet.add("m2", -1.25)
	at := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	v.ExpireAt = &at

	var buf bytes.Buffer
	if err := EncodeValue(&buf, v); err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}

	got, err := DecodeValue(&buf)
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if got.Kind != KindZSet {
		t.Fatalf("expected KindZSet, got %v", got.Kind)
	}
	if s, ok := got.ZSet.score("m1"); !ok || s != 3.5 {
		t.Fatalf("expected m1=3.5, got %v ok=%v", s, ok)
	}
	if got.ExpireAt == nil || !got.ExpireAt.Equal(at) {
		t.Fatalf("expected expiration to round-trip, got %v", got.ExpireAt)
	}
}
