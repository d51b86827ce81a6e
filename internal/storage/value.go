// Package storage implements the typed, sharded keyspace: the value object
// (C1), the shard (C2), and the manager that owns the fixed shard vector
// (C4). Persistence and replication serialize the types defined here but
// live in their own packages.
package storage

import (
	"container/list"
	"time"
)

// Kind tags the payload shape held by a Value.
type Kind byte

const (
	KindString Kind = iota + 1
	KindList
	KindSet
	KindHash
	KindZSet
)

// String gives the lowercase Redis-style type name, used by TYPE and INFO.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindHash:
		return "hash"
	case KindZSet:
		return "zset"
	default:
		return "none"
	}
}

// Value is the tagged union described by the data model: exactly one of the
// payload fields is meaningful, selected by Kind. CreatedAt is fixed at
// construction; AccessedAt is bumped on every read. ExpireAt is absolute
// wall-clock time; a nil ExpireAt means the value never expires.
type Value struct {
	Kind       Kind
	Str        string
	List       *list.List
	Set        map[string]struct{}
	Hash       map[string]string
	ZSet       *zset
	CreatedAt  time.Time
	AccessedAt time.Time
	ExpireAt   *time.Time
}

func newValue(kind Kind) *Value {
	now := time.Now()
	v := &Value{Kind: kind, CreatedAt: now, AccessedAt: now}
	switch kind {
	case KindList:
		v.List = list.New()
	case KindSet:
		v.Set = make(map[string]struct{})
	case KindHash:
		v.Hash = make(map[string]string)
	case KindZSet:
		v.ZSet = newZSet()
	}
	return v
}

func newStringValue(s string) *Value {
	v := newValue(KindString)
	v.Str = s
	return v
}

func (v *Value) touch() {
	v.AccessedAt = time.Now()
}

// expired reports whether v's expiration instant is in the past relative to
// now. A nil ExpireAt never expires.
func (v *Value) expired(now time.Time) bool {
	return v.ExpireAt != nil && now.After(*v.ExpireAt)
}

// ErrWrongType is returned whenever a command operates on a key whose value
// holds a different Kind than the command expects.
type ErrWrongType struct {
	Have, Want Kind
}

func (e *ErrWrongType) Error() string {
	return "WRONGTYPE Operation against a key holding the wrong kind of value"
}
