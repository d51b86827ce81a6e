package storage

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Shard is one independently-locked keyspace out of the manager's fixed
// vector (C2). No operation spans two shards and no lock is ever held
// across shards.
type Shard struct {
	id     int
	mu     sync.RWMutex
	data   map[string]*Value
	subMu  sync.RWMutex
	subs   []Subscriber
	logger *zap.Logger
}

func newShard(id int, logger *zap.Logger) *Shard {
	return &Shard{
		id:     id,
		data:   make(map[string]*Value),
		logger: logger,
	}
}

// ID returns this shard's index within the owning manager's vector.
func (s *Shard) ID() int { return s.id }

// getLocked returns the value for key, or ok=false if it is absent or
// logically expired. It never reaps; the caller must hold s.mu (read or
// write) and reap separately if needed.
func (s *Shard) getLocked(key string, now time.Time) (*Value, bool) {
	v, ok := s.data[key]
	if !ok {
		return nil, false
	}
	if v.expired(now) {
		return nil, false
	}
	return v, true
}

// reapIfExpired deletes key and publishes an expired-event if it is past
// its expiration instant. Must be called with s.mu held for writing.
func (s *Shard) reapIfExpired(key string, now time.Time) bool {
	v, ok := s.data[key]
	if !ok || !v.expired(now) {
		return false
	}
	delete(s.data, key)
	s.publish(Event{Kind: EventExpired, ShardID: s.id, Key: key})
	return true
}

// Get returns the value at key, or ok=false if absent or logically expired.
// Expired entries are reaped eagerly (the primary expiration mechanism,
// §4.1): the caller never observes a stale value.
func (s *Shard) Get(key string) (*Value, bool) {
	now := time.Now()

	s.mu.RLock()
	v, ok := s.getLocked(key, now)
	s.mu.RUnlock()
	if ok {
		v.touch()
		return v, true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reapIfExpired(key, now) {
		return nil, false
	}
	v, ok = s.data[key]
	if !ok {
		return nil, false
	}
	v.touch()
	return v, true
}

// Exists reports presence under the same read-through rule as Get.
func (s *Shard) Exists(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// set installs v at key, replacing whatever was there, and publishes the
// appropriate event.
func (s *Shard) set(key string, v *Value) {
	s.mu.Lock()
	_, existed := s.data[key]
	s.data[key] = v
	s.mu.Unlock()

	kind := EventUpdated
	if !existed {
		kind = EventAdded
	}
	s.publish(Event{Kind: kind, ShardID: s.id, Key: key})
}

// SetString stores a STRING value at key with an optional TTL (zero means
// no expiration). Used directly by SET and indirectly by GETSET/INCR family.
func (s *Shard) SetString(key, val string, ttl time.Duration) {
	v := newStringValue(val)
	if ttl > 0 {
		at := time.Now().Add(ttl)
		v.ExpireAt = &at
	}
	s.set(key, v)
}

// Delete removes key unconditionally, returning whether it was present.
func (s *Shard) Delete(key string) bool {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reapIfExpired(key, now) {
		return false
	}
	if _, ok := s.data[key]; !ok {
		return false
	}
	delete(s.data, key)
	s.publish(Event{Kind: EventDeleted, ShardID: s.id, Key: key})
	return true
}

// Keys returns a point-in-time snapshot of every live (non-expired) key.
// Expired entries encountered during the scan are reaped.
func (s *Shard) Keys() []string {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.data))
	for key, v := range s.data {
		if v.expired(now) {
			delete(s.data, key)
			s.publish(Event{Kind: EventExpired, ShardID: s.id, Key: key})
			continue
		}
		out = append(out, key)
	}
	return out
}

// Size returns the number of live keys, reaping expired entries along the
// way (same cost as Keys, without allocating the key list).
func (s *Shard) Size() int {
	return len(s.Keys())
}

// Clear empties the shard. Used by FLUSHDB and by persistence load, which
// must clear a shard before replaying its saved contents.
func (s *Shard) Clear() {
	s.mu.Lock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	s.data = make(map[string]*Value)
	s.mu.Unlock()

	for _, k := range keys {
		s.publish(Event{Kind: EventDeleted, ShardID: s.id, Key: k})
	}
}

// Expire sets key's TTL to ttl from now, returning whether key exists and
// was assigned an expiration.
func (s *Shard) Expire(key string, ttl time.Duration) bool {
	now := time.Now()

	s.mu.Lock()
	if s.reapIfExpired(key, now) {
		s.mu.Unlock()
		return false
	}
	v, ok := s.data[key]
	if !ok {
		s.mu.Unlock()
		return false
	}
	at := now.Add(ttl)
	v.ExpireAt = &at
	s.mu.Unlock()

	s.publish(Event{Kind: EventExpireSet, ShardID: s.id, Key: key})
	return true
}

// ExpireAtTime sets key's absolute expiration instant. Used by PEXPIRE replay
// and EXPIREAT-style commands.
func (s *Shard) ExpireAtTime(key string, at time.Time) bool {
	now := time.Now()

	s.mu.Lock()
	if s.reapIfExpired(key, now) {
		s.mu.Unlock()
		return false
	}
	v, ok := s.data[key]
	if !ok {
		s.mu.Unlock()
		return false
	}
	v.ExpireAt = &at
	s.mu.Unlock()

	s.publish(Event{Kind: EventExpireSet, ShardID: s.id, Key: key})
	return true
}

// TTLAbsent and TTLNoTimeout are the two sentinels TTL returns in place of
// a remaining lifetime: "absent key" and "no expiration" (§4.1/P5).
const (
	TTLAbsent     = -2
	TTLNoTimeout  = -1
)

// TTL returns the key's remaining lifetime in milliseconds, or one of the
// TTLAbsent/TTLNoTimeout sentinels.
func (s *Shard) TTL(key string) int64 {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reapIfExpired(key, now) {
		return TTLAbsent
	}
	v, ok := s.data[key]
	if !ok {
		return TTLAbsent
	}
	if v.ExpireAt == nil {
		return TTLNoTimeout
	}
	remaining := v.ExpireAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return remaining.Milliseconds()
}

// Persist clears key's expiration, returning whether a TTL was removed.
func (s *Shard) Persist(key string) bool {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reapIfExpired(key, now) {
		return false
	}
	v, ok := s.data[key]
	if !ok || v.ExpireAt == nil {
		return false
	}
	v.ExpireAt = nil
	return true
}

// IsExpired reports whether key is present but logically expired, without
// reaping it. Used by the reaper's dry check before it takes the write lock.
func (s *Shard) IsExpired(key string) bool {
	now := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return ok && v.expired(now)
}

// SweepExpired removes every entry whose expiration instant is at or before
// now and publishes one expired-event per removal. This is the reaper's
// (C3) entry point; it tolerates entries that disappear mid-iteration
// because it always re-checks presence under the write lock.
func (s *Shard) SweepExpired(now time.Time) int {
	s.mu.Lock()
	var expiredKeys []string
	for key, v := range s.data {
		if v.expired(now) {
			expiredKeys = append(expiredKeys, key)
		}
	}
	for _, key := range expiredKeys {
		delete(s.data, key)
	}
	s.mu.Unlock()

	for _, key := range expiredKeys {
		s.publish(Event{Kind: EventExpired, ShardID: s.id, Key: key})
	}
	return len(expiredKeys)
}

// mutate runs fn against the live value at key (creating it via create if
// absent; with a nil create an absent key is a no-op) under the shard's
// write lock, then publishes an added/updated event if fn reports
// changed. An existing value whose Kind differs from wantKind yields
// ErrWrongType and fn is not called.
func (s *Shard) mutate(key string, wantKind Kind, create func() *Value, fn func(v *Value) (changed bool, err error)) error {
	now := time.Now()

	s.mu.Lock()
	s.reapIfExpired(key, now)

	v, existed := s.data[key]
	if !existed {
		if create == nil {
			s.mu.Unlock()
			return nil
		}
		v = create()
		s.data[key] = v
	} else if v.Kind != wantKind {
		s.mu.Unlock()
		return &ErrWrongType{Have: v.Kind, Want: wantKind}
	}

	changed, err := fn(v)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if changed {
		kind := EventUpdated
		if !existed {
			kind = EventAdded
		}
		s.publish(Event{Kind: kind, ShardID: s.id, Key: key})
	}
	return nil
}

// mutateExisting behaves like mutate but fails with ErrNoSuchKey instead
// of silently no-op'ing when key is absent. Used by commands such as LSET
// that are defined only against an existing key (§7 state-error).
func (s *Shard) mutateExisting(key string, wantKind Kind, fn func(v *Value) (changed bool, err error)) error {
	now := time.Now()

	s.mu.Lock()
	if s.reapIfExpired(key, now) {
		s.mu.Unlock()
		return ErrNoSuchKey
	}
	v, ok := s.data[key]
	if !ok {
		s.mu.Unlock()
		return ErrNoSuchKey
	}
	if v.Kind != wantKind {
		s.mu.Unlock()
		return &ErrWrongType{Have: v.Kind, Want: wantKind}
	}

	changed, err := fn(v)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if changed {
		s.publish(Event{Kind: EventUpdated, ShardID: s.id, Key: key})
	}
	return nil
}

// view runs fn against the read-through value at key under the shard's
// read lock (upgrading to reap if expired), returning ErrWrongType if the
// stored kind doesn't match wantKind. found is false if the key is absent.
func (s *Shard) view(key string, wantKind Kind, fn func(v *Value)) (found bool, err error) {
	now := time.Now()

	s.mu.RLock()
	v, ok := s.getLocked(key, now)
	if ok {
		if v.Kind != wantKind {
			s.mu.RUnlock()
			return true, &ErrWrongType{Have: v.Kind, Want: wantKind}
		}
		v.touch()
		fn(v)
		s.mu.RUnlock()
		return true, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reapIfExpired(key, now) {
		return false, nil
	}
	v, ok = s.data[key]
	if !ok {
		return false, nil
	}
	if v.Kind != wantKind {
		return true, &ErrWrongType{Have: v.Kind, Want: wantKind}
	}
	v.touch()
	fn(v)
	return true, nil
}
