package storage

import (
	"strconv"
	"time"
)

// SetOptions mirrors the teacher's SET option struct: NX/XX guard whether
// the write happens at all, KeepTTL preserves an existing expiration
// instead of clearing it, and TTL (if non-zero and KeepTTL is false)
// installs a fresh expiration.
type SetOptions struct {
	TTL     time.Duration
	KeepTTL bool
	NX      bool
	XX      bool
}

// Set writes val at key according to opts, returning whether the write
// happened (NX/XX can suppress it).
func (s *Shard) Set(key, val string, opts SetOptions) bool {
	now := time.Now()

	s.mu.Lock()
	s.reapIfExpired(key, now)
	existing, exists := s.data[key]

	if opts.NX && exists {
		s.mu.Unlock()
		return false
	}
	if opts.XX && !exists {
		s.mu.Unlock()
		return false
	}

	var expireAt *time.Time
	if opts.KeepTTL && exists {
		expireAt = existing.ExpireAt
	} else if opts.TTL > 0 {
		at := now.Add(opts.TTL)
		expireAt = &at
	}

	v := newStringValue(val)
	v.ExpireAt = expireAt
	s.data[key] = v
	s.mu.Unlock()

	kind := EventUpdated
	if !exists {
		kind = EventAdded
	}
	s.publish(Event{Kind: kind, ShardID: s.id, Key: key})
	return true
}

// GetSet atomically sets key to val and returns its previous value, if
// any. A key holding a non-string value is left untouched and reported
// as ErrWrongType, matching every other command's cross-variant guard.
func (s *Shard) GetSet(key, val string) (string, bool, error) {
	now := time.Now()

	s.mu.Lock()
	s.reapIfExpired(key, now)
	old, existed := s.data[key]
	if existed && old.Kind != KindString {
		s.mu.Unlock()
		return "", false, &ErrWrongType{Have: old.Kind, Want: KindString}
	}
	var prev string
	if existed {
		prev = old.Str
	}
	s.data[key] = newStringValue(val)
	s.mu.Unlock()

	kind := EventUpdated
	if !existed {
		kind = EventAdded
	}
	s.publish(Event{Kind: kind, ShardID: s.id, Key: key})
	return prev, existed, nil
}

// IncrBy adds delta to the integer parsed from the string at key (treating
// an absent key as "0"), and stores + returns the result.
func (s *Shard) IncrBy(key string, delta int64) (int64, error) {
	var result int64
	err := s.mutate(key, KindString, func() *Value { return newStringValue("0") }, func(v *Value) (bool, error) {
		cur := int64(0)
		if v.Str != "" {
			parsed, perr := strconv.ParseInt(v.Str, 10, 64)
			if perr != nil {
				return false, ErrNotAnInteger
			}
			cur = parsed
		}
		result = cur + delta
		v.Str = strconv.FormatInt(result, 10)
		return true, nil
	})
	return result, err
}
