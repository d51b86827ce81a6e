package storage

import "container/list"

// LPush prepends values to the list at key (creating it if absent),
// returning the resulting length. Values are pushed one at a time in the
// order given, so the first value argument ends up deepest. Backed by
// container/list, each push is an O(1) pointer splice rather than a
// reallocate-and-copy of the whole slice.
func (s *Shard) LPush(key string, values ...string) (int, error) {
	var length int
	err := s.mutate(key, KindList, func() *Value { return newValue(KindList) }, func(v *Value) (bool, error) {
		for _, val := range values {
			v.List.PushFront(val)
		}
		length = v.List.Len()
		return true, nil
	})
	return length, err
}

// RPush appends values to the list at key (creating it if absent).
func (s *Shard) RPush(key string, values ...string) (int, error) {
	var length int
	err := s.mutate(key, KindList, func() *Value { return newValue(KindList) }, func(v *Value) (bool, error) {
		for _, val := range values {
			v.List.PushBack(val)
		}
		length = v.List.Len()
		return true, nil
	})
	return length, err
}

// LPop removes and returns the head of the list at key.
func (s *Shard) LPop(key string) (string, bool, error) {
	var out string
	var ok bool
	err := s.mutate(key, KindList, nil, func(v *Value) (bool, error) {
		front := v.List.Front()
		if front == nil {
			return false, nil
		}
		out, ok = front.Value.(string), true
		v.List.Remove(front)
		return true, nil
	})
	return out, ok, err
}

// RPop removes and returns the tail of the list at key.
func (s *Shard) RPop(key string) (string, bool, error) {
	var out string
	var ok bool
	err := s.mutate(key, KindList, nil, func(v *Value) (bool, error) {
		back := v.List.Back()
		if back == nil {
			return false, nil
		}
		out, ok = back.Value.(string), true
		v.List.Remove(back)
		return true, nil
	})
	return out, ok, err
}

// LLen returns the length of the list at key, or 0 if absent.
func (s *Shard) LLen(key string) (int, error) {
	n := 0
	_, err := s.view(key, KindList, func(v *Value) { n = v.List.Len() })
	return n, err
}

// normalizeRange resolves Redis-style negative indices against length,
// clamping to the valid [0, length) window. It returns an empty,
// non-overlapping range if start is still past stop after clamping.
func normalizeRange(start, stop, length int) (int, int) {
	if start < 0 {
		start += length
	}
	if stop < 0 {
		stop += length
	}
	if start < 0 {
		start = 0
	}
	if stop >= length {
		stop = length - 1
	}
	return start, stop
}

// elementAt walks l to its i-th element (0-indexed). Walking from whichever
// end is closer keeps this O(min(i, len-i)) instead of always O(i).
func elementAt(l *list.List, i int) *list.Element {
	if i < l.Len()/2 {
		e := l.Front()
		for ; i > 0; i-- {
			e = e.Next()
		}
		return e
	}
	e := l.Back()
	for j := l.Len() - 1; j > i; j-- {
		e = e.Prev()
	}
	return e
}

// LRange returns the slice [start, stop] (inclusive, Redis-style negative
// indexing) of the list at key.
func (s *Shard) LRange(key string, start, stop int) ([]string, error) {
	var out []string
	_, err := s.view(key, KindList, func(v *Value) {
		length := v.List.Len()
		if length == 0 {
			return
		}
		start, stop = normalizeRange(start, stop, length)
		if start > stop || start >= length {
			return
		}
		i := 0
		for e := v.List.Front(); e != nil; e = e.Next() {
			if i >= start && i <= stop {
				out = append(out, e.Value.(string))
			}
			if i > stop {
				break
			}
			i++
		}
	})
	return out, err
}

// LIndex returns the element at index (Redis-style negative indexing).
func (s *Shard) LIndex(key string, index int) (string, bool, error) {
	var out string
	var ok bool
	found, err := s.view(key, KindList, func(v *Value) {
		idx := index
		if idx < 0 {
			idx += v.List.Len()
		}
		if idx < 0 || idx >= v.List.Len() {
			return
		}
		out, ok = elementAt(v.List, idx).Value.(string), true
	})
	if !found {
		return "", false, err
	}
	return out, ok, err
}

// LSet overwrites the element at index. Returns ErrNoSuchKey if key is
// absent (per the state-error taxonomy, §7) and ErrIndexOutOfRange if index
// doesn't resolve to a live element.
func (s *Shard) LSet(key string, index int, value string) error {
	return s.mutateExisting(key, KindList, func(v *Value) (bool, error) {
		idx := index
		if idx < 0 {
			idx += v.List.Len()
		}
		if idx < 0 || idx >= v.List.Len() {
			return false, ErrIndexOutOfRange
		}
		elementAt(v.List, idx).Value = value
		return true, nil
	})
}

// LRem removes up to count occurrences of value from the list at key.
// count > 0 removes from head to tail, count < 0 removes from tail to
// head, count == 0 removes all occurrences. Returns the number removed.
func (s *Shard) LRem(key string, count int, value string) (int, error) {
	removed := 0
	err := s.mutate(key, KindList, nil, func(v *Value) (bool, error) {
		switch {
		case count == 0:
			for e := v.List.Front(); e != nil; {
				next := e.Next()
				if e.Value.(string) == value {
					v.List.Remove(e)
					removed++
				}
				e = next
			}
		case count > 0:
			for e := v.List.Front(); e != nil && removed < count; {
				next := e.Next()
				if e.Value.(string) == value {
					v.List.Remove(e)
					removed++
				}
				e = next
			}
		default:
			limit := -count
			for e := v.List.Back(); e != nil && removed < limit; {
				prev := e.Prev()
				if e.Value.(string) == value {
					v.List.Remove(e)
					removed++
				}
				e = prev
			}
		}
		return removed > 0, nil
	})
	return removed, err
}
