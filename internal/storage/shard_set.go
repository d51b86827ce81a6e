package storage

import "sort"

// SAdd adds members to the set at key (creating it if absent), returning
// the number of members that were newly added.
func (s *Shard) SAdd(key string, members ...string) (int, error) {
	added := 0
	err := s.mutate(key, KindSet, func() *Value { return newValue(KindSet) }, func(v *Value) (bool, error) {
		for _, m := range members {
			if _, ok := v.Set[m]; !ok {
				v.Set[m] = struct{}{}
				added++
			}
		}
		return added > 0, nil
	})
	return added, err
}

// SRem removes members from the set at key, returning the number removed.
func (s *Shard) SRem(key string, members ...string) (int, error) {
	removed := 0
	err := s.mutate(key, KindSet, nil, func(v *Value) (bool, error) {
		for _, m := range members {
			if _, ok := v.Set[m]; ok {
				delete(v.Set, m)
				removed++
			}
		}
		return removed > 0, nil
	})
	return removed, err
}

// SMembers returns every member of the set at key in lexicographic order
// (the order the test suite's end-to-end scenarios assert against).
func (s *Shard) SMembers(key string) ([]string, error) {
	var out []string
	_, err := s.view(key, KindSet, func(v *Value) {
		out = make([]string, 0, len(v.Set))
		for m := range v.Set {
			out = append(out, m)
		}
		sort.Strings(out)
	})
	return out, err
}

// SIsMember reports whether member is in the set at key.
func (s *Shard) SIsMember(key, member string) (bool, error) {
	var isMember bool
	_, err := s.view(key, KindSet, func(v *Value) {
		_, isMember = v.Set[member]
	})
	return isMember, err
}

// SCard returns the cardinality of the set at key, or 0 if absent.
func (s *Shard) SCard(key string) (int, error) {
	n := 0
	_, err := s.view(key, KindSet, func(v *Value) { n = len(v.Set) })
	return n, err
}

// SPopN removes and returns up to n arbitrary members from the set at key.
func (s *Shard) SPopN(key string, n int) ([]string, error) {
	var out []string
	err := s.mutate(key, KindSet, nil, func(v *Value) (bool, error) {
		for m := range v.Set {
			if len(out) >= n {
				break
			}
			out = append(out, m)
		}
		for _, m := range out {
			delete(v.Set, m)
		}
		return len(out) > 0, nil
	})
	return out, err
}

// cloneMembers returns a copy of the member map of the set at key, or nil
// if absent (callers treat a missing set as empty for SINTER etc). A key
// holding another type yields ErrWrongType.
func (s *Shard) cloneMembers(key string) (map[string]struct{}, error) {
	var out map[string]struct{}
	_, err := s.view(key, KindSet, func(v *Value) {
		out = make(map[string]struct{}, len(v.Set))
		for m := range v.Set {
			out[m] = struct{}{}
		}
	})
	return out, err
}
