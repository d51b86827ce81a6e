package storage

import (
	"math/rand"
	"sort"
)

// SInter returns the intersection of the sets at keys, all within this
// shard (§3: no cross-shard operation exists). A key that doesn't exist
// contributes an empty set, so the result is empty too.
func (s *Shard) SInter(keys []string) ([]string, error) {
	var sets []map[string]struct{}
	for _, k := range keys {
		members, err := s.cloneMembers(k)
		if err != nil {
			return nil, err
		}
		sets = append(sets, members)
	}
	if len(sets) == 0 {
		return nil, nil
	}
	result := sets[0]
	for _, set := range sets[1:] {
		next := make(map[string]struct{})
		for m := range result {
			if _, ok := set[m]; ok {
				next[m] = struct{}{}
			}
		}
		result = next
	}
	return sortedMembers(result), nil
}

// SUnion returns the union of the sets at keys.
func (s *Shard) SUnion(keys []string) ([]string, error) {
	result := make(map[string]struct{})
	for _, k := range keys {
		members, err := s.cloneMembers(k)
		if err != nil {
			return nil, err
		}
		for m := range members {
			result[m] = struct{}{}
		}
	}
	return sortedMembers(result), nil
}

// SDiff returns the members of the set at keys[0] that are absent from
// every other set at keys[1:].
func (s *Shard) SDiff(keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	result, err := s.cloneMembers(keys[0])
	if err != nil {
		return nil, err
	}
	for _, k := range keys[1:] {
		members, err := s.cloneMembers(k)
		if err != nil {
			return nil, err
		}
		for m := range members {
			delete(result, m)
		}
	}
	return sortedMembers(result), nil
}

func sortedMembers(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// SRandMember samples members from the set at key. count == 0 yields a
// single member (bare SRANDMEMBER). A negative count samples with
// replacement (duplicates possible) for -count picks; a positive count
// samples without replacement for at most count picks, via reservoir
// sampling — the source's destructive drain-a-copy approach is O(n·k)
// and is replaced here per §9's open question.
func (s *Shard) SRandMember(key string, count int) ([]string, error) {
	members, err := s.cloneMembers(key)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	pool := make([]string, 0, len(members))
	for m := range members {
		pool = append(pool, m)
	}

	if count < 0 {
		n := -count
		out := make([]string, n)
		for i := 0; i < n; i++ {
			out[i] = pool[rand.Intn(len(pool))]
		}
		return out, nil
	}

	if count == 0 {
		return []string{pool[rand.Intn(len(pool))]}, nil
	}

	n := count
	if n > len(pool) {
		n = len(pool)
	}
	reservoir := make([]string, n)
	for i := 0; i < n; i++ {
		reservoir[i] = pool[i]
	}
	for i := n; i < len(pool); i++ {
		j := rand.Intn(i + 1)
		if j < n {
			reservoir[j] = pool[i]
		}
	}
	return reservoir, nil
}
