package storage

// ZAdd adds or updates member/score pairs in the zset at key (creating it
// if absent), returning the number of members newly added (not re-scored).
func (s *Shard) ZAdd(key string, pairs map[string]float64) (int, error) {
	added := 0
	err := s.mutate(key, KindZSet, func() *Value { return newValue(KindZSet) }, func(v *Value) (bool, error) {
		for member, score := range pairs {
			if v.ZSet.add(member, score) {
				added++
			}
		}
		return len(pairs) > 0, nil
	})
	return added, err
}

// ZCard returns the cardinality of the zset at key, or 0 if absent.
func (s *Shard) ZCard(key string) (int, error) {
	n := 0
	_, err := s.view(key, KindZSet, func(v *Value) { n = v.ZSet.len() })
	return n, err
}

// ZScore returns the score of member in the zset at key.
func (s *Shard) ZScore(key, member string) (float64, bool, error) {
	var score float64
	var ok bool
	_, err := s.view(key, KindZSet, func(v *Value) {
		score, ok = v.ZSet.score(member)
	})
	return score, ok, err
}

// ZIncrBy increments member's score by delta (default 0 if member is new),
// returning the resulting score.
func (s *Shard) ZIncrBy(key, member string, delta float64) (float64, error) {
	var result float64
	err := s.mutate(key, KindZSet, func() *Value { return newValue(KindZSet) }, func(v *Value) (bool, error) {
		cur, _ := v.ZSet.score(member)
		result = cur + delta
		v.ZSet.add(member, result)
		return true, nil
	})
	return result, err
}

// ZRem removes members from the zset at key, returning the number removed.
func (s *Shard) ZRem(key string, members ...string) (int, error) {
	removed := 0
	err := s.mutate(key, KindZSet, nil, func(v *Value) (bool, error) {
		for _, m := range members {
			if v.ZSet.remove(m) {
				removed++
			}
		}
		return removed > 0, nil
	})
	return removed, err
}

// ZRange returns members in ascending score order over [start, stop]
// (Redis-style negative indexing).
func (s *Shard) ZRange(key string, start, stop int) ([]zmember, error) {
	var out []zmember
	_, err := s.view(key, KindZSet, func(v *Value) {
		members := v.ZSet.ordered()
		length := len(members)
		if length == 0 {
			return
		}
		start, stop = normalizeRange(start, stop, length)
		if start > stop || start >= length {
			return
		}
		out = append(out, members[start:stop+1]...)
	})
	return out, err
}

// ZRevRange returns members in descending score order over [start, stop].
func (s *Shard) ZRevRange(key string, start, stop int) ([]zmember, error) {
	var out []zmember
	_, err := s.view(key, KindZSet, func(v *Value) {
		members := v.ZSet.ordered()
		length := len(members)
		if length == 0 {
			return
		}
		reversed := make([]zmember, length)
		for i, m := range members {
			reversed[length-1-i] = m
		}
		start, stop = normalizeRange(start, stop, length)
		if start > stop || start >= length {
			return
		}
		out = append(out, reversed[start:stop+1]...)
	})
	return out, err
}

// ZRank returns member's zero-based ascending rank, or ok=false.
func (s *Shard) ZRank(key, member string) (int, bool, error) {
	var rank int
	found, err := s.view(key, KindZSet, func(v *Value) {
		rank = v.ZSet.rank(member)
	})
	if !found || rank < 0 {
		return 0, false, err
	}
	return rank, true, err
}

// ZRevRank returns member's zero-based descending rank, or ok=false.
func (s *Shard) ZRevRank(key, member string) (int, bool, error) {
	var rank int
	var card int
	found, err := s.view(key, KindZSet, func(v *Value) {
		rank = v.ZSet.rank(member)
		card = v.ZSet.len()
	})
	if !found || rank < 0 {
		return 0, false, err
	}
	return card - 1 - rank, true, err
}

// ZCount returns the number of members whose score lies within [min, max].
func (s *Shard) ZCount(key string, min, max float64) (int, error) {
	count := 0
	_, err := s.view(key, KindZSet, func(v *Value) {
		for _, m := range v.ZSet.ordered() {
			if m.Score >= min && m.Score <= max {
				count++
			}
		}
	})
	return count, err
}
