package storage

import "sort"

// zset is the dual-mapping structure backing a ZSET value: a score bucket
// index and its inverse member->score index. The invariant held by both
// mutating methods here is the one named in the data model: a member
// appears in exactly one score bucket, and that bucket's score matches the
// inverse map's entry for the member.
type zset struct {
	byScore  map[float64]map[string]struct{}
	byMember map[string]float64
}

func newZSet() *zset {
	return &zset{
		byScore:  make(map[float64]map[string]struct{}),
		byMember: make(map[string]float64),
	}
}

// add sets member's score, moving it out of any prior bucket first. Returns
// true if member was newly added (not merely re-scored).
func (z *zset) add(member string, score float64) bool {
	if old, ok := z.byMember[member]; ok {
		if old == score {
			return false
		}
		z.removeFromBucket(old, member)
		z.byMember[member] = score
		z.addToBucket(score, member)
		return false
	}
	z.byMember[member] = score
	z.addToBucket(score, member)
	return true
}

func (z *zset) addToBucket(score float64, member string) {
	bucket, ok := z.byScore[score]
	if !ok {
		bucket = make(map[string]struct{})
		z.byScore[score] = bucket
	}
	bucket[member] = struct{}{}
}

func (z *zset) removeFromBucket(score float64, member string) {
	bucket, ok := z.byScore[score]
	if !ok {
		return
	}
	delete(bucket, member)
	if len(bucket) == 0 {
		delete(z.byScore, score)
	}
}

func (z *zset) remove(member string) bool {
	score, ok := z.byMember[member]
	if !ok {
		return false
	}
	delete(z.byMember, member)
	z.removeFromBucket(score, member)
	return true
}

func (z *zset) score(member string) (float64, bool) {
	s, ok := z.byMember[member]
	return s, ok
}

func (z *zset) len() int {
	return len(z.byMember)
}

// zmember pairs a member with its score for ordered iteration.
type zmember struct {
	Member string
	Score  float64
}

// ordered returns every member in ascending (score, member) order, ties
// broken lexicographically as required by the data model.
func (z *zset) ordered() []zmember {
	out := make([]zmember, 0, len(z.byMember))
	for member, score := range z.byMember {
		out = append(out, zmember{Member: member, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Member < out[j].Member
	})
	return out
}

// rank returns member's zero-based position in ascending order, or -1.
func (z *zset) rank(member string) int {
	if _, ok := z.byMember[member]; !ok {
		return -1
	}
	for i, m := range z.ordered() {
		if m.Member == member {
			return i
		}
	}
	return -1
}

func (z *zset) clone() *zset {
	out := newZSet()
	for member, score := range z.byMember {
		out.add(member, score)
	}
	return out
}
