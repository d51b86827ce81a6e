package storage

import (
	"sort"
	"strconv"
)

// HSet sets fields to their respective values in the hash at key (creating
// it if absent), returning the number of fields newly created.
func (s *Shard) HSet(key string, fields map[string]string) (int, error) {
	created := 0
	err := s.mutate(key, KindHash, func() *Value { return newValue(KindHash) }, func(v *Value) (bool, error) {
		for f, val := range fields {
			if _, ok := v.Hash[f]; !ok {
				created++
			}
			v.Hash[f] = val
		}
		return len(fields) > 0, nil
	})
	return created, err
}

// HSetNX sets field only if it doesn't already exist, returning whether it
// did.
func (s *Shard) HSetNX(key, field, value string) (bool, error) {
	set := false
	err := s.mutate(key, KindHash, func() *Value { return newValue(KindHash) }, func(v *Value) (bool, error) {
		if _, ok := v.Hash[field]; ok {
			return false, nil
		}
		v.Hash[field] = value
		set = true
		return true, nil
	})
	return set, err
}

// HGet returns the value of field in the hash at key.
func (s *Shard) HGet(key, field string) (string, bool, error) {
	var val string
	var ok bool
	_, err := s.view(key, KindHash, func(v *Value) {
		val, ok = v.Hash[field]
	})
	return val, ok, err
}

// HDel removes fields from the hash at key, returning the number removed.
func (s *Shard) HDel(key string, fields ...string) (int, error) {
	removed := 0
	err := s.mutate(key, KindHash, nil, func(v *Value) (bool, error) {
		for _, f := range fields {
			if _, ok := v.Hash[f]; ok {
				delete(v.Hash, f)
				removed++
			}
		}
		return removed > 0, nil
	})
	return removed, err
}

// HExists reports whether field exists in the hash at key.
func (s *Shard) HExists(key, field string) (bool, error) {
	var ok bool
	_, err := s.view(key, KindHash, func(v *Value) {
		_, ok = v.Hash[field]
	})
	return ok, err
}

// HGetAll returns every field/value pair in the hash at key.
func (s *Shard) HGetAll(key string) (map[string]string, error) {
	var out map[string]string
	_, err := s.view(key, KindHash, func(v *Value) {
		out = make(map[string]string, len(v.Hash))
		for f, val := range v.Hash {
			out[f] = val
		}
	})
	return out, err
}

// HKeys returns every field name in the hash at key, sorted for
// deterministic test assertions.
func (s *Shard) HKeys(key string) ([]string, error) {
	var out []string
	_, err := s.view(key, KindHash, func(v *Value) {
		out = make([]string, 0, len(v.Hash))
		for f := range v.Hash {
			out = append(out, f)
		}
		sort.Strings(out)
	})
	return out, err
}

// HVals returns every value in the hash at key, ordered by field name.
func (s *Shard) HVals(key string) ([]string, error) {
	var out []string
	_, err := s.view(key, KindHash, func(v *Value) {
		fields := make([]string, 0, len(v.Hash))
		for f := range v.Hash {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		out = make([]string, 0, len(fields))
		for _, f := range fields {
			out = append(out, v.Hash[f])
		}
	})
	return out, err
}

// HLen returns the number of fields in the hash at key, or 0 if absent.
func (s *Shard) HLen(key string) (int, error) {
	n := 0
	_, err := s.view(key, KindHash, func(v *Value) { n = len(v.Hash) })
	return n, err
}

// HIncrBy increments field by n, creating the hash and/or field (at "0")
// as needed, and returns the resulting value.
func (s *Shard) HIncrBy(key, field string, n int64) (int64, error) {
	var result int64
	err := s.mutate(key, KindHash, func() *Value { return newValue(KindHash) }, func(v *Value) (bool, error) {
		cur := int64(0)
		if existing, ok := v.Hash[field]; ok {
			parsed, perr := strconv.ParseInt(existing, 10, 64)
			if perr != nil {
				return false, ErrNotAnInteger
			}
			cur = parsed
		}
		result = cur + n
		v.Hash[field] = strconv.FormatInt(result, 10)
		return true, nil
	})
	return result, err
}
