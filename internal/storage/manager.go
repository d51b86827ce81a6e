package storage

import (
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Manager owns the fixed-size vector of shards for the lifetime of the
// server process (C4). Clients select a shard explicitly by index (the
// SELECT command) rather than having keys hash-routed to a shard — each
// shard is a fully independent Redis-style logical database.
type Manager struct {
	shards []*Shard
	logger *zap.Logger
}

// NewManager allocates n independent shards, each with its own lock and
// subscriber list.
func NewManager(n int, logger *zap.Logger) (*Manager, error) {
	if n <= 0 {
		return nil, fmt.Errorf("database count must be positive, got %d", n)
	}
	m := &Manager{shards: make([]*Shard, n), logger: logger}
	for i := range m.shards {
		m.shards[i] = newShard(i, logger)
	}
	return m, nil
}

// Count returns the number of shards in the vector.
func (m *Manager) Count() int { return len(m.shards) }

// Shard returns the shard at index i, or an error if i is out of range —
// the "unknown shard index" argument-domain error from the taxonomy (§7).
func (m *Manager) Shard(i int) (*Shard, error) {
	if i < 0 || i >= len(m.shards) {
		return nil, fmt.Errorf("unknown shard index %d", i)
	}
	return m.shards[i], nil
}

// Shards returns the live shard vector. Callers must not mutate the slice
// itself; DecodeSnapshot is the sanctioned way to replace a shard's
// contents in place (C7's slave pull and persistence load both go through
// it), which is why the vector's identity never needs to change.
func (m *Manager) Shards() []*Shard {
	return m.shards
}

// EncodeSnapshot writes every shard's live entries to w in the §4.4 body
// layout: int32 N, then per shard (int32 index, int32 count, entries).
// This is the single encoding shared by RDB saves (C5) and the
// replication server's response payload (C8).
func (m *Manager) EncodeSnapshot(w io.Writer) error {
	if err := writeUint32(w, uint32(len(m.shards))); err != nil {
		return err
	}
	for i, shard := range m.shards {
		if err := writeUint32(w, uint32(i)); err != nil {
			return err
		}
		if err := shard.EncodeEntries(w); err != nil {
			return fmt.Errorf("encoding shard %d: %w", i, err)
		}
	}
	return nil
}

// DecodeSnapshot reads a stream written by EncodeSnapshot and replaces the
// contents of each shard it names, in place — the shards' subscriber
// lists and identity are untouched (the transient-field rule of §9: only
// the data is ever serialized, lifecycle handles are rebound by the
// receiver keeping its own Shard objects).
//
// maxShards bounds the shard count read from the stream (0 disables the
// bound); callers that must bounds-check per §4.4 pass 100, callers
// replaying a replication payload pass 0 and rely on the shard index
// itself being validated against the local vector.
func (m *Manager) DecodeSnapshot(r io.Reader, maxShards int, logger *zap.Logger) error {
	n, err := readUint32(r)
	if err != nil {
		return err
	}
	if maxShards > 0 && int(n) > maxShards {
		return fmt.Errorf("shard count %d exceeds bound %d", n, maxShards)
	}

	for i := uint32(0); i < n; i++ {
		idx, err := readUint32(r)
		if err != nil {
			return fmt.Errorf("reading shard index %d/%d: %w", i, n, err)
		}
		if int(idx) < 0 || int(idx) >= len(m.shards) {
			return fmt.Errorf("shard index %d out of range [0,%d)", idx, len(m.shards))
		}
		if err := m.shards[idx].DecodeEntries(r, logger); err != nil {
			return fmt.Errorf("decoding shard %d: %w", idx, err)
		}
	}
	return nil
}

// FlushAll clears every shard (FLUSHALL's interface point; FLUSHDB clears
// only the connection's currently-selected shard).
func (m *Manager) FlushAll() {
	for _, s := range m.shards {
		s.Clear()
	}
}
