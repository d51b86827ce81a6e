package storage

import (
	"bytes"
	"container/list"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"go.uber.org/zap"
)

// This file is the explicit framed object encoding named in §4.4/§9: the
// reflection-driven serialization of the source is replaced by a fixed
// binary layout so the on-disk/on-wire format never depends on Go type
// names. It is shared verbatim between RDB snapshot bodies (C5) and the
// replication payload (C8), which the spec defines with materially the
// same "count, then framed records" shape.

func writeUint32(w io.Writer, n uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], n)
	_, err := w.Write(buf[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := writeUint32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if n > 512*1024*1024 {
		return nil, fmt.Errorf("framed length %d exceeds sanity bound", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeFloat64(w io.Writer, f float64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
	_, err := w.Write(buf[:])
	return err
}

func readFloat64(r io.Reader) (float64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:])), nil
}

// EncodeValue writes v in the framed per-variant encoding described in
// §9: kind byte, payload, then an optional trailing i64 expiration.
func EncodeValue(w io.Writer, v *Value) error {
	if _, err := w.Write([]byte{byte(v.Kind)}); err != nil {
		return err
	}

	switch v.Kind {
	case KindString:
		if err := writeBytes(w, []byte(v.Str)); err != nil {
			return err
		}
	case KindList:
		if err := writeUint32(w, uint32(v.List.Len())); err != nil {
			return err
		}
		for e := v.List.Front(); e != nil; e = e.Next() {
			if err := writeBytes(w, []byte(e.Value.(string))); err != nil {
				return err
			}
		}
	case KindSet:
		if err := writeUint32(w, uint32(len(v.Set))); err != nil {
			return err
		}
		for m := range v.Set {
			if err := writeBytes(w, []byte(m)); err != nil {
				return err
			}
		}
	case KindHash:
		if err := writeUint32(w, uint32(len(v.Hash))); err != nil {
			return err
		}
		for f, val := range v.Hash {
			if err := writeBytes(w, []byte(f)); err != nil {
				return err
			}
			if err := writeBytes(w, []byte(val)); err != nil {
				return err
			}
		}
	case KindZSet:
		members := v.ZSet.byMember
		if err := writeUint32(w, uint32(len(members))); err != nil {
			return err
		}
		for member, score := range members {
			if err := writeBytes(w, []byte(member)); err != nil {
				return err
			}
			if err := writeFloat64(w, score); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown value kind %d", v.Kind)
	}

	if v.ExpireAt == nil {
		_, err := w.Write([]byte{0})
		return err
	}
	if _, err := w.Write([]byte{1}); err != nil {
		return err
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v.ExpireAt.UnixMilli()))
	_, err := w.Write(buf[:])
	return err
}

// DecodeValue reads a value written by EncodeValue.
func DecodeValue(r io.Reader) (*Value, error) {
	var kindBuf [1]byte
	if _, err := io.ReadFull(r, kindBuf[:]); err != nil {
		return nil, err
	}
	kind := Kind(kindBuf[0])

	v := newValue(kind)

	switch kind {
	case KindString:
		b, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		v.Str = string(b)
	case KindList:
		n, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		v.List = list.New()
		for i := uint32(0); i < n; i++ {
			b, err := readBytes(r)
			if err != nil {
				return nil, err
			}
			v.List.PushBack(string(b))
		}
	case KindSet:
		n, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		v.Set = make(map[string]struct{}, n)
		for i := uint32(0); i < n; i++ {
			b, err := readBytes(r)
			if err != nil {
				return nil, err
			}
			v.Set[string(b)] = struct{}{}
		}
	case KindHash:
		n, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		v.Hash = make(map[string]string, n)
		for i := uint32(0); i < n; i++ {
			fb, err := readBytes(r)
			if err != nil {
				return nil, err
			}
			vb, err := readBytes(r)
			if err != nil {
				return nil, err
			}
			v.Hash[string(fb)] = string(vb)
		}
	case KindZSet:
		n, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		v.ZSet = newZSet()
		for i := uint32(0); i < n; i++ {
			mb, err := readBytes(r)
			if err != nil {
				return nil, err
			}
			score, err := readFloat64(r)
			if err != nil {
				return nil, err
			}
			v.ZSet.add(string(mb), score)
		}
	default:
		return nil, fmt.Errorf("unknown value kind %d", kind)
	}

	var hasExpire [1]byte
	if _, err := io.ReadFull(r, hasExpire[:]); err != nil {
		return nil, err
	}
	if hasExpire[0] == 1 {
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, err
		}
		at := time.UnixMilli(int64(binary.LittleEndian.Uint64(buf[:])))
		v.ExpireAt = &at
	}

	return v, nil
}

// EncodeEntries writes the shard's live entries as K followed by K
// length-prefixed (key, value) records. Each record is wrapped in its own
// byte-length frame so a decode failure inside one record can be skipped
// without losing track of where the next record starts. It does not write
// the shard's own index; callers that need a self-describing stream (RDB,
// replication) write that separately, matching §4.4's "int32 i, int32
// entry-count K" framing.
func (s *Shard) EncodeEntries(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	live := make(map[string]*Value, len(s.data))
	for k, v := range s.data {
		if !v.expired(now) {
			live[k] = v
		}
	}

	if err := writeUint32(w, uint32(len(live))); err != nil {
		return err
	}
	for key, v := range live {
		var buf bytes.Buffer
		if err := writeBytes(&buf, []byte(key)); err != nil {
			return err
		}
		if err := EncodeValue(&buf, v); err != nil {
			return err
		}
		if err := writeBytes(w, buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// DecodeEntries clears the shard and replays K (key, value) records from
// r. Each record was written as a single length-framed blob, so a
// malformed individual record — bad kind byte, truncated field, trailing
// garbage — is logged and skipped without disturbing the shard's ability
// to find the next record, per §4.4's error-isolation rule. Only a
// failure to read the outer K count or a record's own length prefix is
// fatal, since at that point the stream itself has lost its framing.
func (s *Shard) DecodeEntries(r io.Reader, logger *zap.Logger) error {
	s.Clear()

	k, err := readUint32(r)
	if err != nil {
		return err
	}

	skipped := 0
	for i := uint32(0); i < k; i++ {
		record, err := readBytes(r)
		if err != nil {
			return fmt.Errorf("reading record frame %d/%d: %w", i, k, err)
		}

		key, v, err := decodeRecord(record)
		if err != nil {
			skipped++
			if logger != nil {
				logger.Warn("skipping malformed entry", zap.Uint32("index", i), zap.Error(err))
			}
			continue
		}

		s.mu.Lock()
		s.data[key] = v
		s.mu.Unlock()
	}
	if skipped > 0 && logger != nil {
		logger.Warn("entries skipped during decode", zap.Int("skipped", skipped), zap.Uint32("total", k))
	}
	return nil
}

// decodeRecord parses one length-framed (key, value) blob produced by
// EncodeEntries. Any leftover bytes after the value is fully read
// indicate corruption and are treated as a decode failure.
func decodeRecord(record []byte) (string, *Value, error) {
	br := bytes.NewReader(record)
	key, err := readBytes(br)
	if err != nil {
		return "", nil, fmt.Errorf("reading key: %w", err)
	}
	v, err := DecodeValue(br)
	if err != nil {
		return "", nil, fmt.Errorf("reading value: %w", err)
	}
	if br.Len() != 0 {
		return "", nil, fmt.Errorf("%d trailing bytes after value", br.Len())
	}
	return string(key), v, nil
}
