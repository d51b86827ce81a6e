package persistence

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/szt-redis/moonlight-kv/internal/storage"
	"go.uber.org/zap"
)

const rdbHeader = "REDIS0001"

// RDB implements the snapshot persistence strategy (C5): an atomic,
// optionally-compressed full dump of every shard. Grounded on the
// teacher's RDB type; the header, trailer and compression filter are new
// to match the fixed bit-exact file format.
type RDB struct {
	filename  string
	compress  bool
	maxShards int
	logger    *zap.Logger
}

// NewRDB constructs an RDB persister writing to filename. compress selects
// the gzip filter on save; maxShards bounds the shard count accepted on
// load (0 disables the bound).
func NewRDB(filename string, compress bool, maxShards int, logger *zap.Logger) *RDB {
	return &RDB{
		filename:  filename,
		compress:  compress,
		maxShards: maxShards,
		logger:    logger,
	}
}

// Save performs an atomic replace: write to "<path>.tmp", close, then
// rename over the real path, retrying once if the target already exists.
func (r *RDB) Save(m *storage.Manager) error {
	start := time.Now()
	tmp := r.filename + ".tmp"

	if err := r.writeFile(tmp, m); err != nil {
		return fmt.Errorf("writing rdb tmp file: %w", err)
	}

	if err := os.Rename(tmp, r.filename); err != nil {
		if !os.IsExist(err) {
			return fmt.Errorf("renaming rdb tmp file: %w", err)
		}
		if rmErr := os.Remove(r.filename); rmErr != nil {
			return fmt.Errorf("replacing existing rdb file: %w", rmErr)
		}
		if err := os.Rename(tmp, r.filename); err != nil {
			return fmt.Errorf("renaming rdb tmp file (retry): %w", err)
		}
	}

	r.logger.Info("rdb saved",
		zap.String("file", r.filename),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (r *RDB) writeFile(path string, m *storage.Manager) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, 4*1024*1024)
	if _, err := w.WriteString(rdbHeader); err != nil {
		return err
	}

	var body io.Writer = w
	var gz *gzip.Writer
	if r.compress {
		gz = gzip.NewWriter(w)
		body = gz
	}

	if err := m.EncodeSnapshot(body); err != nil {
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return err
		}
	}
	if err := w.WriteByte(0xFF); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

// Load reads the snapshot into m. A missing or zero-length file initializes
// an empty snapshot by performing a save and returning, so a valid
// snapshot always exists once Load returns. A corrupt file is quarantined
// by rename rather than failing startup.
func (r *RDB) Load(m *storage.Manager) error {
	raw, err := os.ReadFile(r.filename)
	if err != nil {
		if os.IsNotExist(err) {
			return r.Save(m)
		}
		return err
	}
	if len(raw) == 0 {
		return r.Save(m)
	}

	if len(raw) < len(rdbHeader) || string(raw[:5]) != "REDIS" {
		return r.quarantineAndReset(m)
	}

	body := raw[len(rdbHeader):]
	if len(body) > 0 && body[len(body)-1] == 0xFF {
		body = body[:len(body)-1]
	}

	start := time.Now()
	if err := r.decodeBody(m, body, true); err != nil {
		if err := r.decodeBody(m, body, false); err != nil {
			return r.quarantineAndReset(m)
		}
	}

	r.logger.Info("rdb loaded", zap.Duration("duration", time.Since(start)))
	return nil
}

// decodeBody tries the compressed or uncompressed interpretation of body,
// per the load contract's decompression-first strategy.
func (r *RDB) decodeBody(m *storage.Manager, body []byte, compressed bool) error {
	var reader io.Reader = bytes.NewReader(body)
	if compressed {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return err
		}
		defer gz.Close()
		reader = gz
	}
	return m.DecodeSnapshot(reader, r.maxShards, r.logger)
}

func (r *RDB) quarantineAndReset(m *storage.Manager) error {
	backup := fmt.Sprintf("%s.bak.%d", r.filename, time.Now().Unix())
	if err := os.Rename(r.filename, backup); err != nil {
		r.logger.Warn("failed to quarantine corrupt rdb file", zap.Error(err))
	} else {
		r.logger.Warn("quarantined corrupt rdb file", zap.String("backup", backup))
	}
	return r.Save(m)
}
