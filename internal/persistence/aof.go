package persistence

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/szt-redis/moonlight-kv/internal/storage"
	"go.uber.org/zap"
)

type fsyncStrategy int

const (
	fsyncAlways fsyncStrategy = iota + 1
	fsyncEverySec
	fsyncNo
)

// aofEntry is one line destined for the log, tagged with the shard it
// targets. Entries travel through a single channel so the listener
// goroutine can serialize the SELECT-line bookkeeping even though many
// connection goroutines append concurrently.
type aofEntry struct {
	shard int
	line  string
}

// AOF implements the append-log persistence strategy (C6): one line per
// command, single-space separated, with a leading "SELECT i" line whenever
// the target shard changes. Grounded on the teacher's AOF type; the
// line format and the rewrite/load vocabulary are new.
type AOF struct {
	file     *os.File
	writer   *bufio.Writer
	filename string
	strategy fsyncStrategy

	entries  chan aofEntry
	rewrites chan chan error

	stopChan chan struct{}
	wg       sync.WaitGroup
	logger   *zap.Logger

	// writtenBytes is the log's size in bytes: the file's size when it was
	// opened plus every byte appended since, reset to zero by a rewrite.
	// Read from the coordinator's rewrite-threshold check, so
	// it's accessed atomically rather than under the listener goroutine's
	// implicit single-writer discipline.
	writtenBytes int64
}

// NewAOF opens (or creates) filename for appending and starts the
// background flush goroutine.
func NewAOF(filename string, strategyStr string, logger *zap.Logger) (*AOF, error) {
	strategy := parseStrategy(strategyStr)

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}

	var startSize int64
	if info, statErr := f.Stat(); statErr == nil {
		startSize = info.Size()
	}

	aof := &AOF{
		file:         f,
		writer:       bufio.NewWriter(f),
		filename:     filename,
		strategy:     strategy,
		entries:      make(chan aofEntry, 10000),
		rewrites:     make(chan chan error),
		stopChan:     make(chan struct{}),
		logger:       logger,
		writtenBytes: startSize,
	}

	aof.wg.Add(1)
	go aof.listen()

	return aof, nil
}

// Append enqueues one command for logging against shard. args are joined
// with single spaces and are not quoted — a value containing whitespace is
// not round-trip safe in this format, a known limitation of the fixed line
// layout (no cross-shard operation means callers always know their shard).
func (a *AOF) Append(shard int, cmd string, args []string) {
	line := cmd
	if len(args) > 0 {
		line = cmd + " " + strings.Join(args, " ")
	}
	a.entries <- aofEntry{shard: shard, line: line}
}

func (a *AOF) listen() {
	defer a.wg.Done()

	ticker := time.NewTicker(time.Second)
	switch a.strategy {
	case fsyncAlways:
		ticker.Stop()
	case fsyncNo:
		ticker.Stop()
	default:
		defer ticker.Stop()
	}

	lastShard := -1

	for {
		select {
		case e, ok := <-a.entries:
			if !ok {
				return
			}
			lastShard = a.writeEntry(e, lastShard)

		case <-ticker.C:
			if a.strategy == fsyncEverySec {
				a.flush()
				a.file.Sync() //nolint:errcheck
			}

		case result := <-a.rewrites:
			result <- a.swapRewrittenFile()
			lastShard = -1

		case <-a.stopChan:
			// Drain whatever is still queued before the final flush, so a
			// Close racing with in-flight Append calls never loses them.
			draining := true
			for draining {
				select {
				case e := <-a.entries:
					lastShard = a.writeEntry(e, lastShard)
				default:
					draining = false
				}
			}
			a.flush()
			a.file.Sync() //nolint:errcheck
			return
		}
	}
}

// writeEntry writes one queued line, prefixing it with a SELECT line if it
// targets a different shard than the last line written. Returns the
// (possibly updated) last-written shard index.
func (a *AOF) writeEntry(e aofEntry, lastShard int) int {
	if e.shard != lastShard {
		selectLine := fmt.Sprintf("SELECT %d\n", e.shard)
		if _, err := a.writer.WriteString(selectLine); err != nil {
			a.logger.Error("aof select write error", zap.Error(err))
			return lastShard
		}
		atomic.AddInt64(&a.writtenBytes, int64(len(selectLine)))
		lastShard = e.shard
	}
	line := e.line + "\n"
	if _, err := a.writer.WriteString(line); err != nil {
		a.logger.Error("aof write error", zap.Error(err))
		return lastShard
	}
	atomic.AddInt64(&a.writtenBytes, int64(len(line)))
	if a.strategy == fsyncAlways {
		a.flush()
		a.file.Sync() //nolint:errcheck
	}
	return lastShard
}

// Size reports the log's size in bytes: its size when opened plus the bytes
// appended since, counted from zero again after a Rewrite. Polled by the coordinator against
// AOFConfig.RewriteSize to decide when to trigger a background Rewrite.
func (a *AOF) Size() int64 {
	return atomic.LoadInt64(&a.writtenBytes)
}

func (a *AOF) flush() {
	if err := a.writer.Flush(); err != nil {
		a.logger.Error("aof flush error", zap.Error(err))
	}
}

// Close stops the background writer, flushing a final time, and closes the
// underlying file.
func (a *AOF) Close() error {
	close(a.stopChan)
	a.wg.Wait()
	return a.file.Close()
}

func parseStrategy(s string) fsyncStrategy {
	switch s {
	case "always":
		return fsyncAlways
	case "no":
		return fsyncNo
	default:
		return fsyncEverySec
	}
}

// Rewrite emits a minimal replay transcript for the current contents of m
// and atomically replaces the log file, the save-equivalent named in §4.5.
// ZSET keys are reconstructed via a ZADD-per-member sequence — the
// source's rewriter omits ZSET entirely, which this implementation treats
// as a defect rather than behavior to replicate.
//
// The actual file/writer swap happens on the listener goroutine (via the
// rewrites channel) so it never races with a concurrently appended entry.
func (a *AOF) Rewrite(m *storage.Manager) error {
	tmp := a.filename + ".tmp"
	if err := writeRewrite(tmp, m); err != nil {
		return fmt.Errorf("writing aof rewrite tmp file: %w", err)
	}

	result := make(chan error, 1)
	a.rewrites <- result
	return <-result
}

// swapRewrittenFile renames the rewrite's tmp file over the live log and
// reopens it. Must only run on the listener goroutine.
func (a *AOF) swapRewrittenFile() error {
	tmp := a.filename + ".tmp"
	if err := os.Rename(tmp, a.filename); err != nil {
		if !os.IsExist(err) {
			return fmt.Errorf("renaming aof rewrite tmp file: %w", err)
		}
		if rmErr := os.Remove(a.filename); rmErr != nil {
			return fmt.Errorf("replacing existing aof file: %w", rmErr)
		}
		if err := os.Rename(tmp, a.filename); err != nil {
			return fmt.Errorf("renaming aof rewrite tmp file (retry): %w", err)
		}
	}

	f, err := os.OpenFile(a.filename, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("reopening aof after rewrite: %w", err)
	}
	a.file.Close() //nolint:errcheck
	a.file = f
	a.writer = bufio.NewWriter(f)
	atomic.StoreInt64(&a.writtenBytes, 0)

	a.logger.Info("aof rewritten", zap.String("file", a.filename))
	return nil
}

func writeRewrite(path string, m *storage.Manager) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, 1024*1024)
	for _, shard := range m.Shards() {
		if _, err := w.WriteString(fmt.Sprintf("SELECT %d\n", shard.ID())); err != nil {
			return err
		}
		for _, key := range shard.Keys() {
			if err := rewriteKey(w, shard, key); err != nil {
				return err
			}
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

func rewriteKey(w *bufio.Writer, shard *storage.Shard, key string) error {
	v, ok := shard.Get(key)
	if !ok {
		return nil
	}

	switch v.Kind {
	case storage.KindString:
		if _, err := fmt.Fprintf(w, "SET %s %s\n", key, v.Str); err != nil {
			return err
		}
	case storage.KindList:
		for e := v.List.Front(); e != nil; e = e.Next() {
			if _, err := fmt.Fprintf(w, "RPUSH %s %s\n", key, e.Value.(string)); err != nil {
				return err
			}
		}
	case storage.KindSet:
		for m := range v.Set {
			if _, err := fmt.Fprintf(w, "SADD %s %s\n", key, m); err != nil {
				return err
			}
		}
	case storage.KindHash:
		for field, val := range v.Hash {
			if _, err := fmt.Fprintf(w, "HSET %s %s %s\n", key, field, val); err != nil {
				return err
			}
		}
	case storage.KindZSet:
		ordered, err := shard.ZRange(key, 0, -1)
		if err != nil {
			return err
		}
		for _, zm := range ordered {
			if _, err := fmt.Fprintf(w, "ZADD %s %s %s\n", key, formatFloat(zm.Score), zm.Member); err != nil {
				return err
			}
		}
	}

	if ttl := shard.TTL(key); ttl > 0 {
		if _, err := fmt.Fprintf(w, "PEXPIRE %s %d\n", key, ttl); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// LoadAOF replays filename against m using the permissive interpreter
// demanded by §4.5: blank lines are skipped, a malformed line is logged
// and skipped, and unrecognized commands are ignored rather than failing
// the whole load — replay must be strictly more permissive than dispatch.
func LoadAOF(filename string, m *storage.Manager, logger *zap.Logger) error {
	f, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var shard *storage.Shard
	if s, err := m.Shard(0); err == nil {
		shard = s
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := strings.ToUpper(fields[0])
		args := fields[1:]

		switch cmd {
		case "SELECT":
			if len(args) != 1 {
				logger.Warn("aof: malformed SELECT line, skipping", zap.String("line", line))
				continue
			}
			idx, err := strconv.Atoi(args[0])
			if err != nil {
				logger.Warn("aof: malformed SELECT index, skipping", zap.String("line", line))
				continue
			}
			s, err := m.Shard(idx)
			if err != nil {
				logger.Warn("aof: SELECT references unknown shard, skipping", zap.Int("shard", idx))
				continue
			}
			shard = s

		case "SET":
			if shard == nil || len(args) < 2 {
				logger.Warn("aof: malformed SET line, skipping", zap.String("line", line))
				continue
			}
			shard.SetString(args[0], strings.Join(args[1:], " "), 0)

		case "LPUSH":
			if shard == nil || len(args) < 2 {
				continue
			}
			if _, err := shard.LPush(args[0], args[1:]...); err != nil {
				logger.Warn("aof: LPUSH replay error, skipping", zap.Error(err))
			}

		case "RPUSH":
			if shard == nil || len(args) < 2 {
				continue
			}
			if _, err := shard.RPush(args[0], args[1:]...); err != nil {
				logger.Warn("aof: RPUSH replay error, skipping", zap.Error(err))
			}

		case "SADD":
			if shard == nil || len(args) < 2 {
				continue
			}
			if _, err := shard.SAdd(args[0], args[1:]...); err != nil {
				logger.Warn("aof: SADD replay error, skipping", zap.Error(err))
			}

		case "HSET":
			if shard == nil || len(args) < 3 || len(args)%2 != 1 {
				continue
			}
			fieldsMap := make(map[string]string, len(args)/2)
			for i := 1; i < len(args); i += 2 {
				fieldsMap[args[i]] = args[i+1]
			}
			if _, err := shard.HSet(args[0], fieldsMap); err != nil {
				logger.Warn("aof: HSET replay error, skipping", zap.Error(err))
			}

		case "ZADD":
			if shard == nil || len(args) < 3 {
				continue
			}
			score, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				logger.Warn("aof: malformed ZADD score, skipping", zap.String("line", line))
				continue
			}
			if _, err := shard.ZAdd(args[0], map[string]float64{args[2]: score}); err != nil {
				logger.Warn("aof: ZADD replay error, skipping", zap.Error(err))
			}

		case "PEXPIRE":
			if shard == nil || len(args) != 2 {
				continue
			}
			ms, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				logger.Warn("aof: malformed PEXPIRE ms, skipping", zap.String("line", line))
				continue
			}
			shard.Expire(args[0], time.Duration(ms)*time.Millisecond)

		default:
			// Unrecognized commands are ignored: replay is strictly more
			// permissive than live dispatch.
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning aof file: %w", err)
	}
	return nil
}
