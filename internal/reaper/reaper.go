// Package reaper implements the expiration reaper (C3): a background
// sweep, one timer per shard, that removes expired entries independently
// of the lazy read-through check in storage.Shard. Together the two
// mechanisms guarantee no expired value is ever returned and memory is
// reclaimed within one tick of expiration (§4.2).
package reaper

import (
	"sync"
	"time"

	"github.com/szt-redis/moonlight-kv/internal/storage"
	"go.uber.org/zap"
)

// DefaultInterval is the sweep period named in §4.2.
const DefaultInterval = time.Second

// Reaper owns one ticker goroutine per shard of a storage.Manager. It
// is built the way the teacher's Engine.startGCLoop is: a ticker, a
// select over the ticker and a stop channel closed exactly once.
type Reaper struct {
	interval time.Duration
	logger   *zap.Logger
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New constructs a Reaper that will sweep every shard of m on Start.
func New(interval time.Duration, logger *zap.Logger) *Reaper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reaper{
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start launches one goroutine per shard, each ticking independently so a
// slow sweep on one shard never delays another (§4.2: "must iterate
// concurrently with client mutations without deadlocking"). Start returns
// immediately; call Stop to drain.
func (r *Reaper) Start(m *storage.Manager) {
	for _, shard := range m.Shards() {
		r.wg.Add(1)
		go r.runShard(shard)
	}
}

func (r *Reaper) runShard(shard *storage.Shard) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := shard.SweepExpired(time.Now())
			if removed > 0 && r.logger != nil {
				r.logger.Debug("reaper swept expired keys",
					zap.Int("shard", shard.ID()),
					zap.Int("removed", removed),
				)
			}
		case <-r.stop:
			return
		}
	}
}

// Stop signals every shard goroutine to exit and waits for them to drain,
// within the shutdown window the caller enforces (§5 default 5s).
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	r.wg.Wait()
}
