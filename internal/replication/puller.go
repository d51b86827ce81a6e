package replication

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/szt-redis/moonlight-kv/internal/storage"
	"go.uber.org/zap"
)

// logEveryNFailures rate-limits connect-failure logging once consecutive
// failures exceed this threshold, per §4.6.
const logEveryNFailures = 10

// Puller is the slave-side replication loop (C7): a periodic full-state
// pull that replaces the contents of each local shard, in place, with
// whatever the master currently holds. The replacement is not atomic: each
// shard is cleared and then refilled record by record, so a concurrent
// reader can observe a shard partway through the load. Built the way the teacher builds its ticker
// loops: one ticker, one select over the ticker and a stop channel.
type Puller struct {
	nodeID         string
	masterHost     string
	masterPort     int
	connectTimeout time.Duration
	readTimeout    time.Duration
	interval       time.Duration

	m      *storage.Manager
	logger *zap.Logger

	inFlight          atomic.Bool
	consecutiveFailed int
	lastSync          int64

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPuller constructs a Puller that will pull from masterHost's
// replication port (derived from masterPort, its command port) into m.
func NewPuller(nodeID, masterHost string, masterPort int, interval, connectTimeout, readTimeout time.Duration, m *storage.Manager, logger *zap.Logger) *Puller {
	return &Puller{
		nodeID:         nodeID,
		masterHost:     masterHost,
		masterPort:     masterPort,
		connectTimeout: connectTimeout,
		readTimeout:    readTimeout,
		interval:       interval,
		m:              m,
		logger:         logger,
		stop:           make(chan struct{}),
	}
}

// Start launches the periodic pull loop. Returns immediately.
func (p *Puller) Start() {
	p.wg.Add(1)
	go p.run()
}

func (p *Puller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.tick()
		case <-p.stop:
			return
		}
	}
}

// tick performs one pull attempt, skipping it entirely if a previous pull
// is still in flight (no queueing, per §4.6 step 1).
func (p *Puller) tick() {
	if !p.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer p.inFlight.Store(false)

	if err := p.pullOnce(); err != nil {
		p.consecutiveFailed++
		if p.consecutiveFailed <= logEveryNFailures || p.consecutiveFailed%logEveryNFailures == 0 {
			p.logger.Warn("replication pull failed",
				zap.Error(err), zap.Int("consecutive_failures", p.consecutiveFailed))
		}
		return
	}
	p.consecutiveFailed = 0
}

func (p *Puller) pullOnce() error {
	conn, err := p.dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(p.readTimeout)) //nolint:errcheck

	req := pullRequest{NodeID: p.nodeID, LastSyncTimestamp: p.lastSync}
	if err := writeRequest(conn, req); err != nil {
		return fmt.Errorf("writing pull request: %w", err)
	}

	serverTimestamp, err := readResponseHeader(conn)
	if err != nil {
		return fmt.Errorf("reading pull response header: %w", err)
	}

	if err := p.m.DecodeSnapshot(conn, 0, p.logger); err != nil {
		return fmt.Errorf("decoding pulled snapshot: %w", err)
	}

	p.lastSync = serverTimestamp
	return nil
}

// dial tries the primary replication port, then the fallback, per §4.6
// step 3.
func (p *Puller) dial() (net.Conn, error) {
	primary := net.JoinHostPort(p.masterHost, strconv.Itoa(p.masterPort+PortOffset))
	conn, err := net.DialTimeout("tcp", primary, p.connectTimeout)
	if err == nil {
		return conn, nil
	}

	fallback := net.JoinHostPort(p.masterHost, strconv.Itoa(p.masterPort+PortOffsetFallback))
	conn, fallbackErr := net.DialTimeout("tcp", fallback, p.connectTimeout)
	if fallbackErr == nil {
		return conn, nil
	}
	return nil, fmt.Errorf("connecting to master (primary %s: %v, fallback %s: %v)", primary, err, fallback, fallbackErr)
}

// Stop signals the pull loop to exit and waits for it to drain.
func (p *Puller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	p.wg.Wait()
}
