package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Gossiper runs one node's side of the cluster protocol (C9): an HTTP
// server for inbound messages, a heartbeat timer that broadcasts
// liveness and ages out overdue peers to suspect, and a status timer that
// pings suspect peers and ages them out to offline. Built the way the
// teacher's background loops are built — tickers plus a select over a
// stop channel — enriched with torua's health-monitor
// online/suspect/offline state machine, the closest in-pack precedent
// for this kind of liveness tracking.
type Gossiper struct {
	registry *Registry
	server   *http.Server
	logger   *zap.Logger

	heartbeatInterval time.Duration
	statusInterval    time.Duration
	nodeTimeout       time.Duration

	onRoleChange func(role Role, masterID string)

	mu       sync.Mutex
	selfID   string
	selfRole Role
	masterID string

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New constructs a Gossiper for self, serving on self's gossip port.
// onRoleChange, if non-nil, is invoked whenever a failover promotes or
// rebinds this node.
func New(self Node, registry *Registry, heartbeatInterval, statusInterval, nodeTimeout time.Duration, onRoleChange func(Role, string), logger *zap.Logger) *Gossiper {
	g := &Gossiper{
		registry:          registry,
		logger:            logger,
		heartbeatInterval: heartbeatInterval,
		statusInterval:    statusInterval,
		nodeTimeout:       nodeTimeout,
		onRoleChange:      onRoleChange,
		selfID:            self.ID,
		selfRole:          self.Role,
		masterID:          self.MasterID,
		stop:              make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/gossip/message", g.handleMessage)
	addr := addrString(self.Host, self.Port+GossipPortOffset)
	g.server = &http.Server{Addr: addr, Handler: mux}

	return g
}

// Start launches the HTTP listener and both timers. Returns immediately.
func (g *Gossiper) Start() error {
	ln, err := httpListen(g.server.Addr)
	if err != nil {
		return fmt.Errorf("binding gossip port %s: %w", g.server.Addr, err)
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := g.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			g.logger.Error("gossip http server error", zap.Error(err))
		}
	}()

	g.wg.Add(2)
	go g.runTicker(g.heartbeatInterval, g.heartbeatTick)
	go g.runTicker(g.statusInterval, g.statusTick)

	return nil
}

func (g *Gossiper) runTicker(interval time.Duration, fn func()) {
	defer g.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fn()
		case <-g.stop:
			return
		}
	}
}

// heartbeatTick broadcasts HEARTBEAT to every known peer, then ages out
// any peer whose heartbeat is overdue from online to suspect.
func (g *Gossiper) heartbeatTick() {
	g.broadcast(Message{Type: MsgHeartbeat})

	now := time.Now()
	for _, n := range g.registry.All() {
		if n.Status == StatusOnline && now.Sub(n.LastHeartbeat) > g.nodeTimeout {
			g.registry.Update(n.ID, func(n *Node) { n.Status = StatusSuspect })
			g.logger.Info("peer marked suspect", zap.String("node", n.ID))
		}
	}
}

// statusTick pings every suspect peer and ages out any whose heartbeat has
// been overdue for more than 2x nodeTimeout to offline, triggering
// failover if the peer was this cluster's master.
func (g *Gossiper) statusTick() {
	now := time.Now()
	for _, n := range g.registry.All() {
		if n.Status != StatusSuspect {
			continue
		}
		g.sendTo(n, Message{Type: MsgPing}) //nolint:errcheck

		if now.Sub(n.LastHeartbeat) > 2*g.nodeTimeout {
			g.registry.Update(n.ID, func(node *Node) { node.Status = StatusOffline })
			g.logger.Warn("peer marked offline", zap.String("node", n.ID))
			if n.Role == RoleMaster {
				g.TriggerFailover(n.ID)
			}
		}
	}
}

func (g *Gossiper) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "malformed message", http.StatusBadRequest)
		return
	}
	g.handle(msg)
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gossiper) handle(msg Message) {
	switch msg.Type {
	case MsgHeartbeat, MsgPong:
		g.bumpOnline(msg.SenderID)

	case MsgPing:
		if sender, ok := g.registry.Get(msg.SenderID); ok {
			g.sendTo(sender, Message{Type: MsgPong}) //nolint:errcheck
		}

	case MsgNodeAdded:
		info, ok := decodePayload[nodeInfo](msg.Payload)
		if ok {
			g.registry.Upsert(Node{
				ID: info.ID, Host: info.Host, Port: info.Port,
				Role: info.Role, MasterID: info.MasterID,
				Status: StatusHandshake, LastHeartbeat: time.Now(),
			})
		}

	case MsgNodeRemoved:
		g.registry.Remove(msg.SenderID)

	case MsgFailoverStart:
		if p, ok := decodePayload[failoverPayload](msg.Payload); ok {
			g.applyFailoverStart(p.FailedMasterID, p.NewMasterID)
		}

	case MsgFailoverEnd:
		g.logger.Info("failover completed", zap.Any("payload", msg.Payload))
	}
}

func (g *Gossiper) bumpOnline(senderID string) {
	g.registry.Update(senderID, func(n *Node) {
		n.LastHeartbeat = time.Now()
		n.Status = StatusOnline
	})
}

// decodePayload re-marshals an any-typed JSON payload into T; used because
// json.Decode into Message.Payload (an any) leaves it as map[string]any.
func decodePayload[T any](payload any) (T, bool) {
	var out T
	raw, err := json.Marshal(payload)
	if err != nil {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false
	}
	return out, true
}

// broadcast sends msg to every known peer, stamping SenderID/Timestamp.
// Individual send failures are logged and do not abort the broadcast.
func (g *Gossiper) broadcast(msg Message) {
	msg.SenderID = g.selfID
	msg.Timestamp = time.Now()
	for _, n := range g.registry.All() {
		go func(n Node) {
			if err := g.sendTo(n, msg); err != nil {
				g.logger.Debug("gossip send failed", zap.String("node", n.ID), zap.Error(err))
			}
		}(n)
	}
}

// sendTo delivers msg to n with three retries at 500ms backoff, per the
// cluster inter-node socket policy.
func (g *Gossiper) sendTo(n Node, msg Message) error {
	if msg.SenderID == "" {
		msg.SenderID = g.selfID
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	msg.ReceiverID = n.ID

	url := "http://" + n.Addr() + "/gossip/message"
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := postJSON(ctx, url, msg, nil); err != nil {
			lastErr = err
			time.Sleep(500 * time.Millisecond)
			continue
		}
		return nil
	}
	return lastErr
}

// Stop closes the HTTP listener and stops both timers.
func (g *Gossiper) Stop() {
	g.stopOnce.Do(func() {
		close(g.stop)
	})
	g.server.Close() //nolint:errcheck
	g.wg.Wait()
}
