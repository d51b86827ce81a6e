package server

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/szt-redis/moonlight-kv/internal/cluster"
	"github.com/szt-redis/moonlight-kv/internal/config"
	"github.com/szt-redis/moonlight-kv/internal/persistence"
	"github.com/szt-redis/moonlight-kv/internal/reaper"
	"github.com/szt-redis/moonlight-kv/internal/replication"
	"github.com/szt-redis/moonlight-kv/internal/resp"
	"github.com/szt-redis/moonlight-kv/internal/storage"
	"go.uber.org/zap"
)

const (
	roleMaster = "master"
	roleSlave  = "slave"
)

// Engine coordinates command dispatch and owns the background services
// that make a node more than a bare in-memory map: the shard vector, the
// persistence coordinator, the replication puller or server (depending
// on role), and — when cluster mode is on — the gossiper.
type Engine struct {
	commands map[string]command
	manager  *storage.Manager
	cfg      *config.Config
	logger   *zap.Logger

	coordinator *persistence.Coordinator

	mu         sync.Mutex
	role       string
	masterHost string
	masterPort int
	puller     *replication.Puller
	replServer *replication.Server

	gossiper *cluster.Gossiper
	registry *cluster.Registry

	reaper   *reaper.Reaper
	stopOnce sync.Once
}

// NewEngine allocates the shard vector, wires up persistence and
// replication per cfg, registers every command, and starts every
// background loop the configuration enables.
func NewEngine(cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	manager, err := storage.NewManager(int(cfg.Storage.Shards), logger)
	if err != nil {
		return nil, fmt.Errorf("allocating storage: %w", err)
	}

	role := cfg.Replication.Role
	if role == "" {
		role = roleMaster
	}

	coord, err := persistence.NewCoordinator(cfg.Persistence, role, manager, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing persistence: %w", err)
	}

	e := &Engine{
		commands:    make(map[string]command),
		manager:     manager,
		cfg:         cfg,
		logger:      logger,
		coordinator: coord,
		role:        role,
		masterHost:  cfg.Replication.MasterHost,
		masterPort:  cfg.Replication.MasterPort,
	}
	e.registerCommands()

	coord.Start()

	if role == roleSlave {
		e.startPullerLocked()
	} else if err := e.startReplServerLocked(); err != nil {
		return nil, err
	}

	if cfg.Reaper.Enabled {
		e.reaper = reaper.New(cfg.Reaper.Interval, logger)
		e.reaper.Start(manager)
	}

	if cfg.Cluster.Enabled {
		if err := e.startCluster(); err != nil {
			return nil, fmt.Errorf("starting cluster gossip: %w", err)
		}
	}

	return e, nil
}

// register binds a command name (normalized to uppercase) to fn.
func (e *Engine) register(name string, fn commandFunc) {
	e.commands[strings.ToUpper(name)] = fn
}

func (e *Engine) registerCommands() {
	e.register("PING", ping)
	e.register("ECHO", echo)
	e.register("SELECT", selectCmd)
	e.register("INFO", info)
	e.register("COMMAND", cmd)

	e.register("GET", get)
	e.register("SET", set)
	e.register("GETSET", getset)
	e.register("INCR", incr)
	e.register("DECR", decr)
	e.register("INCRBY", incrby)
	e.register("DECRBY", decrby)

	e.register("DEL", del)
	e.register("EXISTS", exists)
	e.register("TYPE", typeCmd)
	e.register("EXPIRE", expire)
	e.register("TTL", ttl)
	e.register("PTTL", pttl)
	e.register("PERSIST", persist)
	e.register("KEYS", keys)
	e.register("FLUSHDB", flushdb)

	e.register("LPUSH", lpush)
	e.register("RPUSH", rpush)
	e.register("LPOP", lpop)
	e.register("RPOP", rpop)
	e.register("LLEN", llen)
	e.register("LRANGE", lrange)
	e.register("LINDEX", lindex)
	e.register("LSET", lset)
	e.register("LREM", lrem)

	e.register("SADD", sadd)
	e.register("SREM", srem)
	e.register("SMEMBERS", smembers)
	e.register("SISMEMBER", sismember)
	e.register("SCARD", scard)
	e.register("SPOP", spop)
	e.register("SRANDMEMBER", srandmember)
	e.register("SINTER", sinter)
	e.register("SUNION", sunion)
	e.register("SDIFF", sdiff)

	e.register("HSET", hset)
	e.register("HMSET", hmset)
	e.register("HSETNX", hsetnx)
	e.register("HGET", hget)
	e.register("HDEL", hdel)
	e.register("HEXISTS", hexists)
	e.register("HGETALL", hgetall)
	e.register("HKEYS", hkeys)
	e.register("HVALS", hvals)
	e.register("HLEN", hlen)
	e.register("HMGET", hmget)
	e.register("HINCRBY", hincrby)

	e.register("ZADD", zadd)
	e.register("ZCARD", zcard)
	e.register("ZSCORE", zscore)
	e.register("ZINCRBY", zincrby)
	e.register("ZREM", zrem)
	e.register("ZRANGE", zrange)
	e.register("ZREVRANGE", zrevrange)
	e.register("ZRANK", zrank)
	e.register("ZREVRANK", zrevrank)
	e.register("ZCOUNT", zcount)

	e.register("ROLE", roleCmd)
	e.register("SLAVEOF", slaveof)
	e.register("READONLY", readonly)

	e.register("SAVE", func(e *Engine, p *Peer, args []string) resp.Value {
		return resp.MakeError("ERR SAVE is automatic; persistence runs on its own schedule")
	})
}

// Execute looks up name, enforces the slave write guard, runs the
// command, and appends it to the append log if it mutated state.
func (e *Engine) Execute(p *Peer, name string, args []string) resp.Value {
	name = strings.ToUpper(name)

	if e.logger.Core().Enabled(zap.DebugLevel) {
		e.logger.Debug("executing command", zap.String("cmd", name), zap.Int("args_count", len(args)))
	}

	impl, ok := e.commands[name]
	if !ok {
		return resp.MakeError(fmt.Sprintf("ERR unknown command '%s'", name))
	}

	if isWriteCommand(name) && e.isReadOnly() {
		return resp.MakeError("READONLY You can't write against a read only replica.")
	}

	result := impl.execute(e, p, args)

	if result.Type != resp.TypeError && isWriteCommand(name) {
		e.coordinator.Append(p.Shard(), name, args)
	}

	return result
}

// roleInfo reports this node's currently active replication role. §9's
// open question: this must never be derived from whether cluster mode
// happens to be on.
func (e *Engine) roleInfo() (role, masterHost string, masterPort int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.role, e.masterHost, e.masterPort
}

func (e *Engine) isReadOnly() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.role == roleSlave
}

// startPullerLocked starts a Puller against the engine's current master
// fields. Safe to call from NewEngine (no other goroutine touches the
// engine yet) or under e.mu from becomeSlaveOf.
func (e *Engine) startPullerLocked() {
	nodeID := e.cfg.Cluster.NodeID
	if nodeID == "" {
		nodeID = e.cfg.Server.Host + ":" + e.cfg.Server.Port
	}
	e.puller = replication.NewPuller(nodeID, e.masterHost, e.masterPort,
		e.cfg.Replication.PullInterval, e.cfg.Replication.ConnectTimeout,
		e.cfg.Replication.ReadTimeout, e.manager, e.logger)
	e.puller.Start()
}

// startReplServerLocked binds and serves the replication port. Same
// call-context rules as startPullerLocked.
func (e *Engine) startReplServerLocked() error {
	port, err := strconv.Atoi(e.cfg.Server.Port)
	if err != nil {
		return fmt.Errorf("parsing server port %q: %w", e.cfg.Server.Port, err)
	}
	srv, err := replication.Listen(e.cfg.Server.Host, port, e.manager, e.logger)
	if err != nil {
		return fmt.Errorf("binding replication port: %w", err)
	}
	e.replServer = srv
	go srv.Serve()
	return nil
}

// promoteToMaster tears down any active puller and starts serving the
// replication port, used by SLAVEOF NO ONE and by cluster failover.
func (e *Engine) promoteToMaster() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.role == roleMaster {
		return nil
	}
	if e.puller != nil {
		e.puller.Stop()
		e.puller = nil
	}
	if err := e.startReplServerLocked(); err != nil {
		return err
	}
	e.role = roleMaster
	e.masterHost = ""
	e.masterPort = 0
	return nil
}

// becomeSlaveOf tears down any active replication server and starts
// pulling from host:port, used by SLAVEOF host port and by cluster
// failover rebinding.
func (e *Engine) becomeSlaveOf(host string, port int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.replServer != nil {
		e.replServer.Stop()
		e.replServer = nil
	}
	if e.puller != nil {
		e.puller.Stop()
		e.puller = nil
	}
	e.role = roleSlave
	e.masterHost = host
	e.masterPort = port
	e.startPullerLocked()
	return nil
}

// onClusterRoleChange is the Gossiper's failover callback: it translates
// a cluster role flip into the same promoteToMaster/becomeSlaveOf calls
// SLAVEOF drives.
func (e *Engine) onClusterRoleChange(newRole cluster.Role, masterID string) {
	switch newRole {
	case cluster.RoleMaster:
		if err := e.promoteToMaster(); err != nil {
			e.logger.Error("cluster promotion failed", zap.Error(err))
		}
	case cluster.RoleSlave:
		node, ok := e.registry.Get(masterID)
		if !ok {
			e.logger.Error("cluster failover named an unknown master", zap.String("master_id", masterID))
			return
		}
		if err := e.becomeSlaveOf(node.Host, node.Port); err != nil {
			e.logger.Error("cluster rebind failed", zap.Error(err))
		}
	}
}

// startCluster builds this node's gossip registry (self plus any
// statically configured seeds, added in handshake status until their
// first heartbeat) and launches the Gossiper.
func (e *Engine) startCluster() error {
	port, err := strconv.Atoi(e.cfg.Server.Port)
	if err != nil {
		return fmt.Errorf("parsing server port %q: %w", e.cfg.Server.Port, err)
	}

	host := e.cfg.Cluster.Host
	if host == "" {
		host = e.cfg.Server.Host
	}

	self := cluster.Node{
		ID:            e.cfg.Cluster.NodeID,
		Host:          host,
		Port:          port,
		Role:          cluster.Role(e.role),
		Status:        cluster.StatusOnline,
		LastHeartbeat: time.Now(),
	}

	registry := cluster.NewRegistry()
	registry.Upsert(self)

	for _, seed := range e.cfg.Cluster.Seeds {
		seedHost, seedPortStr, err := net.SplitHostPort(seed)
		if err != nil {
			e.logger.Warn("skipping malformed cluster seed", zap.String("seed", seed), zap.Error(err))
			continue
		}
		seedPort, err := strconv.Atoi(seedPortStr)
		if err != nil {
			e.logger.Warn("skipping malformed cluster seed port", zap.String("seed", seed), zap.Error(err))
			continue
		}
		registry.Upsert(cluster.Node{
			ID:            seed,
			Host:          seedHost,
			Port:          seedPort,
			Role:          cluster.RoleMaster,
			Status:        cluster.StatusHandshake,
			LastHeartbeat: time.Now(),
		})
	}

	e.registry = registry
	e.gossiper = cluster.New(self, registry, e.cfg.Cluster.HeartbeatInterval,
		e.cfg.Cluster.NodeStatusInterval, e.cfg.Cluster.SuspectAfter,
		e.onClusterRoleChange, e.logger)

	return e.gossiper.Start()
}

// Shutdown stops every background service in reverse-dependency order
// and flushes persistence state, exactly once.
func (e *Engine) Shutdown() {
	e.stopOnce.Do(func() {
		if e.reaper != nil {
			e.reaper.Stop()
		}

		if e.gossiper != nil {
			e.gossiper.Stop()
		}

		e.mu.Lock()
		puller, srv := e.puller, e.replServer
		e.mu.Unlock()
		if puller != nil {
			puller.Stop()
		}
		if srv != nil {
			srv.Stop()
		}

		e.coordinator.Stop()
	})
}
