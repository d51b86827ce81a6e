package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the root configuration structure for the application
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Reaper      ReaperConfig      `mapstructure:"reaper"`
	Log         LogConfig         `mapstructure:"log"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Replication ReplicationConfig `mapstructure:"replication"`
	Cluster     ClusterConfig     `mapstructure:"cluster"`
}

// ReaperConfig defines the parameters of the background active-expiration
// sweep (C3). Unlike the teacher's sampling-based GC, the reaper sweeps a
// shard's full entry set each tick, so only enabled/interval apply here.
type ReaperConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// ServerConfig holds the network settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// StorageConfig defines the internal structure of the storage engine
type StorageConfig struct {
	Shards uint `mapstructure:"shards"`
}

// LogConfig defines logging verbosity and output style
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// PersistenceConfig defines settings of AOF and RDB methods
type PersistenceConfig struct {
	Mode string    `mapstructure:"mode"` // "rdb" or "aof"
	AOF  AOFConfig `mapstructure:"aof"`
	RDB  RDBConfig `mapstructure:"rdb"`
}

// AOFConfig defines settings of AOF method
type AOFConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Filename    string `mapstructure:"filename"`
	Fsync       string `mapstructure:"fsync"`       // always, everysec, no
	RewriteSize int64  `mapstructure:"rewrite_size"` // bytes; log size that triggers a background rewrite
}

// RDBConfig defines settings of RDB method
type RDBConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Filename  string        `mapstructure:"filename"`
	Interval  time.Duration `mapstructure:"interval"`
	Compress  bool          `mapstructure:"compress"`
	MaxShards int           `mapstructure:"max_shards"`
}

// ReplicationConfig defines the slave-side pull loop (C7) and the
// master-side sync server (C8).
type ReplicationConfig struct {
	Role           string        `mapstructure:"role"` // "master" or "slave"
	MasterHost     string        `mapstructure:"master_host"`
	MasterPort     int           `mapstructure:"master_port"`
	SyncPort       int           `mapstructure:"sync_port"`
	PullInterval   time.Duration `mapstructure:"pull_interval"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
}

// ClusterConfig defines the gossip node registry (C9).
type ClusterConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	NodeID             string        `mapstructure:"node_id"`
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	Seeds              []string      `mapstructure:"seeds"`
	HeartbeatInterval  time.Duration `mapstructure:"heartbeat_interval"`
	NodeStatusInterval time.Duration `mapstructure:"node_status_interval"`
	SuspectAfter       time.Duration `mapstructure:"suspect_after"`
	OfflineAfter       time.Duration `mapstructure:"offline_after"`
}

// Load reads the configuration from a file and overrides it with environment variables
func Load(path string) (*Config, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("MOONLIGHT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults populates viper with fallback values if they are not provided via file or ENV
func setDefaults() {
	// Server
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", "6380")

	// Storage
	viper.SetDefault("storage.shards", 16)

	// Reaper
	viper.SetDefault("reaper.enabled", true)
	viper.SetDefault("reaper.interval", "1s")

	// Logger
	viper.SetDefault("log.level", "debug")
	viper.SetDefault("log.format", "json")

	// Persistence
	viper.SetDefault("persistence.mode", "rdb")

	viper.SetDefault("persistence.aof.enabled", false)
	viper.SetDefault("persistence.aof.filename", "appendonly.aof")
	viper.SetDefault("persistence.aof.fsync", "everysec")
	viper.SetDefault("persistence.aof.rewrite_size", 64*1024*1024)

	viper.SetDefault("persistence.rdb.enabled", true)
	viper.SetDefault("persistence.rdb.filename", "dump.rdb")
	viper.SetDefault("persistence.rdb.interval", "60s")
	viper.SetDefault("persistence.rdb.compress", true)
	viper.SetDefault("persistence.rdb.max_shards", 100)

	// Replication
	viper.SetDefault("replication.role", "master")
	viper.SetDefault("replication.sync_port", 0) // not read; the sync port is always server.port + 11000
	viper.SetDefault("replication.pull_interval", "5s")
	viper.SetDefault("replication.connect_timeout", "5s")
	viper.SetDefault("replication.read_timeout", "60s")

	// Cluster
	viper.SetDefault("cluster.enabled", false)
	viper.SetDefault("cluster.heartbeat_interval", "5s")
	viper.SetDefault("cluster.node_status_interval", "10s")
	viper.SetDefault("cluster.suspect_after", "3s")
	viper.SetDefault("cluster.offline_after", "9s")
}
