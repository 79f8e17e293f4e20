package config

import "path/filepath"

// Config represents the complete flashd configuration
// This mirrors the structure of flashd.toml
type Config struct {
	// 1. Node section
	Node NodeConfig `toml:"node" mapstructure:"node"`

	// 2. RPC section (JSON-RPC over HTTP)
	RPC RPCConfig `toml:"rpc" mapstructure:"rpc"`

	// 3. WebSocket section
	WebSocket WebSocketConfig `toml:"websocket" mapstructure:"websocket"`

	// 4. gRPC section
	GRPC GRPCConfig `toml:"grpc" mapstructure:"grpc"`

	// 5. State store (checkpoints and receipts)
	StateStore StateStoreConfig `toml:"state_store" mapstructure:"state_store"`

	// 6. History archive (PostgreSQL)
	History HistoryConfig `toml:"history" mapstructure:"history"`

	// 7. Instances to deploy or restore at startup
	Instances []InstanceConfig `toml:"instances" mapstructure:"instances"`

	// Internal fields for configuration management
	configPath string `toml:"-" mapstructure:"-"`
}

// NodeConfig holds node-level settings.
type NodeConfig struct {
	// DataDir is the root directory for persistent state
	DataDir string `toml:"data_dir" mapstructure:"data_dir"`

	// DebugLogfile is the path to the debug log, empty logs to stderr
	DebugLogfile string `toml:"debug_logfile" mapstructure:"debug_logfile"`
}

// RPCConfig holds settings for the JSON-RPC HTTP endpoint.
type RPCConfig struct {
	// Enabled controls whether the HTTP endpoint is started
	Enabled bool `toml:"enabled" mapstructure:"enabled"`

	// Address is the listen address (e.g., "127.0.0.1:5005")
	Address string `toml:"address" mapstructure:"address"`

	// TimeoutSeconds is the per-request handler timeout
	TimeoutSeconds int `toml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// WebSocketConfig holds settings for the WebSocket endpoint.
type WebSocketConfig struct {
	// Enabled controls whether the WebSocket endpoint is started
	Enabled bool `toml:"enabled" mapstructure:"enabled"`

	// Address is the listen address (e.g., "127.0.0.1:6006")
	Address string `toml:"address" mapstructure:"address"`
}

// GRPCConfig holds settings for the gRPC query endpoint.
type GRPCConfig struct {
	// Enabled controls whether the gRPC endpoint is started
	Enabled bool `toml:"enabled" mapstructure:"enabled"`

	// Address is the listen address (e.g., "127.0.0.1:50061")
	Address string `toml:"address" mapstructure:"address"`

	// MaxRecvMsgSize is the maximum inbound message size in bytes
	MaxRecvMsgSize int `toml:"max_recv_msg_size" mapstructure:"max_recv_msg_size"`

	// MaxSendMsgSize is the maximum outbound message size in bytes
	MaxSendMsgSize int `toml:"max_send_msg_size" mapstructure:"max_send_msg_size"`
}

// StateStoreConfig holds settings for the checkpoint store.
type StateStoreConfig struct {
	// Backend selects the key-value backend: "pebble", "leveldb" or "memory"
	Backend string `toml:"backend" mapstructure:"backend"`

	// Path is the on-disk location, relative paths resolve under data_dir
	Path string `toml:"path" mapstructure:"path"`

	// CacheSize is the number of records held in the in-memory cache
	CacheSize int `toml:"cache_size" mapstructure:"cache_size"`

	// Compression selects the record compressor: "lz4" or "none"
	Compression string `toml:"compression" mapstructure:"compression"`
}

// HistoryConfig holds settings for the PostgreSQL history archive.
type HistoryConfig struct {
	// Enabled controls whether operations are archived
	Enabled bool `toml:"enabled" mapstructure:"enabled"`

	Host     string `toml:"host" mapstructure:"host"`
	Port     int    `toml:"port" mapstructure:"port"`
	Database string `toml:"database" mapstructure:"database"`
	Username string `toml:"username" mapstructure:"username"`
	Password string `toml:"password" mapstructure:"password"`
	SSLMode  string `toml:"ssl_mode" mapstructure:"ssl_mode"`

	// MaxOpenConns bounds the connection pool, 0 uses the driver default
	MaxOpenConns int `toml:"max_open_conns" mapstructure:"max_open_conns"`
}

// InstanceConfig describes one ledger instance to deploy at startup.
type InstanceConfig struct {
	// Deployer is the hex-encoded account deploying the instance
	Deployer string `toml:"deployer" mapstructure:"deployer"`

	// FeeRecipient is the hex-encoded account credited with loan fees
	FeeRecipient string `toml:"fee_recipient" mapstructure:"fee_recipient"`

	// FeeRate is the loan fee rate in parts per million
	FeeRate uint32 `toml:"fee_rate" mapstructure:"fee_rate"`
}

// DefaultConfigPath returns the default configuration file path
func DefaultConfigPath() string {
	return "flashd.toml"
}

// ConfigPathFromDir returns the configuration path for a specific directory
func ConfigPathFromDir(configDir string) string {
	return filepath.Join(configDir, "flashd.toml")
}

// GetConfigPath returns the path to the configuration file
func (c *Config) GetConfigPath() string {
	return c.configPath
}

// StateStorePath resolves the state store location against the data directory.
func (c *Config) StateStorePath() string {
	if filepath.IsAbs(c.StateStore.Path) {
		return c.StateStore.Path
	}
	return filepath.Join(c.Node.DataDir, c.StateStore.Path)
}
