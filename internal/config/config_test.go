package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flashd.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, "")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "/var/lib/flashd", cfg.Node.DataDir)
	require.True(t, cfg.RPC.Enabled)
	require.Equal(t, "127.0.0.1:5005", cfg.RPC.Address)
	require.Equal(t, 30, cfg.RPC.TimeoutSeconds)
	require.True(t, cfg.WebSocket.Enabled)
	require.False(t, cfg.GRPC.Enabled)
	require.Equal(t, "pebble", cfg.StateStore.Backend)
	require.Equal(t, "lz4", cfg.StateStore.Compression)
	require.Equal(t, 4096, cfg.StateStore.CacheSize)
	require.False(t, cfg.History.Enabled)
	require.Equal(t, path, cfg.GetConfigPath())
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfigFile(t, `
[node]
data_dir = "/tmp/flashd-test"

[rpc]
address = "0.0.0.0:8080"
timeout_seconds = 10

[state_store]
backend = "leveldb"
path = "state"
compression = "none"

[history]
enabled = true
host = "db.internal"
port = 5433
database = "loans"
username = "archiver"

[[instances]]
deployer = "d000000000000000000000000000000000000001"
fee_recipient = "fe00000000000000000000000000000000000001"
fee_rate = 500
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "/tmp/flashd-test", cfg.Node.DataDir)
	require.Equal(t, "0.0.0.0:8080", cfg.RPC.Address)
	require.Equal(t, 10, cfg.RPC.TimeoutSeconds)
	require.Equal(t, "leveldb", cfg.StateStore.Backend)
	require.Equal(t, "none", cfg.StateStore.Compression)
	require.Equal(t, filepath.Join("/tmp/flashd-test", "state"), cfg.StateStorePath())

	require.True(t, cfg.History.Enabled)
	require.Equal(t, "db.internal", cfg.History.Host)
	require.Equal(t, 5433, cfg.History.Port)

	require.Len(t, cfg.Instances, 1)
	require.Equal(t, uint32(500), cfg.Instances[0].FeeRate)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not exist")
}

func TestLoadConfigEnvironmentOverride(t *testing.T) {
	path := writeConfigFile(t, "")
	t.Setenv("FLASHD_RPC_ADDRESS", "127.0.0.1:9999")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9999", cfg.RPC.Address)
}

func TestValidateRejectsBadBackend(t *testing.T) {
	path := writeConfigFile(t, `
[state_store]
backend = "rocksdb"
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "state_store.backend")
}

func TestValidateRejectsBadAddress(t *testing.T) {
	path := writeConfigFile(t, `
[rpc]
address = "no-port-here"
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "rpc.address")
}

func TestValidateRejectsBadInstance(t *testing.T) {
	path := writeConfigFile(t, `
[[instances]]
deployer = "zz"
fee_recipient = "fe00000000000000000000000000000000000001"
fee_rate = 500
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "instances[0].deployer")
}

func TestValidateRejectsExcessiveFeeRate(t *testing.T) {
	path := writeConfigFile(t, `
[[instances]]
deployer = "d000000000000000000000000000000000000001"
fee_recipient = "fe00000000000000000000000000000000000001"
fee_rate = 2000000
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "fee_rate")
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, ValidateConfig(cfg))
}

func TestSaveExampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "example.toml")
	require.NoError(t, SaveExampleConfig(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "pebble", cfg.StateStore.Backend)
}
