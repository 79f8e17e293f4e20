package config

import (
	"fmt"
	"net"

	"github.com/LeJamon/goflashd/internal/core/amount"
	"github.com/LeJamon/goflashd/internal/types"
)

// ValidateConfig performs validation on the complete configuration
func ValidateConfig(config *Config) error {
	if config.Node.DataDir == "" {
		return fmt.Errorf("node.data_dir is required")
	}

	if config.RPC.Enabled {
		if err := validateAddress("rpc.address", config.RPC.Address); err != nil {
			return err
		}
		if config.RPC.TimeoutSeconds <= 0 {
			return fmt.Errorf("rpc.timeout_seconds must be positive, got %d", config.RPC.TimeoutSeconds)
		}
	}

	if config.WebSocket.Enabled {
		if err := validateAddress("websocket.address", config.WebSocket.Address); err != nil {
			return err
		}
	}

	if config.GRPC.Enabled {
		if err := validateAddress("grpc.address", config.GRPC.Address); err != nil {
			return err
		}
		if config.GRPC.MaxRecvMsgSize <= 0 {
			return fmt.Errorf("grpc.max_recv_msg_size must be positive")
		}
		if config.GRPC.MaxSendMsgSize <= 0 {
			return fmt.Errorf("grpc.max_send_msg_size must be positive")
		}
	}

	if err := validateStateStore(&config.StateStore); err != nil {
		return err
	}

	if config.History.Enabled {
		if err := validateHistory(&config.History); err != nil {
			return err
		}
	}

	for i := range config.Instances {
		if err := validateInstance(i, &config.Instances[i]); err != nil {
			return err
		}
	}

	return nil
}

func validateAddress(field, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s is required", field)
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%s has invalid format: %w", field, err)
	}
	if host == "" || port == "" {
		return fmt.Errorf("%s must include host and port, got %q", field, addr)
	}
	return nil
}

func validateStateStore(cfg *StateStoreConfig) error {
	switch cfg.Backend {
	case "pebble", "leveldb", "memory":
	default:
		return fmt.Errorf("state_store.backend must be pebble, leveldb or memory, got %q", cfg.Backend)
	}

	switch cfg.Compression {
	case "lz4", "none":
	default:
		return fmt.Errorf("state_store.compression must be lz4 or none, got %q", cfg.Compression)
	}

	if cfg.CacheSize <= 0 {
		return fmt.Errorf("state_store.cache_size must be positive, got %d", cfg.CacheSize)
	}
	if cfg.Backend != "memory" && cfg.Path == "" {
		return fmt.Errorf("state_store.path is required for backend %q", cfg.Backend)
	}

	return nil
}

func validateHistory(cfg *HistoryConfig) error {
	if cfg.Host == "" {
		return fmt.Errorf("history.host is required")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("history.port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.Database == "" {
		return fmt.Errorf("history.database is required")
	}
	if cfg.Username == "" {
		return fmt.Errorf("history.username is required")
	}
	return nil
}

func validateInstance(index int, cfg *InstanceConfig) error {
	if _, err := types.AccountIDFromHex(cfg.Deployer); err != nil {
		return fmt.Errorf("instances[%d].deployer is invalid: %w", index, err)
	}
	if _, err := types.AccountIDFromHex(cfg.FeeRecipient); err != nil {
		return fmt.Errorf("instances[%d].fee_recipient is invalid: %w", index, err)
	}
	if !amount.FeeRate(cfg.FeeRate).Valid() {
		return fmt.Errorf("instances[%d].fee_rate %d exceeds the rate scale", index, cfg.FeeRate)
	}
	return nil
}
