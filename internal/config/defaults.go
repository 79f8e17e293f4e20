package config

import "github.com/spf13/viper"

// setDefaults sets all default values
func setDefaults(v *viper.Viper) {
	// 1. Node defaults
	v.SetDefault("node.data_dir", "/var/lib/flashd")
	v.SetDefault("node.debug_logfile", "")

	// 2. RPC defaults
	v.SetDefault("rpc.enabled", true)
	v.SetDefault("rpc.address", "127.0.0.1:5005")
	v.SetDefault("rpc.timeout_seconds", 30)

	// 3. WebSocket defaults
	v.SetDefault("websocket.enabled", true)
	v.SetDefault("websocket.address", "127.0.0.1:6006")

	// 4. gRPC defaults
	v.SetDefault("grpc.enabled", false)
	v.SetDefault("grpc.address", "127.0.0.1:50061")
	v.SetDefault("grpc.max_recv_msg_size", 4*1024*1024)
	v.SetDefault("grpc.max_send_msg_size", 4*1024*1024)

	// 5. State store defaults
	v.SetDefault("state_store.backend", "pebble")
	v.SetDefault("state_store.path", "checkpoints")
	v.SetDefault("state_store.cache_size", 4096)
	v.SetDefault("state_store.compression", "lz4")

	// 6. History defaults
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.host", "localhost")
	v.SetDefault("history.port", 5432)
	v.SetDefault("history.database", "flashd")
	v.SetDefault("history.username", "flashd")
	v.SetDefault("history.ssl_mode", "disable")
	v.SetDefault("history.max_open_conns", 0)
}
