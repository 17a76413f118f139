// Package common provides the request and response types shared by the
// warpcas daemon, its JSON-RPC methods and the CLI.
package common

// Environment variable names for configuration.
const (
	// ConfigEnv points at the YAML configuration file.
	ConfigEnv = "WARPCAS_CONFIG"

	// ListenEnv overrides the daemon listen address.
	ListenEnv = "WARPCAS_LISTEN"

	// RPCSecretEnv is the bearer token required by the JSON-RPC endpoints.
	RPCSecretEnv = "WARPCAS_RPC_SECRET"

	// ProxyEnv is an http, https or socks5 proxy for outbound requests.
	ProxyEnv = "WARPCAS_PROXY"

	// DataDirEnv overrides the directory holding the record store and vault.
	DataDirEnv = "WARPCAS_DATA_DIR"

	// DebugEnv enables debug logging.
	DebugEnv = "WARPCAS_DEBUG"

	// SessionKeyEnv is a hex encoded 32 byte session vault key.
	SessionKeyEnv = "WARPCAS_SESSION_KEY"
)
