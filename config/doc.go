// Package config holds client configuration for the Tradier API.
//
// A Config carries the bearer token, the selected environment (live or
// sandbox), and the request headers derived from them. The streaming and
// WebSocket hosts are shared across environments.
//
// The package also loads YAML file configuration for the quotestream CLI,
// including optional database and writer sections.
package config
