package config

import (
	"fmt"
	"strings"
)

// Environment selects which Tradier deployment requests go to.
type Environment string

const (
	// Live is the production environment.
	Live Environment = "live"

	// Sandbox is the developer sandbox environment.
	Sandbox Environment = "sandbox"

	// Paper is an alias accepted on input; it normalizes to Sandbox.
	Paper Environment = "paper"
)

// Base URLs for the Tradier API.
const (
	LiveBaseURL      = "https://api.tradier.com"
	SandboxBaseURL   = "https://sandbox.tradier.com"
	StreamBaseURL    = "https://stream.tradier.com"
	WebSocketBaseURL = "wss://ws.tradier.com"
)

// Accept formats supported by the API.
const (
	FormatJSON = "json"
	FormatXML  = "xml"
)

// ParseEnvironment normalizes and validates an environment string.
// Paper is accepted as an alias for Sandbox.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(strings.ToLower(s)) {
	case Live:
		return Live, nil
	case Sandbox, Paper:
		return Sandbox, nil
	default:
		return "", fmt.Errorf("invalid environment %q (want live, sandbox, or paper)", s)
	}
}

// Config holds the bearer token and environment for API access, plus the
// header settings derived from them.
type Config struct {
	token       string
	environment Environment

	acceptFormat string
	gzipEncoding bool

	headers map[string]string
}

// Option configures a Config.
type Option func(*Config)

// WithEnvironment selects the environment. Defaults to Live.
func WithEnvironment(env Environment) Option {
	return func(c *Config) {
		c.environment = env
	}
}

// WithoutGzip disables the gzip Accept-Encoding header.
func WithoutGzip() Option {
	return func(c *Config) {
		c.gzipEncoding = false
	}
}

// New creates a Config for the given bearer token.
func New(token string, opts ...Option) (*Config, error) {
	if token == "" {
		return nil, fmt.Errorf("token is required")
	}

	c := &Config{
		token:        token,
		environment:  Live,
		acceptFormat: FormatJSON,
		gzipEncoding: true,
	}

	for _, opt := range opts {
		opt(c)
	}

	env, err := ParseEnvironment(string(c.environment))
	if err != nil {
		return nil, err
	}
	c.environment = env

	c.rebuildHeaders()
	return c, nil
}

// Token returns the bearer token.
func (c *Config) Token() string {
	return c.token
}

// Environment returns the normalized environment.
func (c *Config) Environment() Environment {
	return c.environment
}

// BaseURL returns the REST API base URL for the selected environment.
func (c *Config) BaseURL() string {
	if c.environment == Sandbox {
		return SandboxBaseURL
	}
	return LiveBaseURL
}

// StreamURL returns the HTTP streaming base URL.
// Streaming is served from a single host regardless of environment.
func (c *Config) StreamURL() string {
	return StreamBaseURL
}

// WebSocketURL returns the WebSocket base URL.
func (c *Config) WebSocketURL() string {
	return WebSocketBaseURL
}

// SetAcceptFormat switches the Accept header between json and xml.
func (c *Config) SetAcceptFormat(format string) error {
	switch format {
	case FormatJSON, FormatXML:
		c.acceptFormat = format
		c.rebuildHeaders()
		return nil
	default:
		return fmt.Errorf("invalid accept format %q (want json or xml)", format)
	}
}

// SetGzipEncoding toggles the gzip Accept-Encoding header.
func (c *Config) SetGzipEncoding(enabled bool) {
	c.gzipEncoding = enabled
	c.rebuildHeaders()
}

// Headers returns a copy of the request headers for this configuration.
func (c *Config) Headers() map[string]string {
	out := make(map[string]string, len(c.headers))
	for k, v := range c.headers {
		out[k] = v
	}
	return out
}

func (c *Config) rebuildHeaders() {
	h := map[string]string{
		"Authorization": "Bearer " + c.token,
		"Accept":        "application/" + c.acceptFormat,
	}
	if c.gzipEncoding {
		h["Accept-Encoding"] = "gzip"
	}
	c.headers = h
}
