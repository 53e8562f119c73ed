package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the root YAML configuration for the quotestream CLI.
type FileConfig struct {
	Client   ClientConfig `yaml:"client"`
	Stream   StreamConfig `yaml:"stream"`
	Database DBConfig     `yaml:"database"`
	Writer   WriterConfig `yaml:"writer"`
}

// ClientConfig holds API credentials and environment selection.
type ClientConfig struct {
	Token       string        `yaml:"token"` // supports ${VAR} expansion
	Environment string        `yaml:"environment"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
}

// StreamConfig holds streaming transport settings.
type StreamConfig struct {
	RecvWait         time.Duration `yaml:"recv_wait"`         // WebSocket cancellation re-check interval
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"` // WebSocket dial timeout
}

// DBConfig holds an optional Postgres/Timescale connection for persistence.
// An empty host disables persistence.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// WriterConfig holds batch writer settings.
type WriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// Default values for optional configuration fields.
const (
	DefaultAPITimeout    = 30 * time.Second
	DefaultMaxRetries    = 3
	DefaultRecvWait      = 1 * time.Second
	DefaultHandshake     = 10 * time.Second
	DefaultDBPort        = 5432
	DefaultDBSSLMode     = "prefer"
	DefaultMaxConns      = 10
	DefaultMinConns      = 2
	DefaultBatchSize     = 500
	DefaultFlushInterval = 1 * time.Second
	DefaultBufferSize    = 10000
)

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg FileConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*FileConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *FileConfig) applyDefaults() {
	if c.Client.Environment == "" {
		c.Client.Environment = string(Live)
	}
	if c.Client.Timeout == 0 {
		c.Client.Timeout = DefaultAPITimeout
	}
	if c.Client.MaxRetries == 0 {
		c.Client.MaxRetries = DefaultMaxRetries
	}

	if c.Stream.RecvWait == 0 {
		c.Stream.RecvWait = DefaultRecvWait
	}
	if c.Stream.HandshakeTimeout == 0 {
		c.Stream.HandshakeTimeout = DefaultHandshake
	}

	if c.Database.Host != "" {
		if c.Database.Port == 0 {
			c.Database.Port = DefaultDBPort
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = DefaultDBSSLMode
		}
		if c.Database.MaxConns == 0 {
			c.Database.MaxConns = DefaultMaxConns
		}
		if c.Database.MinConns == 0 {
			c.Database.MinConns = DefaultMinConns
		}
	}

	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = DefaultBatchSize
	}
	if c.Writer.FlushInterval == 0 {
		c.Writer.FlushInterval = DefaultFlushInterval
	}
	if c.Writer.BufferSize == 0 {
		c.Writer.BufferSize = DefaultBufferSize
	}
}

// Validate checks that all required fields are set and values are valid.
func (c *FileConfig) Validate() error {
	if c.Client.Token == "" {
		return fmt.Errorf("client.token is required")
	}
	if _, err := ParseEnvironment(c.Client.Environment); err != nil {
		return fmt.Errorf("client.environment: %w", err)
	}

	if c.Stream.RecvWait <= 0 {
		return fmt.Errorf("stream.recv_wait must be positive")
	}

	if c.Database.Host != "" {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	}

	if c.Writer.BatchSize < 1 {
		return fmt.Errorf("writer.batch_size must be >= 1")
	}
	if c.Writer.BufferSize < 1 {
		return fmt.Errorf("writer.buffer_size must be >= 1")
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
