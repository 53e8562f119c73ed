package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/quantfold/tradier-data/config"
)

// Client issues authenticated requests to the Tradier REST API.
type Client struct {
	cfg        *config.Config
	baseURL    string // overrides the environment host when set
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
	throttle     bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client for the given configuration.
func NewClient(cfg *config.Config, opts ...ClientOption) *Client {
	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
		throttle:     true,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the environment-selected REST host.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithoutThrottle disables rate-limit blocking after responses.
func WithoutThrottle() ClientOption {
	return func(c *Client) {
		c.throttle = false
	}
}

// Config returns the client configuration.
func (c *Client) Config() *config.Config {
	return c.cfg
}
