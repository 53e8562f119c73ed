package stream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quantfold/tradier-data/api"
)

// Errors
var (
	// ErrInvalidParams is returned when a transport is given the wrong
	// parameter variant.
	ErrInvalidParams = errors.New("invalid params for streamer")

	// ErrAlreadyStreaming is returned by Controller.Start while a run is
	// active.
	ErrAlreadyStreaming = errors.New("stream already running")
)

// Streamer runs one streaming transport against an established session.
//
// Run blocks until the stream ends, cancellation of ctx is observed, or the
// connection fails fatally. Failures surface through the callback set; the
// returned error reports the fatal cause (nil for a clean or cancelled run)
// for callers invoking Run directly. Run rejects a parameter variant the
// transport does not expect before attempting any connection.
type Streamer interface {
	Run(ctx context.Context, sessionKey string, params Params) error

	// SessionEndpoint returns the session-creation endpoint this transport's
	// session keys come from.
	SessionEndpoint() api.Endpoint
}

// options holds shared streamer construction settings.
type options struct {
	logger     *slog.Logger
	httpClient *http.Client
	dialer     *websocket.Dialer
	recvWait   time.Duration
	streamURL  string
}

// Option configures a streamer.
type Option func(*options)

// WithLogger sets the logger used for default callback handling.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client for the HTTP transport.
// The client must not have an overall timeout; the streaming response body
// stays open for the life of the run.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithDialer sets a custom WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithRecvWait sets the WebSocket receive wait interval. Cancellation is
// observed once per interval, so this bounds worst-case shutdown latency.
func WithRecvWait(d time.Duration) Option {
	return func(o *options) {
		o.recvWait = d
	}
}

// WithStreamURL overrides the full streaming endpoint URL. The
// session-creation response may carry a preferred stream host; by default
// the well-known hosts are used.
func WithStreamURL(u string) Option {
	return func(o *options) {
		o.streamURL = u
	}
}

func applyOptions(opts []Option) options {
	o := options{
		httpClient: &http.Client{},
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		recvWait: time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// streamValues merges transport params with the session id and the linebreak
// flag the server uses to delimit events.
func streamValues(params Params, sessionKey string) map[string]string {
	values := map[string]string{}
	for k, v := range params.Values() {
		values[k] = v
	}
	values["sessionid"] = sessionKey
	values["linebreak"] = "true"
	return values
}
