package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quantfold/tradier-data/api"
	"github.com/quantfold/tradier-data/config"
)

// wsStreamer is the shared WebSocket transport core. The markets and account
// streamers differ only in target path, session endpoint, and accepted
// parameter variant.
type wsStreamer struct {
	cfg             *config.Config
	notify          notifier
	endpoint        api.Endpoint
	sessionEndpoint api.Endpoint
	dialer          *websocket.Dialer
	recvWait        time.Duration
	streamURL       string
}

func newWSStreamer(cfg *config.Config, cb Callbacks, endpoint, sessionEndpoint api.Endpoint, opts []Option) wsStreamer {
	o := applyOptions(opts)
	return wsStreamer{
		cfg:             cfg,
		notify:          newNotifier(cb, o.logger),
		endpoint:        endpoint,
		sessionEndpoint: sessionEndpoint,
		dialer:          o.dialer,
		recvWait:        o.recvWait,
		streamURL:       o.streamURL,
	}
}

// reject reports a parameter variant mismatch without touching the network.
func (s *wsStreamer) reject(err error) error {
	s.notify.error(err)
	s.notify.close()
	return err
}

// run connects, subscribes, and forwards frames until the stream ends, ctx
// cancellation is observed, or a receive fails. Cancellation is checked once
// per receive-wait interval; a frame that never arrives delays shutdown by at
// most one interval.
func (s *wsStreamer) run(ctx context.Context, sessionKey string, params Params) error {
	defer s.notify.close()

	conn, err := s.connect(sessionKey, params)
	if err != nil {
		s.notify.error(err)
		return err
	}

	s.notify.open()

	frames := make(chan string)
	readErr := make(chan error, 1)
	readDone := make(chan struct{})
	stop := make(chan struct{})

	// Reader goroutine: ReadMessage blocks, so frames and errors are handed
	// over on channels and the run loop owns pacing and cancellation.
	go func() {
		defer close(readDone)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				select {
				case readErr <- err:
				case <-stop:
				}
				return
			}
			select {
			case frames <- string(data):
			case <-stop:
				return
			}
		}
	}()

	var runErr error

loop:
	for {
		if ctx.Err() != nil {
			break
		}

		select {
		case msg := <-frames:
			s.notify.message(msg)

		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				// clean end-of-stream from the server
				break loop
			}
			s.notify.error(fmt.Errorf("receive: %w", err))
			runErr = err
			break loop

		case <-time.After(s.recvWait):
			// no frame within the wait interval: re-check cancellation
		}
	}

	close(stop)
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	conn.Close()
	<-readDone

	return runErr
}

// connect dials the stream path and sends the subscribe frame.
func (s *wsStreamer) connect(sessionKey string, params Params) (*websocket.Conn, error) {
	streamURL := s.streamURL
	if streamURL == "" {
		var err error
		streamURL, err = s.endpoint.URL(s.cfg, nil)
		if err != nil {
			return nil, err
		}
	}

	payload := map[string]any{}
	for k, v := range params.Values() {
		payload[k] = v
	}
	payload["sessionid"] = sessionKey
	payload["linebreak"] = true

	frame, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal subscribe payload: %w", err)
	}

	conn, _, err := s.dialer.Dial(streamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	return conn, nil
}

// MarketsStreamer streams market events over WebSocket. It expects
// *SymbolsParams.
type MarketsStreamer struct {
	ws wsStreamer
}

// NewMarketsStreamer creates a WebSocket market event streamer.
func NewMarketsStreamer(cfg *config.Config, cb Callbacks, opts ...Option) *MarketsStreamer {
	return &MarketsStreamer{
		ws: newWSStreamer(cfg, cb, api.GetStreamingMarketEvents, api.CreateMarketSession, opts),
	}
}

// SessionEndpoint returns the market session endpoint.
func (s *MarketsStreamer) SessionEndpoint() api.Endpoint {
	return s.ws.sessionEndpoint
}

// Run streams market events for the given symbols.
func (s *MarketsStreamer) Run(ctx context.Context, sessionKey string, params Params) error {
	if _, ok := params.(*SymbolsParams); !ok {
		return s.ws.reject(fmt.Errorf("%w: markets streamer expects *SymbolsParams, got %T", ErrInvalidParams, params))
	}
	return s.ws.run(ctx, sessionKey, params)
}

// AccountStreamer streams account events over WebSocket. It expects
// *ExcludedAccountParams.
type AccountStreamer struct {
	ws wsStreamer
}

// NewAccountStreamer creates a WebSocket account event streamer.
func NewAccountStreamer(cfg *config.Config, cb Callbacks, opts ...Option) *AccountStreamer {
	return &AccountStreamer{
		ws: newWSStreamer(cfg, cb, api.GetStreamingAccountEvents, api.CreateAccountSession, opts),
	}
}

// SessionEndpoint returns the account session endpoint.
func (s *AccountStreamer) SessionEndpoint() api.Endpoint {
	return s.ws.sessionEndpoint
}

// Run streams account events, excluding the accounts named in params.
func (s *AccountStreamer) Run(ctx context.Context, sessionKey string, params Params) error {
	if _, ok := params.(*ExcludedAccountParams); !ok {
		return s.ws.reject(fmt.Errorf("%w: account streamer expects *ExcludedAccountParams, got %T", ErrInvalidParams, params))
	}
	return s.ws.run(ctx, sessionKey, params)
}
