package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"unicode/utf8"

	"github.com/quantfold/tradier-data/api"
	"github.com/quantfold/tradier-data/config"
)

// HTTPStreamer streams quote events over a single long-lived chunked HTTP
// response, one JSON event per line. It expects *SymbolsParams.
type HTTPStreamer struct {
	cfg        *config.Config
	notify     notifier
	httpClient *http.Client
	streamURL  string
}

// NewHTTPStreamer creates an HTTP quote streamer.
func NewHTTPStreamer(cfg *config.Config, cb Callbacks, opts ...Option) *HTTPStreamer {
	o := applyOptions(opts)
	return &HTTPStreamer{
		cfg:        cfg,
		notify:     newNotifier(cb, o.logger),
		httpClient: o.httpClient,
		streamURL:  o.streamURL,
	}
}

// SessionEndpoint returns the market session endpoint.
func (s *HTTPStreamer) SessionEndpoint() api.Endpoint {
	return api.CreateMarketSession
}

// Run issues the streaming request and forwards each received line until the
// stream ends, ctx is cancelled, or the connection fails. Reads are not
// interrupted on cancellation; ctx is checked once per received line.
func (s *HTTPStreamer) Run(ctx context.Context, sessionKey string, params Params) error {
	defer s.notify.close()

	if _, ok := params.(*SymbolsParams); !ok {
		err := fmt.Errorf("%w: HTTP streamer expects *SymbolsParams, got %T", ErrInvalidParams, params)
		s.notify.error(err)
		return err
	}

	resp, err := s.open(sessionKey, params)
	if err != nil {
		s.notify.error(err)
		return err
	}
	defer resp.Body.Close()

	s.notify.open()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			// keep-alive no-op from the server
			continue
		}

		if !utf8.Valid(line) {
			s.notify.error(fmt.Errorf("decode line: invalid utf-8 sequence %q", line))
			continue
		}

		s.notify.message(string(line))
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		s.notify.error(fmt.Errorf("read stream: %w", err))
		return err
	}

	return nil
}

// open issues the streaming POST and verifies the response status.
func (s *HTTPStreamer) open(sessionKey string, params Params) (*http.Response, error) {
	streamURL := s.streamURL
	if streamURL == "" {
		var err error
		streamURL, err = api.GetStreamingQuotes.URL(s.cfg, nil)
		if err != nil {
			return nil, err
		}
	}

	query := url.Values{}
	for k, v := range streamValues(params, sessionKey) {
		query.Set(k, v)
	}

	req, err := http.NewRequest(api.GetStreamingQuotes.Method, streamURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range s.cfg.Headers() {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &api.HTTPError{StatusCode: resp.StatusCode, Body: body}
	}

	return resp, nil
}
