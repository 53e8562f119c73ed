package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quantfold/tradier-data/api"
)

// fakeStreamer blocks until cancellation and records run activity so tests can
// assert join and restart semantics.
type fakeStreamer struct {
	runs    atomic.Int64
	exits   atomic.Int64
	lastKey atomic.Value
	runErr  error
}

func (f *fakeStreamer) SessionEndpoint() api.Endpoint {
	return api.CreateMarketSession
}

func (f *fakeStreamer) Run(ctx context.Context, sessionKey string, params Params) error {
	f.runs.Add(1)
	f.lastKey.Store(sessionKey)
	<-ctx.Done()
	f.exits.Add(1)
	return f.runErr
}

func newSessionServer(t *testing.T, sessionID string, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		if r.URL.Path != "/v1/markets/events/session" {
			t.Errorf("path = %q, want /v1/markets/events/session", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		fmt.Fprintf(w, `{"stream":{"sessionid":%q,"url":"https://stream.tradier.com/v1/markets/events"}}`, sessionID)
	}))
}

func newSessionClient(t *testing.T, server *httptest.Server) *api.Client {
	t.Helper()
	return api.NewClient(testConfig(t),
		api.WithBaseURL(server.URL),
		api.WithoutThrottle(),
	)
}

func TestController_StartClose(t *testing.T) {
	var hits atomic.Int64
	server := newSessionServer(t, "sess-123", &hits)
	defer server.Close()

	streamer := &fakeStreamer{}
	ctrl := NewController(newSessionClient(t, server), streamer, nil)

	if ctrl.Running() {
		t.Fatal("controller running before Start")
	}

	if err := ctrl.Start(context.Background(), mustSymbols(t, "SPY")); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !ctrl.Running() {
		t.Fatal("controller not running after Start")
	}

	// wait for the background run to be launched before closing
	deadline := time.Now().Add(2 * time.Second)
	for streamer.runs.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("streamer never ran")
		}
		time.Sleep(time.Millisecond)
	}

	ctrl.Close()

	if got := streamer.exits.Load(); got != 1 {
		t.Errorf("exits = %d after Close, want 1 (Close must join the run)", got)
	}
	if ctrl.Running() {
		t.Error("controller still running after Close")
	}
	if got := streamer.lastKey.Load(); got != "sess-123" {
		t.Errorf("session key = %v, want sess-123", got)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("session requests = %d, want 1", got)
	}
}

func TestController_SessionReuse(t *testing.T) {
	var hits atomic.Int64
	server := newSessionServer(t, "sess-123", &hits)
	defer server.Close()

	streamer := &fakeStreamer{}
	ctrl := NewController(newSessionClient(t, server), streamer, nil)

	for i := 0; i < 2; i++ {
		if err := ctrl.Start(context.Background(), mustSymbols(t, "SPY")); err != nil {
			t.Fatalf("Start %d failed: %v", i, err)
		}
		ctrl.Close()
	}

	if got := hits.Load(); got != 1 {
		t.Errorf("session requests = %d, want 1 (key must survive Close)", got)
	}
	if got := streamer.runs.Load(); got != 2 {
		t.Errorf("runs = %d, want 2", got)
	}
}

func TestController_InvalidateSession(t *testing.T) {
	var hits atomic.Int64
	server := newSessionServer(t, "sess-123", &hits)
	defer server.Close()

	streamer := &fakeStreamer{}
	ctrl := NewController(newSessionClient(t, server), streamer, nil)

	if err := ctrl.Start(context.Background(), mustSymbols(t, "SPY")); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	ctrl.Close()

	ctrl.InvalidateSession()

	if err := ctrl.Start(context.Background(), mustSymbols(t, "SPY")); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	ctrl.Close()

	if got := hits.Load(); got != 2 {
		t.Errorf("session requests = %d, want 2 after invalidation", got)
	}
}

func TestController_MissingSessionID(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"stream":{}}`)
	}))
	defer server.Close()

	streamer := &fakeStreamer{}
	ctrl := NewController(newSessionClient(t, server), streamer, nil)

	err := ctrl.Start(context.Background(), mustSymbols(t, "SPY"))
	if err == nil {
		t.Fatal("expected error for response without session id")
	}
	if ctrl.Running() {
		t.Error("controller running after failed Start")
	}
	if got := streamer.runs.Load(); got != 0 {
		t.Errorf("runs = %d, want 0", got)
	}

	// no key was retained, so the next Start must ask again
	ctrl.Start(context.Background(), mustSymbols(t, "SPY"))
	if got := hits.Load(); got != 2 {
		t.Errorf("session requests = %d, want 2", got)
	}
}

func TestController_SessionRequestFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	ctrl := NewController(newSessionClient(t, server), &fakeStreamer{}, nil)

	err := ctrl.Start(context.Background(), mustSymbols(t, "SPY"))
	var httpErr *api.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v, want HTTPError 401", err)
	}
}

func TestController_DoubleStart(t *testing.T) {
	server := newSessionServer(t, "sess-123", nil)
	defer server.Close()

	ctrl := NewController(newSessionClient(t, server), &fakeStreamer{}, nil)

	if err := ctrl.Start(context.Background(), mustSymbols(t, "SPY")); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer ctrl.Close()

	if err := ctrl.Start(context.Background(), mustSymbols(t, "SPY")); !errors.Is(err, ErrAlreadyStreaming) {
		t.Fatalf("second Start err = %v, want ErrAlreadyStreaming", err)
	}
}

func TestController_CloseIdempotent(t *testing.T) {
	server := newSessionServer(t, "sess-123", nil)
	defer server.Close()

	ctrl := NewController(newSessionClient(t, server), &fakeStreamer{}, nil)

	// Close with no active run is a no-op
	ctrl.Close()

	if err := ctrl.Start(context.Background(), mustSymbols(t, "SPY")); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	ctrl.Close()
	ctrl.Close()
}

func TestController_RunErrorLogged(t *testing.T) {
	server := newSessionServer(t, "sess-123", nil)
	defer server.Close()

	streamer := &fakeStreamer{runErr: errors.New("stream broke")}
	ctrl := NewController(newSessionClient(t, server), streamer, nil)

	if err := ctrl.Start(context.Background(), mustSymbols(t, "SPY")); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// the run error is logged, not surfaced; Close must still join cleanly
	ctrl.Close()

	if got := streamer.exits.Load(); got != 1 {
		t.Errorf("exits = %d, want 1", got)
	}
}
