package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newWSTestServer runs handler against each upgraded connection.
func newWSTestServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func readSubscribe(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Errorf("read subscribe frame: %v", err)
		return nil
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Errorf("unmarshal subscribe frame: %v", err)
		return nil
	}
	return payload
}

func sendClose(conn *websocket.Conn) {
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
}

func TestMarketsStreamer_Messages(t *testing.T) {
	subscribed := make(chan map[string]any, 1)
	server := newWSTestServer(t, func(conn *websocket.Conn) {
		subscribed <- readSubscribe(t, conn)
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"quote","symbol":"SPY"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"quote","symbol":"AAPL"}`))
		sendClose(conn)
		// wait for the client close before tearing down
		conn.ReadMessage()
	})
	defer server.Close()

	rec := &recorder{}
	s := NewMarketsStreamer(testConfig(t), rec.callbacks(),
		WithStreamURL(wsURL(server)),
		WithRecvWait(20*time.Millisecond),
	)

	if err := s.Run(context.Background(), "sess-1", mustSymbols(t, "SPY", "AAPL")); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	payload := <-subscribed
	if got := payload["sessionid"]; got != "sess-1" {
		t.Errorf("subscribe sessionid = %v, want sess-1", got)
	}
	if got := payload["symbols"]; got != "SPY,AAPL" {
		t.Errorf("subscribe symbols = %v, want SPY,AAPL", got)
	}
	if got, ok := payload["linebreak"].(bool); !ok || !got {
		t.Errorf("subscribe linebreak = %v, want true (boolean)", payload["linebreak"])
	}

	assertEvents(t, rec.snapshot(), []string{"open", "message", "message", "close"})

	msgs := rec.messages()
	if msgs[0] != `{"type":"quote","symbol":"SPY"}` {
		t.Errorf("message 0 = %q", msgs[0])
	}
}

func TestMarketsStreamer_QuietThenClose(t *testing.T) {
	server := newWSTestServer(t, func(conn *websocket.Conn) {
		readSubscribe(t, conn)
		conn.WriteMessage(websocket.TextMessage, []byte("frame1"))
		// several receive-wait intervals of silence must not surface errors
		time.Sleep(150 * time.Millisecond)
		conn.WriteMessage(websocket.TextMessage, []byte("frame2"))
		sendClose(conn)
		conn.ReadMessage()
	})
	defer server.Close()

	rec := &recorder{}
	s := NewMarketsStreamer(testConfig(t), rec.callbacks(),
		WithStreamURL(wsURL(server)),
		WithRecvWait(20*time.Millisecond),
	)

	if err := s.Run(context.Background(), "sess-1", mustSymbols(t, "SPY")); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	assertEvents(t, rec.snapshot(), []string{"open", "message", "message", "close"})
	if errs := rec.errors(); len(errs) != 0 {
		t.Errorf("quiet intervals produced errors: %v", errs)
	}
}

func TestMarketsStreamer_AbruptClose(t *testing.T) {
	server := newWSTestServer(t, func(conn *websocket.Conn) {
		readSubscribe(t, conn)
		conn.WriteMessage(websocket.TextMessage, []byte("frame1"))
		// close the TCP connection without a close handshake
		conn.UnderlyingConn().Close()
	})
	defer server.Close()

	rec := &recorder{}
	s := NewMarketsStreamer(testConfig(t), rec.callbacks(),
		WithStreamURL(wsURL(server)),
		WithRecvWait(20*time.Millisecond),
	)

	err := s.Run(context.Background(), "sess-1", mustSymbols(t, "SPY"))
	if err == nil {
		t.Fatal("expected receive error after abrupt close")
	}

	events := rec.snapshot()
	if events[len(events)-1] != "close" {
		t.Errorf("last event = %q, want close", events[len(events)-1])
	}
	errs := rec.errors()
	if len(errs) != 1 || !strings.Contains(errs[0].Error(), "receive") {
		t.Errorf("errors = %v, want one receive error", errs)
	}
}

func TestMarketsStreamer_Cancellation(t *testing.T) {
	connected := make(chan struct{})
	server := newWSTestServer(t, func(conn *websocket.Conn) {
		readSubscribe(t, conn)
		close(connected)
		// stay silent until the client closes
		conn.ReadMessage()
	})
	defer server.Close()

	rec := &recorder{}
	s := NewMarketsStreamer(testConfig(t), rec.callbacks(),
		WithStreamURL(wsURL(server)),
		WithRecvWait(20*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, "sess-1", mustSymbols(t, "SPY"))
	}()

	<-connected
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	assertEvents(t, rec.snapshot(), []string{"open", "close"})
}

func TestMarketsStreamer_ConnectFailure(t *testing.T) {
	rec := &recorder{}
	s := NewMarketsStreamer(testConfig(t), rec.callbacks(),
		WithStreamURL("ws://127.0.0.1:1"),
	)

	err := s.Run(context.Background(), "sess-1", mustSymbols(t, "SPY"))
	if err == nil {
		t.Fatal("expected connect error")
	}

	assertEvents(t, rec.snapshot(), []string{"error", "close"})
}

func TestMarketsStreamer_WrongParams(t *testing.T) {
	rec := &recorder{}
	s := NewMarketsStreamer(testConfig(t), rec.callbacks(), WithStreamURL("ws://127.0.0.1:1"))

	err := s.Run(context.Background(), "sess-1", NewExcludedAccountParams("acc1"))
	if !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("err = %v, want ErrInvalidParams", err)
	}
	assertEvents(t, rec.snapshot(), []string{"error", "close"})
}

func TestAccountStreamer_Messages(t *testing.T) {
	subscribed := make(chan map[string]any, 1)
	server := newWSTestServer(t, func(conn *websocket.Conn) {
		subscribed <- readSubscribe(t, conn)
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"order"}`))
		sendClose(conn)
		conn.ReadMessage()
	})
	defer server.Close()

	rec := &recorder{}
	s := NewAccountStreamer(testConfig(t), rec.callbacks(),
		WithStreamURL(wsURL(server)),
		WithRecvWait(20*time.Millisecond),
	)

	if err := s.Run(context.Background(), "sess-2", NewExcludedAccountParams("acc1", "acc2")); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	payload := <-subscribed
	if got := payload["account_id"]; got != "acc1,acc2" {
		t.Errorf("subscribe account_id = %v, want acc1,acc2", got)
	}
	if got := payload["sessionid"]; got != "sess-2" {
		t.Errorf("subscribe sessionid = %v, want sess-2", got)
	}

	assertEvents(t, rec.snapshot(), []string{"open", "message", "close"})
}

func TestAccountStreamer_WrongParams(t *testing.T) {
	rec := &recorder{}
	s := NewAccountStreamer(testConfig(t), rec.callbacks(), WithStreamURL("ws://127.0.0.1:1"))

	err := s.Run(context.Background(), "sess-1", mustSymbols(t, "SPY"))
	if !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("err = %v, want ErrInvalidParams", err)
	}
	assertEvents(t, rec.snapshot(), []string{"error", "close"})
}
