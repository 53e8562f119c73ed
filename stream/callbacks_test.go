package stream

import (
	"io"
	"log/slog"
	"sync"
	"testing"
)

// recorder captures callback invocations in order for assertions.
type recorder struct {
	mu     sync.Mutex
	events []string
	msgs   []string
	errs   []error
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnOpen: func() {
			r.record("open")
		},
		OnMessage: func(data string) {
			r.mu.Lock()
			r.events = append(r.events, "message")
			r.msgs = append(r.msgs, data)
			r.mu.Unlock()
		},
		OnClose: func() {
			r.record("close")
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.events = append(r.events, "error")
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) record(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.msgs))
	copy(out, r.msgs)
	return out
}

func (r *recorder) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]error, len(r.errs))
	copy(out, r.errs)
	return out
}

func assertEvents(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestNotifier_DefaultsNeverPanic(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	n := newNotifier(Callbacks{}, logger)

	n.open()
	n.message("data")
	n.error(io.EOF)
	n.close()
}

func TestNotifier_InvokesCallbacks(t *testing.T) {
	rec := &recorder{}
	n := newNotifier(rec.callbacks(), nil)

	n.open()
	n.message("hello")
	n.error(io.EOF)
	n.close()

	assertEvents(t, rec.snapshot(), []string{"open", "message", "error", "close"})

	if msgs := rec.messages(); len(msgs) != 1 || msgs[0] != "hello" {
		t.Errorf("messages = %v, want [hello]", msgs)
	}
	if errs := rec.errors(); len(errs) != 1 || errs[0] != io.EOF {
		t.Errorf("errors = %v, want [EOF]", errs)
	}
}
