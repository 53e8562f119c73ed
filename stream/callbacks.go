package stream

import "log/slog"

// Callbacks is the event contract shared by every streaming transport.
// All handlers are optional; a missing handler logs at debug level instead.
//
// Within one run invocations are strictly ordered and never concurrent:
// OnOpen at most once, then OnMessage zero or more times, OnError as failures
// occur, and OnClose exactly once as the terminal event.
type Callbacks struct {
	// OnOpen fires once the connection is usable, before any message.
	OnOpen func()

	// OnMessage fires once per decoded unit of data: one line for the HTTP
	// transport, one frame for WebSocket.
	OnMessage func(data string)

	// OnClose fires exactly once as the last event of a run, on every exit
	// path.
	OnClose func()

	// OnError fires for per-item decode failures (HTTP transport) and once
	// for fatal setup or receive failures.
	OnError func(err error)
}

// notifier invokes a callback when present, else logs a default message.
type notifier struct {
	cb     Callbacks
	logger *slog.Logger
}

func newNotifier(cb Callbacks, logger *slog.Logger) notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return notifier{cb: cb, logger: logger}
}

func (n notifier) open() {
	if n.cb.OnOpen != nil {
		n.cb.OnOpen()
		return
	}
	n.logger.Debug("stream opened")
}

func (n notifier) message(data string) {
	if n.cb.OnMessage != nil {
		n.cb.OnMessage(data)
		return
	}
	n.logger.Debug("stream message", "data", data)
}

func (n notifier) close() {
	if n.cb.OnClose != nil {
		n.cb.OnClose()
		return
	}
	n.logger.Debug("stream closed")
}

func (n notifier) error(err error) {
	if n.cb.OnError != nil {
		n.cb.OnError(err)
		return
	}
	n.logger.Debug("stream error", "error", err)
}
