package stream

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/quantfold/tradier-data/api"
)

// Controller owns the streaming session lifecycle: it creates the session
// key, launches the streamer in a background goroutine, and coordinates
// shutdown. Start and Close may be called repeatedly in sequence, but not
// concurrently with each other.
type Controller struct {
	client   *api.Client
	streamer Streamer
	logger   *slog.Logger

	mu         sync.Mutex
	sessionKey string
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewController creates a Controller for the given client and streamer.
func NewController(client *api.Client, streamer Streamer, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		client:   client,
		streamer: streamer,
		logger:   logger,
	}
}

// Start creates a session if none is held, then launches the streamer in the
// background and returns immediately. ctx applies to the session-creation
// request only; the run itself is cancelled exclusively through Close.
func (c *Controller) Start(ctx context.Context, params Params) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		return ErrAlreadyStreaming
	}

	if c.sessionKey == "" {
		key, err := c.client.CreateSession(ctx, c.streamer.SessionEndpoint())
		if err != nil {
			return err
		}
		c.sessionKey = key
		c.logger.Debug("session key acquired")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	runID := uuid.NewString()

	c.cancel = cancel
	c.done = done

	go func() {
		defer close(done)
		if err := c.streamer.Run(runCtx, c.sessionKey, params); err != nil {
			c.logger.Debug("stream run ended", "run_id", runID, "error", err)
		}
	}()

	c.logger.Debug("stream started", "run_id", runID)
	return nil
}

// Close signals cancellation and blocks until the background run has fully
// unwound. After Close returns no further callbacks occur. Calling Close
// with no active run is a no-op.
func (c *Controller) Close() {
	c.mu.Lock()
	done := c.done
	cancel := c.cancel
	c.done = nil
	c.cancel = nil
	c.mu.Unlock()

	if done == nil {
		return
	}

	cancel()
	<-done
	c.logger.Debug("stream closed")
}

// Running reports whether a background run is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done != nil
}

// InvalidateSession drops the held session key so the next Start creates a
// fresh one. The key is otherwise preserved across Close and restart.
func (c *Controller) InvalidateSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionKey = ""
}
