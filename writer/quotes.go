package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfold/tradier-data/config"
)

// Metrics counts writer activity.
type Metrics struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
	Dropped   int64
	Skipped   int64
}

// QuoteWriter consumes raw stream lines and batch-writes quote events to the
// quotes table.
type QuoteWriter struct {
	cfg    config.WriterConfig
	logger *slog.Logger

	input chan string
	db    *pgxpool.Pool

	batch       []quoteRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// NewQuoteWriter creates a QuoteWriter.
func NewQuoteWriter(cfg config.WriterConfig, db *pgxpool.Pool, logger *slog.Logger) *QuoteWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuoteWriter{
		cfg:    cfg,
		db:     db,
		logger: logger,
		input:  make(chan string, cfg.BufferSize),
		batch:  make([]quoteRow, 0, cfg.BatchSize),
	}
}

// HandleLine enqueues one raw stream line. Safe to use as an OnMessage
// callback; enqueueing never blocks the stream (lines are dropped when the
// buffer is full).
func (w *QuoteWriter) HandleLine(line string) {
	select {
	case w.input <- line:
	default:
		w.batchMu.Lock()
		w.metrics.Dropped++
		w.batchMu.Unlock()
		w.logger.Warn("writer buffer full, dropping line")
	}
}

// Start begins consuming lines and writing to the database.
func (w *QuoteWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("quote writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer and flushes the remaining batch.
func (w *QuoteWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping quote writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("quote writer stopped")
	case <-ctx.Done():
		w.logger.Warn("quote writer stop timed out")
	}

	// Final flush
	w.flush(context.Background())

	return nil
}

// Stats returns current metrics.
func (w *QuoteWriter) Stats() Metrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads lines from the input buffer and accumulates batches.
func (w *QuoteWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case line := <-w.input:
			w.handleLine(line)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *QuoteWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// handleLine parses one line and adds quote events to the batch.
func (w *QuoteWriter) handleLine(line string) {
	ev, err := ParseEvent(line)
	if err != nil {
		w.logger.Debug("unparseable stream line", "error", err)
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	if ev.Type != "quote" {
		w.batchMu.Lock()
		w.metrics.Skipped++
		w.batchMu.Unlock()
		w.logger.Debug("skipping event", "type", ev.Type, "symbol", ev.Symbol)
		return
	}

	row := toQuoteRow(ev, time.Now().UnixMicro())

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(w.ctx)
	}
}

// flush writes the current batch to the database.
func (w *QuoteWriter) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]quoteRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed quotes",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *QuoteWriter) batchInsert(ctx context.Context, rows []quoteRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO quotes (symbol, bid, bid_size, bid_exch, bid_ts, ask, ask_size, ask_exch, ask_ts, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (symbol, bid_ts, ask_ts) DO NOTHING
		`, r.Symbol, r.Bid, r.BidSize, r.BidExch, r.BidTS, r.Ask, r.AskSize, r.AskExch, r.AskTS, r.ReceivedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
