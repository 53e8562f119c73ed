// quotestream connects to the Tradier streaming API and prints market or
// account events to the console, optionally persisting quotes to Postgres.
// Usage: go run ./cmd/quotestream --config configs/quotestream.yaml --symbols SPY,AAPL
//
// The config file supports ${VAR} expansion, so the token is typically
// supplied via an environment variable (e.g. TRADIER_TOKEN).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantfold/tradier-data/api"
	"github.com/quantfold/tradier-data/config"
	"github.com/quantfold/tradier-data/database"
	"github.com/quantfold/tradier-data/internal/version"
	"github.com/quantfold/tradier-data/stream"
	"github.com/quantfold/tradier-data/writer"
)

func main() {
	configPath := flag.String("config", "configs/quotestream.yaml", "path to config file")
	transport := flag.String("transport", "http", "stream transport: http, ws, or account")
	symbols := flag.String("symbols", "SPY", "comma-separated symbols (http and ws transports)")
	excluded := flag.String("exclude-accounts", "", "comma-separated account ids to exclude (account transport)")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	fileCfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	env, _ := config.ParseEnvironment(fileCfg.Client.Environment)
	cfg, err := config.New(fileCfg.Client.Token, config.WithEnvironment(env))
	if err != nil {
		logger.Error("invalid client config", "error", err)
		os.Exit(1)
	}

	client := api.NewClient(cfg,
		api.WithTimeout(fileCfg.Client.Timeout),
		api.WithRetries(fileCfg.Client.MaxRetries, time.Second),
		api.WithLogger(logger),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	// Optional quote persistence
	var quoteWriter *writer.QuoteWriter
	g, gctx := errgroup.WithContext(ctx)
	if fileCfg.Database.Host != "" {
		pool, err := database.Connect(ctx, fileCfg.Database)
		if err != nil {
			logger.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		quoteWriter = writer.NewQuoteWriter(fileCfg.Writer, pool, logger)
		if err := quoteWriter.Start(gctx); err != nil {
			logger.Error("failed to start quote writer", "error", err)
			os.Exit(1)
		}
	}

	callbacks := stream.Callbacks{
		OnOpen: func() {
			logger.Info("stream opened", "transport", *transport)
		},
		OnMessage: func(data string) {
			fmt.Println(data)
			if quoteWriter != nil {
				quoteWriter.HandleLine(data)
			}
		},
		OnClose: func() {
			logger.Info("stream closed")
		},
		OnError: func(err error) {
			logger.Error("stream error", "error", err)
		},
	}

	streamOpts := []stream.Option{
		stream.WithLogger(logger),
		stream.WithRecvWait(fileCfg.Stream.RecvWait),
	}

	var streamer stream.Streamer
	var params stream.Params
	switch *transport {
	case "http":
		streamer = stream.NewHTTPStreamer(cfg, callbacks, streamOpts...)
		params, err = stream.ParseSymbols(*symbols)
	case "ws":
		streamer = stream.NewMarketsStreamer(cfg, callbacks, streamOpts...)
		params, err = stream.ParseSymbols(*symbols)
	case "account":
		streamer = stream.NewAccountStreamer(cfg, callbacks, streamOpts...)
		if *excluded != "" {
			params = stream.NewExcludedAccountParams(splitList(*excluded)...)
		} else {
			params = stream.NewExcludedAccountParams()
		}
	default:
		logger.Error("unknown transport", "transport", *transport)
		os.Exit(1)
	}
	if err != nil {
		logger.Error("invalid parameters", "error", err)
		os.Exit(1)
	}

	ctrl := stream.NewController(client, streamer, logger)
	if err := ctrl.Start(ctx, params); err != nil {
		logger.Error("failed to start stream", "error", err)
		os.Exit(1)
	}

	logger.Info("streaming started - press Ctrl+C to stop")

	// Periodic writer stats
	if quoteWriter != nil {
		g.Go(func() error {
			ticker := time.NewTicker(10 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					stats := quoteWriter.Stats()
					logger.Info("writer stats",
						"inserts", stats.Inserts,
						"conflicts", stats.Conflicts,
						"flushes", stats.Flushes,
						"errors", stats.Errors,
						"dropped", stats.Dropped,
					)
				}
			}
		})
	}

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")
	ctrl.Close()

	g.Wait()

	if quoteWriter != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		quoteWriter.Stop(shutdownCtx)
	}

	logger.Info("shutdown complete")
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
