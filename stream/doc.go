// Package stream implements the Tradier streaming subsystem: session-backed
// market and account event streams over HTTP chunked responses and
// WebSockets.
//
// A Streamer runs one transport and reports through an optional callback set
// (open/message/close/error). A Controller owns the session key, launches the
// streamer in a background goroutine, and coordinates graceful shutdown:
//
//	streamer := stream.NewHTTPStreamer(cfg, stream.Callbacks{
//		OnMessage: func(data string) { fmt.Println(data) },
//	})
//	ctrl := stream.NewController(client, streamer, nil)
//	params, _ := stream.NewSymbolsParams("SPY", "AAPL")
//	ctrl.Start(ctx, params)
//	defer ctrl.Close()
//
// Cancellation is cooperative: the HTTP transport observes it once per
// received line, the WebSocket transports once per receive-wait interval.
package stream
