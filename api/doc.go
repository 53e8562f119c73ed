// Package api issues authenticated requests to the Tradier REST API.
//
// Hosts:
//   - Production: https://api.tradier.com
//   - Sandbox: https://sandbox.tradier.com
//   - HTTP streaming: https://stream.tradier.com
//   - WebSocket: wss://ws.tradier.com
//
// The package covers the plumbing the streaming subsystem needs: the
// endpoint/path table, request issuing with retries, the HTTP/API error
// taxonomy, rate-limit throttling, and streaming session creation.
package api
