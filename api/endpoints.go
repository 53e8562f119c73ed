package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/quantfold/tradier-data/config"
)

// Host selects which base URL an endpoint is served from.
type Host int

const (
	// HostAPI is the environment-dependent REST host.
	HostAPI Host = iota

	// HostStream is the HTTP chunked-streaming host.
	HostStream

	// HostWebSocket is the WebSocket host.
	HostWebSocket
)

// Endpoint is one logical API operation: an HTTP method plus a path template.
// Path templates may contain {name} placeholders filled from path params.
type Endpoint struct {
	Method string
	Path   string
	Host   Host
}

// Endpoints used by the streaming subsystem.
var (
	// CreateMarketSession obtains a session key for market-data streams.
	CreateMarketSession = Endpoint{http.MethodPost, "/v1/markets/events/session", HostAPI}

	// CreateAccountSession obtains a session key for account-event streams.
	CreateAccountSession = Endpoint{http.MethodPost, "/v1/accounts/events/session", HostAPI}

	// GetStreamingQuotes is the HTTP chunked quote stream.
	GetStreamingQuotes = Endpoint{http.MethodPost, "/v1/markets/events", HostStream}

	// GetStreamingMarketEvents is the WebSocket market event stream.
	GetStreamingMarketEvents = Endpoint{http.MethodGet, "/v1/markets/events", HostWebSocket}

	// GetStreamingAccountEvents is the WebSocket account event stream.
	GetStreamingAccountEvents = Endpoint{http.MethodGet, "/v1/accounts/events", HostWebSocket}
)

// FormatPath fills {name} placeholders in the path template.
// Every placeholder must be resolved; unused params are an error as well.
func (e Endpoint) FormatPath(pathParams map[string]string) (string, error) {
	path := e.Path
	for name, value := range pathParams {
		placeholder := "{" + name + "}"
		if !strings.Contains(path, placeholder) {
			return "", fmt.Errorf("endpoint %s has no path parameter %q", e.Path, name)
		}
		path = strings.ReplaceAll(path, placeholder, value)
	}
	if i := strings.IndexByte(path, '{'); i >= 0 {
		return "", fmt.Errorf("endpoint %s: unresolved path parameter %s", e.Path, path[i:])
	}
	return path, nil
}

// URL resolves the endpoint against the host selected by cfg and fills in
// path parameters.
func (e Endpoint) URL(cfg *config.Config, pathParams map[string]string) (string, error) {
	path, err := e.FormatPath(pathParams)
	if err != nil {
		return "", err
	}

	switch e.Host {
	case HostStream:
		return cfg.StreamURL() + path, nil
	case HostWebSocket:
		return cfg.WebSocketURL() + path, nil
	default:
		return cfg.BaseURL() + path, nil
	}
}
