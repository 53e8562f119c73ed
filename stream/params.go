package stream

import (
	"fmt"
	"strings"
)

// Params is a validated, immutable set of stream parameters that converts to
// a flat string-keyed map for the transport (query string or subscribe
// payload). Empty optional fields are omitted from the map.
type Params interface {
	Values() map[string]string
}

// SymbolsParams selects the symbols a market stream subscribes to.
// The symbol list must be non-empty.
type SymbolsParams struct {
	symbols []string
}

// NewSymbolsParams creates SymbolsParams from one or more symbols.
// Blank symbols are rejected.
func NewSymbolsParams(symbols ...string) (*SymbolsParams, error) {
	cleaned := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, fmt.Errorf("symbols must not be blank")
		}
		cleaned = append(cleaned, s)
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("at least one symbol is required")
	}
	return &SymbolsParams{symbols: cleaned}, nil
}

// ParseSymbols creates SymbolsParams from a comma-separated list.
func ParseSymbols(list string) (*SymbolsParams, error) {
	if strings.TrimSpace(list) == "" {
		return nil, fmt.Errorf("at least one symbol is required")
	}
	return NewSymbolsParams(strings.Split(list, ",")...)
}

// Symbols returns a copy of the symbol list.
func (p *SymbolsParams) Symbols() []string {
	out := make([]string, len(p.symbols))
	copy(out, p.symbols)
	return out
}

// Values returns the transport parameter map.
func (p *SymbolsParams) Values() map[string]string {
	return map[string]string{"symbols": strings.Join(p.symbols, ",")}
}

// ExcludedAccountParams filters accounts out of an account event stream.
// An empty filter is valid and streams events for all accounts.
type ExcludedAccountParams struct {
	accountIDs []string
}

// NewExcludedAccountParams creates a filter from zero or more account ids.
func NewExcludedAccountParams(accountIDs ...string) *ExcludedAccountParams {
	cleaned := make([]string, 0, len(accountIDs))
	for _, id := range accountIDs {
		if id = strings.TrimSpace(id); id != "" {
			cleaned = append(cleaned, id)
		}
	}
	return &ExcludedAccountParams{accountIDs: cleaned}
}

// AccountIDs returns a copy of the excluded account ids.
func (p *ExcludedAccountParams) AccountIDs() []string {
	out := make([]string, len(p.accountIDs))
	copy(out, p.accountIDs)
	return out
}

// Values returns the transport parameter map; empty when no accounts are
// excluded.
func (p *ExcludedAccountParams) Values() map[string]string {
	if len(p.accountIDs) == 0 {
		return map[string]string{}
	}
	return map[string]string{"account_id": strings.Join(p.accountIDs, ",")}
}

// WatchlistParams identifies a watchlist and optionally one of its symbols.
type WatchlistParams struct {
	watchlistID string
	symbol      string
}

// NewWatchlistParams creates WatchlistParams. The watchlist id is required;
// symbol may be empty.
func NewWatchlistParams(watchlistID, symbol string) (*WatchlistParams, error) {
	if strings.TrimSpace(watchlistID) == "" {
		return nil, fmt.Errorf("watchlist id is required")
	}
	return &WatchlistParams{watchlistID: watchlistID, symbol: symbol}, nil
}

// Values returns the transport parameter map.
func (p *WatchlistParams) Values() map[string]string {
	v := map[string]string{"watchlist_id": p.watchlistID}
	if p.symbol != "" {
		v["symbol"] = p.symbol
	}
	return v
}
