package writer

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Event is one decoded line from a quote stream. Fields beyond Type are
// populated per event type; only quote fields are persisted.
type Event struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`

	// Quote fields
	Bid     float64 `json:"bid"`
	BidSize int     `json:"bidsz"`
	BidExch string  `json:"bidexch"`
	BidDate string  `json:"biddate"` // ms since epoch, as a string
	Ask     float64 `json:"ask"`
	AskSize int     `json:"asksz"`
	AskExch string  `json:"askexch"`
	AskDate string  `json:"askdate"`
}

// ParseEvent decodes one stream line.
func ParseEvent(line string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		return Event{}, fmt.Errorf("parse event: %w", err)
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("parse event: missing type")
	}
	return ev, nil
}

// quoteRow is the database representation of a quote event.
type quoteRow struct {
	Symbol     string
	Bid        float64
	BidSize    int
	BidExch    string
	BidTS      int64 // ms since epoch
	Ask        float64
	AskSize    int
	AskExch    string
	AskTS      int64 // ms since epoch
	ReceivedAt int64 // µs since epoch
}

// toQuoteRow converts a quote event to its row form.
func toQuoteRow(ev Event, receivedAt int64) quoteRow {
	return quoteRow{
		Symbol:     ev.Symbol,
		Bid:        ev.Bid,
		BidSize:    ev.BidSize,
		BidExch:    ev.BidExch,
		BidTS:      parseEpochMs(ev.BidDate),
		Ask:        ev.Ask,
		AskSize:    ev.AskSize,
		AskExch:    ev.AskExch,
		AskTS:      parseEpochMs(ev.AskDate),
		ReceivedAt: receivedAt,
	}
}

func parseEpochMs(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
