package engine

import (
	"encoding/json"
	"time"

	"github.com/quantave/backsim/currency"
	"github.com/quantave/backsim/exchange"
	"github.com/quantave/backsim/order"
	"github.com/quantave/backsim/statistics"
	"github.com/shopspring/decimal"
)

// Result is the immutable outcome of a completed run. Timestamps marshal
// as RFC 3339 and decimals as strings, so an encode/decode round trip
// reproduces the metrics, fill log and balance maps exactly
type Result struct {
	RunID           string                            `json:"run-id"`
	Nickname        string                            `json:"nickname"`
	Strategy        string                            `json:"strategy"`
	StartTime       time.Time                         `json:"start-time"`
	EndTime         time.Time                         `json:"end-time"`
	TickInterval    time.Duration                     `json:"tick-interval"`
	Quote           currency.Code                     `json:"quote-currency"`
	InitialBalances map[currency.Code]decimal.Decimal `json:"initial-balances"`
	FinalBalances   map[currency.Code]decimal.Decimal `json:"final-balances"`
	StartPrices     map[currency.Code]decimal.Decimal `json:"start-prices"`
	EndPrices       map[currency.Code]decimal.Decimal `json:"end-prices"`
	Metrics         *statistics.Metrics               `json:"metrics"`
	Fills           []order.Fill                      `json:"fills"`
	ExchangeStats   exchange.Stats                    `json:"exchange-stats"`
	ProcessedTicks  int64                             `json:"processed-ticks"`
	StoppedEarly    bool                              `json:"stopped-early,omitempty"`
	WallDuration    time.Duration                     `json:"wall-duration"`
}

// ToJSON renders the result for file output or a reporting layer
func (r *Result) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", " ")
}

// ResultFromJSON decodes a result previously rendered by ToJSON
func ResultFromJSON(data []byte) (*Result, error) {
	r := &Result{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, err
	}
	return r, nil
}
