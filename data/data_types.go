package data

import (
	"errors"
	"sync"
	"time"

	"github.com/quantave/backsim/currency"
	"github.com/quantave/backsim/order"
	"github.com/quantave/backsim/orderbook"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrNoTicksSupplied is returned when a load is attempted with no data
	ErrNoTicksSupplied = errors.New("no ticks supplied")

	errMismatchedPair = errors.New("tick pair does not match load pair")
	errPairlessTick   = errors.New("tick carries no pair")
)

// Tick is one timestamped historical market snapshot for a pair
type Tick struct {
	Timestamp   time.Time          `json:"timestamp"`
	Pair        currency.Pair      `json:"pair"`
	OrderBook   orderbook.Snapshot `json:"orderBook"`
	Trades      []PublicTrade      `json:"trades,omitempty"`
	FundingRate decimal.Decimal    `json:"fundingRate"`
}

// PublicTrade is one historical venue trade carried on a tick
type PublicTrade struct {
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Side      order.Side      `json:"side"`
	Timestamp time.Time       `json:"timestamp"`
}

// Provider is an in-memory, per-pair, timestamp-sorted store of historical
// ticks with as-of lookup, range queries and independent sequential cursors
type Provider struct {
	logger *zap.Logger
	m      sync.RWMutex
	data   map[currency.Pair]*series
}

// series holds one pair's sorted ticks plus its cursor offset
type series struct {
	ticks  []Tick
	offset int
}
