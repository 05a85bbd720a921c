package orderbook

import (
	"errors"
	"time"

	"github.com/quantave/backsim/currency"
	"github.com/shopspring/decimal"
)

var (
	// ErrNoLiquidity is returned when an operation requires book depth and
	// the relevant side is empty
	ErrNoLiquidity = errors.New("no liquidity")

	errPriceNotSet     = errors.New("price cannot be zero")
	errAmountInvalid   = errors.New("amount cannot be less or equal to zero")
	errPriceOutOfOrder = errors.New("pricing out of order")
	errLevelMalformed  = errors.New("level must decode from a [price, size] pair")
)

// Level defines one price level of an order book side
type Level struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// Snapshot holds one point-in-time view of an order book. Bids are sorted
// best (highest) price first, asks best (lowest) price first.
type Snapshot struct {
	Bids        []Level       `json:"bids"`
	Asks        []Level       `json:"asks"`
	Pair        currency.Pair `json:"pair"`
	LastUpdated time.Time     `json:"lastUpdated"`
}
