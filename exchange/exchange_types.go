package exchange

import (
	"errors"
	"sync"

	"github.com/quantave/backsim/currency"
	"github.com/quantave/backsim/order"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	errInvalidFeeRate      = errors.New("fee rate cannot be negative")
	errInvalidSlippageRate = errors.New("slippage rate must be in [0, 1)")
	errNegativeBalance     = errors.New("initial balance cannot be negative")
	errNilSnapshot         = errors.New("received nil order book snapshot")
)

// amountPrecision bounds affordability-clamped fill amounts so a clamped
// debit can never exceed the available balance
const amountPrecision = 8

// Settings configures a simulated exchange
type Settings struct {
	InitialBalances map[currency.Code]decimal.Decimal
	MakerFee        decimal.Decimal
	TakerFee        decimal.Decimal
	Slippage        decimal.Decimal
	Logger          *zap.Logger
}

// Stats is a point-in-time summary of venue activity
type Stats struct {
	OrdersPlaced    int64           `json:"orders-placed"`
	OrdersRejected  int64           `json:"orders-rejected"`
	OrdersFilled    int64           `json:"orders-filled"`
	OrdersCancelled int64           `json:"orders-cancelled"`
	TotalFills      int64           `json:"total-fills"`
	TradedVolume    decimal.Decimal `json:"traded-volume"`
	FeesPaid        decimal.Decimal `json:"fees-paid"`
}

// Exchange is a deterministic matching venue. It accepts order intents,
// tracks balances per asset, matches against supplied order book snapshots
// and emits fills. All fees are charged in the pair's quote currency.
type Exchange struct {
	logger   *zap.Logger
	m        sync.Mutex
	makerFee decimal.Decimal
	takerFee decimal.Decimal
	slippage decimal.Decimal
	balances map[currency.Code]decimal.Decimal
	orders   map[string]*order.Order
	orderSeq []string
	fills    []order.Fill
	stats    Stats
}
