package statistics

import (
	"errors"
	"time"

	"github.com/quantave/backsim/currency"
	"github.com/quantave/backsim/order"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// annualRiskFreeRate is the fixed risk-free rate applied to the Sharpe and
// Sortino calculations
const annualRiskFreeRate = 0.02

const hoursPerYear = 24 * 365

var (
	errNilInput        = errors.New("analysis input cannot be nil")
	errNoQuoteCurrency = errors.New("quote currency must be set")
	errInvalidPeriod   = errors.New("end time cannot precede start time")
)

// Input holds everything Analyze needs. The fill log is the sole source of
// trade derivation, balances and reference prices only value the portfolio.
type Input struct {
	Fills           []order.Fill
	InitialBalances map[currency.Code]decimal.Decimal
	FinalBalances   map[currency.Code]decimal.Decimal
	StartTime       time.Time
	EndTime         time.Time
	StartPrices     map[currency.Code]decimal.Decimal
	EndPrices       map[currency.Code]decimal.Decimal
	Quote           currency.Code
	Logger          *zap.Logger
}

// Trade is a realized round trip, a SELL matched against the running
// weighted-average position built by prior BUY fills. Trades are derived
// from the fill log alone and are reproducible from it.
type Trade struct {
	Pair       currency.Pair   `json:"pair"`
	EntryPrice decimal.Decimal `json:"entry-price"`
	ExitPrice  decimal.Decimal `json:"exit-price"`
	Amount     decimal.Decimal `json:"amount"`
	PnL        decimal.Decimal `json:"pnl"`
	Fees       decimal.Decimal `json:"fees"`
	Volume     decimal.Decimal `json:"volume"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NetPnL returns the trade profit after its allocated fees
func (t *Trade) NetPnL() decimal.Decimal {
	return t.PnL.Sub(t.Fees)
}

// Drawdown describes the largest peak-to-trough decline of the trade
// equity curve
type Drawdown struct {
	Peak    decimal.Decimal `json:"peak"`
	Trough  decimal.Decimal `json:"trough"`
	Percent decimal.Decimal `json:"percent"`
}

// Metrics is the full performance summary of a run
type Metrics struct {
	TotalTrades      int64           `json:"total-trades"`
	WinningTrades    int64           `json:"winning-trades"`
	LosingTrades     int64           `json:"losing-trades"`
	BreakEvenTrades  int64           `json:"break-even-trades"`
	WinRate          decimal.Decimal `json:"win-rate"`
	ProfitFactor     Ratio           `json:"profit-factor"`
	AverageWin       decimal.Decimal `json:"average-win"`
	AverageLoss      decimal.Decimal `json:"average-loss"`
	LargestWin       decimal.Decimal `json:"largest-win"`
	LargestLoss      decimal.Decimal `json:"largest-loss"`
	TotalPnL         decimal.Decimal `json:"total-pnl"`
	TotalFees        decimal.Decimal `json:"total-fees"`
	NetPnL           decimal.Decimal `json:"net-pnl"`
	InitialValue     decimal.Decimal `json:"initial-value"`
	FinalValue       decimal.Decimal `json:"final-value"`
	ReturnPercent    decimal.Decimal `json:"return-percent"`
	AnnualizedReturn Ratio           `json:"annualized-return"`
	MaxDrawdown      Drawdown        `json:"max-drawdown"`
	SharpeRatio      Ratio           `json:"sharpe-ratio"`
	SortinoRatio     Ratio           `json:"sortino-ratio"`
	BuyAndHoldReturn decimal.Decimal `json:"buy-and-hold-return"`
	ExcessReturn     decimal.Decimal `json:"excess-return"`
	Trades           []Trade         `json:"trades,omitempty"`
}

// position is the running per-pair accumulation of BUY fills awaiting a
// matching SELL
type position struct {
	amount   decimal.Decimal
	avgPrice decimal.Decimal
	fees     decimal.Decimal
}
