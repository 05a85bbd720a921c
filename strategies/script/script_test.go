package script

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantave/backsim/currency"
	"github.com/quantave/backsim/data"
	"github.com/quantave/backsim/exchange"
	"github.com/quantave/backsim/order"
	"github.com/quantave/backsim/orderbook"
	"github.com/quantave/backsim/strategies/base"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testPair  = currency.NewPairWithDelimiter("BTC", "USDT", "-")
	testStart = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
)

func testTicks(ts time.Time) map[currency.Pair]*data.Tick {
	return map[currency.Pair]*data.Tick{
		testPair: {
			Timestamp: ts,
			Pair:      testPair,
			OrderBook: orderbook.Snapshot{
				Bids: []orderbook.Level{{Price: decimal.NewFromInt(100), Amount: decimal.NewFromInt(10)}},
				Asks: []orderbook.Level{{Price: decimal.NewFromInt(101), Amount: decimal.NewFromInt(10)}},
			},
		},
	}
}

func testVenue(t *testing.T, balances map[currency.Code]decimal.Decimal) *exchange.Exchange {
	t.Helper()
	venue, err := exchange.New(exchange.Settings{InitialBalances: balances})
	require.NoError(t, err)
	return venue
}

func TestName(t *testing.T) {
	t.Parallel()
	s := Strategy{}
	if n := s.Name(); n != Name {
		t.Errorf("expected %v", Name)
	}
	if s.Description() == "" {
		t.Error("expected a description")
	}
}

func TestInitialise(t *testing.T) {
	t.Parallel()
	s := Strategy{}
	err := s.Initialise()
	if !errors.Is(err, errNoScriptSource) {
		t.Errorf("received: '%v' but expected: '%v'", err, errNoScriptSource)
	}

	require.NoError(t, s.SetCustomSettings(map[string]any{scriptKey: `if {`}))
	assert.Error(t, s.Initialise())

	require.NoError(t, s.SetCustomSettings(map[string]any{scriptKey: `signal = "buy"`}))
	assert.NoError(t, s.Initialise())
}

func TestSetCustomSettings(t *testing.T) {
	t.Parallel()
	s := Strategy{}
	err := s.SetCustomSettings(map[string]any{scriptKey: ""})
	assert.ErrorIs(t, err, base.ErrInvalidCustomSettings)
	err = s.SetCustomSettings(map[string]any{scriptPathKey: filepath.Join(t.TempDir(), "missing.tengo")})
	assert.ErrorIs(t, err, base.ErrInvalidCustomSettings)
	err = s.SetCustomSettings(map[string]any{"unknown": 1.0})
	assert.ErrorIs(t, err, base.ErrInvalidCustomSettings)

	path := filepath.Join(t.TempDir(), "strategy.tengo")
	require.NoError(t, os.WriteFile(path, []byte(`signal = "buy"`), 0o644))
	require.NoError(t, s.SetCustomSettings(map[string]any{scriptPathKey: path}))
	assert.NotEmpty(t, s.source)
}

func TestOnTickBuySignal(t *testing.T) {
	t.Parallel()
	s := Strategy{}
	s.SetDefaults()
	require.NoError(t, s.SetCustomSettings(map[string]any{scriptKey: `
if best_ask > 0 && quote_balance > 0 {
	signal = "buy"
	amount = 2.0
}
`}))
	require.NoError(t, s.Initialise())

	err := s.OnTick(testStart, testTicks(testStart))
	assert.ErrorIs(t, err, base.ErrExchangeUnset)

	venue := testVenue(t, map[currency.Code]decimal.Decimal{
		currency.USDT: decimal.NewFromInt(10000),
	})
	s.SetExchange(venue)
	require.NoError(t, s.OnTick(testStart, testTicks(testStart)))

	orders := venue.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, order.Buy, orders[0].Side)
	assert.Equal(t, order.Market, orders[0].Type)
	if !orders[0].Amount.Equal(decimal.NewFromInt(2)) {
		t.Errorf("received: '%v' but expected: '%v'", orders[0].Amount, 2)
	}
}

func TestOnTickSellSignal(t *testing.T) {
	t.Parallel()
	s := Strategy{}
	require.NoError(t, s.SetCustomSettings(map[string]any{scriptKey: `
if base_balance > 0 {
	signal = "sell"
	amount = base_balance
}
`}))
	require.NoError(t, s.Initialise())

	venue := testVenue(t, map[currency.Code]decimal.Decimal{
		currency.BTC: decimal.NewFromInt(3),
	})
	s.SetExchange(venue)
	require.NoError(t, s.OnTick(testStart, testTicks(testStart)))

	orders := venue.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, order.Sell, orders[0].Side)
	if !orders[0].Amount.Equal(decimal.NewFromInt(3)) {
		t.Errorf("received: '%v' but expected: '%v'", orders[0].Amount, 3)
	}
}

func TestOnTickHoldLeavesNoOrders(t *testing.T) {
	t.Parallel()
	s := Strategy{}
	require.NoError(t, s.SetCustomSettings(map[string]any{scriptKey: `signal = ""`}))
	require.NoError(t, s.Initialise())
	venue := testVenue(t, map[currency.Code]decimal.Decimal{
		currency.USDT: decimal.NewFromInt(10000),
	})
	s.SetExchange(venue)
	require.NoError(t, s.OnTick(testStart, testTicks(testStart)))
	assert.Empty(t, venue.Orders())
}

func TestOnTickInvalidSignal(t *testing.T) {
	t.Parallel()
	s := Strategy{}
	require.NoError(t, s.SetCustomSettings(map[string]any{scriptKey: `
signal = "maybe"
amount = 1.0
`}))
	require.NoError(t, s.Initialise())
	venue := testVenue(t, map[currency.Code]decimal.Decimal{
		currency.USDT: decimal.NewFromInt(10000),
	})
	s.SetExchange(venue)
	err := s.OnTick(testStart, testTicks(testStart))
	if !errors.Is(err, order.ErrSideIsInvalid) {
		t.Errorf("received: '%v' but expected: '%v'", err, order.ErrSideIsInvalid)
	}
}
