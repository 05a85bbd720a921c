package engine

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quantave/backsim/clock"
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
	testEnd   = testStart.Add(10 * time.Minute)
)

type testStrategy struct {
	base.Strategy
	initialised atomic.Int64
	finalised   atomic.Int64
	tickCount   atomic.Int64
	sizes       []int
	onTick      func(ts time.Time, ticks map[currency.Pair]*data.Tick) error
}

func (s *testStrategy) Name() string        { return "instrumented" }
func (s *testStrategy) Description() string { return "records engine callbacks" }

func (s *testStrategy) Initialise() error {
	s.initialised.Add(1)
	return nil
}

func (s *testStrategy) Finalise() error {
	s.finalised.Add(1)
	return nil
}

func (s *testStrategy) OnTick(ts time.Time, ticks map[currency.Pair]*data.Tick) error {
	s.tickCount.Add(1)
	s.sizes = append(s.sizes, len(ticks))
	if s.onTick != nil {
		return s.onTick(ts, ticks)
	}
	return nil
}

func tickAt(pair currency.Pair, ts time.Time, bid, ask float64) data.Tick {
	return data.Tick{
		Timestamp: ts,
		Pair:      pair,
		OrderBook: orderbook.Snapshot{
			Pair: pair,
			Bids: []orderbook.Level{{
				Price:  decimal.NewFromFloat(bid),
				Amount: decimal.NewFromInt(100),
			}},
			Asks: []orderbook.Level{{
				Price:  decimal.NewFromFloat(ask),
				Amount: decimal.NewFromInt(100),
			}},
			LastUpdated: ts,
		},
	}
}

func loadMinuteTicks(t *testing.T, p *data.Provider, pair currency.Pair, from time.Time, n int, bid, ask float64) {
	t.Helper()
	ticks := make([]data.Tick, 0, n)
	for i := 0; i < n; i++ {
		ticks = append(ticks, tickAt(pair, from.Add(time.Duration(i)*time.Minute), bid, ask))
	}
	require.NoError(t, p.Load(pair, ticks))
}

func newRunExchange(t *testing.T) *exchange.Exchange {
	t.Helper()
	e, err := exchange.New(exchange.Settings{
		InitialBalances: map[currency.Code]decimal.Decimal{
			currency.USDT: decimal.NewFromInt(10000),
		},
	})
	require.NoError(t, err)
	return e
}

func newTestEngine(t *testing.T, provider *data.Provider) *BackTest {
	t.Helper()
	b, err := New(Settings{
		Clock:        clock.NewSimulated(testStart, nil),
		Provider:     provider,
		Exchange:     newRunExchange(t),
		Start:        testStart,
		End:          testEnd,
		TickInterval: time.Minute,
		Quote:        currency.USDT,
	})
	require.NoError(t, err)
	return b
}

func TestNewValidation(t *testing.T) {
	t.Parallel()
	valid := func(t *testing.T) Settings {
		return Settings{
			Clock:        clock.NewSimulated(testStart, nil),
			Provider:     data.NewProvider(nil),
			Exchange:     newRunExchange(t),
			Start:        testStart,
			End:          testEnd,
			TickInterval: time.Minute,
			Quote:        currency.USDT,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"nil clock", func(s *Settings) { s.Clock = nil }},
		{"nil provider", func(s *Settings) { s.Provider = nil }},
		{"nil exchange", func(s *Settings) { s.Exchange = nil }},
		{"zero start", func(s *Settings) { s.Start = time.Time{} }},
		{"end before start", func(s *Settings) { s.End = s.Start.Add(-time.Minute) }},
		{"zero interval", func(s *Settings) { s.TickInterval = 0 }},
		{"empty quote", func(s *Settings) { s.Quote = currency.EMPTYCODE }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := valid(t)
			tt.mutate(&s)
			if _, err := New(s); !errors.Is(err, ErrConfiguration) {
				t.Errorf("received: '%v' but expected: '%v'", err, ErrConfiguration)
			}
		})
	}

	b, err := New(valid(t))
	require.NoError(t, err)
	assert.NotEmpty(t, b.RunID())
	assert.Equal(t, Idle, b.Status())
	if _, err = b.Result(); !errors.Is(err, errResultNotAvailable) {
		t.Errorf("received: '%v' but expected: '%v'", err, errResultNotAvailable)
	}
}

func TestRunRequiresStrategyAndData(t *testing.T) {
	t.Parallel()
	provider := data.NewProvider(nil)
	loadMinuteTicks(t, provider, testPair, testStart, 10, 100, 101)

	b := newTestEngine(t, provider)
	if _, err := b.Run(); !errors.Is(err, ErrConfiguration) || !errors.Is(err, errNoStrategy) {
		t.Errorf("received: '%v' but expected: '%v'", err, errNoStrategy)
	}
	assert.Equal(t, Idle, b.Status())

	empty := newTestEngine(t, data.NewProvider(nil))
	require.NoError(t, empty.SetStrategy(&testStrategy{}))
	if _, err := empty.Run(); !errors.Is(err, ErrConfiguration) || !errors.Is(err, errNoData) {
		t.Errorf("received: '%v' but expected: '%v'", err, errNoData)
	}
	assert.Equal(t, Idle, empty.Status())
}

func TestRunCompletes(t *testing.T) {
	t.Parallel()
	provider := data.NewProvider(nil)
	loadMinuteTicks(t, provider, testPair, testStart, 10, 100, 101)
	b := newTestEngine(t, provider)

	strat := &testStrategy{}
	strat.onTick = func(ts time.Time, ticks map[currency.Pair]*data.Tick) error {
		if strat.tickCount.Load() != 1 {
			return nil
		}
		_, err := strat.Exchange().PlaceOrder(&order.Submit{
			Pair:   testPair,
			Side:   order.Buy,
			Type:   order.Market,
			Amount: decimal.NewFromInt(1),
			Date:   ts,
		})
		return err
	}
	require.NoError(t, b.SetStrategy(strat))

	result, err := b.Run()
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, Completed, b.Status())
	assert.Equal(t, int64(1), strat.initialised.Load())
	assert.Equal(t, int64(1), strat.finalised.Load())
	assert.Equal(t, int64(10), strat.tickCount.Load())
	assert.Equal(t, int64(10), result.ProcessedTicks)
	assert.False(t, result.StoppedEarly)
	assert.True(t, result.EndTime.Equal(testEnd))
	require.NotNil(t, result.Metrics)
	require.Len(t, result.Fills, 1)

	if !result.Fills[0].Price.Equal(decimal.NewFromInt(101)) {
		t.Errorf("received: '%v' but expected: '%v'", result.Fills[0].Price, 101)
	}
	if !result.InitialBalances[currency.USDT].Equal(decimal.NewFromInt(10000)) {
		t.Errorf("received: '%v' but expected: '%v'", result.InitialBalances[currency.USDT], 10000)
	}
	if !result.FinalBalances[currency.USDT].Equal(decimal.NewFromInt(9899)) {
		t.Errorf("received: '%v' but expected: '%v'", result.FinalBalances[currency.USDT], 9899)
	}
	if !result.FinalBalances[currency.BTC].Equal(decimal.NewFromInt(1)) {
		t.Errorf("received: '%v' but expected: '%v'", result.FinalBalances[currency.BTC], 1)
	}
	if !result.StartPrices[currency.BTC].Equal(decimal.NewFromFloat(100.5)) {
		t.Errorf("received: '%v' but expected: '%v'", result.StartPrices[currency.BTC], 100.5)
	}

	stored, err := b.Result()
	require.NoError(t, err)
	assert.Equal(t, result, stored)

	if _, err = b.Run(); !errors.Is(err, errAlreadyRan) {
		t.Errorf("received: '%v' but expected: '%v'", err, errAlreadyRan)
	}
}

func TestPauseResume(t *testing.T) {
	t.Parallel()
	provider := data.NewProvider(nil)
	loadMinuteTicks(t, provider, testPair, testStart, 10, 100, 101)
	b := newTestEngine(t, provider)

	if err := b.Pause(); !errors.Is(err, errNotRunning) {
		t.Errorf("received: '%v' but expected: '%v'", err, errNotRunning)
	}
	if err := b.Resume(); !errors.Is(err, errNotPaused) {
		t.Errorf("received: '%v' but expected: '%v'", err, errNotPaused)
	}

	strat := &testStrategy{}
	strat.onTick = func(time.Time, map[currency.Pair]*data.Tick) error {
		if strat.tickCount.Load() == 3 {
			return b.Pause()
		}
		return nil
	}
	require.NoError(t, b.SetStrategy(strat))

	done := make(chan error, 1)
	go func() {
		_, err := b.Run()
		done <- err
	}()

	require.Eventually(t, func() bool {
		return b.Status() == Paused
	}, time.Second, 5*time.Millisecond)

	paused := strat.tickCount.Load()
	time.Sleep(5 * pausePollInterval)
	assert.Equal(t, paused, strat.tickCount.Load())

	require.NoError(t, b.Resume())
	require.NoError(t, <-done)
	assert.Equal(t, Completed, b.Status())
	assert.Equal(t, int64(10), strat.tickCount.Load())
}

func TestStopEndsRunEarly(t *testing.T) {
	t.Parallel()
	provider := data.NewProvider(nil)
	loadMinuteTicks(t, provider, testPair, testStart, 10, 100, 101)
	b := newTestEngine(t, provider)

	strat := &testStrategy{}
	strat.onTick = func(time.Time, map[currency.Pair]*data.Tick) error {
		if strat.tickCount.Load() == 3 {
			b.Stop()
		}
		return nil
	}
	require.NoError(t, b.SetStrategy(strat))

	result, err := b.Run()
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, Completed, b.Status())
	assert.Equal(t, int64(3), result.ProcessedTicks)
	assert.Equal(t, int64(3), strat.tickCount.Load())
	assert.Equal(t, int64(1), strat.finalised.Load())
	assert.True(t, result.StoppedEarly)
	assert.True(t, result.EndTime.Before(testEnd))
}

func TestStrategyErrorAbortsRun(t *testing.T) {
	t.Parallel()
	provider := data.NewProvider(nil)
	loadMinuteTicks(t, provider, testPair, testStart, 10, 100, 101)
	b := newTestEngine(t, provider)

	errBoom := errors.New("strategy exploded")
	strat := &testStrategy{}
	strat.onTick = func(time.Time, map[currency.Pair]*data.Tick) error {
		if strat.tickCount.Load() == 2 {
			return errBoom
		}
		return nil
	}
	require.NoError(t, b.SetStrategy(strat))

	result, err := b.Run()
	if !errors.Is(err, errBoom) {
		t.Errorf("received: '%v' but expected: '%v'", err, errBoom)
	}
	assert.Nil(t, result)
	assert.Equal(t, Completed, b.Status())
	if _, err = b.Result(); !errors.Is(err, errResultNotAvailable) {
		t.Errorf("received: '%v' but expected: '%v'", err, errResultNotAvailable)
	}
}

func TestRestingLimitOrderMatchesLater(t *testing.T) {
	t.Parallel()
	provider := data.NewProvider(nil)
	loadMinuteTicks(t, provider, testPair, testStart, 5, 104, 105)
	ticks := make([]data.Tick, 0, 5)
	for i := 5; i < 10; i++ {
		ticks = append(ticks, tickAt(testPair, testStart.Add(time.Duration(i)*time.Minute), 98, 99))
	}
	require.NoError(t, provider.Load(testPair, ticks))
	b := newTestEngine(t, provider)

	var orderID string
	strat := &testStrategy{}
	strat.onTick = func(ts time.Time, _ map[currency.Pair]*data.Tick) error {
		if strat.tickCount.Load() != 1 {
			return nil
		}
		placed, err := strat.Exchange().PlaceOrder(&order.Submit{
			Pair:   testPair,
			Side:   order.Buy,
			Type:   order.Limit,
			Price:  decimal.NewFromInt(100),
			Amount: decimal.NewFromInt(1),
			Date:   ts,
		})
		if err != nil {
			return err
		}
		orderID = placed.ID
		return nil
	}
	require.NoError(t, b.SetStrategy(strat))

	result, err := b.Run()
	require.NoError(t, err)
	require.Len(t, result.Fills, 1)

	if !result.Fills[0].Price.Equal(decimal.NewFromInt(99)) {
		t.Errorf("received: '%v' but expected: '%v'", result.Fills[0].Price, 99)
	}
	assert.True(t, result.Fills[0].Timestamp.Equal(testStart.Add(5*time.Minute)))

	matched, err := b.exch.GetOrder(orderID)
	require.NoError(t, err)
	assert.Equal(t, order.Filled, matched.Status)
	if !result.FinalBalances[currency.BTC].Equal(decimal.NewFromInt(1)) {
		t.Errorf("received: '%v' but expected: '%v'", result.FinalBalances[currency.BTC], 1)
	}
}

func TestProgressCallback(t *testing.T) {
	t.Parallel()
	provider := data.NewProvider(nil)
	loadMinuteTicks(t, provider, testPair, testStart, 10, 100, 101)

	type step struct {
		processed, total int64
		now              time.Time
	}
	var steps []step
	b, err := New(Settings{
		Clock:        clock.NewSimulated(testStart, nil),
		Provider:     provider,
		Exchange:     newRunExchange(t),
		Strategy:     &testStrategy{},
		Start:        testStart,
		End:          testEnd,
		TickInterval: time.Minute,
		Quote:        currency.USDT,
		OnProgress: func(processed, total int64, now time.Time) {
			steps = append(steps, step{processed, total, now})
		},
	})
	require.NoError(t, err)

	_, err = b.Run()
	require.NoError(t, err)
	require.Len(t, steps, 10)
	assert.Equal(t, step{1, 10, testStart}, steps[0])
	assert.Equal(t, step{10, 10, testStart.Add(9 * time.Minute)}, steps[9])
}

func TestDataGapSkipsPair(t *testing.T) {
	t.Parallel()
	ethPair := currency.NewPairWithDelimiter("ETH", "USDT", "-")
	provider := data.NewProvider(nil)
	loadMinuteTicks(t, provider, testPair, testStart, 10, 100, 101)
	loadMinuteTicks(t, provider, ethPair, testStart.Add(5*time.Minute), 5, 10, 11)

	b := newTestEngine(t, provider)
	strat := &testStrategy{}
	require.NoError(t, b.SetStrategy(strat))

	_, err := b.Run()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 1, 1, 1, 2, 2, 2, 2, 2}, strat.sizes)
}

func TestRunWithRealClock(t *testing.T) {
	t.Parallel()
	now := time.Now()
	provider := data.NewProvider(nil)
	require.NoError(t, provider.Load(testPair, []data.Tick{tickAt(testPair, now.Add(-time.Second), 100, 101)}))

	b, err := New(Settings{
		Clock:        clock.NewReal(nil),
		Provider:     provider,
		Exchange:     newRunExchange(t),
		Strategy:     &testStrategy{},
		Start:        now,
		End:          now.Add(50 * time.Millisecond),
		TickInterval: 10 * time.Millisecond,
		Quote:        currency.USDT,
	})
	require.NoError(t, err)

	result, err := b.Run()
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, Completed, b.Status())
	assert.GreaterOrEqual(t, result.ProcessedTicks, int64(1))
}
