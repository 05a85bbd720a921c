package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/quantave/backsim/clock"
	"github.com/quantave/backsim/currency"
	"github.com/quantave/backsim/data"
	"github.com/quantave/backsim/statistics"
	"github.com/quantave/backsim/strategies"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// New assembles a backtest from pre-built collaborators. The strategy may
// be attached later; Run refuses to start without one
func New(s Settings) (*BackTest, error) {
	switch {
	case s.Clock == nil:
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, errNilClock)
	case s.Provider == nil:
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, errNilProvider)
	case s.Exchange == nil:
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, errNilExchange)
	case s.Start.IsZero() || s.End.IsZero() || !s.End.After(s.Start):
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, errBadRunWindow)
	case s.TickInterval <= 0:
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, errInvalidInterval)
	case s.Quote.IsEmpty():
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, errQuoteUnset)
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	return &BackTest{
		cfg:          s.Config,
		clk:          s.Clock,
		provider:     s.Provider,
		exch:         s.Exchange,
		strategy:     s.Strategy,
		logger:       s.Logger,
		runID:        id.String(),
		start:        s.Start,
		end:          s.End,
		tickInterval: s.TickInterval,
		quote:        s.Quote,
		progress:     s.OnProgress,
	}, nil
}

// SetStrategy attaches the strategy before the run starts
func (b *BackTest) SetStrategy(h strategies.Handler) error {
	if Status(b.status.Load()) != Idle {
		return errAlreadyRunning
	}
	b.strategy = h
	return nil
}

// SetProgressCallback attaches a per-iteration observer before the run
// starts
func (b *BackTest) SetProgressCallback(fn ProgressFunc) error {
	if Status(b.status.Load()) != Idle {
		return errAlreadyRunning
	}
	b.progress = fn
	return nil
}

// RunID returns the unique identifier of this run
func (b *BackTest) RunID() string {
	return b.runID
}

// Status returns the current lifecycle state
func (b *BackTest) Status() Status {
	return Status(b.status.Load())
}

// Result returns the outcome of a completed run
func (b *BackTest) Result() (*Result, error) {
	b.m.Lock()
	defer b.m.Unlock()
	if b.result == nil {
		return nil, errResultNotAvailable
	}
	return b.result, nil
}

// Run executes the simulation loop until the clock reaches the end of the
// run window or Stop is called, then analyzes the fill log and returns the
// immutable result. Strategy callbacks, order matching and balance updates
// for a tick are strictly sequential, so identical inputs produce identical
// results
func (b *BackTest) Run() (*Result, error) {
	if b.strategy == nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, errNoStrategy)
	}
	pairs := b.provider.Pairs()
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, errNoData)
	}
	switch Status(b.status.Load()) {
	case Running, Paused:
		return nil, errAlreadyRunning
	case Completed:
		return nil, errAlreadyRan
	}
	if !b.status.CompareAndSwap(int32(Idle), int32(Running)) {
		return nil, errAlreadyRunning
	}
	defer b.status.Store(int32(Completed))

	b.strategy.SetExchange(b.exch)
	b.strategy.SetClock(b.clk)
	if err := b.strategy.Initialise(); err != nil {
		return nil, fmt.Errorf("strategy %v initialise: %w", b.strategy.Name(), err)
	}

	wallStart := time.Now()
	initialBalances := b.exch.AllBalances()
	startPrices := b.marketPrices(b.start)
	total := b.totalIterations()

	b.logger.Info("run starting",
		zap.String("id", b.runID),
		zap.String("strategy", b.strategy.Name()),
		zap.Time("start", b.start),
		zap.Time("end", b.end),
		zap.Duration("tick-interval", b.tickInterval),
		zap.Int64("iterations", total))

	for b.clk.Now().Before(b.end) {
		for Status(b.status.Load()) == Paused && !b.stopRequested.Load() {
			time.Sleep(pausePollInterval)
		}
		if b.stopRequested.Load() {
			b.logger.Info("stop requested, ending run early",
				zap.String("id", b.runID),
				zap.Time("sim-time", b.clk.Now()))
			break
		}

		now := b.clk.Now()
		ticks := b.collectTicks(now)
		if len(ticks) > 0 {
			b.strategy.UpdateMarketData(ticks)
			if err := b.strategy.OnTick(now, ticks); err != nil {
				return nil, fmt.Errorf("strategy %v at %v: %w", b.strategy.Name(), now, err)
			}
			b.matchOpenOrders(ticks, now)
		}

		if err := b.clk.Advance(b.tickInterval); err != nil {
			if !errors.Is(err, clock.ErrInvalidMode) {
				return nil, err
			}
			// real clock, wait for wall time to pass instead
			b.clk.Sleep(b.tickInterval)
		}
		processed := b.processed.Add(1)
		if b.progress != nil {
			b.progress(processed, total, now)
		}
	}

	return b.finalise(initialBalances, startPrices, wallStart)
}

// Pause gates the run loop at its next iteration boundary
func (b *BackTest) Pause() error {
	if !b.status.CompareAndSwap(int32(Running), int32(Paused)) {
		return errNotRunning
	}
	b.logger.Info("run paused", zap.String("id", b.runID))
	return nil
}

// Resume releases a paused run loop
func (b *BackTest) Resume() error {
	if !b.status.CompareAndSwap(int32(Paused), int32(Running)) {
		return errNotPaused
	}
	b.logger.Info("run resumed", zap.String("id", b.runID))
	return nil
}

// Stop requests cooperative cancellation. The flag is honoured at the next
// iteration boundary, never mid tick, so processed ticks stay consistent
func (b *BackTest) Stop() {
	b.stopRequested.Store(true)
}

// collectTicks gathers each pair's snapshot at or before the current
// simulated time. Pairs with no data yet are skipped this iteration
func (b *BackTest) collectTicks(now time.Time) map[currency.Pair]*data.Tick {
	pairs := b.provider.Pairs()
	ticks := make(map[currency.Pair]*data.Tick, len(pairs))
	for i := range pairs {
		t := b.provider.TickAt(pairs[i], now)
		if t == nil {
			b.logger.Debug("no tick available",
				zap.String("pair", pairs[i].String()),
				zap.Time("sim-time", now))
			continue
		}
		ticks[pairs[i]] = t
	}
	return ticks
}

// matchOpenOrders runs every open order through the matching engine
// against its pair's current snapshot
func (b *BackTest) matchOpenOrders(ticks map[currency.Pair]*data.Tick, now time.Time) {
	open := b.exch.OpenOrders()
	for i := range open {
		snap, ok := ticks[open[i].Pair]
		if !ok {
			for p := range ticks {
				if p.Equal(open[i].Pair) {
					snap, ok = ticks[p], true
					break
				}
			}
		}
		if !ok {
			continue
		}
		if _, err := b.exch.ProcessOrderMatching(open[i].ID, &snap.OrderBook, now); err != nil {
			b.logger.Warn("order matching failed",
				zap.String("order-id", open[i].ID),
				zap.String("pair", open[i].Pair.String()),
				zap.Error(err))
		}
	}
}

// marketPrices values each pair's base currency off its book mid price at
// or before the given time, falling back to the pair's earliest tick
func (b *BackTest) marketPrices(at time.Time) map[currency.Code]decimal.Decimal {
	pairs := b.provider.Pairs()
	prices := make(map[currency.Code]decimal.Decimal, len(pairs))
	for i := range pairs {
		t := b.provider.TickAt(pairs[i], at)
		if t == nil {
			if first, _, ok := b.provider.Bounds(pairs[i]); ok {
				t = b.provider.TickAt(pairs[i], first)
			}
		}
		if t == nil {
			continue
		}
		if mid, ok := t.OrderBook.MidPrice(); ok {
			prices[pairs[i].Base] = mid
		}
	}
	return prices
}

func (b *BackTest) totalIterations() int64 {
	span := b.end.Sub(b.clk.Now())
	if span <= 0 {
		return 0
	}
	total := int64(span / b.tickInterval)
	if span%b.tickInterval != 0 {
		total++
	}
	return total
}

// finalise captures end prices, runs the strategy teardown hook, analyzes
// the fill log and publishes the immutable result
func (b *BackTest) finalise(initialBalances, startPrices map[currency.Code]decimal.Decimal, wallStart time.Time) (*Result, error) {
	if err := b.strategy.Finalise(); err != nil {
		return nil, fmt.Errorf("strategy %v finalise: %w", b.strategy.Name(), err)
	}

	end := b.clk.Now()
	if end.After(b.end) {
		end = b.end
	}
	finalBalances := b.exch.AllBalances()
	endPrices := b.marketPrices(end)

	metrics, err := statistics.Analyze(&statistics.Input{
		Fills:           b.exch.Fills(),
		InitialBalances: initialBalances,
		FinalBalances:   finalBalances,
		StartTime:       b.start,
		EndTime:         end,
		StartPrices:     startPrices,
		EndPrices:       endPrices,
		Quote:           b.quote,
		Logger:          b.logger,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:           b.runID,
		Nickname:        b.nickname(),
		Strategy:        b.strategy.Name(),
		StartTime:       b.start,
		EndTime:         end,
		TickInterval:    b.tickInterval,
		Quote:           b.quote,
		InitialBalances: initialBalances,
		FinalBalances:   finalBalances,
		StartPrices:     startPrices,
		EndPrices:       endPrices,
		Metrics:         metrics,
		Fills:           b.exch.Fills(),
		ExchangeStats:   b.exch.Stats(),
		ProcessedTicks:  b.processed.Load(),
		StoppedEarly:    b.stopRequested.Load(),
		WallDuration:    time.Since(wallStart),
	}

	b.m.Lock()
	b.result = result
	b.m.Unlock()

	b.logger.Info("run complete",
		zap.String("id", b.runID),
		zap.Int64("ticks", result.ProcessedTicks),
		zap.Int64("fills", int64(len(result.Fills))),
		zap.Duration("took", result.WallDuration))
	return result, nil
}

func (b *BackTest) nickname() string {
	if b.cfg != nil && b.cfg.Nickname != "" {
		return b.cfg.Nickname
	}
	return b.runID
}
