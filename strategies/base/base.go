package base

import (
	"sort"

	"github.com/quantave/backsim/clock"
	"github.com/quantave/backsim/currency"
	"github.com/quantave/backsim/data"
	"github.com/quantave/backsim/exchange"
)

// Strategy carries the wiring every strategy shares and default no-op
// implementations of the optional hooks. Concrete strategies embed it and
// implement Name, Description and OnTick themselves.
type Strategy struct {
	exchange *exchange.Exchange
	clock    clock.Clock
}

// SetExchange stores the venue handle orders are placed through
func (s *Strategy) SetExchange(e *exchange.Exchange) {
	s.exchange = e
}

// Exchange returns the venue handle
func (s *Strategy) Exchange() *exchange.Exchange {
	return s.exchange
}

// SetClock stores the run clock handle
func (s *Strategy) SetClock(c clock.Clock) {
	s.clock = c
}

// Clock returns the run clock handle
func (s *Strategy) Clock() clock.Clock {
	return s.clock
}

// Initialise runs once before the first tick
func (s *Strategy) Initialise() error {
	return nil
}

// UpdateMarketData receives each iteration's snapshots before OnTick
func (s *Strategy) UpdateMarketData(map[currency.Pair]*data.Tick) {}

// Finalise runs once after the last tick
func (s *Strategy) Finalise() error {
	return nil
}

// SetDefaults sets overridable settings to their default values
func (s *Strategy) SetDefaults() {}

// SetCustomSettings rejects custom settings for strategies that do not
// support them
func (s *Strategy) SetCustomSettings(custom map[string]any) error {
	if len(custom) > 0 {
		return ErrCustomSettingsUnsupported
	}
	return nil
}

// SortedPairs returns the snapshot keys in a stable order so per-tick
// iteration is deterministic
func SortedPairs(ticks map[currency.Pair]*data.Tick) []currency.Pair {
	pairs := make([]currency.Pair, 0, len(ticks))
	for p := range ticks {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].String() < pairs[j].String()
	})
	return pairs
}
