package strategies

import (
	"errors"
	"time"

	"github.com/quantave/backsim/clock"
	"github.com/quantave/backsim/currency"
	"github.com/quantave/backsim/data"
	"github.com/quantave/backsim/exchange"
)

var (
	// ErrStrategyNotFound is returned when a strategy name does not match
	// any registered strategy
	ErrStrategyNotFound = errors.New("strategy not found")
	// ErrStrategyAlreadyExists is returned when registering a strategy whose
	// name is already taken
	ErrStrategyAlreadyExists = errors.New("strategy already exists")
	errNilStrategy           = errors.New("strategy cannot be nil")
)

// Handler defines everything the engine drives on a strategy over a run.
// UpdateMarketData is invoked before OnTick each iteration, Initialise once
// before the first tick and Finalise once after the last. Strategies place
// orders exclusively through the exchange handle given to SetExchange.
type Handler interface {
	Name() string
	Description() string
	SetDefaults()
	SetCustomSettings(map[string]any) error
	SetExchange(*exchange.Exchange)
	SetClock(clock.Clock)
	Initialise() error
	UpdateMarketData(map[currency.Pair]*data.Tick)
	OnTick(ts time.Time, ticks map[currency.Pair]*data.Tick) error
	Finalise() error
}
