package engine

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quantave/backsim/clock"
	"github.com/quantave/backsim/config"
	"github.com/quantave/backsim/currency"
	"github.com/quantave/backsim/data"
	"github.com/quantave/backsim/exchange"
	"github.com/quantave/backsim/strategies"
	"go.uber.org/zap"
)

// pausePollInterval is how often a paused run loop rechecks its gate
const pausePollInterval = 10 * time.Millisecond

var (
	// ErrConfiguration is returned when a run cannot start because its
	// inputs are incomplete. It always wraps the specific cause
	ErrConfiguration = errors.New("invalid run configuration")

	errNilConfig          = errors.New("config cannot be nil")
	errNilClock           = errors.New("clock cannot be nil")
	errNilProvider        = errors.New("data provider cannot be nil")
	errNilExchange        = errors.New("exchange cannot be nil")
	errNoStrategy         = errors.New("no strategy set")
	errNoData             = errors.New("no currency pairs loaded")
	errBadRunWindow       = errors.New("run window end must be after start")
	errInvalidInterval    = errors.New("tick interval must be positive")
	errQuoteUnset         = errors.New("quote currency unset")
	errAlreadyRunning     = errors.New("run already in progress")
	errAlreadyRan         = errors.New("run already completed")
	errNotRunning         = errors.New("run is not in progress")
	errNotPaused          = errors.New("run is not paused")
	errUnknownDataSource  = errors.New("unknown data source")
	errNoTicksInWindow    = errors.New("no ticks loaded inside the run window")
	errResultNotAvailable = errors.New("run has not produced a result")
)

// Status is the lifecycle state of a backtest run
type Status int32

// Run lifecycle states
const (
	Idle Status = iota
	Running
	Paused
	Completed
)

// String implements the stringer interface
func (s Status) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Running:
		return "RUNNING"
	case Paused:
		return "PAUSED"
	case Completed:
		return "COMPLETED"
	default:
		return "UNKNOWN"
	}
}

// ProgressFunc is invoked after each simulated tick with the number of
// iterations processed, the expected total and the simulated time just
// handled
type ProgressFunc func(processed, total int64, now time.Time)

// Settings assembles a backtest run from its collaborators
type Settings struct {
	Config       *config.Config
	Clock        clock.Clock
	Provider     *data.Provider
	Exchange     *exchange.Exchange
	Strategy     strategies.Handler
	Start        time.Time
	End          time.Time
	TickInterval time.Duration
	Quote        currency.Code
	OnProgress   ProgressFunc
	Logger       *zap.Logger
}

// BackTest drives one deterministic simulation run. It owns its clock and
// exchange; concurrent runs each need their own instance
type BackTest struct {
	cfg      *config.Config
	clk      clock.Clock
	provider *data.Provider
	exch     *exchange.Exchange
	strategy strategies.Handler
	logger   *zap.Logger

	runID        string
	start        time.Time
	end          time.Time
	tickInterval time.Duration
	quote        currency.Code
	progress     ProgressFunc

	status        atomic.Int32
	stopRequested atomic.Bool
	processed     atomic.Int64

	m      sync.Mutex
	result *Result
}
