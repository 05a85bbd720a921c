package clock

import (
	"errors"
	"time"
)

// DefaultTickInterval is the spacing between tick notifications unless
// overridden via SetTickInterval
const DefaultTickInterval = time.Second

var (
	// ErrInvalidMode is returned when time manipulation is attempted on a
	// clock that follows the wall clock
	ErrInvalidMode = errors.New("operation requires a simulated clock")

	errTimeRegression  = errors.New("simulated time cannot move backwards")
	errIntervalInvalid = errors.New("interval must be greater than zero")
)

// Mode describes the time source behind a clock
type Mode uint8

// Clock modes
const (
	Real Mode = iota
	Simulated
)

// String implements the stringer interface
func (m Mode) String() string {
	switch m {
	case Real:
		return "REAL"
	case Simulated:
		return "SIMULATED"
	default:
		return "UNKNOWN"
	}
}

// TickFunc is the callback signature for tick subscriptions
type TickFunc func(now time.Time)

// Clock is the time authority every component queries instead of the system
// timer. A real clock follows wall time; a simulated clock only moves through
// Advance and SetTime. Tick subscribers are notified at most once per
// Advance/SetTime call regardless of how many intervals were crossed.
type Clock interface {
	// Now returns the current time under the clock's mode
	Now() time.Time
	// Mode returns whether the clock is real or simulated
	Mode() Mode
	// Advance moves simulated time forward, returns ErrInvalidMode on a
	// real clock
	Advance(d time.Duration) error
	// SetTime moves simulated time to a fixed point at or after the
	// current time, returns ErrInvalidMode on a real clock
	SetTime(t time.Time) error
	// Sleep blocks for the duration on a real clock and advances then
	// returns immediately on a simulated clock
	Sleep(d time.Duration)
	// SetTickInterval adjusts the spacing between tick notifications
	SetTickInterval(d time.Duration)
	// OnTick subscribes to tick notifications, returning an unsubscribe
	// closure
	OnTick(fn TickFunc) (unsubscribe func())
	// AfterFunc schedules fn to run once the clock crosses now + d,
	// returning a stop closure
	AfterFunc(d time.Duration, fn func()) (stop func())
	// Every schedules fn to run each time the clock crosses another
	// multiple of d, returning a stop closure
	Every(d time.Duration, fn func()) (stop func())
}
