package clock

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SimulatedClock is a programmable time source. Time only moves through
// Advance and SetTime; scheduled callbacks fire when simulated time crosses
// their targets, never from real timers. All notification ordering follows
// subscription order so runs stay deterministic.
type SimulatedClock struct {
	logger       *zap.Logger
	m            sync.Mutex
	now          time.Time
	tickInterval time.Duration
	lastTick     time.Time
	subscribers  map[int64]TickFunc
	subscriberID int64
	timers       map[int64]*simTimer
	timerID      int64
}

type simTimer struct {
	target   time.Time
	interval time.Duration // zero for a one-shot
	fn       func()
}

// NewSimulated returns a clock starting at the supplied time. A zero start
// falls back to the current wall clock.
func NewSimulated(start time.Time, logger *zap.Logger) *SimulatedClock {
	if logger == nil {
		logger = zap.NewNop()
	}
	if start.IsZero() {
		start = time.Now()
	}
	return &SimulatedClock{
		logger:       logger,
		now:          start,
		tickInterval: DefaultTickInterval,
		lastTick:     start,
		subscribers:  make(map[int64]TickFunc),
		timers:       make(map[int64]*simTimer),
	}
}

// Now returns the current simulated time
func (c *SimulatedClock) Now() time.Time {
	c.m.Lock()
	defer c.m.Unlock()
	return c.now
}

// Mode returns the clock mode
func (c *SimulatedClock) Mode() Mode {
	return Simulated
}

// Advance moves simulated time forward by d and fires any notifications the
// move crossed
func (c *SimulatedClock) Advance(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w, advance duration %s", errTimeRegression, d)
	}
	c.m.Lock()
	target := c.now.Add(d)
	return c.moveTo(target)
}

// SetTime moves simulated time to t and fires any notifications the move
// crossed. Moving backwards is rejected, simulated time is monotonic.
func (c *SimulatedClock) SetTime(t time.Time) error {
	c.m.Lock()
	if t.Before(c.now) {
		c.m.Unlock()
		return fmt.Errorf("%w, %s is before %s", errTimeRegression, t, c.now)
	}
	return c.moveTo(t)
}

// moveTo expects the lock held and releases it before running callbacks so
// listeners can query the clock
func (c *SimulatedClock) moveTo(target time.Time) error {
	c.now = target

	var notifyTick bool
	if c.now.Sub(c.lastTick) >= c.tickInterval {
		// crossings within one move collapse to a single notification
		notifyTick = true
		c.lastTick = c.now
	}

	var subs []TickFunc
	if notifyTick {
		ids := make([]int64, 0, len(c.subscribers))
		for id := range c.subscribers {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		subs = make([]TickFunc, len(ids))
		for x := range ids {
			subs[x] = c.subscribers[ids[x]]
		}
	}

	var due []func()
	timerIDs := make([]int64, 0, len(c.timers))
	for id := range c.timers {
		timerIDs = append(timerIDs, id)
	}
	sort.Slice(timerIDs, func(i, j int) bool { return timerIDs[i] < timerIDs[j] })
	for x := range timerIDs {
		t := c.timers[timerIDs[x]]
		if t.target.After(c.now) {
			continue
		}
		due = append(due, t.fn)
		if t.interval > 0 {
			// interval crossings also collapse, re-arm from current time
			t.target = c.now.Add(t.interval)
		} else {
			delete(c.timers, timerIDs[x])
		}
	}

	now := c.now
	c.m.Unlock()

	for x := range subs {
		safeTick(c.logger, subs[x], now)
	}
	for x := range due {
		safeCall(c.logger, due[x])
	}
	return nil
}

// Sleep advances simulated time by d and returns immediately
func (c *SimulatedClock) Sleep(d time.Duration) {
	if err := c.Advance(d); err != nil {
		c.logger.Warn("sleep ignored", zap.Duration("duration", d), zap.Error(err))
	}
}

// SetTickInterval adjusts the spacing between tick notifications
func (c *SimulatedClock) SetTickInterval(d time.Duration) {
	if d <= 0 {
		c.logger.Warn("tick interval ignored",
			zap.Duration("interval", d),
			zap.Error(errIntervalInvalid))
		return
	}
	c.m.Lock()
	defer c.m.Unlock()
	c.tickInterval = d
}

// OnTick subscribes fn to tick notifications, returning an unsubscribe
// closure
func (c *SimulatedClock) OnTick(fn TickFunc) func() {
	c.m.Lock()
	defer c.m.Unlock()
	c.subscriberID++
	id := c.subscriberID
	c.subscribers[id] = fn
	return func() {
		c.m.Lock()
		defer c.m.Unlock()
		delete(c.subscribers, id)
	}
}

// AfterFunc schedules fn to run once simulated time crosses now + d
func (c *SimulatedClock) AfterFunc(d time.Duration, fn func()) func() {
	c.m.Lock()
	defer c.m.Unlock()
	c.timerID++
	id := c.timerID
	c.timers[id] = &simTimer{target: c.now.Add(d), fn: fn}
	return func() {
		c.m.Lock()
		defer c.m.Unlock()
		delete(c.timers, id)
	}
}

// Every schedules fn to run each time simulated time crosses another
// interval of d; crossings within a single advance collapse to one firing
func (c *SimulatedClock) Every(d time.Duration, fn func()) func() {
	if d <= 0 {
		c.logger.Warn("interval schedule ignored",
			zap.Duration("interval", d),
			zap.Error(errIntervalInvalid))
		return func() {}
	}
	c.m.Lock()
	defer c.m.Unlock()
	c.timerID++
	id := c.timerID
	c.timers[id] = &simTimer{target: c.now.Add(d), interval: d, fn: fn}
	return func() {
		c.m.Lock()
		defer c.m.Unlock()
		delete(c.timers, id)
	}
}

var (
	_ Clock = (*RealClock)(nil)
	_ Clock = (*SimulatedClock)(nil)
)
