package clock

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// RealClock follows the wall clock. Tick notifications and scheduled
// callbacks run off real timers on their own goroutines.
type RealClock struct {
	logger       *zap.Logger
	m            sync.Mutex
	tickInterval time.Duration
	subscribers  map[int64]TickFunc
	subscriberID int64
	ticker       *time.Ticker
	shutdown     chan struct{}
	running      bool
}

// NewReal returns a clock backed by the system timer
func NewReal(logger *zap.Logger) *RealClock {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RealClock{
		logger:       logger,
		tickInterval: DefaultTickInterval,
		subscribers:  make(map[int64]TickFunc),
	}
}

// Now returns the wall clock time
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// Mode returns the clock mode
func (c *RealClock) Mode() Mode {
	return Real
}

// Advance is not permitted on a real clock
func (c *RealClock) Advance(_ time.Duration) error {
	return ErrInvalidMode
}

// SetTime is not permitted on a real clock
func (c *RealClock) SetTime(_ time.Time) error {
	return ErrInvalidMode
}

// Sleep suspends the caller for the supplied wall clock duration
func (c *RealClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// SetTickInterval adjusts the spacing between tick notifications
func (c *RealClock) SetTickInterval(d time.Duration) {
	if d <= 0 {
		c.logger.Warn("tick interval ignored",
			zap.Duration("interval", d),
			zap.Error(errIntervalInvalid))
		return
	}
	c.m.Lock()
	defer c.m.Unlock()
	c.tickInterval = d
	if c.running {
		c.ticker.Reset(d)
	}
}

// OnTick subscribes fn to tick notifications and lazily starts the
// notification loop
func (c *RealClock) OnTick(fn TickFunc) func() {
	c.m.Lock()
	defer c.m.Unlock()
	c.subscriberID++
	id := c.subscriberID
	c.subscribers[id] = fn
	if !c.running {
		c.ticker = time.NewTicker(c.tickInterval)
		c.shutdown = make(chan struct{})
		c.running = true
		go c.run(c.ticker, c.shutdown)
	}
	return func() {
		c.m.Lock()
		defer c.m.Unlock()
		delete(c.subscribers, id)
		if len(c.subscribers) == 0 && c.running {
			c.ticker.Stop()
			close(c.shutdown)
			c.running = false
		}
	}
}

func (c *RealClock) run(t *time.Ticker, shutdown chan struct{}) {
	for {
		select {
		case <-shutdown:
			return
		case now := <-t.C:
			c.notify(now)
		}
	}
}

func (c *RealClock) notify(now time.Time) {
	c.m.Lock()
	subs := make([]TickFunc, 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.m.Unlock()
	for x := range subs {
		safeTick(c.logger, subs[x], now)
	}
}

// AfterFunc schedules fn to run once after the wall clock duration elapses
func (c *RealClock) AfterFunc(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, func() {
		safeCall(c.logger, fn)
	})
	return func() { t.Stop() }
}

// Every schedules fn to run each time another interval of d elapses
func (c *RealClock) Every(d time.Duration, fn func()) func() {
	if d <= 0 {
		c.logger.Warn("interval schedule ignored",
			zap.Duration("interval", d),
			zap.Error(errIntervalInvalid))
		return func() {}
	}
	t := time.NewTicker(d)
	shutdown := make(chan struct{})
	go func() {
		for {
			select {
			case <-shutdown:
				return
			case <-t.C:
				safeCall(c.logger, fn)
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			t.Stop()
			close(shutdown)
		})
	}
}

func safeTick(logger *zap.Logger, fn TickFunc, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("tick subscriber panic recovered",
				zap.Any("panic", r))
		}
	}()
	fn(now)
}

func safeCall(logger *zap.Logger, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("scheduled callback panic recovered",
				zap.Any("panic", r))
		}
	}()
	fn()
}
