package data

import (
	"fmt"
	"sort"
	"time"

	"github.com/quantave/backsim/currency"
	"go.uber.org/zap"
)

// NewProvider returns an empty historical data provider
func NewProvider(logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		logger: logger,
		data:   make(map[currency.Pair]*series),
	}
}

// key normalises a pair so delimiter and casing differences cannot split one
// instrument across two series
func key(p currency.Pair) currency.Pair {
	return currency.Pair{Base: p.Base.Upper(), Quote: p.Quote.Upper()}
}

// Load stores ticks for a pair, sorting them ascending by timestamp when
// required. Loading a pair again replaces its series and resets its cursor.
func (p *Provider) Load(pair currency.Pair, ticks []Tick) error {
	if pair.IsEmpty() {
		return currency.ErrCurrencyPairEmpty
	}
	if len(ticks) == 0 {
		return fmt.Errorf("%w for %s", ErrNoTicksSupplied, pair)
	}
	for x := range ticks {
		if !ticks[x].Pair.IsEmpty() && !ticks[x].Pair.Equal(pair) {
			return fmt.Errorf("%w, tick %d carries %s",
				errMismatchedPair, x, ticks[x].Pair)
		}
	}

	stored := make([]Tick, len(ticks))
	copy(stored, ticks)
	if !sort.SliceIsSorted(stored, func(i, j int) bool {
		return stored[i].Timestamp.Before(stored[j].Timestamp)
	}) {
		p.logger.Debug("sorting unsorted tick data",
			zap.String("pair", pair.String()))
		sort.SliceStable(stored, func(i, j int) bool {
			return stored[i].Timestamp.Before(stored[j].Timestamp)
		})
	}

	p.m.Lock()
	defer p.m.Unlock()
	k := key(pair)
	if _, ok := p.data[k]; ok {
		p.logger.Warn("replacing existing tick data",
			zap.String("pair", pair.String()))
	}
	p.data[k] = &series{ticks: stored}
	return nil
}

// LoadAll groups ticks by the pair stamped on each one and loads every
// group, replacing any series already held for those pairs
func (p *Provider) LoadAll(ticks []Tick) error {
	if len(ticks) == 0 {
		return ErrNoTicksSupplied
	}
	grouped := make(map[currency.Pair][]Tick)
	var order []currency.Pair
	for x := range ticks {
		if ticks[x].Pair.IsEmpty() {
			return fmt.Errorf("%w, tick %d", errPairlessTick, x)
		}
		k := key(ticks[x].Pair)
		if _, ok := grouped[k]; !ok {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], ticks[x])
	}
	for _, k := range order {
		if err := p.Load(k, grouped[k]); err != nil {
			return err
		}
	}
	return nil
}

// TickAt returns the latest tick at or before t for the pair, nil when no
// such tick exists. The result aliases provider storage and must not be
// mutated.
func (p *Provider) TickAt(pair currency.Pair, t time.Time) *Tick {
	p.m.RLock()
	defer p.m.RUnlock()
	s, ok := p.data[key(pair)]
	if !ok {
		return nil
	}
	idx := sort.Search(len(s.ticks), func(i int) bool {
		return s.ticks[i].Timestamp.After(t)
	})
	if idx == 0 {
		return nil
	}
	return &s.ticks[idx-1]
}

// Range returns a copy of all ticks within [start, end] inclusive
func (p *Provider) Range(pair currency.Pair, start, end time.Time) []Tick {
	p.m.RLock()
	defer p.m.RUnlock()
	s, ok := p.data[key(pair)]
	if !ok || end.Before(start) {
		return nil
	}
	lo := sort.Search(len(s.ticks), func(i int) bool {
		return !s.ticks[i].Timestamp.Before(start)
	})
	hi := sort.Search(len(s.ticks), func(i int) bool {
		return s.ticks[i].Timestamp.After(end)
	})
	if lo >= hi {
		return nil
	}
	out := make([]Tick, hi-lo)
	copy(out, s.ticks[lo:hi])
	return out
}

// Next returns the next tick in the pair's sequential stream and advances
// the cursor. The second return is false once the stream is exhausted.
func (p *Provider) Next(pair currency.Pair) (*Tick, bool) {
	p.m.Lock()
	defer p.m.Unlock()
	s, ok := p.data[key(pair)]
	if !ok || s.offset >= len(s.ticks) {
		return nil, false
	}
	t := &s.ticks[s.offset]
	s.offset++
	return t, true
}

// HasNext returns whether the pair's sequential stream has ticks remaining
func (p *Provider) HasNext(pair currency.Pair) bool {
	p.m.RLock()
	defer p.m.RUnlock()
	s, ok := p.data[key(pair)]
	return ok && s.offset < len(s.ticks)
}

// Reset rewinds the pair's sequential cursor to the start of its stream
func (p *Provider) Reset(pair currency.Pair) {
	p.m.Lock()
	defer p.m.Unlock()
	if s, ok := p.data[key(pair)]; ok {
		s.offset = 0
	}
}

// ResetAll rewinds every pair's sequential cursor
func (p *Provider) ResetAll() {
	p.m.Lock()
	defer p.m.Unlock()
	for _, s := range p.data {
		s.offset = 0
	}
}

// Purge drops all loaded data and cursors
func (p *Provider) Purge() {
	p.m.Lock()
	defer p.m.Unlock()
	p.data = make(map[currency.Pair]*series)
}

// Pairs returns every loaded pair sorted for deterministic iteration
func (p *Provider) Pairs() []currency.Pair {
	p.m.RLock()
	defer p.m.RUnlock()
	pairs := make([]currency.Pair, 0, len(p.data))
	for k := range p.data {
		pairs = append(pairs, k)
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].String() < pairs[j].String()
	})
	return pairs
}

// Bounds returns the first and last tick timestamps for a pair
func (p *Provider) Bounds(pair currency.Pair) (start, end time.Time, ok bool) {
	p.m.RLock()
	defer p.m.RUnlock()
	s, found := p.data[key(pair)]
	if !found || len(s.ticks) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return s.ticks[0].Timestamp, s.ticks[len(s.ticks)-1].Timestamp, true
}
