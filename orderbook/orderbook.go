package orderbook

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// MarshalJSON conforms a level to the wire shape of a [price, size] pair
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]decimal.Decimal{l.Price, l.Amount})
}

// UnmarshalJSON decodes a [price, size] pair; members may be numeric or
// numeric-string
func (l *Level) UnmarshalJSON(d []byte) error {
	var pair []decimal.Decimal
	if err := json.Unmarshal(d, &pair); err != nil {
		return fmt.Errorf("%w: %v", errLevelMalformed, err)
	}
	if len(pair) < 2 {
		return fmt.Errorf("%w, got %d members", errLevelMalformed, len(pair))
	}
	l.Price = pair[0]
	l.Amount = pair[1]
	return nil
}

// Validate ensures both sides carry positive prices and amounts and are
// sorted best price first
func (s *Snapshot) Validate() error {
	for x := range s.Bids {
		if err := checkLevel(s.Bids[x]); err != nil {
			return fmt.Errorf("bid level %d: %w", x, err)
		}
		if x != 0 && s.Bids[x].Price.GreaterThan(s.Bids[x-1].Price) {
			return fmt.Errorf("bid level %d: %w", x, errPriceOutOfOrder)
		}
	}
	for x := range s.Asks {
		if err := checkLevel(s.Asks[x]); err != nil {
			return fmt.Errorf("ask level %d: %w", x, err)
		}
		if x != 0 && s.Asks[x].Price.LessThan(s.Asks[x-1].Price) {
			return fmt.Errorf("ask level %d: %w", x, errPriceOutOfOrder)
		}
	}
	return nil
}

func checkLevel(l Level) error {
	if l.Price.LessThanOrEqual(decimal.Zero) {
		return errPriceNotSet
	}
	if l.Amount.LessThanOrEqual(decimal.Zero) {
		return errAmountInvalid
	}
	return nil
}

// BestBid returns the highest bid level
func (s *Snapshot) BestBid() (Level, bool) {
	if len(s.Bids) == 0 {
		return Level{}, false
	}
	return s.Bids[0], true
}

// BestAsk returns the lowest ask level
func (s *Snapshot) BestAsk() (Level, bool) {
	if len(s.Asks) == 0 {
		return Level{}, false
	}
	return s.Asks[0], true
}

// MidPrice returns the midpoint of the best bid and best ask
func (s *Snapshot) MidPrice() (decimal.Decimal, bool) {
	bid, ok := s.BestBid()
	if !ok {
		return decimal.Zero, false
	}
	ask, ok := s.BestAsk()
	if !ok {
		return decimal.Zero, false
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
}

// TotalBidAmount returns the cumulative size resting on the bid side
func (s *Snapshot) TotalBidAmount() decimal.Decimal {
	var total decimal.Decimal
	for x := range s.Bids {
		total = total.Add(s.Bids[x].Amount)
	}
	return total
}

// TotalAskAmount returns the cumulative size resting on the ask side
func (s *Snapshot) TotalAskAmount() decimal.Decimal {
	var total decimal.Decimal
	for x := range s.Asks {
		total = total.Add(s.Asks[x].Amount)
	}
	return total
}
