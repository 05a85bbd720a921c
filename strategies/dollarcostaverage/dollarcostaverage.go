package dollarcostaverage

import (
	"fmt"
	"time"

	"github.com/quantave/backsim/currency"
	"github.com/quantave/backsim/data"
	"github.com/quantave/backsim/order"
	"github.com/quantave/backsim/strategies/base"
	"github.com/shopspring/decimal"
)

const (
	// Name is the strategy name
	Name             = "dollarcostaverage"
	intervalKey      = "purchase-interval-hours"
	quoteAmountKey   = "purchase-quote-amount"
	description      = `Dollar cost averaging is an investment strategy in which an investor divides up the total amount to be invested across periodic purchases of a target asset in an effort to reduce the impact of volatility on the overall purchase`
	defaultIntervalH = 24
)

// Strategy buys a fixed quote-currency value of every tracked pair on a
// fixed simulated-time cadence
type Strategy struct {
	base.Strategy
	interval    time.Duration
	quoteAmount decimal.Decimal
	lastBuy     time.Time
}

// Name returns the name of the strategy
func (s *Strategy) Name() string {
	return Name
}

// Description provides a nice overview of the strategy
func (s *Strategy) Description() string {
	return description
}

// OnTick places a market buy for each pair whenever the purchase interval
// has elapsed since the previous round of purchases
func (s *Strategy) OnTick(ts time.Time, ticks map[currency.Pair]*data.Tick) error {
	if s.Exchange() == nil {
		return base.ErrExchangeUnset
	}
	if !s.lastBuy.IsZero() && ts.Sub(s.lastBuy) < s.interval {
		return nil
	}
	for _, p := range base.SortedPairs(ticks) {
		ask, ok := ticks[p].OrderBook.BestAsk()
		if !ok {
			continue
		}
		amount := s.quoteAmount.Div(ask.Price)
		if !amount.IsPositive() {
			continue
		}
		if _, err := s.Exchange().PlaceOrder(&order.Submit{
			Pair:   p,
			Side:   order.Buy,
			Type:   order.Market,
			Amount: amount,
			Date:   ts,
		}); err != nil {
			return err
		}
	}
	s.lastBuy = ts
	return nil
}

// SetCustomSettings allows a user to modify the purchase cadence and size
func (s *Strategy) SetCustomSettings(customSettings map[string]any) error {
	for k, v := range customSettings {
		switch k {
		case intervalKey:
			hours, ok := v.(float64)
			if !ok || hours <= 0 {
				return fmt.Errorf("%w provided purchase-interval-hours value could not be parsed: %v", base.ErrInvalidCustomSettings, v)
			}
			s.interval = time.Duration(hours * float64(time.Hour))
		case quoteAmountKey:
			amount, ok := v.(float64)
			if !ok || amount <= 0 {
				return fmt.Errorf("%w provided purchase-quote-amount value could not be parsed: %v", base.ErrInvalidCustomSettings, v)
			}
			s.quoteAmount = decimal.NewFromFloat(amount)
		default:
			return fmt.Errorf("%w unrecognised custom setting key %v with value %v. Cannot apply", base.ErrInvalidCustomSettings, k, v)
		}
	}
	return nil
}

// SetDefaults sets the custom settings to their default values
func (s *Strategy) SetDefaults() {
	s.interval = defaultIntervalH * time.Hour
	s.quoteAmount = decimal.NewFromInt(100)
}
