package rsi

import (
	"fmt"
	"time"

	"github.com/quantave/backsim/currency"
	"github.com/quantave/backsim/data"
	"github.com/quantave/backsim/order"
	"github.com/quantave/backsim/strategies/base"
	"github.com/shopspring/decimal"
	"github.com/thrasher-corp/gct-ta/indicators"
)

const (
	// Name is the strategy name
	Name           = "rsi"
	rsiPeriodKey   = "rsi-period"
	rsiLowKey      = "rsi-low"
	rsiHighKey     = "rsi-high"
	orderAmountKey = "order-amount"
	description    = `The relative strength index is a technical indicator used in the analysis of financial markets. It is intended to chart the current and historical strength or weakness of a stock or market based on the closing prices of a recent trading period`
)

// Strategy enters when the RSI of the mid price drops to the low bound and
// exits the whole position when it reaches the high bound
type Strategy struct {
	base.Strategy
	rsiPeriod   int
	rsiLow      decimal.Decimal
	rsiHigh     decimal.Decimal
	orderAmount decimal.Decimal
	prices      map[currency.Pair][]float64
}

// Name returns the name of the strategy
func (s *Strategy) Name() string {
	return Name
}

// Description provides a nice overview of the strategy
func (s *Strategy) Description() string {
	return description
}

// UpdateMarketData accumulates the mid price series the indicator is
// computed over
func (s *Strategy) UpdateMarketData(ticks map[currency.Pair]*data.Tick) {
	if s.prices == nil {
		s.prices = make(map[currency.Pair][]float64)
	}
	for _, p := range base.SortedPairs(ticks) {
		mid, ok := ticks[p].OrderBook.MidPrice()
		if !ok {
			continue
		}
		s.prices[p] = append(s.prices[p], mid.InexactFloat64())
	}
}

// OnTick signals a buy when the RSI is at or below the low bound and sells
// the accumulated base balance when it is at or above the high bound
func (s *Strategy) OnTick(ts time.Time, ticks map[currency.Pair]*data.Tick) error {
	if s.Exchange() == nil {
		return base.ErrExchangeUnset
	}
	for _, p := range base.SortedPairs(ticks) {
		series := s.prices[p]
		if len(series) <= s.rsiPeriod {
			continue
		}
		rsi := indicators.RSI(series, s.rsiPeriod)
		latest := decimal.NewFromFloat(rsi[len(rsi)-1])
		held := s.Exchange().Balance(p.Base)
		switch {
		case latest.GreaterThanOrEqual(s.rsiHigh) && held.IsPositive():
			if _, err := s.Exchange().PlaceOrder(&order.Submit{
				Pair:   p,
				Side:   order.Sell,
				Type:   order.Market,
				Amount: held,
				Date:   ts,
			}); err != nil {
				return err
			}
		case latest.LessThanOrEqual(s.rsiLow) && !held.IsPositive():
			if _, err := s.Exchange().PlaceOrder(&order.Submit{
				Pair:   p,
				Side:   order.Buy,
				Type:   order.Market,
				Amount: s.orderAmount,
				Date:   ts,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetCustomSettings allows a user to modify the RSI limits and order sizing
func (s *Strategy) SetCustomSettings(customSettings map[string]any) error {
	for k, v := range customSettings {
		switch k {
		case rsiHighKey:
			rsiHigh, ok := v.(float64)
			if !ok || rsiHigh <= 0 {
				return fmt.Errorf("%w provided rsi-high value could not be parsed: %v", base.ErrInvalidCustomSettings, v)
			}
			s.rsiHigh = decimal.NewFromFloat(rsiHigh)
		case rsiLowKey:
			rsiLow, ok := v.(float64)
			if !ok || rsiLow <= 0 {
				return fmt.Errorf("%w provided rsi-low value could not be parsed: %v", base.ErrInvalidCustomSettings, v)
			}
			s.rsiLow = decimal.NewFromFloat(rsiLow)
		case rsiPeriodKey:
			rsiPeriod, ok := v.(float64)
			if !ok || rsiPeriod <= 0 {
				return fmt.Errorf("%w provided rsi-period value could not be parsed: %v", base.ErrInvalidCustomSettings, v)
			}
			s.rsiPeriod = int(rsiPeriod)
		case orderAmountKey:
			amount, ok := v.(float64)
			if !ok || amount <= 0 {
				return fmt.Errorf("%w provided order-amount value could not be parsed: %v", base.ErrInvalidCustomSettings, v)
			}
			s.orderAmount = decimal.NewFromFloat(amount)
		default:
			return fmt.Errorf("%w unrecognised custom setting key %v with value %v. Cannot apply", base.ErrInvalidCustomSettings, k, v)
		}
	}
	return nil
}

// SetDefaults sets the custom settings to their default values
func (s *Strategy) SetDefaults() {
	s.rsiHigh = decimal.NewFromInt(70)
	s.rsiLow = decimal.NewFromInt(30)
	s.rsiPeriod = 14
	s.orderAmount = decimal.NewFromInt(1)
}
