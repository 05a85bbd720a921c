package script

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/quantave/backsim/currency"
	"github.com/quantave/backsim/data"
	"github.com/quantave/backsim/order"
	"github.com/quantave/backsim/strategies/base"
	"github.com/shopspring/decimal"
)

const (
	// Name is the strategy name
	Name          = "script"
	scriptKey     = "script"
	scriptPathKey = "script-path"
	description   = `Runs a user supplied Tengo script once per pair per tick. The script receives pair, timestamp, mid, best_bid, best_ask, base_balance and quote_balance, and responds by assigning signal ("buy" or "sell") and amount`
)

var errNoScriptSource = errors.New("no script source provided")

// inputs every script can read, and the two output variables it assigns
var scriptVariables = map[string]any{
	"pair":          "",
	"timestamp":     int64(0),
	"mid":           0.0,
	"best_bid":      0.0,
	"best_ask":      0.0,
	"base_balance":  0.0,
	"quote_balance": 0.0,
	"signal":        "",
	"amount":        0.0,
}

// Strategy compiles a Tengo script once and executes it for every pair on
// every tick, translating its signal/amount outputs into market orders
type Strategy struct {
	base.Strategy
	source   []byte
	compiled *tengo.Compiled
}

// Name returns the name of the strategy
func (s *Strategy) Name() string {
	return Name
}

// Description provides a nice overview of the strategy
func (s *Strategy) Description() string {
	return description
}

// Initialise compiles the configured script source
func (s *Strategy) Initialise() error {
	if len(s.source) == 0 {
		return errNoScriptSource
	}
	script := tengo.NewScript(s.source)
	for name, value := range scriptVariables {
		if err := script.Add(name, value); err != nil {
			return fmt.Errorf("unable to bind script variable %v: %w", name, err)
		}
	}
	compiled, err := script.Compile()
	if err != nil {
		return fmt.Errorf("script compilation failed: %w", err)
	}
	s.compiled = compiled
	return nil
}

// OnTick runs the compiled script for each pair and places the order it
// signalled, if any
func (s *Strategy) OnTick(ts time.Time, ticks map[currency.Pair]*data.Tick) error {
	if s.Exchange() == nil {
		return base.ErrExchangeUnset
	}
	if s.compiled == nil {
		return errNoScriptSource
	}
	for _, p := range base.SortedPairs(ticks) {
		if err := s.bindTick(p, ts, ticks[p]); err != nil {
			return err
		}
		if err := s.compiled.Run(); err != nil {
			return fmt.Errorf("script execution failed for %v: %w", p, err)
		}

		signal := strings.ToUpper(s.compiled.Get("signal").String())
		amount := decimal.NewFromFloat(s.compiled.Get("amount").Float())
		if signal == "" || !amount.IsPositive() {
			continue
		}
		side, err := order.StringToOrderSide(signal)
		if err != nil {
			return fmt.Errorf("script for %v signalled %q: %w", p, signal, err)
		}
		if _, err := s.Exchange().PlaceOrder(&order.Submit{
			Pair:   p,
			Side:   side,
			Type:   order.Market,
			Amount: amount,
			Date:   ts,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Strategy) bindTick(p currency.Pair, ts time.Time, tick *data.Tick) error {
	var bidPrice, askPrice, midPrice float64
	if bid, ok := tick.OrderBook.BestBid(); ok {
		bidPrice = bid.Price.InexactFloat64()
	}
	if ask, ok := tick.OrderBook.BestAsk(); ok {
		askPrice = ask.Price.InexactFloat64()
	}
	if mid, ok := tick.OrderBook.MidPrice(); ok {
		midPrice = mid.InexactFloat64()
	}
	values := map[string]any{
		"pair":          p.String(),
		"timestamp":     ts.Unix(),
		"mid":           midPrice,
		"best_bid":      bidPrice,
		"best_ask":      askPrice,
		"base_balance":  s.Exchange().Balance(p.Base).InexactFloat64(),
		"quote_balance": s.Exchange().Balance(p.Quote).InexactFloat64(),
		"signal":        "",
		"amount":        0.0,
	}
	for name, value := range values {
		if err := s.compiled.Set(name, value); err != nil {
			return fmt.Errorf("unable to set script variable %v: %w", name, err)
		}
	}
	return nil
}

// SetCustomSettings accepts the script source inline or as a file path
func (s *Strategy) SetCustomSettings(customSettings map[string]any) error {
	for k, v := range customSettings {
		switch k {
		case scriptKey:
			src, ok := v.(string)
			if !ok || src == "" {
				return fmt.Errorf("%w provided script value could not be parsed: %v", base.ErrInvalidCustomSettings, v)
			}
			s.source = []byte(src)
		case scriptPathKey:
			path, ok := v.(string)
			if !ok || path == "" {
				return fmt.Errorf("%w provided script-path value could not be parsed: %v", base.ErrInvalidCustomSettings, v)
			}
			src, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("%w unable to read script file %v: %v", base.ErrInvalidCustomSettings, path, err)
			}
			s.source = src
		default:
			return fmt.Errorf("%w unrecognised custom setting key %v with value %v. Cannot apply", base.ErrInvalidCustomSettings, k, v)
		}
	}
	return nil
}

// SetDefaults is intentionally empty, a script must be supplied through
// custom settings
func (s *Strategy) SetDefaults() {}
