package exchange

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/quantave/backsim/currency"
	"github.com/quantave/backsim/order"
	"github.com/quantave/backsim/orderbook"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var one = decimal.NewFromInt(1)

// New returns a simulated exchange seeded with the supplied settings
func New(s Settings) (*Exchange, error) {
	if s.MakerFee.IsNegative() || s.TakerFee.IsNegative() {
		return nil, errInvalidFeeRate
	}
	if s.Slippage.IsNegative() || s.Slippage.GreaterThanOrEqual(one) {
		return nil, errInvalidSlippageRate
	}
	balances := make(map[currency.Code]decimal.Decimal, len(s.InitialBalances))
	for code, amount := range s.InitialBalances {
		if amount.IsNegative() {
			return nil, fmt.Errorf("%w for %s", errNegativeBalance, code)
		}
		balances[code.Upper()] = amount
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exchange{
		logger:   logger,
		makerFee: s.MakerFee,
		takerFee: s.TakerFee,
		slippage: s.Slippage,
		balances: balances,
		orders:   make(map[string]*order.Order),
	}, nil
}

// PlaceOrder validates and accepts an order intent. An intent whose
// worst-case required balance exceeds availability is returned with a
// REJECTED status and a reason, not an error, and causes no side effects.
func (e *Exchange) PlaceOrder(s *order.Submit) (*order.Order, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	e.m.Lock()
	defer e.m.Unlock()

	o := &order.Order{
		ID:          id.String(),
		Pair:        s.Pair.Upper(),
		Side:        s.Side,
		Type:        s.Type,
		Price:       s.Price,
		Amount:      s.Amount,
		Status:      order.Open,
		Date:        s.Date,
		LastUpdated: s.Date,
	}

	if reason := e.insufficientFor(o); reason != "" {
		o.Status = order.Rejected
		o.Reason = reason
		e.stats.OrdersRejected++
		e.logger.Debug("order rejected",
			zap.String("id", o.ID),
			zap.String("pair", o.Pair.String()),
			zap.String("reason", reason))
	} else {
		e.stats.OrdersPlaced++
	}

	e.orders[o.ID] = o
	e.orderSeq = append(e.orderSeq, o.ID)

	snapshot := *o
	return &snapshot, nil
}

// insufficientFor computes the worst-case required balance for the intent
// and returns a rejection reason when it exceeds availability. The check
// uses the requested price for LIMIT orders; MARKET orders are only
// validated against the paying asset's total balance.
func (e *Exchange) insufficientFor(o *order.Order) string {
	var required decimal.Decimal
	var asset currency.Code
	switch o.Side {
	case order.Buy:
		asset = o.Pair.Quote
		if o.Type == order.Limit {
			required = o.Price.Mul(o.Amount).Mul(one.Add(e.takerFee))
		}
	case order.Sell:
		asset = o.Pair.Base
		required = o.Amount
	}

	available := e.balances[asset]
	if o.Type == order.Market && o.Side == order.Buy {
		if available.LessThanOrEqual(decimal.Zero) {
			return fmt.Sprintf("insufficient %s balance, no funds available", asset)
		}
		return ""
	}
	if required.GreaterThan(available) {
		return fmt.Sprintf("insufficient %s balance, require %s have %s",
			asset, required, available)
	}
	return ""
}

// ProcessOrderMatching matches an open order against the supplied snapshot,
// consuming opposing price levels best-first. It returns the fills emitted
// by this pass; an order with zero matchable liquidity stays OPEN. Matching
// a terminal order is a no-op.
func (e *Exchange) ProcessOrderMatching(orderID string, book *orderbook.Snapshot, ts time.Time) ([]order.Fill, error) {
	if book == nil {
		return nil, errNilSnapshot
	}

	e.m.Lock()
	defer e.m.Unlock()

	o, ok := e.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", order.ErrOrderNotFound, orderID)
	}
	if o.Status.IsTerminal() {
		e.logger.Debug("skipping matching for terminal order",
			zap.String("id", orderID),
			zap.String("status", o.Status.String()))
		return nil, nil
	}

	levels := book.Asks
	if o.Side == order.Sell {
		levels = book.Bids
	}

	var fills []order.Fill
	for x := range levels {
		remaining := o.Remaining()
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		if levels[x].Price.LessThanOrEqual(decimal.Zero) ||
			levels[x].Amount.LessThanOrEqual(decimal.Zero) {
			e.logger.Warn("stopping match on malformed book level",
				zap.String("id", o.ID),
				zap.String("price", levels[x].Price.String()),
				zap.String("amount", levels[x].Amount.String()))
			break
		}
		if o.Type == order.Limit && e.violatesLimit(o, levels[x].Price) {
			break
		}

		price := e.adjustedPrice(o, levels[x].Price)
		amount := decimal.Min(remaining, levels[x].Amount)
		amount, clamped := e.affordable(o, price, amount)
		if amount.LessThanOrEqual(decimal.Zero) {
			break
		}

		fills = append(fills, e.applyFill(o, price, amount, ts))
		if clamped {
			// the paying balance is exhausted, no further level can fill
			break
		}
	}

	if len(fills) > 0 {
		o.LastUpdated = ts
		if o.FilledAmount.Equal(o.Amount) {
			o.Status = order.Filled
			e.stats.OrdersFilled++
		} else {
			o.Status = order.PartiallyFilled
		}
	}
	return fills, nil
}

// violatesLimit reports whether consuming a level at price would breach the
// order's limit
func (e *Exchange) violatesLimit(o *order.Order, price decimal.Decimal) bool {
	if o.Side == order.Buy {
		return price.GreaterThan(o.Price)
	}
	return price.LessThan(o.Price)
}

// adjustedPrice worsens a MARKET fill price by the configured slippage
// rate. LIMIT orders fill at the raw level price, their bound already caps
// the outcome.
func (e *Exchange) adjustedPrice(o *order.Order, price decimal.Decimal) decimal.Decimal {
	if o.Type != order.Market || e.slippage.IsZero() {
		return price
	}
	if o.Side == order.Buy {
		return price.Mul(one.Add(e.slippage))
	}
	return price.Mul(one.Sub(e.slippage))
}

// affordable clamps a candidate fill amount to what the paying balance
// covers, fee inclusive for a BUY
func (e *Exchange) affordable(o *order.Order, price, amount decimal.Decimal) (decimal.Decimal, bool) {
	if o.Side == order.Buy {
		unitCost := price.Mul(one.Add(e.takerFee))
		debit := unitCost.Mul(amount)
		available := e.balances[o.Pair.Quote]
		if debit.LessThanOrEqual(available) {
			return amount, false
		}
		// QuoRem truncates toward zero so the clamped debit stays covered
		clamped, _ := available.QuoRem(unitCost, amountPrecision)
		e.logger.Warn("fill clamped to affordable amount",
			zap.String("id", o.ID),
			zap.String("requested", amount.String()),
			zap.String("clamped", clamped.String()))
		return clamped, true
	}

	available := e.balances[o.Pair.Base]
	if amount.LessThanOrEqual(available) {
		return amount, false
	}
	e.logger.Warn("fill clamped to available base balance",
		zap.String("id", o.ID),
		zap.String("requested", amount.String()),
		zap.String("clamped", available.String()))
	return available, true
}

// applyFill mutates the ledger and order state for one consumed level. The
// debit and credit happen together under the exchange lock so no observer
// sees a half-applied fill.
func (e *Exchange) applyFill(o *order.Order, price, amount decimal.Decimal, ts time.Time) order.Fill {
	value := price.Mul(amount)
	fee := value.Mul(e.takerFee)

	base := o.Pair.Base
	quote := o.Pair.Quote
	if o.Side == order.Buy {
		e.balances[quote] = e.balances[quote].Sub(value.Add(fee))
		e.balances[base] = e.balances[base].Add(amount)
	} else {
		e.balances[base] = e.balances[base].Sub(amount)
		e.balances[quote] = e.balances[quote].Add(value.Sub(fee))
	}

	o.FilledAmount = o.FilledAmount.Add(amount)

	f := order.Fill{
		OrderID:   o.ID,
		Pair:      o.Pair,
		Side:      o.Side,
		Price:     price,
		Amount:    amount,
		Fee:       fee,
		Timestamp: ts,
	}
	e.fills = append(e.fills, f)
	e.stats.TotalFills++
	e.stats.TradedVolume = e.stats.TradedVolume.Add(value)
	e.stats.FeesPaid = e.stats.FeesPaid.Add(fee)
	return f
}

// CancelOrder moves an open order to CANCELLED
func (e *Exchange) CancelOrder(orderID string) error {
	e.m.Lock()
	defer e.m.Unlock()
	o, ok := e.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", order.ErrOrderNotFound, orderID)
	}
	if o.Status.IsTerminal() {
		return fmt.Errorf("cannot cancel order %s in status %s", orderID, o.Status)
	}
	o.Status = order.Cancelled
	e.stats.OrdersCancelled++
	return nil
}

// Balance returns the current balance for an asset, zero when the asset is
// unknown
func (e *Exchange) Balance(c currency.Code) decimal.Decimal {
	e.m.Lock()
	defer e.m.Unlock()
	return e.balances[c.Upper()]
}

// AllBalances returns a copy of the balance ledger
func (e *Exchange) AllBalances() map[currency.Code]decimal.Decimal {
	e.m.Lock()
	defer e.m.Unlock()
	out := make(map[currency.Code]decimal.Decimal, len(e.balances))
	for code, amount := range e.balances {
		out[code] = amount
	}
	return out
}

// OpenOrders returns copies of all orders still eligible for matching, in
// placement order
func (e *Exchange) OpenOrders() []order.Order {
	e.m.Lock()
	defer e.m.Unlock()
	var out []order.Order
	for x := range e.orderSeq {
		o := e.orders[e.orderSeq[x]]
		if o.IsOpen() {
			out = append(out, *o)
		}
	}
	return out
}

// Orders returns copies of every order this venue has seen, in placement
// order
func (e *Exchange) Orders() []order.Order {
	e.m.Lock()
	defer e.m.Unlock()
	out := make([]order.Order, len(e.orderSeq))
	for x := range e.orderSeq {
		out[x] = *e.orders[e.orderSeq[x]]
	}
	return out
}

// GetOrder returns a copy of a single order by id
func (e *Exchange) GetOrder(orderID string) (order.Order, error) {
	e.m.Lock()
	defer e.m.Unlock()
	o, ok := e.orders[orderID]
	if !ok {
		return order.Order{}, fmt.Errorf("%w: %s", order.ErrOrderNotFound, orderID)
	}
	return *o, nil
}

// Fills returns a copy of the venue-wide ordered fill log
func (e *Exchange) Fills() []order.Fill {
	e.m.Lock()
	defer e.m.Unlock()
	out := make([]order.Fill, len(e.fills))
	copy(out, e.fills)
	return out
}

// Stats returns a snapshot of venue activity counters
func (e *Exchange) Stats() Stats {
	e.m.Lock()
	defer e.m.Unlock()
	return e.stats
}

// Reset clears all orders, fills and counters and installs fresh balances
// so the venue can be reused across runs
func (e *Exchange) Reset(initialBalances map[currency.Code]decimal.Decimal) error {
	balances := make(map[currency.Code]decimal.Decimal, len(initialBalances))
	for code, amount := range initialBalances {
		if amount.IsNegative() {
			return fmt.Errorf("%w for %s", errNegativeBalance, code)
		}
		balances[code.Upper()] = amount
	}

	e.m.Lock()
	defer e.m.Unlock()
	e.balances = balances
	e.orders = make(map[string]*order.Order)
	e.orderSeq = nil
	e.fills = nil
	e.stats = Stats{}
	return nil
}

// MakerFee returns the configured maker fee rate. The matching routine only
// generates taker fills, the maker rate is carried for the config echo and
// future passive fill support.
func (e *Exchange) MakerFee() decimal.Decimal {
	return e.makerFee
}

// TakerFee returns the configured taker fee rate
func (e *Exchange) TakerFee() decimal.Decimal {
	return e.takerFee
}
