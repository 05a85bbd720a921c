package order

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validate checks the supplied data and returns whether or not it's valid
func (s *Submit) Validate() error {
	if s == nil {
		return ErrSubmissionIsNil
	}

	if s.Pair.IsEmpty() {
		return ErrPairIsEmpty
	}

	if s.Side != Buy && s.Side != Sell {
		return ErrSideIsInvalid
	}

	if s.Type != Market && s.Type != Limit {
		return ErrTypeIsInvalid
	}

	if s.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrAmountIsInvalid
	}

	if s.Type == Limit && s.Price.LessThanOrEqual(decimal.Zero) {
		return ErrPriceMustBeSetIfLimitOrder
	}

	return nil
}

// String implements the stringer interface
func (s Side) String() string {
	return string(s)
}

// Lower returns the side lower case string
func (s Side) Lower() string {
	return strings.ToLower(string(s))
}

// String implements the stringer interface
func (t Type) String() string {
	return string(t)
}

// Lower returns the type lower case string
func (t Type) Lower() string {
	return strings.ToLower(string(t))
}

// String implements the stringer interface
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns whether the order has reached a final state and can
// no longer match
func (s Status) IsTerminal() bool {
	switch s {
	case Filled, Cancelled, Rejected:
		return true
	}
	return false
}

// StringToOrderSide for converting case insensitive order side
// and returning a real Side
func StringToOrderSide(side string) (Side, error) {
	switch {
	case strings.EqualFold(side, string(Buy)):
		return Buy, nil
	case strings.EqualFold(side, string(Sell)):
		return Sell, nil
	default:
		return UnknownSide, fmt.Errorf("%q %w", side, ErrSideIsInvalid)
	}
}

// StringToOrderType for converting case insensitive order type
// and returning a real Type
func StringToOrderType(oType string) (Type, error) {
	switch {
	case strings.EqualFold(oType, string(Limit)):
		return Limit, nil
	case strings.EqualFold(oType, string(Market)):
		return Market, nil
	default:
		return UnknownType, fmt.Errorf("%q %w", oType, ErrTypeIsInvalid)
	}
}

// Remaining returns the unfilled portion of the order amount
func (o *Order) Remaining() decimal.Decimal {
	return o.Amount.Sub(o.FilledAmount)
}

// IsOpen returns whether the order can still be matched
func (o *Order) IsOpen() bool {
	return !o.Status.IsTerminal()
}

// Value returns the notional value of the fill excluding fees
func (f *Fill) Value() decimal.Decimal {
	return f.Price.Mul(f.Amount)
}
