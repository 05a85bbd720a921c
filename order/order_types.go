package order

import (
	"errors"
	"time"

	"github.com/quantave/backsim/currency"
	"github.com/shopspring/decimal"
)

var (
	// ErrSubmissionIsNil is returned when the order submission is nil
	ErrSubmissionIsNil = errors.New("order submission is nil")
	// ErrPairIsEmpty is returned when the order pair is empty
	ErrPairIsEmpty = errors.New("order pair is empty")
	// ErrSideIsInvalid is returned when the order side is invalid
	ErrSideIsInvalid = errors.New("order side is invalid")
	// ErrTypeIsInvalid is returned when the order type is invalid
	ErrTypeIsInvalid = errors.New("order type is invalid")
	// ErrAmountIsInvalid is returned when the order amount is zero or negative
	ErrAmountIsInvalid = errors.New("order amount is invalid")
	// ErrPriceMustBeSetIfLimitOrder is returned when a limit order is missing
	// a price
	ErrPriceMustBeSetIfLimitOrder = errors.New("price must be set if limit order type")
	// ErrOrderNotFound is returned when an order id cannot be matched
	ErrOrderNotFound = errors.New("order not found")
)

// Side is an order side
type Side string

// Order sides
const (
	UnknownSide Side = ""
	Buy         Side = "BUY"
	Sell        Side = "SELL"
)

// Type is an order execution type
type Type string

// Order types
const (
	UnknownType Type = ""
	Limit       Type = "LIMIT"
	Market      Type = "MARKET"
)

// Status defines the state of an order in the venue
type Status string

// Order statuses
const (
	Open            Status = "OPEN"
	PartiallyFilled Status = "PARTIALLY_FILLED"
	Filled          Status = "FILLED"
	Cancelled       Status = "CANCELLED"
	Rejected        Status = "REJECTED"
)

// Submit contains the fields a strategy supplies when raising an order
// intent
type Submit struct {
	Pair   currency.Pair
	Side   Side
	Type   Type
	Price  decimal.Decimal
	Amount decimal.Decimal
	Date   time.Time
}

// Order is the matching venue's view of an accepted or rejected submission
type Order struct {
	ID           string          `json:"id"`
	Pair         currency.Pair   `json:"pair"`
	Side         Side            `json:"side"`
	Type         Type            `json:"type"`
	Price        decimal.Decimal `json:"price"`
	Amount       decimal.Decimal `json:"amount"`
	FilledAmount decimal.Decimal `json:"filled-amount"`
	Status       Status          `json:"status"`
	Reason       string          `json:"reason,omitempty"`
	Date         time.Time       `json:"date"`
	LastUpdated  time.Time       `json:"last-updated"`
}

// Fill is one matched quantity at one price for one order
type Fill struct {
	OrderID   string          `json:"order-id"`
	Pair      currency.Pair   `json:"pair"`
	Side      Side            `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Fee       decimal.Decimal `json:"fee"`
	Timestamp time.Time       `json:"timestamp"`
}
