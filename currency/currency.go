package currency

import (
	"errors"
	"strings"
)

var (
	// ErrCurrencyCodeEmpty defines an error if the currency code is empty
	ErrCurrencyCodeEmpty = errors.New("currency code is empty")
	// ErrCurrencyPairEmpty defines an error if the currency pair is empty
	ErrCurrencyPairEmpty = errors.New("currency pair is empty")
	// EMPTYCODE is an empty currency code
	EMPTYCODE = Code("")
	// EMPTYPAIR is an empty currency pair
	EMPTYPAIR = Pair{}
)

// Common currency codes
var (
	BTC  = NewCode("BTC")
	ETH  = NewCode("ETH")
	LTC  = NewCode("LTC")
	SOL  = NewCode("SOL")
	USD  = NewCode("USD")
	USDT = NewCode("USDT")
	USDC = NewCode("USDC")
	EUR  = NewCode("EUR")
)

// Code defines an ISO 4217 style currency identifier e.g. BTC, USD
type Code string

// NewCode returns a new uppercase currency code
func NewCode(c string) Code {
	return Code(strings.ToUpper(strings.TrimSpace(c)))
}

// String implements the stringer interface
func (c Code) String() string {
	return string(c)
}

// Lower converts the code to lowercase formatting
func (c Code) Lower() Code {
	return Code(strings.ToLower(string(c)))
}

// Upper converts the code to uppercase formatting
func (c Code) Upper() Code {
	return Code(strings.ToUpper(string(c)))
}

// IsEmpty returns true if the code is empty
func (c Code) IsEmpty() bool {
	return c == ""
}

// Equal returns if the code is equal to the supplied code, case insensitive
func (c Code) Equal(check Code) bool {
	return strings.EqualFold(string(c), string(check))
}
