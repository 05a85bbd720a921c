package currency

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Pair holds currency pair information
type Pair struct {
	Delimiter string `json:"delimiter,omitempty"`
	Base      Code   `json:"base,omitempty"`
	Quote     Code   `json:"quote,omitempty"`
}

// Pairs defines a list of pairs
type Pairs []Pair

// NewPair returns a currency pair from currency codes
func NewPair(baseCurrency, quoteCurrency Code) Pair {
	return Pair{
		Base:  baseCurrency,
		Quote: quoteCurrency,
	}
}

// NewPairWithDelimiter returns a Pair with a delimiter
func NewPairWithDelimiter(base, quote, delimiter string) Pair {
	return Pair{
		Base:      NewCode(base),
		Quote:     NewCode(quote),
		Delimiter: delimiter,
	}
}

// NewPairDelimiter splits the desired currency string at delimiter, then
// returns a Pair struct
func NewPairDelimiter(currencyPair, delimiter string) (Pair, error) {
	if !strings.Contains(currencyPair, delimiter) {
		return EMPTYPAIR,
			fmt.Errorf("delimiter %q not found in pair string %q", delimiter, currencyPair)
	}
	result := strings.Split(currencyPair, delimiter)
	if len(result) < 2 || result[0] == "" || result[1] == "" {
		return EMPTYPAIR,
			fmt.Errorf("pair string %q missing base or quote currency", currencyPair)
	}
	return Pair{
		Delimiter: delimiter,
		Base:      NewCode(result[0]),
		Quote:     NewCode(result[1]),
	}, nil
}

// NewPairFromString converts a currency string into a new Pair with or without
// delimiter
func NewPairFromString(currencyPair string) (Pair, error) {
	delimiters := []string{"_", "-", "/", ":"}
	for x := range delimiters {
		if strings.Contains(currencyPair, delimiters[x]) {
			return NewPairDelimiter(currencyPair, delimiters[x])
		}
	}
	if len(currencyPair) < 4 {
		return EMPTYPAIR,
			fmt.Errorf("%w: cannot derive base and quote from %q",
				ErrCurrencyPairEmpty, currencyPair)
	}
	return Pair{
		Base:  NewCode(currencyPair[0:3]),
		Quote: NewCode(currencyPair[3:]),
	}, nil
}

// String returns a currency pair string
func (p Pair) String() string {
	return p.Base.String() + p.Delimiter + p.Quote.String()
}

// Upper converts the pair object to uppercase
func (p Pair) Upper() Pair {
	return Pair{
		Delimiter: p.Delimiter,
		Base:      p.Base.Upper(),
		Quote:     p.Quote.Upper(),
	}
}

// Lower converts the pair object to lowercase
func (p Pair) Lower() Pair {
	return Pair{
		Delimiter: p.Delimiter,
		Base:      p.Base.Lower(),
		Quote:     p.Quote.Lower(),
	}
}

// IsEmpty returns whether or not the pair is empty or is missing a currency
// code
func (p Pair) IsEmpty() bool {
	return p.Base.IsEmpty() || p.Quote.IsEmpty()
}

// IsInvalid checks invalid pair if base and quote are the same
func (p Pair) IsInvalid() bool {
	return p.Base.Equal(p.Quote)
}

// Equal compares two currency pairs and returns whether or not they are equal
func (p Pair) Equal(cPair Pair) bool {
	return p.Base.Equal(cPair.Base) && p.Quote.Equal(cPair.Quote)
}

// Swap turns the currency pair into its reciprocal
func (p Pair) Swap() Pair {
	p.Base, p.Quote = p.Quote, p.Base
	return p
}

// ContainsCurrency checks to see if a pair contains a specific currency
func (p Pair) ContainsCurrency(c Code) bool {
	return p.Base.Equal(c) || p.Quote.Equal(c)
}

// MarshalJSON conforms type to the marshaler interface
func (p Pair) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON conforms type to the unmarshaler interface
func (p *Pair) UnmarshalJSON(d []byte) error {
	var pair string
	err := json.Unmarshal(d, &pair)
	if err != nil {
		return err
	}
	if pair == "" {
		*p = EMPTYPAIR
		return nil
	}
	newPair, err := NewPairFromString(pair)
	if err != nil {
		return err
	}
	*p = newPair
	return nil
}

// MarshalText implements the encoding.TextMarshaler interface so pairs can
// key JSON maps
func (p Pair) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface
func (p *Pair) UnmarshalText(d []byte) error {
	if len(d) == 0 {
		*p = EMPTYPAIR
		return nil
	}
	newPair, err := NewPairFromString(string(d))
	if err != nil {
		return err
	}
	*p = newPair
	return nil
}

// Contains checks to see if a specified pair exists inside a currency pair
// array
func (p Pairs) Contains(check Pair) bool {
	for x := range p {
		if p[x].Equal(check) {
			return true
		}
	}
	return false
}

// Strings returns a slice of strings referring to each currency pair
func (p Pairs) Strings() []string {
	list := make([]string, len(p))
	for x := range p {
		list[x] = p[x].String()
	}
	return list
}
