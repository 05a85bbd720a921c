package statistics

import (
	"encoding/json"
	"math"
	"strconv"
)

// Ratio is a dimensionless risk figure. Unlike the monetary decimal fields
// it can legitimately hold ±Inf, which encoding/json refuses to emit for a
// plain float64, so it marshals the non-finite values as quoted strings.
type Ratio float64

// Float64 returns the underlying value
func (r Ratio) Float64() float64 {
	return float64(r)
}

// IsInf reports whether the ratio is infinite
func (r Ratio) IsInf() bool {
	return math.IsInf(float64(r), 0)
}

// String renders finite values to four decimal places and non-finite
// values the same way MarshalJSON spells them
func (r Ratio) String() string {
	f := float64(r)
	switch {
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	case math.IsNaN(f):
		return "NaN"
	}
	return strconv.FormatFloat(f, 'f', 4, 64)
}

// MarshalJSON implements json.Marshaler
func (r Ratio) MarshalJSON() ([]byte, error) {
	f := float64(r)
	switch {
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	}
	return json.Marshal(f)
}

// UnmarshalJSON implements json.Unmarshaler
func (r *Ratio) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"+Inf"`, `"Inf"`:
		*r = Ratio(math.Inf(1))
		return nil
	case `"-Inf"`:
		*r = Ratio(math.Inf(-1))
		return nil
	case `"NaN"`:
		*r = Ratio(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*r = Ratio(f)
	return nil
}
