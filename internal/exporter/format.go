package exporter

import (
	"math"

	"github.com/shopspring/decimal"
)

// Inf is how an unbounded ratio is spelled in tabular output
const Inf = "inf"

// roundCents rounds a dollar amount to exactly two decimal places
func roundCents(f float64) float64 {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return f
	}
	v, _ := decimal.NewFromFloat(f).Round(2).Float64()
	return v
}

// roundTo rounds f to places decimals
func roundTo(f float64, places int32) float64 {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return f
	}
	v, _ := decimal.NewFromFloat(f).Round(places).Float64()
	return v
}

// FormatMoney formats a dollar amount with exactly 2 decimal places, so
// 13.4 appears as 13.40
func FormatMoney(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return Inf
	}
	return decimal.NewFromFloat(f).StringFixed(2)
}

// Ratio is a risk/reward value that may be +Inf. It renders as "inf" in
// CSV and as null in JSON.
type Ratio float64

// IsFinite reports whether the ratio is a real number
func (r Ratio) IsFinite() bool {
	f := float64(r)
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

// String implements fmt.Stringer
func (r Ratio) String() string {
	if !r.IsFinite() {
		return Inf
	}
	return decimal.NewFromFloat(float64(r)).Round(4).String()
}

// MarshalCSV implements gocsv.TypeMarshaller
func (r Ratio) MarshalCSV() (string, error) {
	return r.String(), nil
}

// MarshalJSON writes null for an unbounded ratio
func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.IsFinite() {
		return []byte("null"), nil
	}
	return []byte(r.String()), nil
}

// cellValue is the spreadsheet representation of the ratio
func (r Ratio) cellValue() interface{} {
	if !r.IsFinite() {
		return Inf
	}
	return roundTo(float64(r), 4)
}
