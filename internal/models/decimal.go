package models

import "github.com/shopspring/decimal"

// Scale is the number of fractional digits persisted for every decimal column (NUMERIC(20,8)).
const Scale int32 = 8

// IntegerDigits is what NUMERIC(20,8) leaves for the integer part.
const IntegerDigits int32 = 12

var maxMagnitude = decimal.New(1, IntegerDigits)

// FitsScale reports whether d can be stored without losing digits.
func FitsScale(d decimal.Decimal) bool {
	return d.Round(Scale).Equal(d)
}

// FitsPrecision reports whether d fits a NUMERIC(20,8) column: no lost fractional
// digits and an absolute value below 10^12.
func FitsPrecision(d decimal.Decimal) bool {
	return FitsScale(d) && d.Abs().LessThan(maxMagnitude)
}
