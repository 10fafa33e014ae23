// Package formulas holds the technical indicators attached to research inputs.
package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// CalculateRSI returns the latest Relative Strength Index over length periods,
// or nil with fewer than length+1 closes.
//
//	RSI = 100 - 100 / (1 + avgGain/avgLoss)
func CalculateRSI(closes []float64, length int) *float64 {
	if length <= 0 || len(closes) < length+1 {
		return nil
	}
	return last(talib.Rsi(closes, length))
}

// CalculateSMA returns the latest simple moving average, or nil with fewer than length closes
func CalculateSMA(closes []float64, length int) *float64 {
	if length <= 0 || len(closes) < length {
		return nil
	}
	return last(talib.Sma(closes, length))
}

func last(series []float64) *float64 {
	if len(series) == 0 {
		return nil
	}
	v := series[len(series)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
