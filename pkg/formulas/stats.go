package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear annualizes daily statistics
const TradingDaysPerYear = 252

// Mean of data, 0 for empty input
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev is the sample standard deviation, 0 with fewer than two points
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// LogReturns converts closes into daily log returns. Non-positive prices are skipped.
func LogReturns(closes []float64) []float64 {
	returns := make([]float64, 0, len(closes))
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev <= 0 || cur <= 0 {
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	return returns
}

// AnnualizedVolatility of daily closes, or nil with fewer than three closes
func AnnualizedVolatility(closes []float64) *float64 {
	returns := LogReturns(closes)
	if len(returns) < 2 {
		return nil
	}
	v := StdDev(returns) * math.Sqrt(TradingDaysPerYear)
	return &v
}

// MaxDrawdown is the largest peak-to-trough decline as a positive fraction
func MaxDrawdown(closes []float64) float64 {
	peak := 0.0
	maxDD := 0.0
	for _, c := range closes {
		if c > peak {
			peak = c
		}
		if peak > 0 {
			if dd := (peak - c) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
