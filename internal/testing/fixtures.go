package testing

import (
	"math"
	"time"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
)

// NewTargetFixtures returns a mixed US/EU/other target list
func NewTargetFixtures() []domain.SyncTarget {
	return []domain.SyncTarget{
		{Symbol: "AAPL", Exchange: "NASDAQ", Name: "Apple Inc."},
		{Symbol: "MSFT", Exchange: "NASDAQ", Name: "Microsoft Corp."},
		{Symbol: "SAP.DE", Exchange: "XETRA", Name: "SAP SE"},
		{Symbol: "MC.PA", Exchange: "EURONEXT", Name: "LVMH"},
		{Symbol: "7203.T", Exchange: "TSE", Name: "Toyota Motor"},
	}
}

// NewCandleSeries returns n daily candles ending the day before end, with a gentle
// oscillating uptrend starting at base.
func NewCandleSeries(n int, base float64, end time.Time) []domain.Candle {
	candles := make([]domain.Candle, n)
	start := end.AddDate(0, 0, -n)
	for i := 0; i < n; i++ {
		c := base * (1 + 0.002*float64(i) + 0.03*math.Sin(float64(i)/5))
		candles[i] = domain.Candle{
			Time:   start.AddDate(0, 0, i).Unix(),
			Open:   c * 0.995,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1_000_000 + float64(i)*1000,
		}
	}
	return candles
}

// NewSnapshotFixture returns a snapshot for symbol priced at price
func NewSnapshotFixture(symbol string, price float64, at time.Time) *domain.Snapshot {
	return &domain.Snapshot{
		FetchedAt:     at,
		Symbol:        symbol,
		Price:         price,
		Change:        price * 0.01,
		ChangePercent: 1,
		High:          price * 1.02,
		Low:           price * 0.98,
		Open:          price * 0.99,
		PreviousClose: price * 0.99,
		Timestamp:     at.Unix(),
	}
}
