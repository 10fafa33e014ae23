// Package market_hours implements the trading calendar gate: region resolution,
// live market status with a time-based fallback, a TTL cache and request coalescing.
package market_hours

import (
	"time"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
)

// Session is the trading session a market is in
type Session string

const (
	SessionPre     Session = "pre"
	SessionRegular Session = "regular"
	SessionPost    Session = "post"
	SessionClosed  Session = "closed"
)

// IsOpen reports whether trading happens during the session
func (s Session) IsOpen() bool {
	return s == SessionPre || s == SessionRegular || s == SessionPost
}

// MarketStatus is the computed, unpersisted status of one region
type MarketStatus struct {
	CheckedAt time.Time     `json:"checked_at"`
	Region    domain.Region `json:"region"`
	Session   Session       `json:"session"`
	Source    string        `json:"source"`
	IsOpen    bool          `json:"is_open"`
	Fallback  bool          `json:"fallback"` // true when answered by the time-based calendar
}

// TradingWindow is one session's local-time window, [start, end)
type TradingWindow struct {
	Session     Session
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
}

func (w TradingWindow) contains(local time.Time) bool {
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= w.StartHour*60+w.StartMinute && minutes < w.EndHour*60+w.EndMinute
}

// RegionCalendar holds the canonical weekday sessions for a region
type RegionCalendar struct {
	Region   domain.Region
	Timezone *time.Location
	Windows  []TradingWindow
}
