package market_hours

import (
	"time"
	_ "time/tzdata" // Calendar math must not depend on the host zoneinfo

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
)

// SourceCalendar names the time-based fallback in MarketStatus.Source
const SourceCalendar = "calendar"

// regionCalendars are the canonical weekday sessions per region.
// EU has no modeled pre/post session.
var regionCalendars = map[domain.Region]RegionCalendar{
	domain.RegionUS: {
		Region:   domain.RegionUS,
		Timezone: mustLoadLocation("America/New_York"),
		Windows: []TradingWindow{
			{Session: SessionPre, StartHour: 4, StartMinute: 0, EndHour: 9, EndMinute: 30},
			{Session: SessionRegular, StartHour: 9, StartMinute: 30, EndHour: 16, EndMinute: 0},
			{Session: SessionPost, StartHour: 16, StartMinute: 0, EndHour: 20, EndMinute: 0},
		},
	},
	// Continental cash session, 09:00-17:30 CET/CEST (08:00-16:30 London)
	domain.RegionEU: {
		Region:   domain.RegionEU,
		Timezone: mustLoadLocation("Europe/Berlin"),
		Windows: []TradingWindow{
			{Session: SessionRegular, StartHour: 9, StartMinute: 0, EndHour: 17, EndMinute: 30},
		},
	},
}

// CalendarFor returns the calendar used for region. OTHER uses the EU calendar.
func CalendarFor(region domain.Region) RegionCalendar {
	if cal, ok := regionCalendars[region]; ok {
		return cal
	}
	return regionCalendars[domain.RegionEU]
}

// SessionAt returns the session a region is in at t. Weekends are always closed.
func SessionAt(region domain.Region, t time.Time) Session {
	cal := CalendarFor(region)
	local := t.In(cal.Timezone)

	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return SessionClosed
	}

	for _, w := range cal.Windows {
		if w.contains(local) {
			return w.Session
		}
	}
	return SessionClosed
}

// FallbackStatus computes a status from the calendar alone. It is a pure function of
// region and t.
func FallbackStatus(region domain.Region, t time.Time) MarketStatus {
	session := SessionAt(region, t)
	return MarketStatus{
		CheckedAt: t,
		Region:    region,
		Session:   session,
		Source:    SourceCalendar,
		IsOpen:    session.IsOpen(),
		Fallback:  true,
	}
}

// mustLoadLocation loads a timezone or panics; tz names are compile-time constants
func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("failed to load timezone " + name + ": " + err.Error())
	}
	return loc
}
