package clock

import (
	"sync"
	"time"

	"github.com/scmhub/calendar"
	"github.com/yanun0323/logs"
)

// U.S. equity session bounds, in exchange-local time.
const (
	openHour    = 9
	openMinute  = 30
	closeHour   = 16
	closeMinute = 0
)

// TradingCalendar answers market-day and session questions for U.S. equities.
// Holidays come from the NYSE calendar (ISO 10383 MIC "xnys"); when the
// calendar cannot be loaded it falls back to plain Mon-Fri sessions.
type TradingCalendar struct {
	cal      *calendar.Calendar
	fallback bool
	loc      *time.Location
}

// NewTradingCalendar loads the NYSE trading calendar.
func NewTradingCalendar() *TradingCalendar {
	cal := calendar.GetCalendar("xnys")
	if cal == nil {
		logs.Warn("nyse calendar unavailable, falling back to Mon-Fri sessions")
		return &TradingCalendar{fallback: true, loc: MarketLocation()}
	}
	return &TradingCalendar{cal: cal, loc: cal.Loc}
}

var (
	marketLocOnce sync.Once
	marketLoc     *time.Location
)

// MarketLocation returns the exchange's time zone without requiring the
// holiday calendar to load. Dates persisted as keys must be normalized
// through it so the same market day maps to one key on any host.
func MarketLocation() *time.Location {
	marketLocOnce.Do(func() {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.UTC
		}
		marketLoc = loc
	})
	return marketLoc
}

// Location returns the exchange's time zone.
func (tc *TradingCalendar) Location() *time.Location {
	return tc.loc
}

// IsTradingDay reports whether markets open at all on the given date.
func (tc *TradingCalendar) IsTradingDay(t time.Time) bool {
	t = t.In(tc.loc)
	if tc.fallback {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return tc.cal.IsBusinessDay(t)
}

// IsOpenMoment reports whether the regular session contains the given moment.
func (tc *TradingCalendar) IsOpenMoment(t time.Time) bool {
	t = t.In(tc.loc)
	if !tc.IsTradingDay(t) {
		return false
	}
	return !t.Before(tc.OpenAt(t)) && t.Before(tc.CloseAt(t))
}

// OpenAt returns the session open on the given moment's date.
func (tc *TradingCalendar) OpenAt(t time.Time) time.Time {
	t = t.In(tc.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), openHour, openMinute, 0, 0, tc.loc)
}

// CloseAt returns the session close on the given moment's date.
func (tc *TradingCalendar) CloseAt(t time.Time) time.Time {
	t = t.In(tc.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), closeHour, closeMinute, 0, 0, tc.loc)
}
