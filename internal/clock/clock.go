package clock

import (
	"sync"
	"time"
)

// Clock is a movable time source. It wraps the wall clock with an offset so
// "now" can be advanced independently of real time, letting the same trading
// logic run live or against replayed history. A single Clock is shared by
// every environment forked from it.
type Clock struct {
	mu     sync.Mutex
	offset time.Duration
	cal    *TradingCalendar
}

// New creates a clock whose Now starts at the given moment.
func New(moment time.Time, cal *TradingCalendar) *Clock {
	if cal == nil {
		cal = NewTradingCalendar()
	}
	c := &Clock{cal: cal}
	c.SetMoment(moment)
	return c
}

// SetMoment moves the clock's perspective to the specified moment in time.
func (c *Clock) SetMoment(moment time.Time) {
	c.mu.Lock()
	c.offset = time.Since(moment)
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.offset -= d
	c.mu.Unlock()
}

// Now returns the clock's current moment.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	offset := c.offset
	c.mu.Unlock()
	return time.Now().Add(-offset)
}

// Calendar returns the clock's trading calendar.
func (c *Clock) Calendar() *TradingCalendar {
	return c.cal
}

// IsOpen reports whether markets are open at the clock's current moment.
func (c *Clock) IsOpen() bool {
	return c.IsOpenAt(c.Now())
}

// IsOpenAt reports whether markets are open at the given moment.
func (c *Clock) IsOpenAt(moment time.Time) bool {
	return c.cal.IsOpenMoment(moment)
}

// IsMarketDay reports whether markets open at all on the given date.
func (c *Clock) IsMarketDay(day time.Time) bool {
	return c.cal.IsTradingDay(day)
}

// PrevMarketDay returns the closest date before the given one with an open
// market session.
func (c *Clock) PrevMarketDay(day time.Time) time.Time {
	prev := day.AddDate(0, 0, -1)
	for !c.cal.IsTradingDay(prev) {
		prev = prev.AddDate(0, 0, -1)
	}
	return prev
}

// NextMarketDay returns the closest date after the given one with an open
// market session.
func (c *Clock) NextMarketDay(day time.Time) time.Time {
	next := day.AddDate(0, 0, 1)
	for !c.cal.IsTradingDay(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// UntilOpen returns the time remaining until the next session open, or zero
// if markets are open at the given moment.
func (c *Clock) UntilOpen(moment time.Time) time.Duration {
	if c.cal.IsOpenMoment(moment) {
		return 0
	}
	open := c.cal.OpenAt(moment)
	if !moment.Before(open) {
		open = c.cal.OpenAt(c.NextMarketDay(moment))
	}
	return open.Sub(moment)
}

// UntilClose returns the time remaining in the current session, or zero if
// markets are closed at the given moment.
func (c *Clock) UntilClose(moment time.Time) time.Duration {
	if !c.cal.IsOpenMoment(moment) {
		return 0
	}
	return c.cal.CloseAt(moment).Sub(moment)
}
