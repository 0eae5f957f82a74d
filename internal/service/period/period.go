// Package period computes calendar windows for dashboards in a fixed zone.
package period

import (
	"time"

	"github.com/livsafe/livsafe-api/internal/model"
)

// Calendar resolves "today" and "this month" in one location.
type Calendar struct {
	loc *time.Location
	now model.Clock
}

// New falls back to time.Local and time.Now for nil arguments.
func New(loc *time.Location, now model.Clock) Calendar {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return Calendar{loc: loc, now: now}
}

func (c Calendar) Now() time.Time {
	return c.now().In(c.loc)
}

func (c Calendar) Location() *time.Location {
	return c.loc
}

// Day returns [start, end) of the day offset days from today.
func (c Calendar) Day(offset int) (time.Time, time.Time) {
	now := c.Now()
	start := time.Date(now.Year(), now.Month(), now.Day()+offset, 0, 0, 0, 0, c.loc)
	return start, start.AddDate(0, 0, 1)
}

// Month returns [start, end) of the month offset months from this one.
func (c Calendar) Month(offset int) (time.Time, time.Time) {
	now := c.Now()
	start := time.Date(now.Year(), now.Month()+time.Month(offset), 1, 0, 0, 0, 0, c.loc)
	return start, start.AddDate(0, 1, 0)
}
