package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonthCrossesYear(t *testing.T) {
	cal := New(time.UTC, func() time.Time { return time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC) })

	start, end := cal.Month(-1)
	assert.Equal(t, time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestDayUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	// 22:00 UTC on the 10th is already the 11th at UTC+5.
	cal := New(loc, func() time.Time { return time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC) })

	start, end := cal.Day(0)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, loc), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))

	yStart, _ := cal.Day(-1)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, loc), yStart)
}
