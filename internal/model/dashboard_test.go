package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDelta(t *testing.T) {
	first := NewDelta(5, 0, "month")
	assert.True(t, first.FirstPeriod)
	assert.Equal(t, "first month with activity", first.Label)
	assert.NotContains(t, first.Label, "+5")

	assert.Equal(t, "no activity", NewDelta(0, 0, "month").Label)
	assert.False(t, NewDelta(0, 0, "month").FirstPeriod)

	up := NewDelta(7, 4, "month")
	assert.Equal(t, int64(3), up.Change)
	assert.Equal(t, "+3 from last month", up.Label)

	down := NewDelta(1, 4, "day")
	assert.Equal(t, int64(-3), down.Change)
	assert.Equal(t, "-3 from last day", down.Label)
}
