package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockStrictlyIncreasing(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.UTC)
	c := NewClockFrom(func() time.Time { return fixed })

	a := c.Now()
	b := c.Now()
	d := c.Now()

	assert.Equal(t, fixed.Truncate(time.Millisecond), a)
	assert.Equal(t, a.Add(time.Millisecond), b)
	assert.Equal(t, b.Add(time.Millisecond), d)
}

func TestClockFollowsWallTime(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	c := NewClockFrom(func() time.Time { return now })

	first := c.Now()
	now = now.Add(time.Second)
	assert.Equal(t, first.Add(time.Second), c.Now())
}

func TestNewIDUnique(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
	assert.Len(t, NewID(), 36)
}
