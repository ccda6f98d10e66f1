package utils

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

func NewID() string {
	return uuid.NewString()
}

// Clock hands out UTC timestamps at millisecond precision (what Mongo keeps),
// strictly increasing within the process. Message pages are cut on
// created_at, so two messages must never share one.
type Clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// NewClockFrom is used by tests to pin the starting point.
func NewClockFrom(now func() time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(time.Millisecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Millisecond)
	}
	c.last = t
	return t
}
