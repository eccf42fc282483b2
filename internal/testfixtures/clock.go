package testfixtures

import (
	"sync"
	"time"

	"github.com/example/qr-pointage/internal/attendance"
)

// Clock is a controllable time source anchored in a business time zone.
type Clock struct {
	mu       sync.Mutex
	current  time.Time
	location *time.Location
}

// NewClock returns a clock set to start, or to ReferenceTime when start is zero.
// The clock reports days in start's location.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start, location: start.Location()}
}

// Now returns the current instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc exposes Now for dependency injection.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// Today returns the calendar day the clock is on.
func (c *Clock) Today() attendance.Date {
	c.mu.Lock()
	defer c.mu.Unlock()
	return attendance.DateOf(c.current, c.location)
}

// At moves the clock to hour:minute on its current day.
func (c *Clock) At(hour, minute int) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	local := c.current.In(c.location)
	c.current = time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, c.location)
	return c.current
}

// NextDay moves the clock to the same time of day on the following day.
func (c *Clock) NextDay() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.AddDate(0, 0, 1)
	return c.current
}
