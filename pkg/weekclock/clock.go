package weekclock

import "time"

// Clock resolves the current week on every call. It never caches "now", so a
// restarted or long-running process cannot drift away from the real week.
type Clock struct {
	offset time.Duration
	now    func() time.Time
}

// Option customises a Clock.
type Option func(*Clock)

// WithNow overrides the time source. Tests use it to move across boundaries.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Clock observing weeks at the given offset from UTC.
func New(offset time.Duration, opts ...Option) *Clock {
	c := &Clock{offset: offset, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Now returns the current instant in the clock's zone.
func (c *Clock) Now() time.Time {
	return c.now().In(Zone(c.offset))
}

// Current returns the week containing Now.
func (c *Clock) Current() Week {
	return Resolve(c.now(), c.offset)
}

// Resolve maps an arbitrary instant onto a week using the clock's offset.
func (c *Clock) Resolve(ts time.Time) Week {
	return Resolve(ts, c.offset)
}

// Bounds returns [start, end) of the week.
func (c *Clock) Bounds(w Week) (time.Time, time.Time) {
	return WeekStart(w, c.offset), WeekEnd(w, c.offset)
}

// Offset exposes the configured offset.
func (c *Clock) Offset() time.Duration {
	return c.offset
}

// Location returns the fixed zone the clock observes.
func (c *Clock) Location() *time.Location {
	return Zone(c.offset)
}
