package period

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Resolver resolves station bounds against the current civil date in a fixed
// timezone.
type Resolver struct {
	clock   clockwork.Clock
	loc     *time.Location
	lagDays int
}

// NewResolver creates a Resolver. A nil location means UTC; a negative lag is
// treated as DefaultLagDays.
func NewResolver(loc *time.Location, lagDays int) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	if lagDays < 0 {
		lagDays = DefaultLagDays
	}
	return &Resolver{
		clock:   clockwork.NewRealClock(),
		loc:     loc,
		lagDays: lagDays,
	}
}

// SetClock swaps the time source. Pass nil to reset to real time.
func (r *Resolver) SetClock(c clockwork.Clock) {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	r.clock = c
}

// Clock exposes the resolver's time source so callers share one notion of now.
func (r *Resolver) Clock() clockwork.Clock {
	return r.clock
}

// Location is the timezone that defines "today".
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Today returns the current civil date in the resolver's timezone.
func (r *Resolver) Today() time.Time {
	return CivilDate(r.clock.Now().In(r.loc))
}

// Resolve computes bounds and the default window for a station's data span.
func (r *Resolver) Resolve(first, last string) (Resolution, error) {
	return ResolveQueryBounds(first, last, r.Today(), r.lagDays)
}
