package clock

import "time"

// Clock abstracts wall-clock time so job gating logic can be tested
// against fixed instants.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
