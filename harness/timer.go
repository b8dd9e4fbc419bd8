package harness

import "time"

// Timer measures one elapsed window on the monotonic clock.
type Timer struct {
	start time.Time
}

// StartTimer captures the current instant.
func StartTimer() Timer {
	return Timer{start: time.Now()}
}

// Stop returns the time elapsed since StartTimer. The result is never
// negative.
func (t Timer) Stop() time.Duration {
	d := time.Since(t.start)
	if d < 0 {
		return 0
	}

	return d
}

// Time runs fn and returns how long it took.
func Time(fn func() error) (time.Duration, error) {
	t := StartTimer()
	err := fn()

	return t.Stop(), err
}
