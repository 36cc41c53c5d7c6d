package subledger

import "time"

// Clock supplies the current time. Every mutating operation samples it
// exactly once and threads the value through, so a single operation never
// observes two different nows.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns a Clock backed by the wall clock in UTC.
func SystemClock() Clock { return systemClock{} }
