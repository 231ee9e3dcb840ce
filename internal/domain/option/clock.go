package option

import "time"

// Clock abstracts the time source so exercise windows are testable
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// RealClock returns a Clock backed by the system clock
func RealClock() Clock {
	return realClock{}
}
