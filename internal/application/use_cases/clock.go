package use_cases

import "time"

type Clock interface {
	NowUTC() time.Time
}

type systemClock struct{}

func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) NowUTC() time.Time {
	return time.Now().UTC()
}

func elapsedSince(clock Clock, startedAt time.Time) time.Duration {
	elapsed := clock.NowUTC().Sub(startedAt)
	if elapsed < 0 {
		return 0
	}

	return elapsed
}
