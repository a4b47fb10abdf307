package twrfsk

import (
	"time"

	"golang.org/x/sys/unix"
)

// Clock gives the time elapsed since some fixed point, like micros() on
// the board.  It must never go backwards.
type Clock interface {
	Now() time.Duration
}

// MonotonicClock reads CLOCK_MONOTONIC, which is unaffected by changes to
// the wall clock.
type MonotonicClock struct{}

func (MonotonicClock) Now() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		panic("CLOCK_MONOTONIC unavailable: " + err.Error())
	}

	return time.Duration(ts.Nano())
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Duration

func (f ClockFunc) Now() time.Duration {
	return f()
}
