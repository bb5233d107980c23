// Package clock provides the wall-clock scheduler used for delayed session
// transitions such as the PIN lockout reset.
package clock

import (
	"time"

	"github.com/garagedesk/staff-auth/internal/core/ports"
)

var _ ports.Scheduler = Scheduler{}

// Scheduler runs callbacks on runtime timers.
type Scheduler struct{}

func NewScheduler() Scheduler {
	return Scheduler{}
}

// AfterFunc runs f after d on its own goroutine. The returned function stops
// the timer and reports whether it was still pending.
func (Scheduler) AfterFunc(d time.Duration, f func()) func() bool {
	t := time.AfterFunc(d, f)
	return t.Stop
}
