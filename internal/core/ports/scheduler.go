package ports

import "time"

// Scheduler runs delayed callbacks. The returned stop function cancels the
// callback and reports whether it was still pending.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}
