package clock

import (
	"time"

	"github.com/jacobsa/timeutil"
)

// RealClock wraps timeutil.RealClock so callers in this module depend on the
// local Clock interface rather than jacobsa/timeutil directly.
type RealClock struct {
	inner timeutil.Clock
}

func NewRealClock() *RealClock {
	return &RealClock{inner: timeutil.RealClock()}
}

func (c *RealClock) Now() (t time.Time) {
	return c.inner.Now()
}
