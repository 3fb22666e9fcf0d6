// Package clock supplies the injectable time source used for TTL expiry
// throughout internal/vft, mirroring github.com/jacobsa/timeutil.Clock so the
// tree and hydrator can be driven by a SimulatedClock in tests instead of
// wall-clock time.
package clock

import "time"

// Clock is satisfied by jacobsa/timeutil.Clock; redeclared here so
// internal/vft doesn't need to import jacobsa/timeutil just for the
// interface, only the concrete RealClock adapter below does.
type Clock interface {
	Now() time.Time
}
