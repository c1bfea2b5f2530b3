package replica

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// broadcastGovernor caps how often a replica may push a fresh
// broadcast onto the wire, independent of the microbatch flush
// interval. It exists to bound outbound traffic if a misconfigured
// broadcast_period is paired with a large replica count, rather than
// to implement any protocol semantics.
type broadcastGovernor struct {
	limiter *catrate.Limiter
}

// newBroadcastGovernor builds a governor allowing at most one
// broadcast per period, with a short burst allowance over one second
// to absorb the catch-up broadcast issued right after a replica comes
// back up from a simulated down period.
func newBroadcastGovernor(period time.Duration) *broadcastGovernor {
	if period <= 0 {
		return &broadcastGovernor{}
	}
	perSecond := int(time.Second / period)
	if perSecond < 1 {
		perSecond = 1
	}
	return &broadcastGovernor{
		limiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: perSecond + 1,
		}),
	}
}

// allow reports whether a broadcast may proceed now.
func (g *broadcastGovernor) allow() bool {
	if g == nil || g.limiter == nil {
		return true
	}
	_, ok := g.limiter.Allow("broadcast")
	return ok
}
