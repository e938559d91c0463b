// Package access decides which feed modes an auth tier may activate.
package access

import "github.com/glabrego/prism-cli/internal/feed"

// Tier is the caller's authentication level. The engine never sees the
// credential itself, only the tier derived from it.
type Tier int

const (
	TierGuest Tier = iota
	TierAuthenticated
)

func (t Tier) String() string {
	if t == TierAuthenticated {
		return "authenticated"
	}
	return "guest"
}

// Reason codes carried by a denial. The orchestrator maps them to a
// login prompt rather than an error.
const (
	ReasonAuthRequired = "auth-required"
)

// Decision is the outcome of a gate check.
type Decision struct {
	Allowed bool
	Reason  string
}

// CanActivate reports whether tier may activate mode. Pure function.
// The balanced feed is subscriber-only; everything else is open.
func CanActivate(mode feed.Mode, tier Tier) Decision {
	if mode == feed.ModeBalanced && tier != TierAuthenticated {
		return Decision{Allowed: false, Reason: ReasonAuthRequired}
	}
	return Decision{Allowed: true}
}
