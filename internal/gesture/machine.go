// Package gesture converts directional swipe input into mode-transition
// requests. The machine only proposes transitions; committing one is the
// orchestrator's call, after the access gate has been consulted.
package gesture

import "github.com/glabrego/prism-cli/internal/feed"

// DefaultThreshold is the net horizontal displacement, in cells, that
// separates a deliberate swipe from scroll jitter.
const DefaultThreshold = 24.0

// Machine tracks the active mode along the linear swipe order
// latest <-> clustered <-> balanced.
type Machine struct {
	mode      feed.Mode
	threshold float64
}

func NewMachine(start feed.Mode, threshold float64) *Machine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Machine{mode: start, threshold: threshold}
}

func (m *Machine) Current() feed.Mode { return m.mode }

// Propose maps a drag's net displacement to a target mode. It returns
// false for sub-threshold or vertical-dominant drags and at either end
// of the mode order. A negative dx (leftward drag) advances one mode to
// the right; positive retreats left.
func (m *Machine) Propose(dx, dy float64) (feed.Mode, bool) {
	if abs(dy) >= abs(dx) {
		return "", false
	}
	if abs(dx) < m.threshold {
		return "", false
	}

	idx := modeIndex(m.mode)
	if dx < 0 {
		if idx+1 >= len(feed.Order) {
			return "", false
		}
		return feed.Order[idx+1], true
	}
	if idx-1 < 0 {
		return "", false
	}
	return feed.Order[idx-1], true
}

// Commit records a transition the orchestrator has accepted. A denied
// proposal is simply never committed; the machine stays where it was.
func (m *Machine) Commit(mode feed.Mode) {
	if mode.Valid() {
		m.mode = mode
	}
}

func modeIndex(mode feed.Mode) int {
	for i, m := range feed.Order {
		if m == mode {
			return i
		}
	}
	return 0
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
