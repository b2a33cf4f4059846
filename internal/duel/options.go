package duel

import "github.com/champsdual-dev/champsdual/internal/protocol"

// Option clamps. A missing or unusable field falls back to its default
// instead of failing the request.
const (
	defaultDurationMin = 5
	minDurationMin     = 1
	maxDurationMin     = 30

	defaultTarget = 40
	minTarget     = 5
	maxTarget     = 150

	defaultThreshold = 3
	minThreshold     = 2
	maxThreshold     = 10
)

// sanitizeOptions validates each field independently: zero or negative
// means "not set" and takes the default, anything else is clamped into
// its safe range.
func sanitizeOptions(o *protocol.DuelOptions) protocol.DuelOptions {
	out := protocol.DuelOptions{
		DurationMin:     defaultDurationMin,
		ChampionTarget:  defaultTarget,
		AttackThreshold: defaultThreshold,
	}
	if o == nil {
		return out
	}
	out.AttackMode = o.AttackMode
	if o.DurationMin > 0 {
		out.DurationMin = clamp(o.DurationMin, minDurationMin, maxDurationMin)
	}
	if o.ChampionTarget > 0 {
		out.ChampionTarget = clamp(o.ChampionTarget, minTarget, maxTarget)
	}
	if o.AttackThreshold > 0 {
		out.AttackThreshold = clamp(o.AttackThreshold, minThreshold, maxThreshold)
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
