package recognition

import "time"

// DefaultDedupWindow is how long an identical transcript stays suppressed.
const DefaultDedupWindow = 1500 * time.Millisecond

// EmissionPolicy decides whether a transcript is new enough to be emitted.
// A result is emitted when its text differs from the last emitted text, or when more
// than Window has passed since the last emission.
type EmissionPolicy struct {
	Window   time.Duration
	lastText string
	lastEmit time.Time
}

func NewEmissionPolicy(window time.Duration) *EmissionPolicy {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &EmissionPolicy{Window: window}
}

// Admit reports whether text should be emitted at now and records the emission if so.
func (p *EmissionPolicy) Admit(text string, now time.Time) bool {
	if text == p.lastText && now.Sub(p.lastEmit) <= p.Window {
		return false
	}
	p.lastText = text
	p.lastEmit = now
	return true
}
