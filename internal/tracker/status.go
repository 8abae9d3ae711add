package tracker

import "github.com/TobiSchelling/techpulse/internal/period"

// target is the strongest growth stage the metrics qualify for.
func target(m Metrics, cfg Config) Status {
	switch {
	case m.Mentions21D >= cfg.MainstreamMentions21D && m.Domains7D >= cfg.MainstreamDomains7D && m.Confidence >= cfg.MainstreamConfidence:
		return StatusMainstream
	case m.Mentions7D >= cfg.TrendingMentions7D && m.Velocity >= cfg.TrendingVelocity && m.Confidence >= cfg.TrendingConfidence:
		return StatusTrending
	case m.Mentions7D >= cfg.EmergingMentions7D && m.Confidence >= cfg.EmergingConfidence:
		return StatusEmerging
	}
	return StatusWeak
}

// nextStatus advances the state machine for day. Growth stages only move up;
// decay moves an established signal to fading, and silence for DeadDays kills
// any signal. A fading signal re-enters the ladder once its metrics qualify
// again.
func nextStatus(s *Signal, day period.Date, cfg Config) Status {
	cur := s.Status
	if cur == StatusDead {
		return StatusDead
	}
	if day.DaysSince(s.LastSeen) >= cfg.DeadDays {
		return StatusDead
	}

	want := target(s.Metrics, cfg)
	decaying := s.Metrics.Velocity <= cfg.FadingVelocity

	switch cur {
	case StatusEmerging, StatusTrending, StatusMainstream:
		if decaying {
			return StatusFading
		}
		if want.strength() > cur.strength() {
			return want
		}
		return cur
	case StatusFading:
		if !decaying && want.strength() >= StatusEmerging.strength() {
			return want
		}
		return cur
	default:
		if want.strength() > cur.strength() {
			return want
		}
		return cur
	}
}
