package core

import "time"

// RateLimitState captures per-endpoint request accounting for the
// courtesy-limited lookups (RDAP, maintainer roster). The checking
// pipeline itself never rate limits; batch composition handles that.
type RateLimitState struct {
	RequestCount int
	WindowStart  time.Time
	BackoffUntil *time.Time
	Last429At    *time.Time
}

// InBackoff reports whether the endpoint asked us to back off past now.
func (s *RateLimitState) InBackoff(now time.Time) bool {
	return s != nil && s.BackoffUntil != nil && now.Before(*s.BackoffUntil)
}
