package service

import "time"

// cacheTTL bounds ttl by the time left until expiresAt. A non-positive result
// means the entry must not be cached.
func cacheTTL(ttl time.Duration, expiresAt *time.Time, now time.Time) time.Duration {
	if expiresAt == nil {
		return ttl
	}
	if left := expiresAt.Sub(now); left < ttl {
		return left
	}
	return ttl
}
