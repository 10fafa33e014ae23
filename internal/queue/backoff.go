package queue

import "time"

// maxBackoffExponent keeps base*2^(n-1) well inside int64 nanoseconds
const maxBackoffExponent = 20

// BackoffSeconds returns base * 2^(n-1) for attempt n >= 1.
// n below 1 is treated as 1.
func BackoffSeconds(base, n int) int64 {
	if n < 1 {
		n = 1
	}
	exp := n - 1
	if exp > maxBackoffExponent {
		exp = maxBackoffExponent
	}
	return int64(base) << uint(exp)
}

// Backoff returns the delay before the next attempt after n failed attempts.
func (p Policy) Backoff(n int) time.Duration {
	p = p.withDefaults()
	return time.Duration(BackoffSeconds(p.BaseBackoffSeconds, n)) * time.Second
}
