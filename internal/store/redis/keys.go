package redis

import "strconv"

const (
	// KeyPrefixRateLimit is the prefix for per-client submission counters
	KeyPrefixRateLimit = "indexnotify:ratelimit:"
)

// RateLimitKey returns the counter key of client for the window starting at
// windowStart (unix seconds).
func RateLimitKey(client string, windowStart int64) string {
	return KeyPrefixRateLimit + client + ":" + strconv.FormatInt(windowStart, 10)
}
