package exchange

import (
	"time"

	"golang.org/x/time/rate"
)

// NewThrottle returns a limiter admitting one request per interval, shared by every request a Feed
// makes. A non-positive interval disables waiting.
func NewThrottle(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
