package server

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/Tyrowin/messenger/internal/config"
)

// newRateLimiter returns a token bucket holding Burst tokens that refills
// completely once per RefillInterval.
func newRateLimiter(cfg config.RateLimitConfig) *rate.Limiter {
	capacity := cfg.Burst
	if capacity <= 0 {
		capacity = 1
	}
	interval := cfg.RefillInterval
	if interval <= 0 {
		interval = time.Second
	}

	return rate.NewLimiter(rate.Every(interval/time.Duration(capacity)), capacity)
}
