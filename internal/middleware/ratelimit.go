package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/docpress/api/pkg/response"
)

type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// Limit creates a rate limiting middleware keyed by client IP. The limiter
// fails open when Redis is unreachable.
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, c.IP())
		ctx := context.Background()

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			return c.Next()
		}

		// Set expiration on first request
		if count == 1 {
			rl.redis.Expire(ctx, key, window)
		}

		if count > int64(maxRequests) {
			ttl, _ := rl.redis.TTL(ctx, key).Result()
			c.Set("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
			return response.RateLimited(c)
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", maxRequests-int(count)))

		return c.Next()
	}
}

// JobsLimit returns a rate limiter for job creation (per hour)
func (rl *RateLimiter) JobsLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("jobs", maxPerHour, time.Hour)
}

// UploadLimit returns a rate limiter for direct uploads (per hour)
func (rl *RateLimiter) UploadLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("upload", maxPerHour, time.Hour)
}

// StatusLimit returns a rate limiter for status polling (per minute)
func (rl *RateLimiter) StatusLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("status", maxPerMin, time.Minute)
}

// EventsLimit returns a rate limiter for bucket notifications (per minute)
func (rl *RateLimiter) EventsLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("events", maxPerMin, time.Minute)
}
