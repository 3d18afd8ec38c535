package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/reelscript/api/pkg/response"
)

type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// SubmitLimit throttles submissions per caller identity with a fixed window.
// The counter key is the subscriber id from the request body (falling back
// to the authenticated account, then the client IP). When Redis is
// unavailable the limiter fails open: availability beats strict enforcement
// here.
func (rl *RateLimiter) SubmitLimit(maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := submitIdentity(c)
		if identity == "" {
			return c.Next()
		}

		key := fmt.Sprintf("rl:submit:%s", identity)
		ctx := context.Background()

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			// Fail open on a broken backing store.
			return c.Next()
		}

		// Start the window on the first request in it.
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

func submitIdentity(c *fiber.Ctx) string {
	var body struct {
		SubscriberID string `json:"subscriberId"`
	}
	if err := json.Unmarshal(c.Body(), &body); err == nil && body.SubscriberID != "" {
		return body.SubscriberID
	}
	if id := GetAccountID(c); id != "" {
		return id
	}
	return c.IP()
}
