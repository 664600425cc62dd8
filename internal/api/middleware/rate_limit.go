package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aaravmahajanofficial/ecommerce-basket/internal/errors"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/utils/response"
)

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, userName string) (bool, int, int, error)
}

type RateLimitMiddleware struct {
	limiter RateLimiter
}

func NewRateLimitMiddleware(limiter RateLimiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter}
}

// Limit must run after Authenticate since it counts requests per token user.
// A failing limiter store lets the request through.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := LoggerFromContext(r.Context())

		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, errors.UnauthorizedError("Authentication required"))
			return
		}

		allowed, remaining, retryAfter, err := m.limiter.CheckRateLimit(r.Context(), claims.UserName())
		if err != nil {
			logger.Warn("Rate limit check failed, allowing request", slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			logger.Warn("Rate limit exceeded", slog.Int("retryAfter", retryAfter))
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			response.Error(w, errors.TooManyRequestsError("Too many basket updates, try again later"))
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		next.ServeHTTP(w, r)
	}
}
