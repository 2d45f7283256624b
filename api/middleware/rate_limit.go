package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mylittlestore/pos-backend/api/responses"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/logger"
	pkgredis "github.com/mylittlestore/pos-backend/pkg/redis"
)

// RateLimiter counts hits in fixed windows.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (pkgredis.Window, error)
}

// RateLimitPolicy is a named fixed window applied to mutating requests.
type RateLimitPolicy struct {
	name   string
	window time.Duration
	limit  int64
}

func NewRateLimitPolicy(name string, window time.Duration, limit int) RateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "api"
	}
	return RateLimitPolicy{name: name, window: window, limit: int64(limit)}
}

func (p RateLimitPolicy) enabled() bool {
	return p.window > 0 && p.limit > 0
}

// scope keys the counter by member when one is known and by client IP
// otherwise.
func (p RateLimitPolicy) scope(r *http.Request) (key, kind string) {
	if memberID, ok := MemberIDFromContext(r.Context()); ok {
		return p.name + ":member:" + memberID.String(), "member"
	}
	return p.name + ":ip:" + clientIP(r), "ip"
}

// RateLimit throttles mutating requests. Reads are never counted.
func RateLimit(policy RateLimitPolicy, limiter RateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isMutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			key, kind := policy.scope(r)
			win, err := limiter.FixedWindowAllow(ctx, key, policy.limit, policy.window)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if win.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			if logg != nil {
				logg.Warn(logg.WithFields(ctx, map[string]any{
					"policy":   policy.name,
					"scope":    kind,
					"attempts": win.Count,
					"limit":    policy.limit,
					"reset_ms": win.ResetIn.Milliseconds(),
				}), "rate limit exceeded")
			}
			w.Header().Set(retryAfterHeader, strconv.Itoa(retryAfterSeconds(win.ResetIn, policy.window)))
			responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
		})
	}
}

// retryAfterSeconds rounds the time left in the window up to whole seconds.
func retryAfterSeconds(resetIn, window time.Duration) int {
	if resetIn <= 0 {
		resetIn = window
	}
	return max(1, int(math.Ceil(resetIn.Seconds())))
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// peer address.
func clientIP(r *http.Request) string {
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
