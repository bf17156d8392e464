package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ordena-ai/ordena-backend/api/responses"
	"github.com/ordena-ai/ordena-backend/pkg/config"
	pkgerrors "github.com/ordena-ai/ordena-backend/pkg/errors"
	"github.com/ordena-ai/ordena-backend/pkg/logger"
)

type rateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// WriteRateLimit throttles mutating requests per client IP and per store.
// Reads pass through untouched. Counters live in Redis with a fixed window.
func WriteRateLimit(cfg config.RateLimitConfig, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if cfg.Window <= 0 || (cfg.IPLimit <= 0 && cfg.StoreLimit <= 0) || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			if cfg.IPLimit > 0 {
				if ip := clientIP(r); ip != "" {
					key := fmt.Sprintf("rl:ip:%s", ip)
					allowed, count, err := allow(ctx, store, key, cfg.Window, int64(cfg.IPLimit))
					if err != nil {
						responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
						return
					}
					if !allowed {
						respondRateLimited(ctx, logg, w, "ip", ip, count, cfg.IPLimit, cfg.Window)
						return
					}
				}
			}

			if cfg.StoreLimit > 0 {
				if storeID := StoreIDFromContext(ctx); storeID != "" {
					key := fmt.Sprintf("rl:store:%s", storeID)
					allowed, count, err := allow(ctx, store, key, cfg.Window, int64(cfg.StoreLimit))
					if err != nil {
						responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
						return
					}
					if !allowed {
						respondRateLimited(ctx, logg, w, "store", storeID, count, cfg.StoreLimit, cfg.Window)
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func allow(ctx context.Context, store rateLimiterStore, key string, window time.Duration, limit int64) (bool, int64, error) {
	count, err := store.IncrWithTTL(ctx, key, window)
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}

func respondRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, scope, subject string, count int64, limit int, window time.Duration) {
	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"scope":          scope,
			"subject":        subject,
			"attempts":       count,
			"limit":          limit,
			"window_seconds": int(window.Seconds()),
		})
		logg.Warn(logCtx, "api.rate_limit.blocked")
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
