package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/freshmarket/storefront-backend/api/responses"
	pkgerrors "github.com/freshmarket/storefront-backend/pkg/errors"
	"github.com/freshmarket/storefront-backend/pkg/logger"
	pkgredis "github.com/freshmarket/storefront-backend/pkg/redis"
)

const maxRateLimitedBody = 64 << 10

type rateLimiter interface {
	HitWindow(ctx context.Context, scope string, limit int64, window time.Duration) (pkgredis.Window, error)
}

// RateLimitPolicy throttles a public surface per client IP and per phone.
type RateLimitPolicy struct {
	name   string
	window time.Duration
	limit  int
}

// NewRateLimitPolicy builds a policy allowing limit requests per window for
// each IP and, separately, each phone number seen in the request.
func NewRateLimitPolicy(name string, window time.Duration, limit int) RateLimitPolicy {
	return RateLimitPolicy{
		name:   strings.ToLower(strings.TrimSpace(name)),
		window: window,
		limit:  limit,
	}
}

func (p RateLimitPolicy) enabled() bool {
	return p.window > 0 && p.limit > 0
}

func (p RateLimitPolicy) normalizedName() string {
	if p.name == "" {
		return "public"
	}
	return p.name
}

func (p RateLimitPolicy) scope(kind, value string) string {
	if value == "" {
		return ""
	}
	return p.normalizedName() + ":" + kind + ":" + value
}

// RateLimit enforces fixed-window counters stored in Redis.
func RateLimit(policy RateLimitPolicy, store rateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			ip := clientIP(r)
			if !checkWindow(ctx, w, logg, store, policy, "ip", ip) {
				return
			}

			phone, err := requestPhone(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			if phone != "" && !checkWindow(ctx, w, logg, store, policy, "phone", hashValue(phone)) {
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func checkWindow(ctx context.Context, w http.ResponseWriter, logg *logger.Logger, store rateLimiter, policy RateLimitPolicy, kind, value string) bool {
	scope := policy.scope(kind, value)
	if scope == "" {
		return true
	}
	hit, err := store.HitWindow(ctx, scope, int64(policy.limit), policy.window)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
		return false
	}
	if hit.Allowed() {
		return true
	}

	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"scope":          kind,
			"policy":         policy.normalizedName(),
			"attempts":       hit.Count,
			"limit":          policy.limit,
			"window_seconds": int(policy.window.Seconds()),
		})
		logg.Warn(logCtx, "rate_limit.blocked")
	}
	if hit.ResetIn > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(hit.ResetIn.Seconds()))))
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests, please try again later"))
	return false
}

// requestPhone looks for a phone in the query string, then in a JSON body.
// The body is restored for the next handler.
func requestPhone(r *http.Request) (string, error) {
	if phone := normalizePhone(r.URL.Query().Get("phone")); phone != "" {
		return phone, nil
	}
	if r.Body == nil || r.Method == http.MethodGet {
		return "", nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRateLimitedBody))
	if err != nil {
		return "", err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var payload struct {
		Phone string `json:"phone"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil
	}
	return normalizePhone(payload.Phone), nil
}

func normalizePhone(value string) string {
	return strings.TrimSpace(value)
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

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
