package middleware

import (
	"fmt"
	"strconv"
	"time"

	"audit-ledger/internal/core/ports"
	"audit-ledger/pkg/apperror"
	"audit-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Endpoint groups sharing a rate limit.
const (
	GroupCredentialChange = "credential_change"
	GroupAuditRead        = "audit_read"
	GroupAuditWrite       = "audit_write"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
// A limiter failure lets the request through.
func RateLimiter(limiter ports.RateLimiter, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || rule.Limit <= 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("%s:%s", group, identifier(c))
		result, err := limiter.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// identifier keys limits by principal when authenticated, else by client IP.
func identifier(c *gin.Context) string {
	if id, ok := PrincipalID(c); ok {
		return id.String()
	}
	return c.ClientIP()
}
