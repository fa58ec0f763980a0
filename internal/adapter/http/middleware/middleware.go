package middleware

import (
	"net/http"
	"strings"
	"time"

	"audit-ledger/internal/core/ports"
	"audit-ledger/pkg/apperror"
	"audit-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// HeaderRequestID carries the caller's correlation id.
	HeaderRequestID = "X-Request-ID"

	// Context keys
	CtxPrincipalID   = "principal_id"
	CtxTenantScope   = "tenant_scope"
	CtxAuditRecorded = "audit_recorded"
)

// JWTAuth validates the bearer token and stores the principal and tenant scope.
func JWTAuth(tokenSvc ports.TokenService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenStr == "" {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		claims, err := tokenSvc.Validate(tokenStr)
		if err != nil {
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("bearer token rejected")
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		c.Set(CtxPrincipalID, claims.PrincipalID)
		if claims.TenantScope != "" {
			c.Set(CtxTenantScope, claims.TenantScope)
		}
		c.Next()
	}
}

// PrincipalID returns the authenticated principal, if any.
func PrincipalID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(CtxPrincipalID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// TenantScope returns the caller's tenant scope claim, or nil when unscoped.
func TenantScope(c *gin.Context) *string {
	v, exists := c.Get(CtxTenantScope)
	if !exists {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

// MarkAudited tells the access-audit middleware that the handler already
// recorded an event for this request.
func MarkAudited(c *gin.Context) {
	c.Set(CtxAuditRecorded, true)
}

// RequestID propagates X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}
		c.Set(response.CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		if id, ok := PrincipalID(c); ok {
			event = event.Str("principal_id", id.String())
		}
		event.
			Str("request_id", c.GetString(response.CtxRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				response.Error(c, apperror.New(apperror.KindInternal, apperror.CodeInternal,
					"Internal server error", http.StatusInternalServerError))
				c.Abort()
			}
		}()
		c.Next()
	}
}
