package handler

import (
	"audit-ledger/config"
	"audit-ledger/internal/adapter/http/middleware"
	"audit-ledger/internal/core/ports"
	"audit-ledger/pkg/apperror"
	"audit-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuditSvc       ports.AuditService
	CredentialSvc  ports.CredentialService
	TokenSvc       ports.TokenService
	RateLimiter    ports.RateLimiter // nil = rate limiting disabled
	RateLimits     config.RateLimitConfig
	HealthCheckers []ports.HealthChecker
	MaxBodyBytes   int64
	Metrics        config.MetricsConfig
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 64 << 10
	}

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBody))
	if deps.Metrics.Enabled {
		r.Use(middleware.Metrics())
		path := deps.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.Handler()))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.NoRoute(func(c *gin.Context) {
		response.Error(c, apperror.ErrNotFound("route"))
	})

	rl := func(group string, rule config.RateLimitRule) gin.HandlerFunc {
		return middleware.RateLimiter(deps.RateLimiter, group, middleware.RateLimitRule{
			Limit:  rule.Limit,
			Window: rule.Window,
		}, deps.Logger)
	}

	v1 := r.Group("/api/v1")
	v1.Use(middleware.AccessAudit(deps.AuditSvc, deps.Logger))
	v1.Use(middleware.JWTAuth(deps.TokenSvc, deps.Logger))

	auditHandler := NewAuditHandler(deps.AuditSvc)
	audit := v1.Group("/audit")
	{
		audit.POST("/events", rl(middleware.GroupAuditWrite, deps.RateLimits.AuditWrite), auditHandler.Record)
		audit.POST("/access", rl(middleware.GroupAuditWrite, deps.RateLimits.AuditWrite), auditHandler.RecordAccess)
		audit.POST("/errors", rl(middleware.GroupAuditWrite, deps.RateLimits.AuditWrite), auditHandler.RecordError)
		audit.POST("/changes", rl(middleware.GroupAuditWrite, deps.RateLimits.AuditWrite), auditHandler.RecordChange)
		audit.GET("/events", rl(middleware.GroupAuditRead, deps.RateLimits.AuditRead), auditHandler.Query)
		audit.GET("/actors/:actorId", rl(middleware.GroupAuditRead, deps.RateLimits.AuditRead), auditHandler.ByActor)
		audit.GET("/entities/:entityName/:entityId", rl(middleware.GroupAuditRead, deps.RateLimits.AuditRead), auditHandler.ByEntity)
		audit.GET("/statistics", rl(middleware.GroupAuditRead, deps.RateLimits.AuditRead), auditHandler.Statistics)
	}

	credHandler := NewCredentialHandler(deps.CredentialSvc)
	profile := v1.Group("/profile")
	{
		profile.PUT("/credential", rl(middleware.GroupCredentialChange, deps.RateLimits.CredentialChange), credHandler.Change)
		profile.GET("/credential/history", rl(middleware.GroupAuditRead, deps.RateLimits.AuditRead), credHandler.History)
	}

	return r
}
