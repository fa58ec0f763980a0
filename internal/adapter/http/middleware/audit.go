package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"audit-ledger/internal/core/domain"
	"audit-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// bearerLogin names the credential presented when a bearer token is rejected.
const bearerLogin = "bearer token"

type routeAction struct {
	action string
	entity string
}

// auditedReads maps read routes to the ACCESS event they produce.
var auditedReads = map[string]routeAction{
	"GET /api/v1/audit/events":                         {"VIEW_AUDIT_EVENTS", "AuditEvent"},
	"GET /api/v1/audit/actors/:actorId":                {"VIEW_ACTOR_ACTIVITY", "AuditEvent"},
	"GET /api/v1/audit/entities/:entityName/:entityId": {"VIEW_ENTITY_HISTORY", "AuditEvent"},
	"GET /api/v1/audit/statistics":                     {"VIEW_AUDIT_STATISTICS", "AuditStatistics"},
	"GET /api/v1/profile/credential/history":           {"VIEW_CREDENTIAL_HISTORY", domain.EntityPrincipal},
}

// AccessAudit records an ACCESS event for successful authenticated reads and
// an ERROR event for authenticated requests that fail with 5xx. Mounted ahead
// of JWTAuth, it also records a LOGIN_FAILED event when a presented bearer
// token is rejected. Recording is best-effort: failures are logged and never
// change the response.
func AccessAudit(auditSvc ports.AuditService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.GetBool(CtxAuditRecorded) {
			return
		}

		status := c.Writer.Status()
		route := c.Request.Method + " " + c.FullPath()
		prov := domain.Provenance{SourceIP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
		ctx := c.Request.Context()

		principalID, ok := PrincipalID(c)
		if !ok {
			if status != http.StatusUnauthorized || !strings.HasPrefix(c.GetHeader("Authorization"), "Bearer ") {
				return
			}
			if _, err := auditSvc.RecordLoginAttempt(ctx, bearerLogin, false, nil, prov); err != nil {
				log.Error().Err(err).Str("route", route).Msg("login failure not recorded")
			}
			return
		}

		var err error
		switch {
		case status >= http.StatusInternalServerError:
			detail := fmt.Sprintf("%s %s status=%d", c.Request.Method, c.Request.URL.Path, status)
			_, err = auditSvc.RecordError(ctx, &principalID, "REQUEST_FAILED", detail, domain.SeverityWarning, prov)
		case status >= 200 && status < 300:
			ra, mapped := auditedReads[route]
			if !mapped {
				return
			}
			_, err = auditSvc.RecordAccess(ctx, &principalID, ra.action, ra.entity, c.Request.URL.RequestURI(), prov)
		default:
			return
		}

		if err != nil {
			log.Error().Err(err).Str("route", route).Msg("access audit not recorded")
		}
	}
}
