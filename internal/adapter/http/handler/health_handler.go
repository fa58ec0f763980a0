package handler

import (
	"net/http"

	"audit-ledger/internal/adapter/http/dto"
	"audit-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// HealthCheck handles GET /health and pings every dependency.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := dto.HealthResponse{Status: "healthy", Dependencies: make(map[string]string, len(checkers))}
		code := http.StatusOK

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				resp.Dependencies[checker.Name()] = "unhealthy"
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Dependencies[checker.Name()] = "healthy"
		}

		c.JSON(code, resp)
	}
}
