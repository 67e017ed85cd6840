package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"eam/internal/health"
	"eam/internal/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	MaintenanceCookie = "SESSION_OVERRIDE_MAINTENANCE"
	MaintenancePath   = "/maintenance"
)

// MaintenanceExcludedPrefixes are never redirected to the maintenance page.
var MaintenanceExcludedPrefixes = []string{
	"/_next",
	"/api/",
	"/favicon.ico",
	"/manifest.json",
	"/logout",
	"/admin",
	MaintenancePath,
	"/metrics",
}

func isMaintenanceExcluded(path string) bool {
	for _, prefix := range MaintenanceExcludedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// MaintenanceGate redirects to the maintenance page when the health check
// fails or reports anything but ok. The override cookie skips the check.
func MaintenanceGate(checker health.Checker, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) gin.HandlerFunc {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return func(c *gin.Context) {
		if isMaintenanceExcluded(c.Request.URL.Path) {
			c.Next()
			return
		}
		if v, err := c.Cookie(MaintenanceCookie); err == nil && v == "true" {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		p, err := checker.Check(ctx)
		if err != nil || p.Status != health.StatusOK {
			fields := []zap.Field{zap.String("path", c.Request.URL.Path)}
			if err != nil {
				fields = append(fields, zap.Error(err))
			} else {
				fields = append(fields, zap.String("status", string(p.Status)))
			}
			logger.Warn("redirecting to maintenance page", fields...)

			m.MaintenanceRedirect()
			c.Redirect(http.StatusTemporaryRedirect, MaintenancePath)
			c.Abort()
			return
		}

		c.Next()
	}
}
