package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cinestream/backend/pkg/response"
	"github.com/cinestream/backend/pkg/telemetry"
)

// Recover turns a handler panic into a 500, logs it and reports it to Sentry.
func Recover(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger.Error("panic recovered", zap.Any("panic", rec), zap.String("path", c.Request.URL.Path), zap.Stack("stack"))
			telemetry.CapturePanic(rec, map[string]string{"route": c.FullPath(), "method": c.Request.Method})
			response.Abort(c, http.StatusInternalServerError, "internal server error")
		}()
		c.Next()
	}
}
