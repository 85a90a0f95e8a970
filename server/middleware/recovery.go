package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/cometik/assessd/logger"
)

// Recovery returns middleware that recovers from panics, logs the stack, and
// responds with a generic 500. If log is nil the global logger is used.
func Recovery(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logPanic(log, err, r.Method, r.URL.Path)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// GinRecovery returns a Gin middleware that recovers from panics and logs the stack.
func GinRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logPanic(nil, err, c.Request.Method, c.Request.URL.Path)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
			}
		}()
		c.Next()
	}
}

func logPanic(log *logger.Logger, err any, method, path string) {
	logErr := logger.Error
	if log != nil {
		logErr = log.Error
	}
	logErr("Panic recovered", map[string]interface{}{
		"error":  fmt.Sprintf("%v", err),
		"stack":  string(debug.Stack()),
		"path":   path,
		"method": method,
	})
}
