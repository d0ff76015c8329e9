package endpoint

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/analyticore/gatekit/gateway"
)

// Metrics returns a handler that reports gateway dispatch counters, the
// response-cache stats, and basic runtime numbers.
func Metrics(gw *gateway.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		body := gin.H{
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"goroutines": runtime.NumGoroutine(),
			"memory": gin.H{
				"alloc_mb": m.Alloc / 1024 / 1024,
				"sys_mb":   m.Sys / 1024 / 1024,
				"gc_runs":  m.NumGC,
			},
		}
		if gw != nil {
			body["gateway"] = gw.Metrics()
			body["response_cache"] = gw.ResponseCacheStats()
		}
		c.JSON(http.StatusOK, body)
	}
}
