package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/analyticore/gatekit/gateway"
)

// Errors returns a handler exposing the gateway's recent classified
// failures and cumulative counts per category.
func Errors(gw *gateway.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		if gw == nil {
			c.JSON(http.StatusOK, gin.H{"recent": nil})
			return
		}
		w := gw.ErrorWindow()
		counts := map[string]uint64{}
		for cat, n := range w.Counts() {
			if n > 0 {
				counts[cat.String()] = n
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"recent": w.Recent(),
			"counts": counts,
		})
	}
}
