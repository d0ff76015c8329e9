package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/analyticore/gatekit/breaker"
)

// Breakers returns a handler exposing every circuit breaker snapshot,
// health probes and engine routes alike.
func Breakers(m *breaker.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.JSON(http.StatusOK, gin.H{"breakers": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"breakers": m.Snapshots(),
			"open":     m.OpenCount(),
		})
	}
}
