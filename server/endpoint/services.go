package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/analyticore/gatekit/registry"
)

// Services returns a handler listing registered services with their
// per-service counters and tier totals.
func Services(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if reg == nil {
			c.JSON(http.StatusOK, gin.H{"services": nil})
			return
		}
		m := reg.Metrics()
		c.JSON(http.StatusOK, gin.H{
			"services": m.Services,
			"by_tier":  m.ByTier,
		})
	}
}

// Service returns a handler for one service's descriptor by id.
func Service(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		desc, err := reg.Get(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, desc)
	}
}
