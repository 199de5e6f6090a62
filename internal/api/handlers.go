package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nlsearch/internal/config"
)

// GET /health
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// GET /config
func configHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only return non-sensitive config fields
		tenants := make([]string, len(cfg.Tenants))
		for i, t := range cfg.Tenants {
			tenants[i] = t.Name
		}
		c.JSON(http.StatusOK, gin.H{
			"server": gin.H{
				"host":    cfg.Server.Host,
				"port":    cfg.Server.Port,
				"subpath": cfg.Server.Subpath,
			},
			"tenants":        tenants,
			"default_tenant": cfg.DefaultTenant,
		})
	}
}

// GET /collections
func ListCollectionsHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var out []gin.H
		for _, col := range deps.Store.Registry().All() {
			if col.Transient {
				continue
			}
			out = append(out, gin.H{"name": col.Name, "label": col.Label})
		}
		c.JSON(http.StatusOK, out)
	}
}

// GET /collections/:name/fields
func DescribeCollectionHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		if !deps.Catalog.Known(name) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown collection"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"collection": name,
			"fields":     deps.Catalog.DescribeFields(c.Request.Context(), name),
		})
	}
}
