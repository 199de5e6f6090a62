package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nlsearch/internal/config"
	"nlsearch/internal/search"
)

func loadSearch(c *gin.Context, deps Deps) (*search.SearchRequest, bool) {
	var req search.SearchRequest
	if err := deps.DB.First(&req, "id = ?", c.Param("id")).Error; err != nil {
		renderError(c, err)
		return nil, false
	}
	return &req, true
}

// POST /searches
func CreateSearchHandler(cfg *config.Config, deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Question    string `json:"question"`
			Preselected string `json:"preselected"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if body.Preselected != "" && !deps.Catalog.Known(body.Preselected) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown collection: " + body.Preselected})
			return
		}
		req := search.NewSearchRequest(body.Question, body.Preselected)
		if err := deps.searchOrchestrator(c, cfg).Create(req); err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusCreated, req)
	}
}

// GET /searches
func ListSearchesHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var reqs []search.SearchRequest
		if err := deps.DB.Order("id desc").Find(&reqs).Error; err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, reqs)
	}
}

// GET /searches/:id
func GetSearchHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if req, ok := loadSearch(c, deps); ok {
			c.JSON(http.StatusOK, req)
		}
	}
}

// DELETE /searches/:id
func DeleteSearchHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := loadSearch(c, deps)
		if !ok {
			return
		}
		if err := deps.DB.Delete(req).Error; err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": req.ID})
	}
}

// POST /searches/:id/run
func RunSearchHandler(cfg *config.Config, deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := loadSearch(c, deps)
		if !ok {
			return
		}
		view, err := deps.searchOrchestrator(c, cfg).Run(c.Request.Context(), req)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"request": req, "view": view})
	}
}

// POST /searches/:id/recalculate
func RecalculateSearchHandler(cfg *config.Config, deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := loadSearch(c, deps)
		if !ok {
			return
		}
		view, err := deps.searchOrchestrator(c, cfg).Recalculate(c.Request.Context(), req)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"request": req, "view": view})
	}
}

// POST /searches/:id/open
func OpenSearchHandler(cfg *config.Config, deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := loadSearch(c, deps)
		if !ok {
			return
		}
		view, err := deps.searchOrchestrator(c, cfg).OpenResults(req)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"request": req, "view": view})
	}
}

// POST /searches/:id/favorite
func FavoriteSearchHandler(cfg *config.Config, deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := loadSearch(c, deps)
		if !ok {
			return
		}
		id, err := deps.searchOrchestrator(c, cfg).SaveAsFavorite(req)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"favorite_filter_id": id})
	}
}
