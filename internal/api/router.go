// Package api exposes the search and chat pipelines over HTTP.
package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"nlsearch/internal/chat"
	"nlsearch/internal/config"
	"nlsearch/internal/llm"
	"nlsearch/internal/record"
	"nlsearch/internal/schema"
	"nlsearch/internal/search"
)

// ModelClient mirrors the llm client surface so tests can swap in a
// scripted fake through Deps.NewClient.
type ModelClient interface {
	Send(ctx context.Context, prompt string, opts llm.SendOptions) (string, error)
}

// Deps carries the shared collaborators handlers need.
type Deps struct {
	DB         *gorm.DB
	Store      *record.Store
	Catalog    *schema.Introspector
	Rasterizer chat.Rasterizer
	Logger     *zap.Logger
	// NewClient overrides model client construction; nil means a real
	// http client against the tenant's endpoint.
	NewClient func(mc config.ModelConfig) ModelClient
}

// tenantClient builds the model client for the request's tenant
// (X-Tenant header, default tenant otherwise).
func (d Deps) tenantClient(c *gin.Context, cfg *config.Config) ModelClient {
	mc := cfg.Tenant(c.GetHeader("X-Tenant"))
	if d.NewClient != nil {
		return d.NewClient(mc)
	}
	return llm.New(mc, d.Logger)
}

func (d Deps) searchOrchestrator(c *gin.Context, cfg *config.Config) *search.Orchestrator {
	return search.NewOrchestrator(d.DB, d.tenantClient(c, cfg), d.Catalog, d.Store, d.Logger)
}

func (d Deps) chatOrchestrator(c *gin.Context, cfg *config.Config) *chat.Orchestrator {
	return chat.NewOrchestrator(d.DB, d.tenantClient(c, cfg), d.Store, d.Rasterizer, d.Logger)
}

func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	r := gin.Default()
	subpath := cfg.Server.Subpath // e.g. "/nlsearch", always starts with '/'

	group := r.Group(subpath)
	{
		group.GET("/health", healthHandler)
		group.GET("/config", configHandler(cfg))

		// Schema catalogue
		group.GET("/collections", ListCollectionsHandler(deps))
		group.GET("/collections/:name/fields", DescribeCollectionHandler(deps))

		// Search requests
		group.POST("/searches", CreateSearchHandler(cfg, deps))
		group.GET("/searches", ListSearchesHandler(deps))
		group.GET("/searches/:id", GetSearchHandler(deps))
		group.DELETE("/searches/:id", DeleteSearchHandler(deps))
		group.POST("/searches/:id/run", RunSearchHandler(cfg, deps))
		group.POST("/searches/:id/recalculate", RecalculateSearchHandler(cfg, deps))
		group.POST("/searches/:id/open", OpenSearchHandler(cfg, deps))
		group.POST("/searches/:id/favorite", FavoriteSearchHandler(cfg, deps))

		// Attachments
		group.POST("/attachments", UploadAttachmentHandler(deps))
		group.GET("/attachments/:id", GetAttachmentHandler(deps))

		// Chat turns
		group.POST("/chats", CreateChatTurnHandler(cfg, deps))
		group.GET("/chats/:id", GetChatTurnHandler(deps))
		group.POST("/chats/:id/send", SendChatTurnHandler(cfg, deps))
		group.GET("/chats/:id/audit", ChatAuditHandler(deps))
	}
	return r
}
