package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"nlsearch/internal/api"
	"nlsearch/internal/config"
	"nlsearch/internal/db"
	"nlsearch/internal/pdf"
	"nlsearch/internal/record"
	redisdb "nlsearch/internal/redis"
	"nlsearch/internal/schema"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if err := db.Init(cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "DB init error: %v\n", err)
		os.Exit(1)
	}
	rdb := redisdb.NewClient(cfg)

	registry := record.NewRegistry()
	for _, col := range record.BuiltinCollections() {
		registry.Register(col)
	}

	deps := api.Deps{
		DB:         db.DB,
		Store:      record.NewStore(db.DB, registry, logger),
		Catalog:    schema.NewIntrospector(registry, rdb, logger),
		Rasterizer: pdf.NewRasterizer(logger),
		Logger:     logger,
	}
	r := api.SetupRouter(cfg, deps)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("Starting server on %s%s\n", addr, cfg.Server.Subpath)
	if err := r.Run(addr); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
