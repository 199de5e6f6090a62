package db

import (
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"nlsearch/internal/chat"
	"nlsearch/internal/config"
	"nlsearch/internal/record"
	"nlsearch/internal/search"
)

var DB *gorm.DB

func Init(cfg *config.Config, logger *zap.Logger) error {
	db, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{})
	if err != nil {
		return err
	}

	if err := db.AutoMigrate(&search.SearchRequest{}, &chat.ChatTurn{}); err != nil {
		return err
	}
	if err := db.AutoMigrate(&record.FavoriteFilter{}, &record.Sequence{},
		&record.AuditEntry{}, &record.Attachment{}); err != nil {
		return err
	}

	DB = db
	logger.Info("database connected and migrated")
	return nil
}
