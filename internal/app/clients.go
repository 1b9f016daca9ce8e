package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/cognivue/cognivue-backend/internal/data/db"
	"github.com/cognivue/cognivue-backend/internal/platform/gcp"
	"github.com/cognivue/cognivue-backend/internal/platform/gemini"
	"github.com/cognivue/cognivue-backend/internal/platform/logger"
	"github.com/cognivue/cognivue-backend/internal/platform/redisx"
)

// Clients holds the external connections the app owns and must close.
type Clients struct {
	Database  *db.Service
	DB        *gorm.DB
	Redis     *goredis.Client
	Gemini    *gemini.Client
	Resumes   gcp.ObjectStore
	Extractor gcp.TextExtractor
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	database, err := db.New(cfg.Database, log)
	if err != nil {
		return c, fmt.Errorf("init database: %w", err)
	}
	c.Database = database
	if err := database.AutoMigrateAll(); err != nil {
		c.Close(log)
		return Clients{}, fmt.Errorf("database automigrate: %w", err)
	}
	c.DB = database.DB()

	if cfg.Redis.Enabled() {
		rdb, err := redisx.Connect(cfg.Redis, log)
		if err != nil {
			c.Close(log)
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		c.Redis = rdb
	} else {
		log.Info("REDIS_ADDR not set; OAuth state kept in the database")
	}

	endpoint, err := gemini.NewEndpoint(ctx, cfg.Gemini, log)
	if err != nil {
		c.Close(log)
		return Clients{}, fmt.Errorf("init gemini: %w", err)
	}
	c.Gemini = gemini.NewClient(endpoint, cfg.Gemini.Model, log, gemini.WithTimeout(cfg.Gemini.Timeout))

	store, err := resolveObjectStore(ctx, log, cfg)
	if err != nil {
		c.Close(log)
		return Clients{}, err
	}
	c.Resumes = store

	if cfg.Document.Enabled() {
		extractor, err := gcp.NewDocument(ctx, cfg.Document, log)
		if err != nil {
			// the extractor only backs the keyword fallback
			log.Warn("Document AI unavailable; resume fallback uses default keywords", "error", err)
		} else {
			c.Extractor = extractor
		}
	}
	return c, nil
}

func (c Clients) Close(log *logger.Logger) {
	if c.Extractor != nil {
		if err := c.Extractor.Close(); err != nil {
			log.Warn("close document ai", "error", err)
		}
	}
	if c.Resumes != nil {
		if err := c.Resumes.Close(); err != nil {
			log.Warn("close resume store", "error", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Warn("close redis", "error", err)
		}
	}
	if c.Database != nil {
		if err := c.Database.Close(); err != nil {
			log.Warn("close database", "error", err)
		}
	}
}
