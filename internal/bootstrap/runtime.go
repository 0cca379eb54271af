// Package bootstrap wires the process-level dependencies shared by the commands.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"circle/internal/cache"
	"circle/internal/config"
	"circle/internal/database"
	"circle/internal/middleware"
	"circle/internal/models"
	"circle/internal/seed"
	"circle/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo fills an empty development database with demo content.
	SeedDemo bool
}

// demoSeed is the content created for an empty development database.
var demoSeed = seed.Options{
	NumUsers:   12,
	NumThreads: 40,
	MaxReplies: 4,
	LikeRatio:  0.3,
}

// InitRuntime connects to the database and Redis and optionally seeds demo data.
// The Redis client is nil when Redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		middleware.Logger.Warn("continuing without Redis", slog.String("error", err.Error()))
		rdb = nil
	}

	if opts.SeedDemo {
		if err := seedDemo(ctx, cfg, db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, rdb, nil
}

func seedDemo(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg.IsProduction() {
		return nil
	}

	var users int64
	if err := db.WithContext(ctx).Model(&models.User{}).Count(&users).Error; err != nil {
		return err
	}
	if users > 0 {
		return nil
	}

	summary, err := seed.NewSeeder(db, service.NewUploadService(cfg), 0).Run(ctx, demoSeed)
	if err != nil {
		return err
	}
	middleware.Logger.Info("demo data seeded",
		slog.Int("users", summary.Users),
		slog.Int("threads", summary.Threads),
		slog.String("password", seed.DefaultPassword),
	)
	return nil
}
