package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"circle/internal/config"
	"circle/internal/middleware"
	"circle/internal/models"

	"gorm.io/gorm"
)

// DB_SCHEMA_MODE values.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// likePairIndex backs the one-like-per-user-per-thread rule; toggling is
// unsafe without it.
const likePairIndex = "idx_likes_user_thread"

// schemaPlan is what ApplySchema will do for a given configuration.
type schemaPlan struct {
	Mode   string
	Env    string
	SQL    bool
	Auto   bool
	Unsafe bool // auto mode explicitly allowed in a production-like env
}

// SchemaStatus is a schemaPlan plus migration progress.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  MigrationSet
}

func planSchema(cfg *config.Config) (schemaPlan, error) {
	plan := schemaPlan{
		Mode: strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)),
		Env:  cfg.Env,
	}
	if plan.Mode == "" {
		plan.Mode = SchemaModeHybrid
	}

	// The SQL migrations target PostgreSQL.
	if cfg.DBDriver == "sqlite" {
		plan.Auto = true
		return plan, nil
	}

	prodLike := false
	switch strings.ToLower(strings.TrimSpace(cfg.Env)) {
	case "production", "prod", "staging", "stage":
		prodLike = true
	}

	switch plan.Mode {
	case SchemaModeSQL:
		plan.SQL = true
	case SchemaModeAuto:
		if prodLike && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.Auto = true
		plan.Unsafe = prodLike
	case SchemaModeHybrid:
		plan.SQL = true
		plan.Auto = !prodLike
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.Mode)
	}
	return plan, nil
}

// ApplySchema brings the database up to date according to DB_SCHEMA_MODE and
// then checks that the like uniqueness index exists.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := planSchema(cfg)
	if err != nil {
		return err
	}

	if plan.SQL {
		applied, err := NewMigrator(db, Migrations()).Up(ctx)
		if err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
		if len(applied) > 0 {
			middleware.Logger.InfoContext(ctx, "SQL migrations applied", slog.Int("count", len(applied)))
		}
	}

	if plan.Auto {
		if plan.Unsafe {
			middleware.Logger.WarnContext(ctx, "AutoMigrate enabled in a production-like environment; review schema diffs", slog.String("env", plan.Env))
		}
		middleware.Logger.InfoContext(ctx, "Running GORM AutoMigrate", slog.String("mode", plan.Mode), slog.String("env", plan.Env))
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	return verifySchema(db.WithContext(ctx))
}

func verifySchema(db *gorm.DB) error {
	if !db.Migrator().HasIndex(&models.Like{}, likePairIndex) {
		return fmt.Errorf("schema is missing unique index %s on likes", likePairIndex)
	}
	return nil
}

// GetSchemaStatus reports the plan for cfg and, when SQL migrations are part
// of it, which versions are applied and pending.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := planSchema(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               plan.Mode,
		Environment:        plan.Env,
		WillRunSQL:         plan.SQL,
		WillRunAutoMigrate: plan.Auto,
	}
	if !plan.SQL {
		return status, nil
	}

	set := Migrations()
	applied, err := NewMigrator(db, set).Applied(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied
	status.PendingMigrations = set.Pending(applied)
	return status, nil
}
