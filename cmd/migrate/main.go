// Command migrate inspects and changes the database schema outside the server.
//
//	migrate [-timeout 2m] up | auto | status | down <version>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"circle/internal/config"
	"circle/internal/database"
	"circle/internal/middleware"

	"gorm.io/gorm"
)

var errUsage = errors.New("usage: migrate [-timeout d] <up|auto|status|down <version>>")

func main() {
	timeout := flag.Duration("timeout", 2*time.Minute, "abort if the command runs longer than this")
	flag.Parse()

	if err := run(flag.Args(), *timeout); err != nil {
		middleware.Logger.Error("migrate failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(args []string, timeout time.Duration) error {
	if len(args) == 0 {
		return errUsage
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	middleware.ConfigureLogger(cfg.Env)

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	switch args[0] {
	case "up":
		return up(ctx, db)
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return err
		}
		middleware.Logger.Info("auto-migrate complete")
		return nil
	case "status":
		return status(ctx, db, cfg)
	case "down":
		if len(args) < 2 {
			return errUsage
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("version %q: %w", args[1], err)
		}
		if err := database.NewMigrator(db, database.Migrations()).Down(ctx, version); err != nil {
			return err
		}
		middleware.Logger.Info("migration reverted", slog.Int("version", version))
		return nil
	default:
		return errUsage
	}
}

func up(ctx context.Context, db *gorm.DB) error {
	applied, err := database.NewMigrator(db, database.Migrations()).Up(ctx)
	for _, m := range applied {
		middleware.Logger.Info("applied", slog.String("migration", m.String()))
	}
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		middleware.Logger.Info("schema already up to date")
	}
	return nil
}

func status(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	st, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return err
	}
	middleware.Logger.Info("schema status",
		slog.String("mode", st.Mode),
		slog.String("env", st.Environment),
		slog.Bool("run_sql", st.WillRunSQL),
		slog.Bool("run_auto", st.WillRunAutoMigrate),
		slog.Int("applied", len(st.AppliedVersions)),
		slog.Int("pending", len(st.PendingMigrations)),
	)
	for _, m := range st.PendingMigrations {
		middleware.Logger.Info("pending", slog.String("migration", m.String()))
	}
	return nil
}
