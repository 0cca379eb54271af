package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"circle/internal/middleware"

	"gorm.io/gorm"
)

// MigrationLog records one applied migration.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime;index"`
}

func (MigrationLog) TableName() string {
	return "migration_logs"
}

// Migrator applies a MigrationSet and tracks progress in migration_logs.
// Each migration and its log row commit together, so a failed script leaves
// neither behind.
type Migrator struct {
	db  *gorm.DB
	set MigrationSet
}

func NewMigrator(db *gorm.DB, set MigrationSet) *Migrator {
	return &Migrator{db: db, set: set}
}

// Applied lists recorded versions in ascending order. A database that has
// never been migrated has none.
func (m *Migrator) Applied(ctx context.Context) ([]int, error) {
	db := m.db.WithContext(ctx)
	if !db.Migrator().HasTable(&MigrationLog{}) {
		return nil, nil
	}
	var versions []int
	if err := db.Model(&MigrationLog{}).Order("version ASC").Pluck("version", &versions).Error; err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	return versions, nil
}

// Up applies every pending migration in version order and returns them.
func (m *Migrator) Up(ctx context.Context) (MigrationSet, error) {
	if err := m.db.WithContext(ctx).AutoMigrate(&MigrationLog{}); err != nil {
		return nil, fmt.Errorf("ensure migration_logs: %w", err)
	}

	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.set.checkApplied(applied); err != nil {
		return nil, err
	}

	pending := m.set.Pending(applied)
	for i, mig := range pending {
		middleware.Logger.InfoContext(ctx, "Applying migration", slog.String("migration", mig.String()))
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(mig.Up).Error; err != nil {
				return err
			}
			return tx.Create(&MigrationLog{Version: mig.Version, Name: mig.Name}).Error
		})
		if err != nil {
			return pending[:i], fmt.Errorf("apply %s: %w", mig, err)
		}
	}
	return pending, nil
}

// Down reverts one applied migration.
func (m *Migrator) Down(ctx context.Context, version int) error {
	mig, ok := m.set.Find(version)
	if !ok {
		return fmt.Errorf("migration %06d is not part of this build", version)
	}

	applied, err := m.Applied(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(applied, version) {
		return fmt.Errorf("migration %s has not been applied", mig)
	}

	middleware.Logger.InfoContext(ctx, "Rolling back migration", slog.String("migration", mig.String()))
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(mig.Down).Error; err != nil {
			return fmt.Errorf("revert %s: %w", mig, err)
		}
		return tx.Where("version = ?", version).Delete(&MigrationLog{}).Error
	})
}
