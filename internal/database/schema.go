package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"agora/internal/config"
	"agora/internal/middleware"

	"gorm.io/gorm"
)

// Values for DB_SCHEMA_MODE.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

var prodLikeEnvs = []string{"production", "prod", "staging", "stage"}

// SchemaPlan is what ApplySchema will do for one config and driver.
type SchemaPlan struct {
	Mode        string
	Driver      string
	Environment string
	RunSQL      bool
	RunAuto     bool
}

// SchemaStatus is a SchemaPlan plus the migration history it would act on.
type SchemaStatus struct {
	SchemaPlan
	Applied []SchemaHistory
	Pending []Migration
}

// PlanSchema resolves DB_SCHEMA_MODE against the driver. The embedded SQL is
// PostgreSQL-only, so MySQL and SQLite always take their schema from the
// GORM models. In hybrid mode production-like environments skip AutoMigrate.
func PlanSchema(cfg *config.Config, driver string) (SchemaPlan, error) {
	plan := SchemaPlan{
		Mode:        strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)),
		Driver:      driver,
		Environment: cfg.Env,
	}
	if plan.Mode == "" {
		plan.Mode = SchemaModeHybrid
	}
	if !slices.Contains([]string{SchemaModeHybrid, SchemaModeSQL, SchemaModeAuto}, plan.Mode) {
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.Mode)
	}

	if driver != DriverPostgres {
		plan.RunAuto = true
		return plan, nil
	}

	prodLike := slices.Contains(prodLikeEnvs, strings.ToLower(strings.TrimSpace(cfg.Env)))
	switch plan.Mode {
	case SchemaModeSQL:
		plan.RunSQL = true
	case SchemaModeAuto:
		if prodLike && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.RunAuto = true
	default:
		plan.RunSQL = true
		plan.RunAuto = !prodLike
	}
	return plan, nil
}

// ApplySchema brings the connected database up to date.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg, db.Dialector.Name())
	if err != nil {
		return err
	}

	if plan.RunSQL {
		if _, err := NewRunner(db, Registered()).Up(ctx); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if !plan.RunAuto {
		return nil
	}

	if plan.Mode == SchemaModeAuto && cfg.DBAutoMigrateAllowDestructive {
		middleware.Logger.Warn("AutoMigrate allowed in a production-like environment; review schema diffs before deploying",
			slog.String("env", cfg.Env))
	}
	middleware.Logger.Info("Running GORM AutoMigrate",
		slog.String("mode", plan.Mode),
		slog.String("driver", plan.Driver),
		slog.Int("models", len(PersistentModels())),
	)
	if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// GetSchemaStatus reports the plan and, when SQL migrations are in play,
// what has been applied and what is pending. It changes nothing.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := PlanSchema(cfg, db.Dialector.Name())
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{SchemaPlan: plan}
	if !plan.RunSQL {
		return status, nil
	}

	runner := NewRunner(db, Registered())
	if status.Applied, err = runner.History(ctx); err != nil {
		return nil, err
	}
	if status.Pending, err = runner.Pending(ctx); err != nil {
		return nil, err
	}
	return status, nil
}

// DropAll drops every application table and the migration history,
// children before parents.
func DropAll(ctx context.Context, db *gorm.DB) error {
	tables := PersistentModels()
	slices.Reverse(tables)
	tables = append(tables, &SchemaHistory{})
	return db.WithContext(ctx).Migrator().DropTable(tables...)
}
