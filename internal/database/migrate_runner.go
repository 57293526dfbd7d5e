package database

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"agora/internal/middleware"

	"gorm.io/gorm"
)

// SchemaHistory is one applied migration.
type SchemaHistory struct {
	Version    int    `gorm:"primaryKey;autoIncrement:false"`
	Name       string `gorm:"size:255;not null"`
	Checksum   string `gorm:"size:64;not null"`
	DurationMS int64
	AppliedAt  time.Time `gorm:"autoCreateTime;index"`
}

// TableName keeps the history table name stable across model renames.
func (SchemaHistory) TableName() string {
	return "schema_history"
}

// Runner applies and rolls back a fixed set of SQL migrations.
type Runner struct {
	db  *gorm.DB
	set []Migration
}

// NewRunner returns a runner over set, which must be sorted by version.
func NewRunner(db *gorm.DB, set []Migration) *Runner {
	return &Runner{db: db, set: set}
}

func (r *Runner) ensureHistory(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&SchemaHistory{}); err != nil {
		return fmt.Errorf("ensure schema_history: %w", err)
	}
	return nil
}

// History lists applied migrations, oldest first. A missing history table
// reads as an empty history.
func (r *Runner) History(ctx context.Context) ([]SchemaHistory, error) {
	if !r.db.WithContext(ctx).Migrator().HasTable(&SchemaHistory{}) {
		return nil, nil
	}
	var rows []SchemaHistory
	if err := r.db.WithContext(ctx).Order("version").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load schema history: %w", err)
	}
	return rows, nil
}

// Pending returns registered migrations missing from history.
func (r *Runner) Pending(ctx context.Context) ([]Migration, error) {
	history, err := r.History(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[int]struct{}, len(history))
	for _, h := range history {
		done[h.Version] = struct{}{}
	}
	var pending []Migration
	for _, m := range r.set {
		if _, ok := done[m.Version]; !ok {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Up applies every pending migration in version order, each in its own
// transaction together with its history row. It returns how many ran.
func (r *Runner) Up(ctx context.Context) (int, error) {
	if err := r.ensureHistory(ctx); err != nil {
		return 0, err
	}
	history, err := r.History(ctx)
	if err != nil {
		return 0, err
	}
	if err := verifyHistory(history, r.set); err != nil {
		return 0, err
	}

	pending, err := r.Pending(ctx)
	if err != nil {
		return 0, err
	}
	for _, m := range pending {
		start := time.Now()
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(m.UpScript).Error; err != nil {
				return err
			}
			return tx.Create(&SchemaHistory{
				Version:    m.Version,
				Name:       m.Name,
				Checksum:   m.Checksum(),
				DurationMS: time.Since(start).Milliseconds(),
			}).Error
		})
		if err != nil {
			return 0, fmt.Errorf("apply migration %s: %w", &m, err)
		}
		middleware.Logger.Info("Migration applied",
			slog.String("migration", m.String()),
			slog.Duration("took", time.Since(start)),
		)
	}

	middleware.Logger.Info("SQL migrations up to date",
		slog.Int("applied_now", len(pending)),
		slog.Int("registered", len(r.set)),
	)
	return len(pending), nil
}

// Down runs the rollback script for version and forgets it.
func (r *Runner) Down(ctx context.Context, version int) error {
	m, ok := FindMigration(r.set, version)
	if !ok {
		return fmt.Errorf("migration %06d is not registered", version)
	}
	history, err := r.History(ctx)
	if err != nil {
		return err
	}
	i := sort.Search(len(history), func(i int) bool { return history[i].Version >= version })
	if i == len(history) || history[i].Version != version {
		return fmt.Errorf("migration %s has not been applied", m)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.DownScript).Error; err != nil {
			return err
		}
		return tx.Delete(&SchemaHistory{}, "version = ?", version).Error
	})
	if err != nil {
		return fmt.Errorf("roll back migration %s: %w", m, err)
	}
	middleware.Logger.Info("Migration rolled back", slog.String("migration", m.String()))
	return nil
}

// verifyHistory rejects databases migrated by a build this binary does not
// know about, and migrations edited after they were applied.
func verifyHistory(history []SchemaHistory, set []Migration) error {
	var unknown, edited []string
	for _, h := range history {
		m, ok := FindMigration(set, h.Version)
		switch {
		case !ok:
			unknown = append(unknown, fmt.Sprintf("%06d", h.Version))
		case h.Checksum != "" && h.Checksum != m.Checksum():
			edited = append(edited, m.String())
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("schema_history has versions this build does not know: %s (run `migrate reset` in development)",
			strings.Join(unknown, ", "))
	}
	if len(edited) > 0 {
		return fmt.Errorf("applied migrations were modified: %s", strings.Join(edited, ", "))
	}
	return nil
}

// RunMigrations applies the embedded migrations.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	_, err := NewRunner(db, Registered()).Up(ctx)
	return err
}

// RollbackMigration reverts one embedded migration.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	return NewRunner(db, Registered()).Down(ctx, version)
}
