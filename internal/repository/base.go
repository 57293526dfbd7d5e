// Package repository provides data access layer implementations for the application.
package repository

import (
	"errors"
	"strings"

	"agora/internal/models"
	"agora/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const pgUniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique/primary key conflict on any
// supported driver, with or without GORM's error translation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}

// wrapRead converts a lookup error into the application error vocabulary.
func wrapRead(err error, resource string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewInternalError(err)
}

// wrapWrite passes application errors through and wraps everything else as internal.
func wrapWrite(log *observability.RepoLogger, db *gorm.DB, err error, operation string) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	log.LogError(db.Statement.Context, err, operation)
	return models.NewInternalError(err)
}

// forUpdate locks the selected rows until the transaction ends. SQLite has no
// row locks and its dialect drops the clause.
func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// randomOrder returns the dialect's random ordering expression.
func randomOrder(db *gorm.DB) string {
	if db.Dialector.Name() == "mysql" {
		return "RAND()"
	}
	return "RANDOM()"
}

// likeEscape is the LIKE escape character used by containsPattern. A backslash
// would need quoting differently on MySQL.
const likeEscape = "!"

// containsPattern builds a lower-cased LIKE pattern for a substring match,
// escaping the LIKE metacharacters in q. Pair it with "ESCAPE '!'".
func containsPattern(q string) string {
	r := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)
	return "%" + r.Replace(strings.ToLower(q)) + "%"
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
