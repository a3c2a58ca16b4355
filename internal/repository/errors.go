package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"scribe/internal/models"
	"scribe/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL error codes the repositories translate.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// IsUniqueViolation reports whether err is a unique constraint violation on either backend.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsForeignKeyViolation reports whether err is a foreign key violation on either backend.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// translateError maps driver and GORM errors onto the application error taxonomy.
// Errors that already carry an application code pass through unchanged.
func translateError(err error, resource string, id interface{}) error {
	if err == nil {
		return nil
	}

	var appErr *models.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.NewNotFoundError(resource, id)
	case IsUniqueViolation(err):
		return models.NewConflictError(fmt.Sprintf("%s already exists", resource), err)
	case IsForeignKeyViolation(err):
		return models.NewConflictError(fmt.Sprintf("%s is still referenced", resource), err)
	default:
		return fmt.Errorf("%s %v: %w", strings.ToLower(resource), id, err)
	}
}

// likeEscaper escapes the LIKE wildcards so user input matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// containsPattern builds a substring pattern for use with insensitiveLike.
// Case folding happens in SQL so both sides use the same rules.
func containsPattern(s string) string {
	return "%" + escapeLike(s) + "%"
}

// insensitiveLike returns a case-insensitive LIKE condition on col.
func insensitiveLike(db *gorm.DB, col string) string {
	if db.Dialector.Name() == "postgres" {
		return col + ` ILIKE ? ESCAPE '\'`
	}
	return "LOWER(" + col + `) LIKE LOWER(?) ESCAPE '\'`
}

// observe wraps a repository call with a span, a latency sample and error logging.
func observe(ctx context.Context, log *observability.RepoLogger, table, operation string) (context.Context, func(error)) {
	ctx, span := observability.StartRepositorySpan(ctx, table, operation)
	done := observability.TrackQuery(operation, table)
	return ctx, func(err error) {
		done()
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			log.LogError(ctx, err, operation)
		}
		observability.EndSpan(span, err)
	}
}
