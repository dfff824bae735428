package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/koustreak/roubi/internal/errs"
)

// PostgreSQL SQLSTATE codes
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrUniqueViolation     = "23505"
	pgErrInsufficientPrivs   = "42501"
	pgErrInvalidPassword     = "28P01"
	pgErrInvalidAuthSpec     = "28000"
	pgErrUndefinedTable      = "42P01"
	pgErrQueryCanceled       = "57014"
	pgErrClassConnection     = "08"
	pgErrClassSyntaxOrAccess = "42"
)

// mapError translates pgx / pgconn native errors into *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		detailed := fmt.Sprintf("%s: %s", msg, pgErr.Message)
		switch {
		case pgErr.Code == pgErrUniqueViolation:
			return errs.Wrap(errs.ErrKindConflict, detailed, err)
		case pgErr.Code == pgErrInsufficientPrivs, pgErr.Code == pgErrInvalidPassword, pgErr.Code == pgErrInvalidAuthSpec:
			return errs.Wrap(errs.ErrKindPermissionDenied, detailed, err)
		case pgErr.Code == pgErrUndefinedTable:
			return errs.Wrap(errs.ErrKindNotFound, detailed, err)
		case pgErr.Code == pgErrQueryCanceled:
			return errs.Wrap(errs.ErrKindTimeout, detailed, err)
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == pgErrClassConnection:
			return errs.Wrap(errs.ErrKindConnectionFailed, detailed, err)
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == pgErrClassSyntaxOrAccess:
			return errs.Wrap(errs.ErrKindInvalidInput, detailed, err)
		}
		return errs.Wrap(errs.ErrKindQueryFailed, detailed, err)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}
