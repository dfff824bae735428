package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"

	"github.com/koustreak/roubi/internal/errs"
)

// mapError translates go-sqlite3 errors into *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrConstraint:
			return errs.Wrap(errs.ErrKindConflict, msg, err)
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return errs.Wrap(errs.ErrKindTimeout, msg, err)
		case sqlite3.ErrPerm, sqlite3.ErrAuth, sqlite3.ErrReadonly:
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		case sqlite3.ErrCantOpen, sqlite3.ErrNotADB:
			return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
		}
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}
