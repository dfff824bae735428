package mongo

import (
	"context"
	"errors"

	"github.com/koustreak/roubi/internal/errs"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
)

// server error codes
const (
	codeUnauthorized         = 13
	codeAuthenticationFailed = 18
	codeNamespaceNotFound    = 26
)

// mapError converts a mongo-driver error into a *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), mongodrv.IsTimeout(err):
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	case errors.Is(err, mongodrv.ErrNoDocuments):
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	case mongodrv.IsDuplicateKeyError(err):
		return errs.Wrap(errs.ErrKindConflict, msg, err)
	case errors.Is(err, mongodrv.ErrNilDocument), errors.Is(err, mongodrv.ErrEmptySlice):
		return errs.Wrap(errs.ErrKindInvalidInput, msg, err)
	}

	var cmdErr mongodrv.CommandError
	if errors.As(err, &cmdErr) {
		switch cmdErr.Code {
		case codeUnauthorized, codeAuthenticationFailed:
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		case codeNamespaceNotFound:
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		}
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}
