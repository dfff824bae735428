package redis

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/koustreak/roubi/internal/errs"
)

// mapError converts a go-redis error into a *errs.Error, keeping the native
// error as the cause. Returns nil for a nil err.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	// server replies carry the error class as their first word
	text := err.Error()
	switch {
	case strings.HasPrefix(text, "NOAUTH"), strings.HasPrefix(text, "WRONGPASS"), strings.HasPrefix(text, "NOPERM"):
		return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
	case strings.HasPrefix(text, "WRONGTYPE"):
		return errs.Wrap(errs.ErrKindInvalidInput, msg, err)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}
