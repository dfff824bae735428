package clickhouse

import (
	"context"
	"errors"
	"fmt"

	ch "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/koustreak/roubi/internal/errs"
)

// server exception codes
const (
	codeUnknownTable        = 60
	codeSyntaxError         = 62
	codeUnknownDatabase     = 81
	codeTimeoutExceeded     = 159
	codeAccessDenied        = 497
	codeAuthenticationError = 516
)

// mapError translates clickhouse-go errors into *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var exc *ch.Exception
	if errors.As(err, &exc) {
		detailed := fmt.Sprintf("%s: %s", msg, exc.Message)
		switch exc.Code {
		case codeUnknownTable, codeUnknownDatabase:
			return errs.Wrap(errs.ErrKindNotFound, detailed, err)
		case codeSyntaxError:
			return errs.Wrap(errs.ErrKindInvalidInput, detailed, err)
		case codeTimeoutExceeded:
			return errs.Wrap(errs.ErrKindTimeout, detailed, err)
		case codeAccessDenied, codeAuthenticationError:
			return errs.Wrap(errs.ErrKindPermissionDenied, detailed, err)
		}
		return errs.Wrap(errs.ErrKindQueryFailed, detailed, err)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}
