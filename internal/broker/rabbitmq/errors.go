package rabbitmq

import (
	"context"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/koustreak/roubi/internal/errs"
)

// mapError converts an amqp091 error into a *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}
	if errors.Is(err, amqp.ErrClosed) {
		return errs.Wrap(errs.ErrKindNotConnected, msg, err)
	}

	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		switch amqpErr.Code {
		case amqp.AccessRefused:
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		case amqp.NotFound:
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		case amqp.PreconditionFailed, amqp.SyntaxError, amqp.CommandInvalid:
			return errs.Wrap(errs.ErrKindInvalidInput, msg, err)
		}
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}
