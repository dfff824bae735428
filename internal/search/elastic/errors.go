package elastic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/koustreak/roubi/internal/errs"
)

// ResponseError carries a non-2xx Elasticsearch reply.
type ResponseError struct {
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("elasticsearch status %d: %s", e.StatusCode, e.Body)
}

func responseError(res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return &ResponseError{StatusCode: res.StatusCode, Body: string(body)}
}

// mapError classifies transport-level failures.
func mapError(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}
	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}

// mapStatus classifies an error reply by HTTP status.
func mapStatus(status int, msg string, cause error) error {
	switch status {
	case http.StatusNotFound:
		return errs.Wrap(errs.ErrKindNotFound, msg, cause)
	case http.StatusUnauthorized, http.StatusForbidden:
		return errs.Wrap(errs.ErrKindPermissionDenied, msg, cause)
	case http.StatusBadRequest:
		return errs.Wrap(errs.ErrKindInvalidInput, msg, cause)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return errs.Wrap(errs.ErrKindTimeout, msg, cause)
	}
	return errs.Wrap(errs.ErrKindQueryFailed, msg, cause)
}
