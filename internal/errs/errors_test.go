package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type vendorErr struct{ code int }

func (v *vendorErr) Error() string { return fmt.Sprintf("vendor code %d", v.code) }

func TestError_Message(t *testing.T) {
	assert.Equal(t, "[not_connected] fail connect", ErrNotConnected.Error())

	err := Wrap(ErrKindQueryFailed, "insert failed", errors.New("boom"))
	assert.Equal(t, "[query_failed] insert failed: boom", err.Error())
}

func TestError_CauseIsReachable(t *testing.T) {
	cause := &vendorErr{code: 11000}
	err := fmt.Errorf("outer: %w", Wrap(ErrKindQueryFailed, "insert failed", cause))

	var target *vendorErr
	assert.True(t, errors.As(err, &target))
	assert.Equal(t, 11000, target.code)
	assert.True(t, IsQueryFailed(err))
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
	}{
		{"not found", New(ErrKindNotFound, "x"), IsNotFound},
		{"timeout", New(ErrKindTimeout, "x"), IsTimeout},
		{"connection", New(ErrKindConnectionFailed, "x"), IsConnectionFailed},
		{"invalid input", New(ErrKindInvalidInput, "x"), IsInvalidInput},
		{"permission", New(ErrKindPermissionDenied, "x"), IsPermissionDenied},
		{"not connected", ErrNotConnected, IsNotConnected},
		{"conflict", New(ErrKindConflict, "x"), IsConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.pred(tt.err))
			assert.False(t, tt.pred(errors.New("plain")))
		})
	}
}

func TestKindOf_Unknown(t *testing.T) {
	assert.Equal(t, ErrKindUnknown, KindOf(nil))
	assert.Equal(t, ErrKindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, "unknown", ErrKind(99).String())
}
