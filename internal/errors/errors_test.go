package errors_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/victornm/quizjudge/internal/errors"
)

func TestError_HTTPStatusCode(t *testing.T) {
	tests := map[errors.Code]int{
		errors.CodeInvalidArgument:    http.StatusBadRequest,
		errors.CodeNotFound:           http.StatusNotFound,
		errors.CodeFailedPrecondition: http.StatusConflict,
		errors.CodeDeadlineExceeded:   http.StatusGatewayTimeout,
		errors.CodeUnavailable:        http.StatusServiceUnavailable,
		errors.CodeInternal:           http.StatusInternalServerError,
		errors.Code(codes.DataLoss):   http.StatusInternalServerError,
	}

	for code, want := range tests {
		t.Run(code.String(), func(t *testing.T) {
			assert.Equal(t, want, errors.New(code).HTTPStatusCode())
		})
	}
}

func TestConvert(t *testing.T) {
	cause := stderrors.New("boom")

	t.Run("should wrap unknown errors as internal", func(t *testing.T) {
		e := errors.Convert(cause)
		assert.Equal(t, errors.CodeInternal, e.Code)
		assert.ErrorIs(t, e, cause)
	})

	t.Run("should find a wrapped error", func(t *testing.T) {
		orig := errors.New(errors.CodeNotFound, errors.WithMessagef("session not found: %s", "s1"), errors.WithCause(cause))
		e := errors.Convert(fmt.Errorf("get: %w", orig))

		assert.Same(t, orig, e)
		assert.Equal(t, "session not found: s1", e.Message)
		assert.ErrorIs(t, e, cause)
		assert.Contains(t, e.Error(), "boom")
	})
}

func TestConvert_DeadlineExceeded(t *testing.T) {
	e := errors.Convert(fmt.Errorf("query: %w", context.DeadlineExceeded))

	assert.Equal(t, errors.CodeDeadlineExceeded, e.Code)
	assert.Equal(t, http.StatusGatewayTimeout, e.HTTPStatusCode())
	assert.Equal(t, "deadline_exceeded: request timed out: query: context deadline exceeded", e.Error())
}

func TestCode_String(t *testing.T) {
	assert.Equal(t, "invalid_argument", errors.CodeInvalidArgument.String())
	assert.Equal(t, "failed_precondition", errors.CodeFailedPrecondition.String())
	assert.Equal(t, "internal", errors.CodeInternal.String())
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", errors.New(errors.CodeFailedPrecondition))

	assert.True(t, errors.Is(err, errors.CodeFailedPrecondition))
	assert.False(t, errors.Is(err, errors.CodeNotFound))
	assert.False(t, errors.Is(nil, errors.CodeNotFound))
	assert.False(t, errors.Is(stderrors.New("plain"), errors.CodeInternal))
}

func TestError_GRPCStatus(t *testing.T) {
	err := errors.New(errors.CodeInvalidArgument, errors.WithMessagef("bad index %d", 7))

	s, ok := status.FromError(err)
	assert.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, s.Code())
	assert.Equal(t, "bad index 7", s.Message())
}
