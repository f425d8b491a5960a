package rpc

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"bridgeindexer/internal/errors"
)

func TestClassifyError_NilIsNil(t *testing.T) {
	assert.NoError(t, classifyError("ethereum", nil))
}

func TestClassifyError_RateLimitedMessagesAreRetryable(t *testing.T) {
	err := classifyError("ethereum", stderrors.New("429 Too Many Requests"))
	assert.True(t, errors.IsRetryable(err))

	var appErr *errors.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrCodeRateLimited, appErr.Code)
}

func TestClassifyError_TimeoutMessagesAreRetryable(t *testing.T) {
	err := classifyError("ethereum", stderrors.New("context deadline exceeded"))
	assert.True(t, errors.IsRetryable(err))
}

func TestClassifyError_ConnectionFailuresAreNodeUnavailable(t *testing.T) {
	err := classifyError("ethereum", stderrors.New("dial tcp: connection refused"))
	assert.True(t, errors.IsRetryable(err))

	var appErr *errors.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrCodeNodeUnavailable, appErr.Code)
}

func TestClassifyError_RevertsAreNotRetryable(t *testing.T) {
	err := classifyError("ethereum", stderrors.New("execution reverted: insufficient balance"))
	assert.False(t, errors.IsRetryable(err))
}

func TestClassifyError_UnknownErrorsAreBadResponseAndNotRetryable(t *testing.T) {
	err := classifyError("ethereum", stderrors.New("some unexpected node error"))
	assert.False(t, errors.IsRetryable(err))

	var appErr *errors.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrCodeBadResponse, appErr.Code)
}
