package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New(KindPolicy, "SAME_AS_CURRENT", "Same credential", http.StatusUnprocessableEntity),
			expected: "[SAME_AS_CURRENT] Same credential",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap(KindStorage, "STORAGE_UNAVAILABLE", "DB error", http.StatusServiceUnavailable, fmt.Errorf("connection refused")),
			expected: "[STORAGE_UNAVAILABLE] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := ErrStorage(inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := ErrSameAsCurrent()
	assert.Nil(t, appErr.Unwrap())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		kind       Kind
		code       string
		httpStatus int
		retryable  bool
	}{
		{"Validation", Validation("bad page"), KindValidation, CodeValidationFailed, 400, false},
		{"MismatchedConfirmation", ErrMismatchedConfirmation(), KindValidation, CodeMismatchedConfirmation, 400, false},
		{"InvalidToken", ErrInvalidToken(), KindAuthorization, CodeUnauthorized, 401, false},
		{"InvalidCurrentCredential", ErrInvalidCurrentCredential(), KindAuthorization, CodeInvalidCurrentCredential, 401, false},
		{"SameAsCurrent", ErrSameAsCurrent(), KindPolicy, CodeSameAsCurrent, 422, false},
		{"RecentlyUsed", ErrRecentlyUsed(5), KindPolicy, CodeRecentlyUsed, 422, false},
		{"NotFound", ErrNotFound("Principal"), KindNotFound, CodeNotFound, 404, false},
		{"RateLimit", ErrRateLimitExceeded(), KindRateLimit, CodeRateLimited, 429, true},
		{"Storage", ErrStorage(errors.New("x")), KindStorage, CodeStorageUnavailable, 503, true},
		{"AuditEmission", ErrAuditEmission(errors.New("x")), KindAuditEmission, CodeAuditEmissionFailed, 200, false},
		{"Internal", InternalError(errors.New("x")), KindInternal, CodeInternal, 500, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
		})
	}
}

func TestRecentlyUsedMessage(t *testing.T) {
	assert.Equal(t, "cannot reuse one of the last 3 credentials", ErrRecentlyUsed(3).Message)
}

func TestStorageMessageHidesCause(t *testing.T) {
	err := ErrStorage(errors.New("pq: password authentication failed for user admin"))
	assert.NotContains(t, err.Message, "admin")
}

func TestKindOf_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("change credential: %w", ErrRecentlyUsed(5))

	assert.Equal(t, KindPolicy, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindPolicy))
	assert.False(t, IsKind(wrapped, KindStorage))
	assert.True(t, HasCode(wrapped, CodeRecentlyUsed))

	appErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeRecentlyUsed, appErr.Code)
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, IsKind(nil, KindInternal))
	assert.False(t, IsRetryable(errors.New("boom")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("record: %w", ErrStorage(errors.New("timeout")))))
	assert.False(t, IsRetryable(ErrSameAsCurrent()))
}
