package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arrogantx/slapper/internal/types"
)

func TestNewRequestExistsError(t *testing.T) {
	tests := []struct {
		status types.RequestStatus
		code   string
	}{
		{types.StatusPending, "ALREADY_PENDING"},
		{types.StatusApproved, "ALREADY_APPROVED"},
		{types.StatusDenied, "REQUEST_DENIED"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			err := NewRequestExistsError("0xabc", tt.status)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, http.StatusConflict, err.StatusCode)
			assert.Equal(t, string(tt.status), err.Details["status"])
		})
	}
}

func TestCategorize_WrappedError(t *testing.T) {
	base := NewNotAdminError("0xabc")
	wrapped := fmt.Errorf("list requests: %w", base)

	catErr := Categorize(wrapped)
	require.NotNil(t, catErr)
	assert.Equal(t, "NOT_ADMIN", catErr.Code)
	assert.Equal(t, http.StatusForbidden, GetHTTPStatusCode(wrapped))
	assert.True(t, HasCode(wrapped, "NOT_ADMIN"))
}

func TestCategorize_ServiceError(t *testing.T) {
	svcErr := &types.ServiceError{Code: "ALREADY_RESOLVED", Message: "already approved"}

	catErr := Categorize(svcErr)
	assert.Equal(t, CategoryConflict, catErr.Category)
	assert.Equal(t, http.StatusConflict, catErr.StatusCode)
}

func TestCategorize_UnknownError(t *testing.T) {
	catErr := Categorize(fmt.Errorf("socket closed"))
	assert.Equal(t, "INTERNAL_ERROR", catErr.Code)
	assert.True(t, IsSystemError(catErr))
	assert.Nil(t, Categorize(nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewDatabaseError("insert", fmt.Errorf("conn reset"))))
	assert.True(t, IsRetryable(NewServiceUnavailableError("clickhouse")))
	assert.False(t, IsRetryable(NewEmptyFieldError("message")))
	assert.False(t, IsRetryable(NewInternalError("bug", nil)))
}

func TestIsUserError(t *testing.T) {
	assert.True(t, IsUserError(NewInvalidAddressError("0x1")))
	assert.True(t, IsUserError(NewRateLimitError(60)))
	assert.False(t, IsUserError(NewProviderError("avalanche", nil)))
}

func TestToServiceError(t *testing.T) {
	svcErr := NewAlreadyResolvedError("req-1", types.StatusDenied).ToServiceError()
	assert.Equal(t, "ALREADY_RESOLVED", svcErr.Code)
	assert.Equal(t, "denied", svcErr.Details["status"])
}

func TestCategorize_UnknownServiceCode(t *testing.T) {
	catErr := Categorize(&types.ServiceError{Code: "SOMETHING_NEW", Message: "?"})
	assert.Equal(t, CategorySystem, catErr.Category)
	assert.Equal(t, http.StatusInternalServerError, catErr.StatusCode)
	assert.Equal(t, "SOMETHING_NEW", catErr.Code)
}

func TestCodeClasses_StatusMatchesCategory(t *testing.T) {
	for code, class := range codeClasses {
		switch class.category {
		case CategoryValidation, CategoryAuthorization, CategoryNotFound, CategoryConflict, CategoryRateLimit:
			assert.True(t, class.status >= 400 && class.status < 500, code)
		default:
			assert.GreaterOrEqual(t, class.status, 500, code)
		}
	}
}
