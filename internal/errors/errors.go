// Package errors defines the error taxonomy shared by services and the API.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/Arrogantx/slapper/internal/types"
)

// ErrorCategory groups error codes by who is at fault
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryAuthorization ErrorCategory = "authorization"
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryConflict      ErrorCategory = "conflict"
	CategoryRateLimit     ErrorCategory = "rate_limit"
	// CategoryProvider covers the chain RPC and OAuth provider
	CategoryProvider ErrorCategory = "provider"
	CategoryDatabase ErrorCategory = "database"
	CategoryCache    ErrorCategory = "cache"
	CategorySystem   ErrorCategory = "system"
)

// Error codes as they appear on the wire
const (
	CodeInvalidAddress       = "INVALID_ADDRESS"
	CodeInvalidParameter     = "INVALID_PARAMETER"
	CodeEmptyField           = "EMPTY_FIELD"
	CodeUnsupportedConnector = "UNSUPPORTED_CONNECTOR"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeNotConnected         = "WALLET_NOT_CONNECTED"
	CodeSignatureMismatch    = "SIGNATURE_MISMATCH"
	CodeChallengeExpired     = "CHALLENGE_EXPIRED"
	CodeNotAdmin             = "NOT_ADMIN"
	CodeNotApproved          = "NOT_APPROVED"
	CodeNotFound             = "NOT_FOUND"
	CodeRequestNotFound      = "REQUEST_NOT_FOUND"
	CodeAlreadyPending       = "ALREADY_PENDING"
	CodeAlreadyApproved      = "ALREADY_APPROVED"
	CodeRequestDenied        = "REQUEST_DENIED"
	CodeAlreadyResolved      = "ALREADY_RESOLVED"
	CodeRateLimited          = "RATE_LIMIT_EXCEEDED"
	CodeInternal             = "INTERNAL_ERROR"
	CodeDatabase             = "DATABASE_ERROR"
	CodeCache                = "CACHE_ERROR"
	CodeUnavailable          = "SERVICE_UNAVAILABLE"
	CodeProvider             = "PROVIDER_ERROR"
	CodeProviderTimeout      = "PROVIDER_TIMEOUT"
)

type codeClass struct {
	category ErrorCategory
	status   int
}

// codeClasses fixes the category and HTTP status of every code
var codeClasses = map[string]codeClass{
	CodeInvalidAddress:       {CategoryValidation, http.StatusBadRequest},
	CodeInvalidParameter:     {CategoryValidation, http.StatusBadRequest},
	CodeEmptyField:           {CategoryValidation, http.StatusBadRequest},
	CodeUnsupportedConnector: {CategoryValidation, http.StatusBadRequest},
	CodeUnauthorized:         {CategoryAuthorization, http.StatusUnauthorized},
	CodeNotConnected:         {CategoryAuthorization, http.StatusUnauthorized},
	CodeSignatureMismatch:    {CategoryAuthorization, http.StatusUnauthorized},
	CodeChallengeExpired:     {CategoryAuthorization, http.StatusUnauthorized},
	CodeNotAdmin:             {CategoryAuthorization, http.StatusForbidden},
	CodeNotApproved:          {CategoryAuthorization, http.StatusForbidden},
	CodeNotFound:             {CategoryNotFound, http.StatusNotFound},
	CodeRequestNotFound:      {CategoryNotFound, http.StatusNotFound},
	CodeAlreadyPending:       {CategoryConflict, http.StatusConflict},
	CodeAlreadyApproved:      {CategoryConflict, http.StatusConflict},
	CodeRequestDenied:        {CategoryConflict, http.StatusConflict},
	CodeAlreadyResolved:      {CategoryConflict, http.StatusConflict},
	CodeRateLimited:          {CategoryRateLimit, http.StatusTooManyRequests},
	CodeInternal:             {CategorySystem, http.StatusInternalServerError},
	CodeDatabase:             {CategoryDatabase, http.StatusInternalServerError},
	CodeCache:                {CategoryCache, http.StatusInternalServerError},
	CodeUnavailable:          {CategorySystem, http.StatusServiceUnavailable},
	CodeProvider:             {CategoryProvider, http.StatusBadGateway},
	CodeProviderTimeout:      {CategoryProvider, http.StatusGatewayTimeout},
}

// CategorizedError carries a wire code plus the category and HTTP status it maps to
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to the wire body
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// newError builds an error for a registered code. Unknown codes are system errors.
func newError(code, message string, cause error, details map[string]interface{}) *CategorizedError {
	class, ok := codeClasses[code]
	if !ok {
		class = codeClass{CategorySystem, http.StatusInternalServerError}
	}
	return &CategorizedError{
		Category:   class.category,
		StatusCode: class.status,
		Code:       code,
		Message:    message,
		Details:    details,
		Cause:      cause,
	}
}

type kv = map[string]interface{}

func NewInvalidAddressError(address string) *CategorizedError {
	return newError(CodeInvalidAddress, fmt.Sprintf("invalid address format: %s", address), nil, kv{"address": address})
}

func NewInvalidParameterError(param, reason string) *CategorizedError {
	return newError(CodeInvalidParameter, fmt.Sprintf("invalid parameter '%s': %s", param, reason), nil,
		kv{"parameter": param, "reason": reason})
}

// NewEmptyFieldError reports a required text field that is blank after trimming
func NewEmptyFieldError(field string) *CategorizedError {
	return newError(CodeEmptyField, fmt.Sprintf("%s cannot be empty", field), nil, kv{"field": field})
}

func NewUnsupportedConnectorError(kind string) *CategorizedError {
	return newError(CodeUnsupportedConnector, fmt.Sprintf("unsupported wallet connector: %s", kind), nil, kv{"connector": kind})
}

func NewUnauthorizedError(message string) *CategorizedError {
	return newError(CodeUnauthorized, message, nil, nil)
}

// NewNotConnectedError reports an operation that needs a connected wallet
func NewNotConnectedError() *CategorizedError {
	return newError(CodeNotConnected, "connect a wallet first", nil, nil)
}

// NewSignatureMismatchError reports a challenge signature that does not recover to the claimed wallet
func NewSignatureMismatchError(address string) *CategorizedError {
	return newError(CodeSignatureMismatch, "signature does not match wallet address", nil, kv{"address": address})
}

// NewChallengeExpiredError reports a missing, consumed or expired login challenge
func NewChallengeExpiredError(address string) *CategorizedError {
	return newError(CodeChallengeExpired, "login challenge expired or already used", nil, kv{"address": address})
}

func NewNotAdminError(address string) *CategorizedError {
	return newError(CodeNotAdmin, "wallet is not an admin", nil, kv{"address": address})
}

// NewNotApprovedError reports a deposit attempt by a wallet whose request is not approved
func NewNotApprovedError(address string, status types.RequestStatus) *CategorizedError {
	return newError(CodeNotApproved, "presale access has not been approved for this wallet", nil,
		kv{"address": address, "status": string(status)})
}

func NewNotFoundError(resource, id string) *CategorizedError {
	return newError(CodeNotFound, fmt.Sprintf("%s not found: %s", resource, id), nil, kv{"resource": resource, "id": id})
}

func NewRequestNotFoundError(id string) *CategorizedError {
	return newError(CodeRequestNotFound, fmt.Sprintf("access request not found: %s", id), nil, kv{"id": id})
}

// NewRequestExistsError reports a submit for a wallet that already has a request.
// The code distinguishes pending, approved and denied rows.
func NewRequestExistsError(address string, status types.RequestStatus) *CategorizedError {
	code, message := CodeAlreadyPending, "an access request is already pending for this wallet"
	switch status {
	case types.StatusApproved:
		code, message = CodeAlreadyApproved, "this wallet is already approved"
	case types.StatusDenied:
		code, message = CodeRequestDenied, "the access request for this wallet was denied"
	}
	return newError(code, message, nil, kv{"address": address, "status": string(status)})
}

// NewAlreadyResolvedError reports a decision on a request that is no longer pending
func NewAlreadyResolvedError(id string, current types.RequestStatus) *CategorizedError {
	return newError(CodeAlreadyResolved, fmt.Sprintf("access request %s is already %s", id, current), nil,
		kv{"id": id, "status": string(current)})
}

// NewRateLimitError carries the seconds until the caller may retry
func NewRateLimitError(retryAfter int) *CategorizedError {
	return newError(CodeRateLimited, "rate limit exceeded", nil, kv{"retryAfter": retryAfter})
}

func NewInternalError(message string, cause error) *CategorizedError {
	return newError(CodeInternal, message, cause, nil)
}

func NewDatabaseError(operation string, cause error) *CategorizedError {
	return newError(CodeDatabase, fmt.Sprintf("database error during %s", operation), cause, kv{"operation": operation})
}

func NewCacheError(operation string, cause error) *CategorizedError {
	return newError(CodeCache, fmt.Sprintf("cache error during %s", operation), cause, kv{"operation": operation})
}

func NewServiceUnavailableError(service string) *CategorizedError {
	return newError(CodeUnavailable, fmt.Sprintf("service unavailable: %s", service), nil, kv{"service": service})
}

// NewProviderError wraps a chain RPC or OAuth provider failure
func NewProviderError(provider string, cause error) *CategorizedError {
	return newError(CodeProvider, fmt.Sprintf("provider error: %s", provider), cause, kv{"provider": provider})
}

func NewProviderTimeoutError(provider string) *CategorizedError {
	return newError(CodeProviderTimeout, fmt.Sprintf("provider timeout: %s", provider), nil, kv{"provider": provider})
}

// Categorize finds the CategorizedError in err's chain. A bare ServiceError is
// classified by its code; anything else becomes INTERNAL_ERROR.
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	var svcErr *types.ServiceError
	if stderrors.As(err, &svcErr) {
		return newError(svcErr.Code, svcErr.Message, nil, svcErr.Details)
	}

	return NewInternalError("unexpected error", err)
}

// HasCode reports whether err categorizes to the given code
func HasCode(err error, code string) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.Code == code
}

// GetHTTPStatusCode returns the HTTP status for err
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable reports whether another attempt might succeed
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryProvider, CategoryDatabase, CategoryCache:
		return true
	case CategorySystem:
		return catErr.StatusCode == http.StatusServiceUnavailable
	}
	return false
}

// IsUserError reports a 4xx error
func IsUserError(err error) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.StatusCode >= 400 && catErr.StatusCode < 500
}

// IsSystemError reports a 5xx error
func IsSystemError(err error) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.StatusCode >= 500
}
