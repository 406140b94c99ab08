package errors

import "errors"

// New returns an error that formats as the given text.
var New = errors.New

// Is and As are re-exported so callers importing this package do not also
// need the standard library errors package.
var (
	Is = errors.Is
	As = errors.As
)

// known errors
var (
	ErrValidation              = errors.New("invalid_request")
	ErrStateMismatch           = errors.New("state_mismatch")
	ErrUnauthorizedClient      = errors.New("unauthorized_client")
	ErrAccessDenied            = errors.New("access_denied")
	ErrInvalidCredentials      = errors.New("invalid_credentials")
	ErrCodeNotFound            = errors.New("code_not_found")
	ErrCodeExpired             = errors.New("code_expired")
	ErrTokenInvalidSignature   = errors.New("invalid_token")
	ErrAccessTokenRevoked      = errors.New("token_revoked")
	ErrTokenExpiredNoRefresh   = errors.New("token_expired")
	ErrRefreshInvalidOrExpired = errors.New("invalid_refresh_token")
	ErrStorageFailure          = errors.New("server_error")
)
