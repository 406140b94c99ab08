package errors

import (
	"net/http"
)

// Response error response
type Response struct {
	Error       error
	Description string
	StatusCode  int
	Header      http.Header
}

// NewResponse create the response pointer
func NewResponse(err error, statusCode int) *Response {
	return &Response{
		Error:      err,
		StatusCode: statusCode,
	}
}

// SetHeader sets the header entries associated with key to
// the single element value.
func (r *Response) SetHeader(key, value string) {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set(key, value)
}

// Descriptions error description
var Descriptions = map[error]string{
	ErrValidation:              "The request is missing a required parameter or includes an invalid parameter value",
	ErrStateMismatch:           "The state parameter does not match the value issued for this login",
	ErrUnauthorizedClient:      "The client is not authorized for this user or redirect URI",
	ErrAccessDenied:            "Request denied",
	ErrInvalidCredentials:      "Invalid username or password",
	ErrCodeNotFound:            "The authorization code is invalid or has already been used",
	ErrCodeExpired:             "The authorization code has expired",
	ErrTokenInvalidSignature:   "The access token is malformed or its signature is invalid",
	ErrAccessTokenRevoked:      "The access token has been revoked",
	ErrTokenExpiredNoRefresh:   "The access token has expired and no refresh token was provided",
	ErrRefreshInvalidOrExpired: "The refresh token is invalid, expired or revoked",
	ErrStorageFailure:          "The server encountered an unexpected condition that prevented it from fulfilling the request",
}

// StatusCodes response error HTTP status code
var StatusCodes = map[error]int{
	ErrValidation:              http.StatusBadRequest,
	ErrStateMismatch:           http.StatusBadRequest,
	ErrUnauthorizedClient:      http.StatusBadRequest,
	ErrAccessDenied:            http.StatusForbidden,
	ErrInvalidCredentials:      http.StatusUnauthorized,
	ErrCodeNotFound:            http.StatusBadRequest,
	ErrCodeExpired:             http.StatusBadRequest,
	ErrTokenInvalidSignature:   http.StatusUnauthorized,
	ErrAccessTokenRevoked:      http.StatusUnauthorized,
	ErrTokenExpiredNoRefresh:   http.StatusBadRequest,
	ErrRefreshInvalidOrExpired: http.StatusUnauthorized,
	ErrStorageFailure:          http.StatusInternalServerError,
}

// precedence is the order Lookup tries known errors in. A server fault wins
// over any client error joined with it.
var precedence = []error{
	ErrStorageFailure,
	ErrTokenInvalidSignature,
	ErrAccessTokenRevoked,
	ErrRefreshInvalidOrExpired,
	ErrTokenExpiredNoRefresh,
	ErrStateMismatch,
	ErrUnauthorizedClient,
	ErrAccessDenied,
	ErrInvalidCredentials,
	ErrCodeExpired,
	ErrCodeNotFound,
	ErrValidation,
}

// Lookup resolves err (possibly wrapped) to one of the known errors and
// builds its response. Unknown errors map to ErrStorageFailure so that no
// internal detail reaches the client.
func Lookup(err error) *Response {
	for _, known := range precedence {
		if Is(err, known) {
			r := NewResponse(known, StatusCodes[known])
			r.Description = Descriptions[known]
			return r
		}
	}
	r := NewResponse(ErrStorageFailure, StatusCodes[ErrStorageFailure])
	r.Description = Descriptions[ErrStorageFailure]
	return r
}
