package api

import "github.com/vaultsandbox/e3kit-go/internal/apierrors"

// Errors re-exported from apierrors so callers of this package can match
// them without a second import.
var (
	ErrUnauthorized  = apierrors.ErrUnauthorized
	ErrForbidden     = apierrors.ErrForbidden
	ErrCardNotFound  = apierrors.ErrCardNotFound
	ErrEntryNotFound = apierrors.ErrEntryNotFound
	ErrConflict      = apierrors.ErrConflict
	ErrRateLimited   = apierrors.ErrRateLimited
	ErrMissingToken  = apierrors.ErrMissingToken
)

type (
	// APIError is an HTTP error response.
	APIError = apierrors.APIError
	// NetworkError is a transport failure.
	NetworkError = apierrors.NetworkError
	// TokenError is a failure to obtain a bearer token.
	TokenError = apierrors.TokenError
)
