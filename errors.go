package authcore

import (
	"errors"
	"net/http"
	"time"
)

// ErrorKind classifies failures into the categories the HTTP layer maps to status codes.
type ErrorKind uint8

const (
	KindInternal ErrorKind = iota
	KindUnauthenticated
	KindForbidden
	KindConflict
	KindNotFound
	KindValidation
	KindRateLimited
	KindConfiguration
)

// Status returns the HTTP status code for k.
func (k ErrorKind) Status() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation_failed"
	case KindRateLimited:
		return "rate_limited"
	case KindConfiguration:
		return "configuration"
	default:
		return "internal"
	}
}

// AuthError is the typed error returned by every Engine operation.
//
// Message is safe to show to the caller. Err carries the underlying cause and
// is only meant for server-side logs (or development-mode responses).
type AuthError struct {
	Kind       ErrorKind
	Message    string
	Fields     map[string]string
	RetryAfter time.Duration
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil && e.Kind == KindInternal {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status for the error.
func (e *AuthError) StatusCode() int { return e.Kind.Status() }

func newError(kind ErrorKind, message string) *AuthError {
	return &AuthError{Kind: kind, Message: message}
}

// derive returns an error with a more specific message that still matches base with errors.Is.
func derive(base *AuthError, message string) *AuthError {
	return &AuthError{Kind: base.Kind, Message: message, Err: base}
}

func internalError(err error) *AuthError {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	return &AuthError{Kind: KindInternal, Message: ErrInternal.Message, Err: err}
}

func validationError(fields map[string]string) *AuthError {
	return &AuthError{Kind: KindValidation, Message: ErrValidation.Message, Fields: fields, Err: ErrValidation}
}

// AsAuthError extracts an *AuthError from err's chain.
func AsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// StatusCode maps any error to an HTTP status. Unknown errors are 500.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if ae, ok := AsAuthError(err); ok {
		return ae.StatusCode()
	}
	return http.StatusInternalServerError
}

// Errors surfaced by the store contracts. Store implementations wrap or return these.
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrRecordConflict = errors.New("record conflict")
)

var (
	ErrInternal          = newError(KindInternal, "Internal Server Error")
	ErrEngineNotReady    = newError(KindConfiguration, "authentication engine not initialized")
	ErrSigningKeyMissing = newError(KindConfiguration, "token signing secret is not configured")
	ErrValidation        = newError(KindValidation, "Validation failed")

	ErrInvalidCredentials = newError(KindUnauthenticated, "Invalid email or password")
	ErrAccountDeactivated = newError(KindForbidden, "Your account has been deactivated. Please contact support")
	ErrAccountBanned      = newError(KindForbidden, "Your account has been banned")
	ErrAccountGone        = newError(KindUnauthenticated, "User no longer exists")
	ErrAccountNotFound    = newError(KindNotFound, "User not found")
	ErrInvalidAccountID   = newError(KindValidation, "Invalid user ID format")
	ErrEmailTaken         = newError(KindConflict, "An account with this email already exists")
	ErrEmailInUse         = newError(KindConflict, "Email already in use")

	ErrRefreshTokenRequired  = newError(KindValidation, "Refresh token is required")
	ErrRefreshTokenExpired   = newError(KindUnauthenticated, "Refresh token has expired. Please login again")
	ErrRefreshTokenInvalid   = newError(KindUnauthenticated, "Invalid refresh token")
	ErrRefreshSessionInvalid = newError(KindUnauthenticated, "Invalid or expired refresh token. Please login again")

	ErrAccessTokenMissing   = newError(KindUnauthenticated, "No authentication token provided. Please login.")
	ErrAccessTokenMalformed = newError(KindUnauthenticated, "Invalid token format")
	ErrAccessTokenExpired   = newError(KindUnauthenticated, "Access token has expired")
	ErrAccessTokenInvalid   = newError(KindUnauthenticated, "Invalid access token")
	ErrNotAuthenticated     = newError(KindUnauthenticated, "Not authenticated")
	ErrCredentialsRequired  = newError(KindUnauthenticated, "Authentication required. Provide either Bearer token or X-API-Key header")

	ErrRoleForbidden    = newError(KindForbidden, "Access denied")
	ErrEmailNotVerified = newError(KindForbidden, "Please verify your email address to access this feature.")
	ErrSelfAction       = newError(KindForbidden, "You cannot perform this action on your own account")
	ErrSelfBan          = newError(KindForbidden, "You cannot ban yourself")
	ErrSelfRoleChange   = newError(KindForbidden, "You cannot change your own role")
	ErrSelfDelete       = newError(KindForbidden, "You cannot delete your own account")
	ErrBanAdmin         = newError(KindForbidden, "Cannot ban admin users")
	ErrAlreadyBanned    = newError(KindValidation, "User is already banned")
	ErrNotBanned        = newError(KindValidation, "User is not banned")
	ErrInvalidRole      = newError(KindValidation, "Invalid role")

	ErrAlreadyVerified          = newError(KindValidation, "Email is already verified")
	ErrInvalidVerificationToken = newError(KindValidation, "Invalid or expired verification token")
	ErrInvalidResetToken        = newError(KindValidation, "Invalid or expired reset token")

	ErrAPIKeyRequired         = newError(KindUnauthenticated, "API key is required. Please provide X-API-Key header")
	ErrAPIKeyInvalid          = newError(KindUnauthenticated, "Invalid API key")
	ErrAPIKeyExpired          = newError(KindUnauthenticated, "API key has expired")
	ErrAPIKeyOwnerInactive    = newError(KindUnauthenticated, "Account associated with this API key is inactive")
	ErrAPIKeyPermission       = newError(KindForbidden, "API key does not have the required permission")
	ErrAPIKeyIPNotAllowed     = newError(KindForbidden, "IP address not allowed")
	ErrAPIKeyDomainNotAllowed = newError(KindForbidden, "Domain not allowed")
	ErrAPIKeyNotFound         = newError(KindNotFound, "API key not found")
	ErrAPIKeyRateLimited      = newError(KindRateLimited, "Rate limit exceeded for this API key")

	ErrTooManyRequests      = newError(KindRateLimited, "Too many request from this IP, please try again later")
	ErrTooManyAuthAttempts  = newError(KindRateLimited, "Too many authentication attempts, please try again later")
	ErrTooManyResetRequests = newError(KindRateLimited, "Too many password reset requests, please try again later")
)
