package middleware

import (
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
)

// RequireRole admits callers whose role is one of roles. It must run after
// a gate that sets the identity.
func RequireRole(e *authcore.Engine, roles ...authcore.Role) func(http.Handler) http.Handler {
	rs := ResponderFor(e)
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	required := strings.Join(names, " or ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := authcore.IdentityFromContext(r.Context())
			if id == nil {
				rs.Error(w, r, authcore.ErrNotAuthenticated)
				return
			}
			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			rs.Error(w, r, &authcore.AuthError{
				Kind:    authcore.KindForbidden,
				Message: "Access denied. Required role: " + required + ". Your role: " + string(id.Role),
				Err:     authcore.ErrRoleForbidden,
			})
		})
	}
}

// RequireVerified admits callers whose email address is verified.
func RequireVerified(e *authcore.Engine) func(http.Handler) http.Handler {
	rs := ResponderFor(e)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := authcore.IdentityFromContext(r.Context())
			if id == nil {
				rs.Error(w, r, authcore.ErrNotAuthenticated)
				return
			}
			if !id.EmailVerified {
				rs.Error(w, r, authcore.ErrEmailNotVerified)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ForbidSelf rejects requests whose target account, as returned by target,
// is the caller. An empty message uses authcore.ErrSelfAction's.
func ForbidSelf(e *authcore.Engine, target func(*http.Request) string, message string) func(http.Handler) http.Handler {
	rs := ResponderFor(e)
	denied := authcore.ErrSelfAction
	if message != "" {
		denied = &authcore.AuthError{Kind: authcore.KindForbidden, Message: message, Err: authcore.ErrSelfAction}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := authcore.IdentityFromContext(r.Context())
			if id == nil {
				rs.Error(w, r, authcore.ErrNotAuthenticated)
				return
			}
			if target(r) == id.ID {
				rs.Error(w, r, denied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
