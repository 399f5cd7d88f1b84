package middleware

import (
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
)

// APIKeyHeader carries API keys.
const APIKeyHeader = "X-API-Key"

// Bearer requires a valid access token in the Authorization header and
// attaches the caller's identity to the request context.
func Bearer(e *authcore.Engine) func(http.Handler) http.Handler {
	rs := ResponderFor(e)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r.Header.Get("Authorization"))
			if err != nil {
				rs.Error(w, r, err)
				return
			}
			id, err := e.AuthenticateBearer(r.Context(), token)
			if err != nil {
				rs.Error(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(authcore.WithIdentity(r.Context(), id)))
		})
	}
}

// Optional attaches the caller's identity when the request carries a valid
// access token and otherwise passes the request through untouched.
func Optional(e *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r.Header.Get("Authorization"))
			if err == nil {
				if id, err := e.AuthenticateBearer(r.Context(), token); err == nil {
					r = r.WithContext(authcore.WithIdentity(r.Context(), id))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// APIKey requires an X-API-Key header holding an active key that grants
// permission (empty means any key) and passes its IP and domain allow-lists.
func APIKey(e *authcore.Engine, permission string) func(http.Handler) http.Handler {
	rs := ResponderFor(e)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(APIKeyHeader))
			if key == "" {
				rs.Error(w, r, authcore.ErrAPIKeyRequired)
				return
			}
			r, err := authenticateKey(e, r, key, permission)
			if err != nil {
				rs.Error(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Flexible accepts a Bearer token or an API key. A Bearer header wins when
// both are sent; permission only applies to the API key path.
func Flexible(e *authcore.Engine, permission string) func(http.Handler) http.Handler {
	rs := ResponderFor(e)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if header := r.Header.Get("Authorization"); strings.HasPrefix(header, bearerPrefix) {
				token, err := bearerToken(header)
				if err != nil {
					rs.Error(w, r, err)
					return
				}
				id, err := e.AuthenticateBearer(r.Context(), token)
				if err != nil {
					rs.Error(w, r, err)
					return
				}
				next.ServeHTTP(w, r.WithContext(authcore.WithIdentity(r.Context(), id)))
				return
			}

			if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
				r, err := authenticateKey(e, r, key, permission)
				if err != nil {
					rs.Error(w, r, err)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			rs.Error(w, r, authcore.ErrCredentialsRequired)
		})
	}
}

func authenticateKey(e *authcore.Engine, r *http.Request, key, permission string) (*http.Request, error) {
	check := authcore.APIKeyCheck{Permission: permission}
	if authcore.ClientIPFromContext(r.Context()) == "" {
		check.ClientIP = remoteIP(r)
		check.ClientDomain = hostname(r.Host)
	}
	id, info, err := e.AuthenticateAPIKey(r.Context(), key, check)
	if err != nil {
		return r, err
	}
	ctx := authcore.WithIdentity(r.Context(), id)
	ctx = authcore.WithAPIKeyInfo(ctx, info)
	return r.WithContext(ctx), nil
}

const bearerPrefix = "Bearer "

func bearerToken(value string) (string, error) {
	if !strings.HasPrefix(value, bearerPrefix) {
		return "", authcore.ErrAccessTokenMissing
	}

	token := strings.TrimSpace(value[len(bearerPrefix):])
	if token == "" {
		return "", authcore.ErrAccessTokenMalformed
	}

	return token, nil
}
