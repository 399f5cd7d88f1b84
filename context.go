package authcore

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type clientDomainContextKey struct{}
type identityContextKey struct{}
type apiKeyInfoContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine records it
// on new sessions and activity events, keys login throttling on it, and checks
// it against API key IP allow-lists.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithClientDomain attaches the request host used for API key domain allow-lists.
func WithClientDomain(ctx context.Context, domain string) context.Context {
	return context.WithValue(ctx, clientDomainContextKey{}, domain)
}

// WithIdentity attaches an authenticated identity to ctx.
//
//	Docs: middleware/doc.go
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the identity attached by an authentication
// gate, or nil when the request is unauthenticated.
func IdentityFromContext(ctx context.Context) *Identity {
	if ctx == nil {
		return nil
	}
	id, _ := ctx.Value(identityContextKey{}).(*Identity)
	return id
}

// WithAPIKeyInfo attaches the API key that authenticated the request.
func WithAPIKeyInfo(ctx context.Context, info *APIKeyInfo) context.Context {
	return context.WithValue(ctx, apiKeyInfoContextKey{}, info)
}

// APIKeyInfoFromContext returns the API key attached by the API key gate, if any.
func APIKeyInfoFromContext(ctx context.Context) *APIKeyInfo {
	if ctx == nil {
		return nil
	}
	info, _ := ctx.Value(apiKeyInfoContextKey{}).(*APIKeyInfo)
	return info
}

// ClientIPFromContext returns the IP set with WithClientIP.
func ClientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ua, _ := ctx.Value(userAgentContextKey{}).(string)
	return ua
}

func clientDomainFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	d, _ := ctx.Value(clientDomainContextKey{}).(string)
	return d
}
