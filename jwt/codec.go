package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrSigningKeyMissing is returned when a token kind has no signing secret configured.
	ErrSigningKeyMissing = errors.New("jwt: signing secret is not configured")
	// ErrTokenExpired is returned when a token is well-formed but past its expiry.
	ErrTokenExpired = errors.New("jwt: token expired")
	// ErrTokenInvalid covers malformed tokens, bad signatures and wrong token kinds.
	ErrTokenInvalid = errors.New("jwt: token invalid")
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"

	minSecretBytes = 16
)

// Config holds the signing material and lifetimes for both token kinds.
//
// AccessSecret and RefreshSecret must differ. AccessTTL should stay in the
// minutes-to-hours range; RefreshTTL governs how long a device stays logged in.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
	Now           func() time.Time
}

// Payload is the identity embedded in every token.
type Payload struct {
	AccountID string
	Email     string
	Role      string
}

// Claims is the JWT claim set used for both token kinds.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Kind  string `json:"typ"`
	jwt.RegisteredClaims
}

// Codec signs and verifies access and refresh tokens.
type Codec struct {
	config Config
}

// NewCodec validates cfg and returns a ready Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, ErrSigningKeyMissing
	}
	if len(cfg.AccessSecret) < minSecretBytes || len(cfg.RefreshSecret) < minSecretBytes {
		return nil, fmt.Errorf("jwt: secrets must be at least %d bytes", minSecretBytes)
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("jwt: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("jwt: invalid TTL configuration")
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, errors.New("jwt: access TTL must be shorter than refresh TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: invalid leeway configuration")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Codec{config: cfg}, nil
}

// AccessTTL reports the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.config.AccessTTL }

// RefreshTTL reports the configured refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.config.RefreshTTL }

// IssueAccess signs a short-lived access token for p.
func (c *Codec) IssueAccess(p Payload) (string, time.Time, error) {
	return c.issue(p, kindAccess, c.config.AccessSecret, c.config.AccessTTL)
}

// IssueRefresh signs a long-lived refresh token for p.
func (c *Codec) IssueRefresh(p Payload) (string, time.Time, error) {
	return c.issue(p, kindRefresh, c.config.RefreshSecret, c.config.RefreshTTL)
}

// VerifyAccess checks signature, expiry and kind of an access token.
func (c *Codec) VerifyAccess(token string) (Payload, error) {
	return c.verify(token, kindAccess, c.config.AccessSecret)
}

// VerifyRefresh checks signature, expiry and kind of a refresh token.
func (c *Codec) VerifyRefresh(token string) (Payload, error) {
	return c.verify(token, kindRefresh, c.config.RefreshSecret)
}

func (c *Codec) issue(p Payload, kind string, secret []byte, ttl time.Duration) (string, time.Time, error) {
	if c == nil || len(secret) == 0 {
		return "", time.Time{}, ErrSigningKeyMissing
	}
	if p.AccountID == "" {
		return "", time.Time{}, errors.New("jwt: payload requires an account id")
	}

	now := c.config.Now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Email: p.Email,
		Role:  p.Role,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.AccountID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    c.config.Issuer,
		},
	}
	if c.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (c *Codec) verify(tokenStr, kind string, secret []byte) (Payload, error) {
	if c == nil || len(secret) == 0 {
		return Payload{}, ErrSigningKeyMissing
	}
	if tokenStr == "" {
		return Payload{}, ErrTokenInvalid
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.config.Now),
		jwt.WithExpirationRequired(),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}
	if c.config.Audience != "" {
		options = append(options, jwt.WithAudience(c.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Payload{}, ErrTokenExpired
		}
		return Payload{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Payload{}, ErrTokenInvalid
	}
	if claims.Kind != kind || claims.Subject == "" {
		return Payload{}, ErrTokenInvalid
	}

	return Payload{
		AccountID: claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
	}, nil
}
