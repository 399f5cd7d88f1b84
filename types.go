package authcore

import (
	"context"
	"time"
)

// Role is an account's authorization level.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// Account is the persisted identity record. Digest fields never leave the
// server; use Public for anything returned to a client.
type Account struct {
	ID             string
	Name           string
	Email          string
	PasswordDigest string
	Role           Role
	Bio            string
	Phone          string

	EmailVerified bool
	Active        bool
	Banned        bool
	BanReason     string
	BannedBy      string
	BannedAt      *time.Time

	VerificationDigest    string
	VerificationExpiresAt *time.Time
	ResetDigest           string
	ResetExpiresAt        *time.Time

	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PublicAccount is the client-facing view of an Account.
type PublicAccount struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Role          Role       `json:"role"`
	Bio           string     `json:"bio,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	EmailVerified bool       `json:"isEmailVerified"`
	Active        bool       `json:"isActive"`
	Banned        bool       `json:"isBanned"`
	BanReason     string     `json:"banReason,omitempty"`
	BannedBy      string     `json:"bannedBy,omitempty"`
	BannedAt      *time.Time `json:"bannedAt,omitempty"`
	LastLoginAt   *time.Time `json:"lastLogin,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Public strips secrets from a.
func (a *Account) Public() PublicAccount {
	return PublicAccount{
		ID:            a.ID,
		Name:          a.Name,
		Email:         a.Email,
		Role:          a.Role,
		Bio:           a.Bio,
		Phone:         a.Phone,
		EmailVerified: a.EmailVerified,
		Active:        a.Active,
		Banned:        a.Banned,
		BanReason:     a.BanReason,
		BannedBy:      a.BannedBy,
		BannedAt:      a.BannedAt,
		LastLoginAt:   a.LastLoginAt,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func (a *Account) identity() *Identity {
	return &Identity{ID: a.ID, Name: a.Name, Email: a.Email, Role: a.Role, EmailVerified: a.EmailVerified}
}

// Identity is the request-scoped authenticated principal.
type Identity struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Role          Role   `json:"role"`
	EmailVerified bool   `json:"isEmailVerified"`
}

// TokenPair is what login, register and refresh hand to the client.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Account PublicAccount `json:"user"`
	Tokens  TokenPair     `json:"tokens"`
}

// SessionInfo describes one live device session without exposing the token.
type SessionInfo struct {
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
}

// API key permissions.
const (
	PermissionRead   = "read"
	PermissionWrite  = "write"
	PermissionDelete = "delete"
	PermissionAdmin  = "admin"
)

// RateLimit is an API key's request budget per window.
type RateLimit struct {
	PerMinute int `json:"perMinute"`
	PerHour   int `json:"perHour"`
	PerDay    int `json:"perDay"`
}

// DefaultAPIKeyRateLimit is applied to keys created without an explicit limit.
var DefaultAPIKeyRateLimit = RateLimit{PerMinute: 60, PerHour: 1000, PerDay: 10000}

// APIKey is the persisted API key record. Digest is the SHA-256 of the plaintext.
type APIKey struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Digest         string     `json:"-"`
	AccountID      string     `json:"accountId"`
	Permissions    []string   `json:"permissions"`
	UsageCount     int64      `json:"usageCount"`
	LastUsedAt     *time.Time `json:"lastUsedAt,omitempty"`
	RateLimit      RateLimit  `json:"rateLimit"`
	Active         bool       `json:"isActive"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	AllowedIPs     []string   `json:"allowedIps,omitempty"`
	AllowedDomains []string   `json:"allowedDomains,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// HasPermission reports whether the key grants perm.
func (k *APIKey) HasPermission(perm string) bool {
	for _, p := range k.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// CreatedAPIKey carries the only copy of a key's plaintext.
type CreatedAPIKey struct {
	Key       *APIKey `json:"apiKey"`
	Plaintext string  `json:"key"`
}

// APIKeyInfo is the request-scoped view of the key that authenticated a request.
type APIKeyInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// APIKeyStats summarises an account's keys.
type APIKeyStats struct {
	TotalKeys  int   `json:"totalKeys"`
	ActiveKeys int   `json:"activeKeys"`
	TotalUsage int64 `json:"totalUsage"`
}

// AccountStats summarises the account population.
type AccountStats struct {
	TotalUsers    int          `json:"totalUsers"`
	ActiveUsers   int          `json:"activeUsers"`
	BannedUsers   int          `json:"bannedUsers"`
	VerifiedUsers int          `json:"verifiedUsers"`
	UsersByRole   map[Role]int `json:"usersByRole"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

func newPagination(total, page, limit int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Total: total, Page: page, Limit: limit, Pages: pages}
}

// AccountPage is one page of ListAccounts.
type AccountPage struct {
	Users      []PublicAccount `json:"users"`
	Pagination Pagination      `json:"pagination"`
}

// AccountPatch names the account fields one mutation writes. Stores update
// only the non-nil fields and leave every other column as it is.
type AccountPatch struct {
	Name           *string
	Email          *string
	Bio            *string
	Phone          *string
	PasswordDigest *string
	Role           *Role
	Active         *bool
	EmailVerified  *bool
	Ban            *BanState
	Verification   *TokenState
	Reset          *TokenState

	// ExpectResetDigest, when set, makes the patch conditional: it applies
	// only while the stored reset digest still equals this value and fails
	// with ErrRecordNotFound otherwise.
	ExpectResetDigest string

	UpdatedAt time.Time
}

// BanState is the ban column group. The zero value lifts a ban.
type BanState struct {
	Banned bool
	Reason string
	By     string
	At     *time.Time
}

// TokenState is a stored token digest and its expiry. The zero value clears
// the token.
type TokenState struct {
	Digest    string
	ExpiresAt *time.Time
}

// Apply writes the non-nil fields of p onto a. Stores that keep whole
// records use it under their own lock.
func (p AccountPatch) Apply(a *Account) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Email != nil {
		a.Email = *p.Email
	}
	if p.Bio != nil {
		a.Bio = *p.Bio
	}
	if p.Phone != nil {
		a.Phone = *p.Phone
	}
	if p.PasswordDigest != nil {
		a.PasswordDigest = *p.PasswordDigest
	}
	if p.Role != nil {
		a.Role = *p.Role
	}
	if p.Active != nil {
		a.Active = *p.Active
	}
	if p.EmailVerified != nil {
		a.EmailVerified = *p.EmailVerified
	}
	if p.Ban != nil {
		a.Banned = p.Ban.Banned
		a.BanReason = p.Ban.Reason
		a.BannedBy = p.Ban.By
		a.BannedAt = p.Ban.At
	}
	if p.Verification != nil {
		a.VerificationDigest = p.Verification.Digest
		a.VerificationExpiresAt = p.Verification.ExpiresAt
	}
	if p.Reset != nil {
		a.ResetDigest = p.Reset.Digest
		a.ResetExpiresAt = p.Reset.ExpiresAt
	}
	if !p.UpdatedAt.IsZero() {
		a.UpdatedAt = p.UpdatedAt
	}
}

// AccountStore persists accounts.
//
// Implementations return ErrRecordNotFound for missing rows and
// ErrRecordConflict when a unique email constraint is violated. Emails are
// passed already lower-cased. Mutations go through PatchAccount so that
// writers of different fields never undo each other.
type AccountStore interface {
	CreateAccount(ctx context.Context, a *Account) error
	GetAccountByID(ctx context.Context, id string) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	GetAccountByVerificationDigest(ctx context.Context, digest string, now time.Time) (*Account, error)
	GetAccountByResetDigest(ctx context.Context, digest string, now time.Time) (*Account, error)
	PatchAccount(ctx context.Context, id string, p AccountPatch) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	DeleteAccount(ctx context.Context, id string) error
	ListAccounts(ctx context.Context, q AccountQuery) ([]Account, int, error)
	AccountStats(ctx context.Context) (AccountStats, error)
}

// APIKeyStore persists API keys. Owner-scoped lookups return ErrRecordNotFound
// for keys that belong to another account. UpdateAPIKey writes the editable
// fields only; the active flag, digest and usage counters are left as stored,
// and RevokeAPIKey is the only way to clear the active flag.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, k *APIKey) error
	GetAPIKeyByDigest(ctx context.Context, digest string) (*APIKey, error)
	GetAPIKey(ctx context.Context, id, accountID string) (*APIKey, error)
	ListAPIKeys(ctx context.Context, accountID string) ([]APIKey, error)
	UpdateAPIKey(ctx context.Context, k *APIKey) error
	RevokeAPIKey(ctx context.Context, id, accountID string, at time.Time) error
	DeleteAPIKey(ctx context.Context, id, accountID string) error
	DeleteAPIKeysForAccount(ctx context.Context, accountID string) (int, error)
	RecordAPIKeyUsage(ctx context.Context, id string, at time.Time) error
	APIKeyStats(ctx context.Context, accountID string) (APIKeyStats, error)
}

// Notifier delivers account emails. Implementations may block; the Engine
// decides whether to call them asynchronously.
type Notifier interface {
	SendVerification(ctx context.Context, to, name, token string) error
	SendPasswordReset(ctx context.Context, to, name, token string) error
	SendPasswordChanged(ctx context.Context, to, name string) error
}
