package authcore

import (
	"errors"
	"net"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var (
	hasLower = regexp.MustCompile(`[a-z]`)
	hasUpper = regexp.MustCompile(`[A-Z]`)
	hasDigit = regexp.MustCompile(`[0-9]`)
)

var passwordRules = []validation.Rule{
	validation.Required,
	validation.Length(6, 128).Error("Password must be at least 6 characters long"),
	validation.Match(hasLower).Error("Password must contain at least one lowercase letter"),
	validation.Match(hasUpper).Error("Password must contain at least one uppercase letter"),
	validation.Match(hasDigit).Error("Password must contain at least one number"),
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// matches is a RuleFunc comparing against a sibling field.
func matches(other string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != other {
			return errors.New("Passwords do not match")
		}
		return nil
	}
}

// RegisterRequest is the input of Engine.Register.
type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword,omitempty"`
}

func (r *RegisterRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = normalizeEmail(r.Email)
}

// Validate runs the registration rules.
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(2, 50)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, passwordRules...),
		validation.Field(&r.ConfirmPassword, validation.By(matchesIfSet(r.Password))),
	)
}

func matchesIfSet(other string) validation.RuleFunc {
	return func(value interface{}) error {
		if s, _ := value.(string); s == "" {
			return nil
		}
		return matches(other)(value)
	}
}

// LoginRequest is the input of Engine.Login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) normalize() {
	r.Email = normalizeEmail(r.Email)
}

// Validate runs the login rules.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// ResetPasswordRequest is the input of Engine.ResetPassword.
type ResetPasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword,omitempty"`
}

// Validate runs the reset rules.
func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, passwordRules...),
		validation.Field(&r.ConfirmPassword, validation.By(matchesIfSet(r.Password))),
	)
}

/*
====================================
API KEYS
====================================
*/

var permissionValues = []interface{}{PermissionRead, PermissionWrite, PermissionDelete, PermissionAdmin}

func eachPermission(value interface{}) error {
	perms, _ := value.([]string)
	for _, p := range perms {
		if err := validation.In(permissionValues...).Validate(p); err != nil {
			return errors.New("Invalid permission: " + p)
		}
	}
	return nil
}

func eachIP(value interface{}) error {
	ips, _ := value.([]string)
	for _, ip := range ips {
		if _, _, err := net.ParseCIDR(ip); err == nil {
			continue
		}
		if err := is.IP.Validate(ip); err != nil || strings.TrimSpace(ip) == "" {
			return errors.New("Invalid IP address: " + ip)
		}
	}
	return nil
}

func eachDomain(value interface{}) error {
	domains, _ := value.([]string)
	for _, d := range domains {
		host := normalizeDomain(d)
		if host == "" || is.DNSName.Validate(host) != nil {
			return errors.New("Invalid domain: " + d)
		}
	}
	return nil
}

// normalizeDomain lower-cases d and strips a leading "*." or ".".
func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	d = strings.TrimPrefix(d, "*.")
	d = strings.TrimPrefix(d, ".")
	return strings.TrimSuffix(d, ".")
}

// RateLimitPatch updates individual fields of a key's rate limit.
type RateLimitPatch struct {
	PerMinute *int `json:"perMinute,omitempty"`
	PerHour   *int `json:"perHour,omitempty"`
	PerDay    *int `json:"perDay,omitempty"`
}

// Validate checks the per-window bounds.
func (p RateLimitPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.PerMinute, validation.By(positiveIfSet), validation.Max(1000)),
		validation.Field(&p.PerHour, validation.By(positiveIfSet), validation.Max(100000)),
		validation.Field(&p.PerDay, validation.By(positiveIfSet), validation.Max(1000000)),
	)
}

func positiveIfSet(value interface{}) error {
	if n, ok := value.(*int); ok && n != nil && *n < 1 {
		return errors.New("must be no less than 1")
	}
	return nil
}

func (p *RateLimitPatch) apply(rl RateLimit) RateLimit {
	if p == nil {
		return rl
	}
	if p.PerMinute != nil {
		rl.PerMinute = *p.PerMinute
	}
	if p.PerHour != nil {
		rl.PerHour = *p.PerHour
	}
	if p.PerDay != nil {
		rl.PerDay = *p.PerDay
	}
	return rl
}

// CreateAPIKeyRequest is the input of Engine.CreateAPIKey. A nil
// Permissions grants read only; an absent RateLimit uses the configured default.
type CreateAPIKeyRequest struct {
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Permissions    []string        `json:"permissions,omitempty"`
	RateLimit      *RateLimitPatch `json:"rateLimit,omitempty"`
	ExpiresInDays  int             `json:"expiresInDays,omitempty"`
	AllowedIPs     []string        `json:"allowedIps,omitempty"`
	AllowedDomains []string        `json:"allowedDomains,omitempty"`
}

// Validate runs the key creation rules.
func (r CreateAPIKeyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(3, 100)),
		validation.Field(&r.Description, validation.Length(0, 500)),
		validation.Field(&r.Permissions, validation.By(eachPermission)),
		validation.Field(&r.RateLimit),
		validation.Field(&r.ExpiresInDays, validation.Min(1), validation.Max(365)),
		validation.Field(&r.AllowedIPs, validation.By(eachIP)),
		validation.Field(&r.AllowedDomains, validation.By(eachDomain)),
	)
}

// UpdateAPIKeyRequest patches a key. Nil fields are left unchanged; an empty
// non-nil slice clears the list.
type UpdateAPIKeyRequest struct {
	Name           *string         `json:"name,omitempty"`
	Description    *string         `json:"description,omitempty"`
	Permissions    []string        `json:"permissions,omitempty"`
	RateLimit      *RateLimitPatch `json:"rateLimit,omitempty"`
	AllowedIPs     []string        `json:"allowedIps,omitempty"`
	AllowedDomains []string        `json:"allowedDomains,omitempty"`
}

// Validate runs the key update rules.
func (r UpdateAPIKeyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(3, 100)),
		validation.Field(&r.Description, validation.Length(0, 500)),
		validation.Field(&r.Permissions, validation.By(eachPermission)),
		validation.Field(&r.RateLimit),
		validation.Field(&r.AllowedIPs, validation.By(eachIP)),
		validation.Field(&r.AllowedDomains, validation.By(eachDomain)),
	)
}

/*
====================================
ADMINISTRATION
====================================
*/

// UpdateAccountRequest patches profile fields. Nil fields are left unchanged.
type UpdateAccountRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Bio   *string `json:"bio,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// Validate runs the profile rules.
func (r UpdateAccountRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(2, 50)),
		validation.Field(&r.Email, validation.NilOrNotEmpty, is.Email),
		validation.Field(&r.Bio, validation.Length(0, 500)),
		validation.Field(&r.Phone, validation.Length(0, 32)),
	)
}

type banRequest struct {
	Reason string `json:"reason"`
}

func (r banRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Reason, validation.Required, validation.Length(10, 500)),
	)
}

type roleRequest struct {
	Role Role `json:"role"`
}

func (r roleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required, validation.In(RoleUser, RoleModerator, RoleAdmin)),
	)
}

// Sort keys accepted by AccountQuery.
const (
	SortByCreatedAt = "createdAt"
	SortByName      = "name"
	SortByEmail     = "email"
	SortByLastLogin = "lastLogin"
)

// AccountQuery filters, sorts and pages ListAccounts.
type AccountQuery struct {
	Page      int    `json:"page"`
	Limit     int    `json:"limit"`
	Role      Role   `json:"role,omitempty"`
	Active    *bool  `json:"isActive,omitempty"`
	Banned    *bool  `json:"isBanned,omitempty"`
	Search    string `json:"search,omitempty"`
	SortBy    string `json:"sortBy,omitempty"`
	SortOrder string `json:"sortOrder,omitempty"`
}

// Normalize fills defaults: page 1, limit 10, newest first.
func (q *AccountQuery) Normalize() {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = 10
	}
	if q.SortBy == "" {
		q.SortBy = SortByCreatedAt
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
	q.Search = strings.TrimSpace(q.Search)
}

// Offset is the number of rows skipped before the current page.
func (q AccountQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// Validate checks paging and sort bounds.
func (q AccountQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Page, validation.Min(1)),
		validation.Field(&q.Limit, validation.Min(1), validation.Max(100)),
		validation.Field(&q.Role, validation.In(RoleUser, RoleModerator, RoleAdmin)),
		validation.Field(&q.Search, validation.Length(0, 100)),
		validation.Field(&q.SortBy, validation.In(SortByCreatedAt, SortByName, SortByEmail, SortByLastLogin)),
		validation.Field(&q.SortOrder, validation.In("asc", "desc")),
	)
}

// ActivityQuery filters and pages the activity log.
type ActivityQuery struct {
	AccountID string         `json:"userId,omitempty"`
	Action    ActivityAction `json:"action,omitempty"`
	Start     *time.Time     `json:"startDate,omitempty"`
	End       *time.Time     `json:"endDate,omitempty"`
	Page      int            `json:"page"`
	Limit     int            `json:"limit"`
}

// Normalize fills defaults: page 1, limit 50.
func (q *ActivityQuery) Normalize() {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = 50
	}
}

// Offset is the number of events skipped before the current page.
func (q ActivityQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// Matches reports whether event passes the query filters.
func (q ActivityQuery) Matches(event ActivityEvent) bool {
	if q.AccountID != "" && event.AccountID != q.AccountID {
		return false
	}
	if q.Action != "" && event.Action != q.Action {
		return false
	}
	if q.Start != nil && event.Timestamp.Before(*q.Start) {
		return false
	}
	if q.End != nil && event.Timestamp.After(*q.End) {
		return false
	}
	return true
}

// Validate checks paging bounds and the action name.
func (q ActivityQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Page, validation.Min(1)),
		validation.Field(&q.Limit, validation.Min(1), validation.Max(100)),
		validation.Field(&q.Action, validation.By(func(value interface{}) error {
			a, _ := value.(ActivityAction)
			if a != "" && !a.Valid() {
				return errors.New("Invalid activity action")
			}
			return nil
		})),
		validation.Field(&q.End, validation.By(func(value interface{}) error {
			end, _ := value.(*time.Time)
			if end != nil && q.Start != nil && end.Before(*q.Start) {
				return errors.New("End date must be after start date")
			}
			return nil
		})),
	)
}

// validate runs v.Validate and converts ozzo errors into a Validation AuthError.
func validate(v validation.Validatable) error {
	err := v.Validate()
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return internalError(err)
	}
	fields := make(map[string]string, len(errs))
	flattenErrors("", errs, fields)
	return validationError(fields)
}

func flattenErrors(prefix string, errs validation.Errors, out map[string]string) {
	for field, err := range errs {
		name := field
		if prefix != "" {
			name = prefix + "." + field
		}
		var nested validation.Errors
		if errors.As(err, &nested) {
			flattenErrors(name, nested, out)
			continue
		}
		out[name] = err.Error()
	}
}
