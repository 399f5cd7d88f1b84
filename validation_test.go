package authcore

import (
	"errors"
	"testing"
	"time"
)

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	if err == nil {
		return nil
	}
	ae, ok := AsAuthError(err)
	if !ok || ae.Kind != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatal("validation errors must match ErrValidation")
	}
	return ae.Fields
}

func TestRegisterRequestPasswordRules(t *testing.T) {
	tests := []struct {
		password string
		want     string
	}{
		{"Ab1", "Password must be at least 6 characters long"},
		{"ABCDEF1", "Password must contain at least one lowercase letter"},
		{"abcdef1", "Password must contain at least one uppercase letter"},
		{"Abcdefg", "Password must contain at least one number"},
		{"Abcdef1", ""},
	}
	for _, tc := range tests {
		t.Run(tc.password, func(t *testing.T) {
			req := RegisterRequest{Name: "Ann", Email: "ann@x.com", Password: tc.password}
			fields := fieldErrors(t, validate(req))
			if fields["password"] != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, fields["password"])
			}
		})
	}
}

func TestRegisterRequestConfirmPassword(t *testing.T) {
	req := RegisterRequest{Name: "Ann", Email: "ann@x.com", Password: "Abcdef1", ConfirmPassword: "Abcdef2"}
	fields := fieldErrors(t, validate(req))
	if fields["confirmPassword"] != "Passwords do not match" {
		t.Fatalf("unexpected fields %v", fields)
	}

	req.ConfirmPassword = "Abcdef1"
	if err := validate(req); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestRegisterRequestNormalize(t *testing.T) {
	req := RegisterRequest{Name: "  Ann  ", Email: " Ann@Example.COM "}
	req.normalize()
	if req.Name != "Ann" || req.Email != "ann@example.com" {
		t.Fatalf("unexpected normalisation %+v", req)
	}
}

func TestRateLimitPatch(t *testing.T) {
	one, big := 1, 5000
	patch := RateLimitPatch{PerMinute: &big}
	fields := fieldErrors(t, validate(patch))
	if fields["perMinute"] == "" {
		t.Fatalf("expected perMinute error, got %v", fields)
	}

	patch = RateLimitPatch{PerDay: &one}
	if err := validate(patch); err != nil {
		t.Fatalf("expected valid patch, got %v", err)
	}
	got := patch.apply(RateLimit{PerMinute: 60, PerHour: 1000, PerDay: 10000})
	if got != (RateLimit{PerMinute: 60, PerHour: 1000, PerDay: 1}) {
		t.Fatalf("unexpected merge %+v", got)
	}

	var nilPatch *RateLimitPatch
	if nilPatch.apply(DefaultAPIKeyRateLimit) != DefaultAPIKeyRateLimit {
		t.Fatal("nil patch must keep the base limit")
	}
}

func TestAllowListValidation(t *testing.T) {
	tests := []struct {
		name    string
		ips     []string
		domains []string
		valid   bool
	}{
		{"ipv4", []string{"203.0.113.7"}, nil, true},
		{"cidr", []string{"10.0.0.0/8", "2001:db8::/32"}, nil, true},
		{"ipv6", []string{"2001:db8::1"}, nil, true},
		{"bad ip", []string{"10.0.0.256"}, nil, false},
		{"wildcard domain", nil, []string{"*.example.com"}, true},
		{"leading dot", nil, []string{".example.org"}, true},
		{"bad domain", nil, []string{"exa mple.com"}, false},
		{"empty domain", nil, []string{"*."}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := CreateAPIKeyRequest{Name: "partner", AllowedIPs: tc.ips, AllowedDomains: tc.domains}
			err := validate(req)
			if tc.valid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.valid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestNormalizeDomain(t *testing.T) {
	for in, want := range map[string]string{
		"*.Example.com": "example.com",
		".example.com":  "example.com",
		"example.com.":  "example.com",
		" API.x.io ":    "api.x.io",
	} {
		if got := normalizeDomain(in); got != want {
			t.Fatalf("normalizeDomain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAccountQueryDefaults(t *testing.T) {
	q := AccountQuery{Search: "  ann "}
	q.Normalize()
	if q.Page != 1 || q.Limit != 10 || q.SortBy != SortByCreatedAt || q.SortOrder != "desc" || q.Search != "ann" {
		t.Fatalf("unexpected defaults %+v", q)
	}
	if err := validate(q); err != nil {
		t.Fatalf("defaults must validate, got %v", err)
	}
	q.Page = 3
	if q.Offset() != 20 {
		t.Fatalf("expected offset 20, got %d", q.Offset())
	}

	q.Role = "owner"
	q.SortOrder = "sideways"
	fields := fieldErrors(t, validate(q))
	if fields["role"] == "" || fields["sortOrder"] == "" {
		t.Fatalf("expected role and sortOrder errors, got %v", fields)
	}
}

func TestActivityQueryDateRange(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	q := ActivityQuery{Start: &start, End: &end}
	q.Normalize()
	if q.Limit != 50 {
		t.Fatalf("expected default limit 50, got %d", q.Limit)
	}
	fields := fieldErrors(t, validate(q))
	if fields["endDate"] == "" {
		t.Fatalf("expected endDate error, got %v", fields)
	}

	ev := ActivityEvent{Action: ActionLogin, AccountID: "a", Timestamp: start}
	q = ActivityQuery{AccountID: "a", Action: ActionLogin, Start: &start}
	if !q.Matches(ev) {
		t.Fatal("expected event to match")
	}
	q.Action = ActionLogout
	if q.Matches(ev) {
		t.Fatal("expected action filter to exclude event")
	}
}
