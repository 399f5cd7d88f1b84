package flows

import (
	"context"
	"errors"
	"testing"
	"time"
)

type keyFixture struct {
	key       *APIKeyCandidate
	owner     APIKeyOwner
	recorded  []string
	lookupErr error
}

func (f *keyFixture) deps(now time.Time) APIKeyDeps {
	return APIKeyDeps{
		Now:    func() time.Time { return now },
		Digest: func(s string) string { return "d:" + s },
		LookupKey: func(ctx context.Context, digest string) (*APIKeyCandidate, error) {
			if f.lookupErr != nil {
				return nil, f.lookupErr
			}
			if f.key == nil || digest != "d:bmc_test_abc" {
				return nil, nil
			}
			return f.key, nil
		},
		LookupOwner: func(ctx context.Context, accountID string) (APIKeyOwner, error) {
			return f.owner, nil
		},
		RecordUsage: func(ctx context.Context, keyID string, at time.Time) error {
			f.recorded = append(f.recorded, keyID)
			return nil
		},
	}
}

func validFixture() *keyFixture {
	return &keyFixture{
		key: &APIKeyCandidate{
			ID:          "k1",
			AccountID:   "u1",
			Active:      true,
			Permissions: []string{"read"},
		},
		owner: APIKeyOwner{Found: true, Active: true},
	}
}

func TestAPIKeyValidationAcceptsAndRecordsUsage(t *testing.T) {
	f := validFixture()
	res := RunAPIKeyValidation(context.Background(), "bmc_test_abc", APIKeyCheck{Permission: "read"}, f.deps(time.Now()))
	if res.Rejection != APIKeyAccepted {
		t.Fatalf("expected acceptance, got %v", res.Rejection)
	}
	if len(f.recorded) != 1 || f.recorded[0] != "k1" {
		t.Fatalf("expected usage recorded once, got %v", f.recorded)
	}
}

func TestAPIKeyValidationOrder(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)

	cases := []struct {
		name   string
		mutate func(*keyFixture)
		check  APIKeyCheck
		want   APIKeyRejection
	}{
		{"unknown", func(f *keyFixture) { f.key = nil }, APIKeyCheck{}, APIKeyNotFound},
		{"inactive", func(f *keyFixture) { f.key.Active = false }, APIKeyCheck{}, APIKeyNotFound},
		// expired wins over every later failure
		{"expired", func(f *keyFixture) {
			f.key.ExpiresAt = &past
			f.owner.Banned = true
		}, APIKeyCheck{Permission: "write"}, APIKeyExpired},
		{"owner banned", func(f *keyFixture) { f.owner.Banned = true }, APIKeyCheck{Permission: "write"}, APIKeyOwnerInactive},
		{"owner inactive", func(f *keyFixture) { f.owner.Active = false }, APIKeyCheck{}, APIKeyOwnerInactive},
		{"owner gone", func(f *keyFixture) { f.owner.Found = false }, APIKeyCheck{}, APIKeyOwnerInactive},
		{"permission", func(f *keyFixture) { f.key.AllowedIPs = []string{"10.0.0.1"} }, APIKeyCheck{Permission: "write", ClientIP: "1.1.1.1"}, APIKeyPermissionDenied},
		{"ip", func(f *keyFixture) {
			f.key.AllowedIPs = []string{"10.0.0.1"}
			f.key.AllowedDomains = []string{"example.com"}
		}, APIKeyCheck{ClientIP: "1.1.1.1", ClientDomain: "other.org"}, APIKeyIPNotAllowed},
		{"domain", func(f *keyFixture) { f.key.AllowedDomains = []string{"example.com"} }, APIKeyCheck{ClientDomain: "evilexample.com"}, APIKeyDomainNotAllowed},
		{"missing domain", func(f *keyFixture) { f.key.AllowedDomains = []string{"example.com"} }, APIKeyCheck{}, APIKeyDomainNotAllowed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := validFixture()
			tc.mutate(f)
			res := RunAPIKeyValidation(context.Background(), "bmc_test_abc", tc.check, f.deps(now))
			if res.Rejection != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, res.Rejection)
			}
			if len(f.recorded) != 0 {
				t.Fatal("rejected keys must not record usage")
			}
		})
	}
}

func TestAPIKeyValidationMissingAndLookupError(t *testing.T) {
	f := validFixture()
	if res := RunAPIKeyValidation(context.Background(), "  ", APIKeyCheck{}, f.deps(time.Now())); res.Rejection != APIKeyMissing {
		t.Fatalf("expected missing, got %v", res.Rejection)
	}

	f.lookupErr = errors.New("db down")
	res := RunAPIKeyValidation(context.Background(), "bmc_test_abc", APIKeyCheck{}, f.deps(time.Now()))
	if res.Rejection != APIKeyLookupFailed || res.Err == nil {
		t.Fatalf("expected lookup failure, got %+v", res)
	}
}

func TestMatchIP(t *testing.T) {
	allowed := []string{"10.0.0.1", "192.168.1.0/24", "2001:db8::1"}
	for ip, want := range map[string]bool{
		"10.0.0.1":      true,
		"10.0.0.2":      false,
		"192.168.1.77":  true,
		"192.168.2.1":   false,
		"2001:db8::1":   true,
		"":              false,
		"not-an-ip":     false,
		" 10.0.0.1 ":    true,
		"2001:db8:0::1": true,
	} {
		if got := MatchIP(allowed, ip); got != want {
			t.Errorf("MatchIP(%q) = %v, want %v", ip, got, want)
		}
	}
}

func TestMatchDomainLabelBoundary(t *testing.T) {
	allowed := []string{"example.com", "*.partner.io"}
	for domain, want := range map[string]bool{
		"example.com":          true,
		"EXAMPLE.com":          true,
		"api.example.com":      true,
		"example.com:8443":     true,
		"evilexample.com":      false,
		"example.com.evil.net": false,
		"partner.io":           true,
		"a.b.partner.io":       true,
		"":                     false,
	} {
		if got := MatchDomain(allowed, domain); got != want {
			t.Errorf("MatchDomain(%q) = %v, want %v", domain, got, want)
		}
	}
}
