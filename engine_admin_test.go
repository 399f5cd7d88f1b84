package authcore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/authcore"
)

func TestBanAccountRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register(t, "Root", "root@x.com", "Passw0rd1")
	env.promote(t, admin.Account.ID, authcore.RoleAdmin)
	other := env.register(t, "Other Admin", "other@x.com", "Passw0rd1")
	env.promote(t, other.Account.ID, authcore.RoleAdmin)
	bob := env.register(t, "Bob", "bob@x.com", "Passw0rd1")
	const reason = "spamming the forum"

	tests := []struct {
		name   string
		target string
		reason string
		want   *authcore.AuthError
	}{
		{"self", admin.Account.ID, reason, authcore.ErrSelfBan},
		{"admin target", other.Account.ID, reason, authcore.ErrBanAdmin},
		{"malformed id", "42", reason, authcore.ErrInvalidAccountID},
		{"missing", "0b9f8a52-4c1e-4c7e-9d7a-2f6f3b1f0c11", reason, authcore.ErrAccountNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.engine.BanAccount(ctx, admin.Account.ID, tc.target, tc.reason)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	ae := expectKind(t, mustErr(env.engine.BanAccount(ctx, admin.Account.ID, bob.Account.ID, "short")), authcore.KindValidation)
	if ae.Fields["reason"] == "" {
		t.Fatalf("expected reason field error, got %v", ae.Fields)
	}

	banned, err := env.engine.BanAccount(ctx, admin.Account.ID, bob.Account.ID, reason)
	if err != nil {
		t.Fatalf("BanAccount failed: %v", err)
	}
	if !banned.Banned || banned.BanReason != reason || banned.BannedBy != admin.Account.ID || banned.BannedAt == nil {
		t.Fatalf("unexpected ban state %+v", banned)
	}
	if _, err := env.engine.Refresh(ctx, bob.Tokens.RefreshToken); !errors.Is(err, authcore.ErrRefreshSessionInvalid) {
		t.Fatalf("ban must clear sessions, got %v", err)
	}
	if _, err := env.engine.BanAccount(ctx, admin.Account.ID, bob.Account.ID, reason); !errors.Is(err, authcore.ErrAlreadyBanned) {
		t.Fatalf("expected ErrAlreadyBanned, got %v", err)
	}

	unbanned, err := env.engine.UnbanAccount(ctx, admin.Account.ID, bob.Account.ID)
	if err != nil || unbanned.Banned || unbanned.BanReason != "" || unbanned.BannedAt != nil {
		t.Fatalf("UnbanAccount: %+v %v", unbanned, err)
	}
	if _, err := env.engine.UnbanAccount(ctx, admin.Account.ID, bob.Account.ID); !errors.Is(err, authcore.ErrNotBanned) {
		t.Fatalf("expected ErrNotBanned, got %v", err)
	}
	if _, err := env.engine.Login(ctx, authcore.LoginRequest{Email: "bob@x.com", Password: "Passw0rd1"}); err != nil {
		t.Fatalf("unbanned account must log in, got %v", err)
	}
}

func TestChangeRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register(t, "Root", "root@x.com", "Passw0rd1")
	bob := env.register(t, "Bob", "bob@x.com", "Passw0rd1")

	if _, err := env.engine.ChangeRole(ctx, admin.Account.ID, admin.Account.ID, authcore.RoleUser); !errors.Is(err, authcore.ErrSelfRoleChange) {
		t.Fatalf("expected ErrSelfRoleChange, got %v", err)
	}
	if _, err := env.engine.ChangeRole(ctx, admin.Account.ID, bob.Account.ID, "superuser"); !errors.Is(err, authcore.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}

	updated, err := env.engine.ChangeRole(ctx, admin.Account.ID, bob.Account.ID, authcore.RoleModerator)
	if err != nil || updated.Role != authcore.RoleModerator {
		t.Fatalf("ChangeRole: %+v %v", updated, err)
	}

	// Access tokens carry the old role, but bearer checks read fresh state.
	id, err := env.engine.AuthenticateBearer(ctx, bob.Tokens.AccessToken)
	if err != nil || id.Role != authcore.RoleModerator {
		t.Fatalf("expected fresh role, got %+v (err=%v)", id, err)
	}

	page, err := env.engine.Activities(ctx, authcore.ActivityQuery{Action: authcore.ActionRoleChanged})
	if err != nil || len(page.Activities) != 1 {
		t.Fatalf("expected one role_changed event, got %+v (err=%v)", page, err)
	}
	if md := page.Activities[0].Metadata; md["from"] != "user" || md["to"] != "moderator" {
		t.Fatalf("unexpected metadata %v", md)
	}
}

func TestUpdateAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register(t, "Root", "root@x.com", "Passw0rd1")
	bob := env.register(t, "Bob", "bob@x.com", "Passw0rd1")

	_, err := env.engine.UpdateAccount(ctx, admin.Account.ID, bob.Account.ID, authcore.UpdateAccountRequest{Email: strPtr("ROOT@x.com")})
	if !errors.Is(err, authcore.ErrEmailInUse) || authcore.StatusCode(err) != 409 {
		t.Fatalf("expected 409 ErrEmailInUse, got %v", err)
	}

	updated, err := env.engine.UpdateAccount(ctx, admin.Account.ID, bob.Account.ID, authcore.UpdateAccountRequest{
		Name:  strPtr("Robert"),
		Email: strPtr("Robert@X.com"),
		Bio:   strPtr("Likes trains"),
	})
	if err != nil {
		t.Fatalf("UpdateAccount failed: %v", err)
	}
	if updated.Name != "Robert" || updated.Email != "robert@x.com" || updated.Bio != "Likes trains" {
		t.Fatalf("unexpected account %+v", updated)
	}
	if _, err := env.engine.Login(ctx, authcore.LoginRequest{Email: "robert@x.com", Password: "Passw0rd1"}); err != nil {
		t.Fatalf("login with new email failed: %v", err)
	}

	_, err = env.engine.UpdateAccount(ctx, admin.Account.ID, bob.Account.ID, authcore.UpdateAccountRequest{Name: strPtr("R")})
	expectKind(t, err, authcore.KindValidation)
}

func TestDeleteAccountRemovesKeysAndSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register(t, "Root", "root@x.com", "Passw0rd1")
	bob := env.register(t, "Bob", "bob@x.com", "Passw0rd1")
	key, err := env.engine.CreateAPIKey(ctx, bob.Account.ID, authcore.CreateAPIKeyRequest{Name: "bob key"})
	if err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}

	if err := env.engine.DeleteAccount(ctx, admin.Account.ID, admin.Account.ID); !errors.Is(err, authcore.ErrSelfDelete) {
		t.Fatalf("expected ErrSelfDelete, got %v", err)
	}
	if err := env.engine.DeleteAccount(ctx, admin.Account.ID, bob.Account.ID); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}

	if _, err := env.engine.GetAccount(ctx, bob.Account.ID); !errors.Is(err, authcore.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if _, _, err := env.engine.ValidateAPIKey(ctx, key.Plaintext, authcore.APIKeyCheck{}); !errors.Is(err, authcore.ErrAPIKeyInvalid) {
		t.Fatalf("expected key removed, got %v", err)
	}
	sessions, err := env.engine.Sessions(ctx, bob.Account.ID)
	if err != nil || len(sessions) != 0 {
		t.Fatalf("expected no sessions, got %v (err=%v)", sessions, err)
	}
	if err := env.engine.DeleteAccount(ctx, admin.Account.ID, bob.Account.ID); !errors.Is(err, authcore.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestListAccountsAndStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register(t, "Root", "root@x.com", "Passw0rd1")
	env.promote(t, admin.Account.ID, authcore.RoleAdmin)
	for _, n := range []string{"amy", "ben", "cat"} {
		env.clock.Advance(1)
		env.register(t, n+" user", n+"@x.com", "Passw0rd1")
	}
	cat, _ := env.accounts.GetAccountByEmail(ctx, "cat@x.com")
	if _, err := env.engine.BanAccount(ctx, admin.Account.ID, cat.ID, "posting malware links"); err != nil {
		t.Fatalf("BanAccount failed: %v", err)
	}

	page, err := env.engine.ListAccounts(ctx, authcore.AccountQuery{Limit: 2})
	if err != nil {
		t.Fatalf("ListAccounts failed: %v", err)
	}
	if len(page.Users) != 2 || page.Users[0].Email != "cat@x.com" {
		t.Fatalf("expected newest first, got %+v", page.Users)
	}
	if page.Pagination != (authcore.Pagination{Total: 4, Page: 1, Limit: 2, Pages: 2}) {
		t.Fatalf("unexpected pagination %+v", page.Pagination)
	}

	banned := true
	page, err = env.engine.ListAccounts(ctx, authcore.AccountQuery{Banned: &banned})
	if err != nil || len(page.Users) != 1 || page.Users[0].ID != cat.ID {
		t.Fatalf("unexpected banned filter result %+v (err=%v)", page, err)
	}

	_, err = env.engine.ListAccounts(ctx, authcore.AccountQuery{Limit: 500, SortBy: "password"})
	ae := expectKind(t, err, authcore.KindValidation)
	if ae.Fields["limit"] == "" || ae.Fields["sortBy"] == "" {
		t.Fatalf("expected limit and sortBy errors, got %v", ae.Fields)
	}

	stats, err := env.engine.AccountStats(ctx)
	if err != nil {
		t.Fatalf("AccountStats failed: %v", err)
	}
	if stats.TotalUsers != 4 || stats.ActiveUsers != 3 || stats.BannedUsers != 1 || stats.VerifiedUsers != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.UsersByRole[authcore.RoleAdmin] != 1 || stats.UsersByRole[authcore.RoleUser] != 3 {
		t.Fatalf("unexpected role counts %v", stats.UsersByRole)
	}
	if n, ok := stats.UsersByRole[authcore.RoleModerator]; !ok || n != 0 {
		t.Fatalf("expected moderator role reported as zero, got %v", stats.UsersByRole)
	}
}

func mustErr[T any](_ T, err error) error {
	return err
}
