package authcore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/authcore"
)

func TestBanCommittedDuringEmailVerificationSticks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root := env.register(t, "Root", "root@x.com", "Passw0rd1")
	env.promote(t, root.Account.ID, authcore.RoleAdmin)
	ann := env.register(t, "Ann", "ann@x.com", "Passw0rd1")
	mail, _ := env.mail.last("verification")

	env.accounts.after("verification", func() {
		if _, err := env.engine.BanAccount(ctx, root.Account.ID, ann.Account.ID, "abusive behaviour in chat"); err != nil {
			t.Errorf("BanAccount failed: %v", err)
		}
	})
	if err := env.engine.VerifyEmail(ctx, mail.Token); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}

	stored, _ := env.accounts.GetAccountByID(ctx, ann.Account.ID)
	if !stored.Banned || !stored.EmailVerified {
		t.Fatalf("expected banned and verified, got banned=%v verified=%v", stored.Banned, stored.EmailVerified)
	}
	_, err := env.engine.Login(ctx, authcore.LoginRequest{Email: "ann@x.com", Password: "Passw0rd1"})
	if !errors.Is(err, authcore.ErrAccountBanned) {
		t.Fatalf("expected ErrAccountBanned, got %v", err)
	}
}

func TestBanCommittedDuringPasswordResetSticks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root := env.register(t, "Root", "root@x.com", "Passw0rd1")
	env.promote(t, root.Account.ID, authcore.RoleAdmin)
	ann := env.register(t, "Ann", "ann@x.com", "Passw0rd1")
	if err := env.engine.ForgotPassword(ctx, "ann@x.com"); err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}
	mail, _ := env.mail.last("password_reset")

	env.accounts.after("reset", func() {
		if _, err := env.engine.BanAccount(ctx, root.Account.ID, ann.Account.ID, "credential stuffing source"); err != nil {
			t.Errorf("BanAccount failed: %v", err)
		}
	})
	if err := env.engine.ResetPassword(ctx, authcore.ResetPasswordRequest{
		Token:    mail.Token,
		Password: "N3wPassword",
	}); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	_, err := env.engine.Login(ctx, authcore.LoginRequest{Email: "ann@x.com", Password: "N3wPassword"})
	if !errors.Is(err, authcore.ErrAccountBanned) {
		t.Fatalf("expected ErrAccountBanned, got %v", err)
	}
}

func TestResetTokenRedeemedOnceUnderRace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "Ann", "ann@x.com", "Passw0rd1")
	if err := env.engine.ForgotPassword(ctx, "ann@x.com"); err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}
	mail, _ := env.mail.last("password_reset")

	env.accounts.after("reset", func() {
		if err := env.engine.ResetPassword(ctx, authcore.ResetPasswordRequest{
			Token:    mail.Token,
			Password: "F1rstWinner",
		}); err != nil {
			t.Errorf("inner ResetPassword failed: %v", err)
		}
	})
	err := env.engine.ResetPassword(ctx, authcore.ResetPasswordRequest{
		Token:    mail.Token,
		Password: "S3condLoser",
	})
	if !errors.Is(err, authcore.ErrInvalidResetToken) {
		t.Fatalf("expected ErrInvalidResetToken for the second redemption, got %v", err)
	}
	if _, err := env.engine.Login(ctx, authcore.LoginRequest{Email: "ann@x.com", Password: "F1rstWinner"}); err != nil {
		t.Fatalf("first password must be kept, got %v", err)
	}
}

func TestRoleChangeCommittedDuringProfileUpdateSticks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root := env.register(t, "Root", "root@x.com", "Passw0rd1")
	env.promote(t, root.Account.ID, authcore.RoleAdmin)
	ann := env.register(t, "Ann", "ann@x.com", "Passw0rd1")

	env.accounts.after("id", func() {
		if _, err := env.engine.ChangeRole(ctx, root.Account.ID, ann.Account.ID, authcore.RoleModerator); err != nil {
			t.Errorf("ChangeRole failed: %v", err)
		}
	})
	updated, err := env.engine.UpdateAccount(ctx, root.Account.ID, ann.Account.ID, authcore.UpdateAccountRequest{Name: strPtr("Ann Lee")})
	if err != nil {
		t.Fatalf("UpdateAccount failed: %v", err)
	}
	if updated.Name != "Ann Lee" {
		t.Fatalf("name = %q", updated.Name)
	}

	stored, _ := env.accounts.GetAccountByID(ctx, ann.Account.ID)
	if stored.Role != authcore.RoleModerator || stored.Name != "Ann Lee" {
		t.Fatalf("expected moderator Ann Lee, got %s %q", stored.Role, stored.Name)
	}
}
