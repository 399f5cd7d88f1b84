package authcore

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/authcore/internal"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// ForgotPassword emails a reset link when email belongs to an active account.
// The result is the same whether or not the account exists; only malformed
// input and the per-IP request budget produce errors.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	email = normalizeEmail(email)
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return validationError(map[string]string{"email": err.Error()})
	}

	if _, err := e.CheckRateLimit(ctx, PasswordResetPolicy, ClientIPFromContext(ctx)); err != nil {
		return err
	}
	e.metricInc(MetricPasswordResetRequest)

	acc, err := e.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			e.warn("authcore: password reset lookup failed", "error", err)
		}
		return nil
	}
	if !acc.Active || acc.Banned {
		return nil
	}

	token, err := internal.NewOpaqueToken(e.config.PasswordReset.TokenBytes)
	if err != nil {
		return internalError(err)
	}
	expires := e.now().Add(e.config.PasswordReset.TTL)
	err = e.accounts.PatchAccount(ctx, acc.ID, AccountPatch{
		Reset:     &TokenState{Digest: internal.Digest(token), ExpiresAt: &expires},
		UpdatedAt: e.now(),
	})
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil
		}
		return internalError(err)
	}

	name, to := acc.Name, acc.Email
	e.sendMail(ctx, "password_reset", func(ctx context.Context) error {
		return e.notifier.SendPasswordReset(ctx, to, name, token)
	})
	return nil
}

// ResetPassword sets a new password using a reset token, then ends every
// session of the account.
func (e *Engine) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	req.Token = strings.TrimSpace(req.Token)
	if err := validate(req); err != nil {
		return err
	}

	tokenDigest := internal.Digest(req.Token)
	acc, err := e.accounts.GetAccountByResetDigest(ctx, tokenDigest, e.now())
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			e.metricInc(MetricPasswordResetConfirmFailure)
			return ErrInvalidResetToken
		}
		return internalError(err)
	}

	digest, err := e.hasher.Hash(req.Password)
	if err != nil {
		return internalError(err)
	}
	err = e.accounts.PatchAccount(ctx, acc.ID, AccountPatch{
		PasswordDigest:    &digest,
		Reset:             &TokenState{},
		ExpectResetDigest: tokenDigest,
		UpdatedAt:         e.now(),
	})
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			e.metricInc(MetricPasswordResetConfirmFailure)
			return ErrInvalidResetToken
		}
		return internalError(err)
	}

	if n, err := e.ledger.RemoveAll(ctx, acc.ID); err != nil {
		return internalError(err)
	} else if n > 0 {
		e.metricInc(MetricSessionInvalidated)
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitActivity(ctx, ActivityEvent{
		Action:    ActionPasswordReset,
		AccountID: acc.ID,
		Details:   "Password reset via email token",
		Success:   true,
	})

	name, to := acc.Name, acc.Email
	e.sendMail(ctx, "password_changed", func(ctx context.Context) error {
		return e.notifier.SendPasswordChanged(ctx, to, name)
	})
	return nil
}
