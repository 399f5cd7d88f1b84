package authcore

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/authcore/internal"
)

// newVerificationToken returns a fresh verification token and the digest
// state to persist for it.
func (e *Engine) newVerificationToken() (string, TokenState, error) {
	token, err := internal.NewOpaqueToken(e.config.Verification.TokenBytes)
	if err != nil {
		return "", TokenState{}, err
	}
	expires := e.now().Add(e.config.Verification.TTL)
	return token, TokenState{Digest: internal.Digest(token), ExpiresAt: &expires}, nil
}

// SendVerification issues a new verification token for accountID and emails
// it. A previous unused token stops working.
func (e *Engine) SendVerification(ctx context.Context, accountID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	acc, err := e.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return internalError(err)
	}
	if acc.EmailVerified {
		return ErrAlreadyVerified
	}

	token, state, err := e.newVerificationToken()
	if err != nil {
		return internalError(err)
	}
	err = e.accounts.PatchAccount(ctx, acc.ID, AccountPatch{Verification: &state, UpdatedAt: e.now()})
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return internalError(err)
	}

	e.metricInc(MetricEmailVerificationRequest)
	name, to := acc.Name, acc.Email
	e.sendMail(ctx, "verification", func(ctx context.Context) error {
		return e.notifier.SendVerification(ctx, to, name, token)
	})
	return nil
}

// VerifyEmail marks the account owning token as verified. Unknown, used and
// expired tokens all fail with ErrInvalidVerificationToken.
func (e *Engine) VerifyEmail(ctx context.Context, token string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	token = strings.TrimSpace(token)
	if token == "" {
		e.metricInc(MetricEmailVerificationFailure)
		return ErrInvalidVerificationToken
	}

	acc, err := e.accounts.GetAccountByVerificationDigest(ctx, internal.Digest(token), e.now())
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			e.metricInc(MetricEmailVerificationFailure)
			return ErrInvalidVerificationToken
		}
		return internalError(err)
	}

	verified := true
	err = e.accounts.PatchAccount(ctx, acc.ID, AccountPatch{
		EmailVerified: &verified,
		Verification:  &TokenState{},
		UpdatedAt:     e.now(),
	})
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			e.metricInc(MetricEmailVerificationFailure)
			return ErrInvalidVerificationToken
		}
		return internalError(err)
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitActivity(ctx, ActivityEvent{
		Action:    ActionEmailVerified,
		AccountID: acc.ID,
		Details:   "Email address verified",
		Success:   true,
	})
	return nil
}
