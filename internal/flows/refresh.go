package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureMissing
	RefreshFailureTokenExpired
	RefreshFailureTokenInvalid
	RefreshFailureAccount
	RefreshFailureIssue
	RefreshFailureSessionInvalid
	RefreshFailureRotate
)

// IssuedPair is a freshly signed access/refresh pair.
type IssuedPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// RefreshResult carries either the issued pair or failure metadata.
type RefreshResult struct {
	Failure   RefreshFailureKind
	Err       error
	AccountID string
	Pair      IssuedPair
}

// RefreshLedger is the subset of session.Ledger used by the refresh flow.
type RefreshLedger interface {
	Rotate(ctx context.Context, accountID, oldDigest string, next *session.Session) error
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Now           func() time.Time
	VerifyRefresh func(string) (jwt.Payload, error)
	Digest        func(string) string
	// LoadAccount re-reads the account and returns the payload for the new
	// pair. Its error is passed through unchanged.
	LoadAccount func(ctx context.Context, accountID string) (jwt.Payload, error)
	IssuePair   func(jwt.Payload) (IssuedPair, error)
	ClientIP    func(context.Context) string
	UserAgent   func(context.Context) string
	Ledger      RefreshLedger
}

// RunRefresh verifies the presented refresh token and atomically swaps its
// ledger entry for a new one. A token that was already rotated, logged out,
// or expired in the ledger fails with RefreshFailureSessionInvalid.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return RefreshResult{Failure: RefreshFailureMissing}
	}

	payload, err := deps.VerifyRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return RefreshResult{Failure: RefreshFailureTokenExpired, Err: err}
		}
		return RefreshResult{Failure: RefreshFailureTokenInvalid, Err: err}
	}

	fresh, err := deps.LoadAccount(ctx, payload.AccountID)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureAccount, Err: err, AccountID: payload.AccountID}
	}

	pair, err := deps.IssuePair(fresh)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, AccountID: payload.AccountID}
	}

	next := &session.Session{
		TokenDigest: deps.Digest(pair.RefreshToken),
		AccountID:   payload.AccountID,
		CreatedAt:   deps.Now(),
		ExpiresAt:   pair.RefreshExpiresAt,
	}
	if deps.ClientIP != nil {
		next.IPAddress = deps.ClientIP(ctx)
	}
	if deps.UserAgent != nil {
		next.UserAgent = deps.UserAgent(ctx)
	}

	if err := deps.Ledger.Rotate(ctx, payload.AccountID, deps.Digest(refreshToken), next); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrSessionExpired) {
			return RefreshResult{Failure: RefreshFailureSessionInvalid, Err: err, AccountID: payload.AccountID}
		}
		return RefreshResult{Failure: RefreshFailureRotate, Err: err, AccountID: payload.AccountID}
	}

	return RefreshResult{
		Failure:   RefreshFailureNone,
		AccountID: payload.AccountID,
		Pair:      pair,
	}
}
