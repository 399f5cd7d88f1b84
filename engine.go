package authcore

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
	"github.com/google/uuid"
)

// Engine is the authentication core. Build it with New().…Build(); all
// methods are safe for concurrent use.
type Engine struct {
	config        Config
	logger        *slog.Logger
	now           func() time.Time
	codec         *jwt.Codec
	ledger        *session.Ledger
	limiter       *rate.Limiter
	hasher        password.Hasher
	accounts      AccountStore
	apiKeys       APIKeyStore
	activityStore ActivityStore
	activitySink  ActivitySink
	activity      *activityDispatcher
	notifier      Notifier
	metrics       *Metrics
	flows         flows.Deps

	mail sync.WaitGroup
}

// Close waits for in-flight emails and drains queued activity events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.mail.Wait()
	if e.activity != nil {
		e.activity.Close()
	}
}

// ActivityDropped reports how many activity events were dropped because the
// dispatcher buffer was full.
func (e *Engine) ActivityDropped() uint64 {
	if e == nil || e.activity == nil {
		return 0
	}
	return e.activity.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// DevelopmentMode reports whether error causes may be shown to clients.
func (e *Engine) DevelopmentMode() bool {
	return e != nil && e.config.DevelopmentMode
}

// Logger returns the logger the Engine reports best-effort failures to.
func (e *Engine) Logger() *slog.Logger {
	if e == nil || e.logger == nil {
		return slog.Default()
	}
	return e.logger
}

// Ping checks the Redis connection backing sessions and rate limits.
func (e *Engine) Ping(ctx context.Context) error {
	if _, err := e.ledger.Ping(ctx); err != nil {
		return internalError(err)
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) warn(msg string, args ...any) {
	e.logger.Warn(msg, args...)
}

func (e *Engine) ready() bool {
	return e != nil && e.codec != nil && e.ledger != nil && e.accounts != nil
}

/*
====================================
REGISTER / LOGIN
====================================
*/

// Register creates an account, signs the caller in on the new device, and
// sends a verification email. Email failures are logged and never fail the call.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	req.normalize()
	if err := validate(req); err != nil {
		return nil, err
	}

	if _, err := e.accounts.GetAccountByEmail(ctx, req.Email); err == nil {
		e.metricInc(MetricRegisterDuplicate)
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrRecordNotFound) {
		return nil, internalError(err)
	}

	digest, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, internalError(err)
	}

	now := e.now()
	acc := &Account{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Email:          req.Email,
		PasswordDigest: digest,
		Role:           RoleUser,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var verifyToken string
	if e.notifier != nil && e.config.Verification.SendOnSignup {
		var state TokenState
		verifyToken, state, err = e.newVerificationToken()
		if err != nil {
			return nil, internalError(err)
		}
		acc.VerificationDigest = state.Digest
		acc.VerificationExpiresAt = state.ExpiresAt
	}

	if err := e.accounts.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, ErrRecordConflict) {
			e.metricInc(MetricRegisterDuplicate)
			return nil, ErrEmailTaken
		}
		return nil, internalError(err)
	}

	pair, err := e.startSession(ctx, acc)
	if err != nil {
		// The caller sees a failed registration, so the account must not
		// block a retry with the same email.
		if delErr := e.accounts.DeleteAccount(context.WithoutCancel(ctx), acc.ID); delErr != nil {
			e.warn("authcore: registration rollback failed", "account_id", acc.ID, "error", delErr)
		}
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitActivity(ctx, ActivityEvent{
		Action:    ActionRegister,
		AccountID: acc.ID,
		Details:   "User registered",
		Success:   true,
	})

	if verifyToken != "" {
		e.metricInc(MetricEmailVerificationRequest)
		name, to := acc.Name, acc.Email
		e.sendMail(ctx, "verification", func(ctx context.Context) error {
			return e.notifier.SendVerification(ctx, to, name, verifyToken)
		})
	}

	return &AuthResult{Account: acc.Public(), Tokens: pair}, nil
}

// Login authenticates by email and password. Unknown emails and wrong
// passwords fail identically with ErrInvalidCredentials. The client IP and
// user agent are read from ctx (see WithClientIP and WithUserAgent).
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	req.normalize()
	if err := validate(req); err != nil {
		return nil, err
	}

	var acc *Account
	deps := e.flows.Login
	deps.LookupAccount = func(ctx context.Context, email string) (*flows.LoginCandidate, error) {
		a, err := e.accounts.GetAccountByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		acc = a
		return &flows.LoginCandidate{
			AccountID:      a.ID,
			PasswordDigest: a.PasswordDigest,
			Active:         a.Active,
			Banned:         a.Banned,
			BanReason:      a.BanReason,
		}, nil
	}

	subject := req.Email + "|" + ClientIPFromContext(ctx)
	res := flows.RunLogin(ctx, req.Email, req.Password, subject, deps)
	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		e.metricInc(MetricRateLimitHit)
		return nil, rateLimited(ErrTooManyAuthAttempts, res.RetryAfter)
	case flows.LoginFailureInvalidCredentials:
		e.metricInc(MetricLoginFailure)
		if acc != nil {
			e.emitActivity(ctx, ActivityEvent{
				Action:    ActionLogin,
				AccountID: acc.ID,
				Details:   "Failed login attempt",
				Success:   false,
				Error:     "Invalid password",
			})
		}
		return nil, ErrInvalidCredentials
	case flows.LoginFailureInactive:
		e.metricInc(MetricLoginRejected)
		return nil, ErrAccountDeactivated
	case flows.LoginFailureBanned:
		e.metricInc(MetricLoginRejected)
		return nil, bannedError(acc.BanReason)
	default:
		return nil, internalError(res.Err)
	}

	pair, err := e.startSession(ctx, acc)
	if err != nil {
		return nil, err
	}

	now := e.now()
	if err := e.accounts.TouchLastLogin(ctx, acc.ID, now); err != nil {
		e.warn("authcore: last login update failed", "account_id", acc.ID, "error", err)
	} else {
		acc.LastLoginAt = &now
	}
	if e.config.Session.PruneOnLogin {
		if _, err := e.ledger.Prune(ctx, acc.ID); err != nil {
			e.warn("authcore: session prune failed", "account_id", acc.ID, "error", err)
		}
	}
	e.upgradePasswordDigest(ctx, acc, req.Password)

	e.metricInc(MetricLoginSuccess)
	e.emitActivity(ctx, ActivityEvent{
		Action:    ActionLogin,
		AccountID: acc.ID,
		Details:   "User logged in",
		Success:   true,
	})

	return &AuthResult{Account: acc.Public(), Tokens: pair}, nil
}

func (e *Engine) upgradePasswordDigest(ctx context.Context, acc *Account, plain string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	up, ok := e.hasher.(password.Upgrader)
	if !ok {
		return
	}
	need, err := up.NeedsUpgrade(acc.PasswordDigest)
	if err != nil || !need {
		return
	}
	digest, err := e.hasher.Hash(plain)
	if err != nil {
		e.warn("authcore: password rehash failed", "account_id", acc.ID, "error", err)
		return
	}
	err = e.accounts.PatchAccount(ctx, acc.ID, AccountPatch{PasswordDigest: &digest, UpdatedAt: e.now()})
	if err != nil {
		e.warn("authcore: password rehash save failed", "account_id", acc.ID, "error", err)
		return
	}
	acc.PasswordDigest = digest
	e.metricInc(MetricPasswordRehashed)
}

/*
====================================
REFRESH / LOGOUT
====================================
*/

// Refresh exchanges a refresh token for a new pair. The presented token is
// consumed: a second use fails with ErrRefreshSessionInvalid.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := flows.RunRefresh(ctx, refreshToken, e.flows.Refresh)
	switch res.Failure {
	case flows.RefreshFailureNone:
		e.metricInc(MetricRefreshSuccess)
		pair := tokenPair(res.Pair)
		return &pair, nil
	case flows.RefreshFailureMissing:
		return nil, ErrRefreshTokenRequired
	case flows.RefreshFailureTokenExpired:
		e.metricInc(MetricRefreshFailure)
		return nil, ErrRefreshTokenExpired
	case flows.RefreshFailureTokenInvalid:
		e.metricInc(MetricRefreshFailure)
		return nil, ErrRefreshTokenInvalid
	case flows.RefreshFailureAccount:
		e.metricInc(MetricRefreshFailure)
		return nil, internalError(res.Err)
	case flows.RefreshFailureSessionInvalid:
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricRefreshReuseDetected)
		return nil, ErrRefreshSessionInvalid
	default:
		e.metricInc(MetricRefreshFailure)
		return nil, internalError(res.Err)
	}
}

func (e *Engine) payloadForRefresh(ctx context.Context, accountID string) (jwt.Payload, error) {
	acc, err := e.loadActiveAccount(ctx, accountID)
	if err != nil {
		return jwt.Payload{}, err
	}
	return payloadOf(acc), nil
}

// loadActiveAccount fetches accountID and applies the state checks shared by
// refresh and bearer authentication.
func (e *Engine) loadActiveAccount(ctx context.Context, accountID string) (*Account, error) {
	acc, err := e.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrAccountGone
		}
		return nil, internalError(err)
	}
	if !acc.Active {
		return nil, ErrAccountDeactivated
	}
	if acc.Banned {
		return nil, bannedError(acc.BanReason)
	}
	return acc, nil
}

// Logout ends the session of one device. Unknown or already-ended sessions
// are not an error.
func (e *Engine) Logout(ctx context.Context, accountID, refreshToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if refreshToken == "" {
		return ErrRefreshTokenRequired
	}
	removed, err := e.ledger.Remove(ctx, accountID, internal.Digest(refreshToken))
	if err != nil {
		return internalError(err)
	}
	if removed {
		e.metricInc(MetricSessionInvalidated)
	}
	e.metricInc(MetricLogout)
	e.emitActivity(ctx, ActivityEvent{
		Action:    ActionLogout,
		AccountID: accountID,
		Details:   "User logged out",
		Success:   true,
	})
	return nil
}

// LogoutAll ends every session of accountID.
func (e *Engine) LogoutAll(ctx context.Context, accountID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	n, err := e.ledger.RemoveAll(ctx, accountID)
	if err != nil {
		return internalError(err)
	}
	e.metricInc(MetricLogoutAll)
	e.emitActivity(ctx, ActivityEvent{
		Action:    ActionLogout,
		AccountID: accountID,
		Details:   "Logged out from all devices",
		Success:   true,
		Metadata:  map[string]string{"sessions": strconv.Itoa(n)},
	})
	return nil
}

// Sessions lists the live sessions of accountID, oldest first.
func (e *Engine) Sessions(ctx context.Context, accountID string) ([]SessionInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	list, err := e.ledger.List(ctx, accountID)
	if err != nil {
		return nil, internalError(err)
	}
	out := make([]SessionInfo, 0, len(list))
	for _, s := range list {
		out = append(out, SessionInfo{
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
			IPAddress: s.IPAddress,
			UserAgent: s.UserAgent,
		})
	}
	return out, nil
}

/*
====================================
TOKENS AND SESSIONS
====================================
*/

func payloadOf(acc *Account) jwt.Payload {
	return jwt.Payload{AccountID: acc.ID, Email: acc.Email, Role: string(acc.Role)}
}

func (e *Engine) issuePair(p jwt.Payload) (flows.IssuedPair, error) {
	access, accessExp, err := e.codec.IssueAccess(p)
	if err != nil {
		return flows.IssuedPair{}, err
	}
	refresh, refreshExp, err := e.codec.IssueRefresh(p)
	if err != nil {
		return flows.IssuedPair{}, err
	}
	return flows.IssuedPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func tokenPair(p flows.IssuedPair) TokenPair {
	return TokenPair{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}

// startSession issues a pair for acc and records its refresh token in the ledger.
func (e *Engine) startSession(ctx context.Context, acc *Account) (TokenPair, error) {
	issued, err := e.issuePair(payloadOf(acc))
	if err != nil {
		if errors.Is(err, jwt.ErrSigningKeyMissing) {
			return TokenPair{}, ErrSigningKeyMissing
		}
		return TokenPair{}, internalError(err)
	}
	err = e.ledger.Add(ctx, &session.Session{
		TokenDigest: internal.Digest(issued.RefreshToken),
		AccountID:   acc.ID,
		CreatedAt:   e.now(),
		ExpiresAt:   issued.RefreshExpiresAt,
		IPAddress:   ClientIPFromContext(ctx),
		UserAgent:   userAgentFromContext(ctx),
	})
	if err != nil {
		return TokenPair{}, internalError(err)
	}
	e.metricInc(MetricSessionCreated)
	return tokenPair(issued), nil
}

/*
====================================
MAIL
====================================
*/

// sendMail runs fn with the configured timeout. With Mail.Async the call
// returns immediately and Close waits for it. Errors are only logged.
func (e *Engine) sendMail(ctx context.Context, kind string, fn func(context.Context) error) {
	if e.notifier == nil {
		return
	}
	run := func() {
		mctx := context.WithoutCancel(ctx)
		if e.config.Mail.Timeout > 0 {
			var cancel context.CancelFunc
			mctx, cancel = context.WithTimeout(mctx, e.config.Mail.Timeout)
			defer cancel()
		}
		if err := fn(mctx); err != nil {
			e.metricInc(MetricMailFailure)
			e.logger.Error("authcore: email delivery failed", "kind", kind, "error", err)
		}
	}
	if !e.config.Mail.Async {
		run()
		return
	}
	e.mail.Add(1)
	go func() {
		defer e.mail.Done()
		run()
	}()
}

/*
====================================
HELPERS
====================================
*/

func bannedError(reason string) *AuthError {
	if reason == "" {
		reason = "No reason provided"
	}
	return derive(ErrAccountBanned, ErrAccountBanned.Message+". Reason: "+reason)
}

func rateLimited(base *AuthError, retryAfter time.Duration) *AuthError {
	return &AuthError{Kind: base.Kind, Message: base.Message, RetryAfter: retryAfter, Err: base}
}
