package authcore

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ListAccounts returns one filtered, sorted page of accounts.
func (e *Engine) ListAccounts(ctx context.Context, q AccountQuery) (*AccountPage, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	q.Normalize()
	if err := validate(q); err != nil {
		return nil, err
	}
	accounts, total, err := e.accounts.ListAccounts(ctx, q)
	if err != nil {
		return nil, internalError(err)
	}
	users := make([]PublicAccount, 0, len(accounts))
	for i := range accounts {
		users = append(users, accounts[i].Public())
	}
	return &AccountPage{Users: users, Pagination: newPagination(total, q.Page, q.Limit)}, nil
}

// GetAccount returns the public view of one account.
func (e *Engine) GetAccount(ctx context.Context, id string) (*PublicAccount, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	acc, err := e.findAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	pub := acc.Public()
	return &pub, nil
}

func (e *Engine) findAccount(ctx context.Context, id string) (*Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidAccountID
	}
	acc, err := e.accounts.GetAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, internalError(err)
	}
	return acc, nil
}

// patchAccount writes patch to the store and mirrors it onto acc.
func (e *Engine) patchAccount(ctx context.Context, acc *Account, patch AccountPatch) error {
	if err := e.accounts.PatchAccount(ctx, acc.ID, patch); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return internalError(err)
	}
	patch.Apply(acc)
	return nil
}

// UpdateAccount patches profile fields of id on behalf of actorID. Changing
// the email to one held by another account fails with ErrEmailInUse.
func (e *Engine) UpdateAccount(ctx context.Context, actorID, id string, req UpdateAccountRequest) (*PublicAccount, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	acc, err := e.findAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	patch := AccountPatch{UpdatedAt: e.now()}
	changed := make([]string, 0, 4)
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if email != acc.Email {
			if _, err := e.accounts.GetAccountByEmail(ctx, email); err == nil {
				return nil, ErrEmailInUse
			} else if !errors.Is(err, ErrRecordNotFound) {
				return nil, internalError(err)
			}
			patch.Email = &email
			changed = append(changed, "email")
		}
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		patch.Name = &name
		changed = append(changed, "name")
	}
	if req.Bio != nil {
		patch.Bio = req.Bio
		changed = append(changed, "bio")
	}
	if req.Phone != nil {
		phone := strings.TrimSpace(*req.Phone)
		patch.Phone = &phone
		changed = append(changed, "phone")
	}

	if err := e.accounts.PatchAccount(ctx, acc.ID, patch); err != nil {
		switch {
		case errors.Is(err, ErrRecordConflict):
			return nil, ErrEmailInUse
		case errors.Is(err, ErrRecordNotFound):
			return nil, ErrAccountNotFound
		}
		return nil, internalError(err)
	}
	patch.Apply(acc)

	e.emitActivity(ctx, ActivityEvent{
		Action:          ActionProfileUpdated,
		AccountID:       actorID,
		TargetAccountID: acc.ID,
		Details:         "Profile updated",
		Success:         true,
		Metadata:        map[string]string{"fields": strings.Join(changed, ",")},
	})
	pub := acc.Public()
	return &pub, nil
}

// DeleteAccount removes id together with its sessions and API keys.
func (e *Engine) DeleteAccount(ctx context.Context, actorID, id string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidAccountID
	}
	if id == actorID {
		return ErrSelfDelete
	}
	acc, err := e.findAccount(ctx, id)
	if err != nil {
		return err
	}

	if err := e.accounts.DeleteAccount(ctx, acc.ID); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return internalError(err)
	}
	if _, err := e.ledger.RemoveAll(ctx, acc.ID); err != nil {
		e.warn("authcore: session cleanup after delete failed", "account_id", acc.ID, "error", err)
	}
	keys := 0
	if e.apiKeys != nil {
		if keys, err = e.apiKeys.DeleteAPIKeysForAccount(ctx, acc.ID); err != nil {
			e.warn("authcore: api key cleanup after delete failed", "account_id", acc.ID, "error", err)
		}
	}

	e.metricInc(MetricAccountDeleted)
	e.emitActivity(ctx, ActivityEvent{
		Action:          ActionUserDeleted,
		AccountID:       actorID,
		TargetAccountID: acc.ID,
		Details:         "User deleted: " + acc.Email,
		Success:         true,
		Metadata:        map[string]string{"apiKeys": strconv.Itoa(keys)},
	})
	return nil
}

// BanAccount bans id and ends all of its sessions. Admins cannot be banned.
func (e *Engine) BanAccount(ctx context.Context, actorID, id, reason string) (*PublicAccount, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	req := banRequest{Reason: strings.TrimSpace(reason)}
	if err := validate(req); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidAccountID
	}
	if id == actorID {
		return nil, ErrSelfBan
	}
	acc, err := e.findAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc.Banned {
		return nil, ErrAlreadyBanned
	}
	if acc.Role == RoleAdmin {
		return nil, ErrBanAdmin
	}

	now := e.now()
	patch := AccountPatch{
		Ban:       &BanState{Banned: true, Reason: req.Reason, By: actorID, At: &now},
		UpdatedAt: now,
	}
	if err := e.patchAccount(ctx, acc, patch); err != nil {
		return nil, err
	}
	if n, err := e.ledger.RemoveAll(ctx, acc.ID); err != nil {
		e.warn("authcore: session cleanup after ban failed", "account_id", acc.ID, "error", err)
	} else if n > 0 {
		e.metricInc(MetricSessionInvalidated)
	}

	e.metricInc(MetricAccountBanned)
	e.emitActivity(ctx, ActivityEvent{
		Action:          ActionUserBanned,
		AccountID:       actorID,
		TargetAccountID: acc.ID,
		Details:         req.Reason,
		Success:         true,
	})
	pub := acc.Public()
	return &pub, nil
}

// UnbanAccount lifts a ban and clears the ban fields.
func (e *Engine) UnbanAccount(ctx context.Context, actorID, id string) (*PublicAccount, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	acc, err := e.findAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if !acc.Banned {
		return nil, ErrNotBanned
	}

	if err := e.patchAccount(ctx, acc, AccountPatch{Ban: &BanState{}, UpdatedAt: e.now()}); err != nil {
		return nil, err
	}

	e.metricInc(MetricAccountUnbanned)
	e.emitActivity(ctx, ActivityEvent{
		Action:          ActionUserUnbanned,
		AccountID:       actorID,
		TargetAccountID: acc.ID,
		Details:         "User unbanned",
		Success:         true,
	})
	pub := acc.Public()
	return &pub, nil
}

// ChangeRole sets the role of id. Actors cannot change their own role.
func (e *Engine) ChangeRole(ctx context.Context, actorID, id string, role Role) (*PublicAccount, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidAccountID
	}
	if id == actorID {
		return nil, ErrSelfRoleChange
	}
	if err := validate(roleRequest{Role: role}); err != nil {
		return nil, ErrInvalidRole
	}
	acc, err := e.findAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := acc.Role
	if err := e.patchAccount(ctx, acc, AccountPatch{Role: &role, UpdatedAt: e.now()}); err != nil {
		return nil, err
	}

	e.metricInc(MetricRoleChanged)
	e.emitActivity(ctx, ActivityEvent{
		Action:          ActionRoleChanged,
		AccountID:       actorID,
		TargetAccountID: acc.ID,
		Details:         "Role changed from " + string(previous) + " to " + string(role),
		Success:         true,
		Metadata:        map[string]string{"from": string(previous), "to": string(role)},
	})
	pub := acc.Public()
	return &pub, nil
}

// AccountStats counts accounts by state and role. Every known role appears
// in UsersByRole, with zero when unused.
func (e *Engine) AccountStats(ctx context.Context) (*AccountStats, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	stats, err := e.accounts.AccountStats(ctx)
	if err != nil {
		return nil, internalError(err)
	}
	byRole := map[Role]int{RoleUser: 0, RoleModerator: 0, RoleAdmin: 0}
	for r, n := range stats.UsersByRole {
		byRole[r] = n
	}
	stats.UsersByRole = byRole
	return &stats, nil
}
