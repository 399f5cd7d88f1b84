package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
)

// Accounts implements authcore.AccountStore.
type Accounts struct {
	db *sql.DB
}

const accountColumns = `id, name, email, password_digest, role, bio, phone,
	email_verified, active, banned, ban_reason, banned_by, banned_at,
	verification_digest, verification_expires_at, reset_digest, reset_expires_at,
	last_login_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*authcore.Account, error) {
	var (
		a                                 authcore.Account
		role                              string
		bannedAt, verifyExp, resetExp, ll sql.NullTime
		verifyDigest, resetDigest         sql.NullString
	)
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordDigest, &role, &a.Bio, &a.Phone,
		&a.EmailVerified, &a.Active, &a.Banned, &a.BanReason, &a.BannedBy, &bannedAt,
		&verifyDigest, &verifyExp, &resetDigest, &resetExp,
		&ll, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	a.Role = authcore.Role(role)
	a.BannedAt = timePtr(bannedAt)
	a.VerificationDigest = verifyDigest.String
	a.VerificationExpiresAt = timePtr(verifyExp)
	a.ResetDigest = resetDigest.String
	a.ResetExpiresAt = timePtr(resetExp)
	a.LastLoginAt = timePtr(ll)
	return &a, nil
}

func (s *Accounts) CreateAccount(ctx context.Context, a *authcore.Account) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		a.ID, a.Name, a.Email, a.PasswordDigest, string(a.Role), a.Bio, a.Phone,
		a.EmailVerified, a.Active, a.Banned, a.BanReason, a.BannedBy, nullTime(a.BannedAt),
		nullString(a.VerificationDigest), nullTime(a.VerificationExpiresAt),
		nullString(a.ResetDigest), nullTime(a.ResetExpiresAt),
		nullTime(a.LastLoginAt), a.CreatedAt, a.UpdatedAt)
	return mapError(err)
}

func (s *Accounts) GetAccountByID(ctx context.Context, id string) (*authcore.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (s *Accounts) GetAccountByEmail(ctx context.Context, email string) (*authcore.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
}

func (s *Accounts) GetAccountByVerificationDigest(ctx context.Context, digest string, now time.Time) (*authcore.Account, error) {
	if digest == "" {
		return nil, authcore.ErrRecordNotFound
	}
	return scanAccount(s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts
		WHERE verification_digest = $1 AND verification_expires_at > $2`, digest, now))
}

func (s *Accounts) GetAccountByResetDigest(ctx context.Context, digest string, now time.Time) (*authcore.Account, error) {
	if digest == "" {
		return nil, authcore.ErrRecordNotFound
	}
	return scanAccount(s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts
		WHERE reset_digest = $1 AND reset_expires_at > $2`, digest, now))
}

func (s *Accounts) PatchAccount(ctx context.Context, id string, p authcore.AccountPatch) error {
	var (
		sets []string
		args = []any{id}
	)
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.Name != nil {
		set("name", *p.Name)
	}
	if p.Email != nil {
		set("email", *p.Email)
	}
	if p.Bio != nil {
		set("bio", *p.Bio)
	}
	if p.Phone != nil {
		set("phone", *p.Phone)
	}
	if p.PasswordDigest != nil {
		set("password_digest", *p.PasswordDigest)
	}
	if p.Role != nil {
		set("role", string(*p.Role))
	}
	if p.Active != nil {
		set("active", *p.Active)
	}
	if p.EmailVerified != nil {
		set("email_verified", *p.EmailVerified)
	}
	if p.Ban != nil {
		set("banned", p.Ban.Banned)
		set("ban_reason", p.Ban.Reason)
		set("banned_by", p.Ban.By)
		set("banned_at", nullTime(p.Ban.At))
	}
	if p.Verification != nil {
		set("verification_digest", nullString(p.Verification.Digest))
		set("verification_expires_at", nullTime(p.Verification.ExpiresAt))
	}
	if p.Reset != nil {
		set("reset_digest", nullString(p.Reset.Digest))
		set("reset_expires_at", nullTime(p.Reset.ExpiresAt))
	}
	if !p.UpdatedAt.IsZero() {
		set("updated_at", p.UpdatedAt)
	}
	if len(sets) == 0 {
		return nil
	}

	where := "id = $1"
	if p.ExpectResetDigest != "" {
		args = append(args, p.ExpectResetDigest)
		where += fmt.Sprintf(" AND reset_digest = $%d", len(args))
	}
	return affected(s.db.ExecContext(ctx,
		`UPDATE accounts SET `+strings.Join(sets, ", ")+` WHERE `+where, args...))
}

func (s *Accounts) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return affected(s.db.ExecContext(ctx, `UPDATE accounts SET last_login_at = $2 WHERE id = $1`, id, at))
}

func (s *Accounts) DeleteAccount(ctx context.Context, id string) error {
	return affected(s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id))
}

var accountSortColumns = map[string]string{
	authcore.SortByCreatedAt: "created_at",
	authcore.SortByName:      "name",
	authcore.SortByEmail:     "email",
	authcore.SortByLastLogin: "last_login_at",
}

func (s *Accounts) ListAccounts(ctx context.Context, q authcore.AccountQuery) ([]authcore.Account, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if q.Role != "" {
		where = append(where, "role = "+arg(string(q.Role)))
	}
	if q.Active != nil {
		where = append(where, "active = "+arg(*q.Active))
	}
	if q.Banned != nil {
		where = append(where, "banned = "+arg(*q.Banned))
	}
	if q.Search != "" {
		p := arg("%" + escapeLike(q.Search) + "%")
		where = append(where, "(name ILIKE "+p+" OR email ILIKE "+p+")")
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM accounts`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	column, ok := accountSortColumns[q.SortBy]
	if !ok {
		column = "created_at"
	}
	dir, nulls := "DESC", "NULLS LAST"
	if q.SortOrder == "asc" {
		dir, nulls = "ASC", "NULLS FIRST"
	}
	order := fmt.Sprintf(" ORDER BY %s %s %s, id %s", column, dir, nulls, dir)
	limit := " LIMIT " + arg(q.Limit) + " OFFSET " + arg(q.Offset())

	rows, err := s.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts`+clause+order+limit, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]authcore.Account, 0, q.Limit)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *a)
	}
	return out, total, rows.Err()
}

func (s *Accounts) AccountStats(ctx context.Context) (authcore.AccountStats, error) {
	stats := authcore.AccountStats{UsersByRole: make(map[authcore.Role]int)}
	err := s.db.QueryRowContext(ctx, `SELECT
		count(*),
		count(*) FILTER (WHERE active AND NOT banned),
		count(*) FILTER (WHERE banned),
		count(*) FILTER (WHERE email_verified)
		FROM accounts`).Scan(&stats.TotalUsers, &stats.ActiveUsers, &stats.BannedUsers, &stats.VerifiedUsers)
	if err != nil {
		return stats, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT role, count(*) FROM accounts GROUP BY role`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			role string
			n    int
		)
		if err := rows.Scan(&role, &n); err != nil {
			return stats, err
		}
		stats.UsersByRole[authcore.Role(role)] = n
	}
	return stats, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

var _ authcore.AccountStore = (*Accounts)(nil)
