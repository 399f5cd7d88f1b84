package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/MrEthical07/authcore"
)

// APIKeys implements authcore.APIKeyStore. List columns are JSONB arrays.
type APIKeys struct {
	db *sql.DB
}

const apiKeyColumns = `id, account_id, name, description, digest, permissions, usage_count,
	last_used_at, rate_per_minute, rate_per_hour, rate_per_day, active, expires_at,
	allowed_ips, allowed_domains, created_at, updated_at`

func scanAPIKey(row rowScanner) (*authcore.APIKey, error) {
	var (
		k                   authcore.APIKey
		perms, ips, domains []byte
		lastUsed, expires   sql.NullTime
	)
	err := row.Scan(&k.ID, &k.AccountID, &k.Name, &k.Description, &k.Digest, &perms, &k.UsageCount,
		&lastUsed, &k.RateLimit.PerMinute, &k.RateLimit.PerHour, &k.RateLimit.PerDay, &k.Active, &expires,
		&ips, &domains, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	for _, f := range []struct {
		raw []byte
		dst *[]string
	}{{perms, &k.Permissions}, {ips, &k.AllowedIPs}, {domains, &k.AllowedDomains}} {
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, err
		}
	}
	k.LastUsedAt = timePtr(lastUsed)
	k.ExpiresAt = timePtr(expires)
	return &k, nil
}

func jsonList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func keyLists(k *authcore.APIKey) (perms, ips, domains string, err error) {
	if perms, err = jsonList(k.Permissions); err != nil {
		return
	}
	if ips, err = jsonList(k.AllowedIPs); err != nil {
		return
	}
	domains, err = jsonList(k.AllowedDomains)
	return
}

func (s *APIKeys) CreateAPIKey(ctx context.Context, k *authcore.APIKey) error {
	perms, ips, domains, err := keyLists(k)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO api_keys (`+apiKeyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $10, $11, $12, $13, $14::jsonb, $15::jsonb, $16, $17)`,
		k.ID, k.AccountID, k.Name, k.Description, k.Digest, perms, k.UsageCount,
		nullTime(k.LastUsedAt), k.RateLimit.PerMinute, k.RateLimit.PerHour, k.RateLimit.PerDay, k.Active, nullTime(k.ExpiresAt),
		ips, domains, k.CreatedAt, k.UpdatedAt)
	return mapError(err)
}

func (s *APIKeys) GetAPIKeyByDigest(ctx context.Context, digest string) (*authcore.APIKey, error) {
	return scanAPIKey(s.db.QueryRowContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE digest = $1`, digest))
}

func (s *APIKeys) GetAPIKey(ctx context.Context, id, accountID string) (*authcore.APIKey, error) {
	return scanAPIKey(s.db.QueryRowContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys
		WHERE id = $1 AND account_id = $2`, id, accountID))
}

func (s *APIKeys) ListAPIKeys(ctx context.Context, accountID string) ([]authcore.APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys
		WHERE account_id = $1 ORDER BY created_at DESC, id`, accountID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]authcore.APIKey, 0)
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *k)
	}
	return out, rows.Err()
}

// UpdateAPIKey writes the mutable fields of k. The digest and usage columns
// are never overwritten.
func (s *APIKeys) UpdateAPIKey(ctx context.Context, k *authcore.APIKey) error {
	perms, ips, domains, err := keyLists(k)
	if err != nil {
		return err
	}
	return affected(s.db.ExecContext(ctx, `UPDATE api_keys SET
		name = $3, description = $4, permissions = $5::jsonb,
		rate_per_minute = $6, rate_per_hour = $7, rate_per_day = $8,
		expires_at = $9, allowed_ips = $10::jsonb, allowed_domains = $11::jsonb, updated_at = $12
		WHERE id = $1 AND account_id = $2`,
		k.ID, k.AccountID, k.Name, k.Description, perms,
		k.RateLimit.PerMinute, k.RateLimit.PerHour, k.RateLimit.PerDay,
		nullTime(k.ExpiresAt), ips, domains, k.UpdatedAt))
}

func (s *APIKeys) RevokeAPIKey(ctx context.Context, id, accountID string, at time.Time) error {
	return affected(s.db.ExecContext(ctx,
		`UPDATE api_keys SET active = FALSE, updated_at = $3 WHERE id = $1 AND account_id = $2`,
		id, accountID, at))
}

func (s *APIKeys) DeleteAPIKey(ctx context.Context, id, accountID string) error {
	return affected(s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1 AND account_id = $2`, id, accountID))
}

func (s *APIKeys) DeleteAPIKeysForAccount(ctx context.Context, accountID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, mapError(err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *APIKeys) RecordAPIKeyUsage(ctx context.Context, id string, at time.Time) error {
	return affected(s.db.ExecContext(ctx, `UPDATE api_keys
		SET usage_count = usage_count + 1, last_used_at = $2 WHERE id = $1`, id, at))
}

func (s *APIKeys) APIKeyStats(ctx context.Context, accountID string) (authcore.APIKeyStats, error) {
	var stats authcore.APIKeyStats
	err := s.db.QueryRowContext(ctx, `SELECT
		count(*),
		count(*) FILTER (WHERE active),
		coalesce(sum(usage_count), 0)::bigint
		FROM api_keys WHERE account_id = $1`, accountID).Scan(&stats.TotalKeys, &stats.ActiveKeys, &stats.TotalUsage)
	return stats, mapError(err)
}

var _ authcore.APIKeyStore = (*APIKeys)(nil)
