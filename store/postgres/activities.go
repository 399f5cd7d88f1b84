package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
)

// Activities persists the activity log. It implements both
// authcore.ActivitySink and authcore.ActivityStore; Emit logs write failures
// instead of returning them.
type Activities struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewActivities returns an activity store over db. A nil logger uses slog.Default.
func NewActivities(db *sql.DB, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{db: db, logger: logger}
}

// WithLogger returns a copy of s that reports write failures to logger.
func (s *Activities) WithLogger(logger *slog.Logger) *Activities {
	return NewActivities(s.db, logger)
}

func (s *Activities) Emit(ctx context.Context, event authcore.ActivityEvent) {
	if err := s.Insert(ctx, event); err != nil {
		s.logger.Warn("postgres: activity write failed", "action", event.Action, "error", err)
	}
}

// Insert writes one event. Inserting an event ID twice is a no-op, so
// redelivered events are safe.
func (s *Activities) Insert(ctx context.Context, event authcore.ActivityEvent) error {
	md := event.Metadata
	if md == nil {
		md = map[string]string{}
	}
	raw, err := json.Marshal(md)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO activities
		(id, occurred_at, action, account_id, target_account_id, details, ip_address, user_agent, success, error, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb)
		ON CONFLICT (id) DO NOTHING`,
		event.ID, event.Timestamp, string(event.Action), event.AccountID, event.TargetAccountID,
		event.Details, event.IP, event.UserAgent, event.Success, event.Error, string(raw))
	return mapError(err)
}

func (s *Activities) ListActivities(ctx context.Context, q authcore.ActivityQuery) ([]authcore.ActivityEvent, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if q.AccountID != "" {
		where = append(where, "account_id = "+arg(q.AccountID))
	}
	if q.Action != "" {
		where = append(where, "action = "+arg(string(q.Action)))
	}
	if q.Start != nil {
		where = append(where, "occurred_at >= "+arg(*q.Start))
	}
	if q.End != nil {
		where = append(where, "occurred_at <= "+arg(*q.End))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM activities`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := " LIMIT " + arg(q.Limit) + " OFFSET " + arg(q.Offset())
	rows, err := s.db.QueryContext(ctx, `SELECT id, occurred_at, action, account_id, target_account_id,
		details, ip_address, user_agent, success, error, metadata
		FROM activities`+clause+` ORDER BY occurred_at DESC, id`+limit, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]authcore.ActivityEvent, 0, q.Limit)
	for rows.Next() {
		var (
			ev     authcore.ActivityEvent
			action string
			md     []byte
		)
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &action, &ev.AccountID, &ev.TargetAccountID,
			&ev.Details, &ev.IP, &ev.UserAgent, &ev.Success, &ev.Error, &md); err != nil {
			return nil, 0, err
		}
		ev.Action = authcore.ActivityAction(action)
		if len(md) > 0 {
			if err := json.Unmarshal(md, &ev.Metadata); err != nil {
				return nil, 0, err
			}
			if len(ev.Metadata) == 0 {
				ev.Metadata = nil
			}
		}
		out = append(out, ev)
	}
	return out, total, rows.Err()
}

func (s *Activities) CountActivitiesByAction(ctx context.Context) (map[authcore.ActivityAction]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT action, count(*) FROM activities GROUP BY action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[authcore.ActivityAction]int)
	for rows.Next() {
		var (
			action string
			n      int
		)
		if err := rows.Scan(&action, &n); err != nil {
			return nil, err
		}
		out[authcore.ActivityAction(action)] = n
	}
	return out, rows.Err()
}

func (s *Activities) CountActivitiesSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM activities WHERE occurred_at >= $1`, since).Scan(&n)
	return n, err
}

func (s *Activities) DeleteActivitiesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM activities WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var (
	_ authcore.ActivitySink  = (*Activities)(nil)
	_ authcore.ActivityStore = (*Activities)(nil)
)
