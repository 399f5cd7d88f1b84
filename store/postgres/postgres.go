package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/MrEthical07/authcore"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// ErrNoChange is returned by Migrate when the schema is already at the target version.
var ErrNoChange = migrate.ErrNoChange

// PoolConfig bounds the connection pool. Zero fields keep database/sql defaults.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to dsn and pings it. Callers close the returned DB.
func Open(ctx context.Context, dsn string, pool PoolConfig) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres: DATABASE_URL is not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the embedded migrations. direction is "up" or "down".
// Nothing to do is not an error.
func Migrate(dsn, direction string) error {
	if dsn == "" {
		return errors.New("postgres: DATABASE_URL is not set")
	}
	if direction != "up" && direction != "down" {
		return fmt.Errorf("postgres: direction must be up or down, got %q", direction)
	}

	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("postgres: migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if direction == "up" {
		err = m.Up()
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Stores bundles the three store implementations over one DB.
type Stores struct {
	Accounts   *Accounts
	APIKeys    *APIKeys
	Activities *Activities
}

// New returns stores sharing db.
func New(db *sql.DB) *Stores {
	return &Stores{
		Accounts:   &Accounts{db: db},
		APIKeys:    &APIKeys{db: db},
		Activities: NewActivities(db, nil),
	}
}

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

// mapError converts driver errors into the store sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return authcore.ErrRecordNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%w: %s", authcore.ErrRecordConflict, pgErr.ConstraintName)
		case invalidTextRepresentation:
			// A malformed UUID cannot match any row.
			return authcore.ErrRecordNotFound
		}
	}
	return err
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return authcore.ErrRecordNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
