// Package postgres stores profiles directly in PostgreSQL, for deployments
// that reach the database without going through PostgREST.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/voicerly/voicerly-bff/internal/domain"
)

var tracer = otel.Tracer("postgres")

const uniqueViolation = "23505"

const schema = `CREATE TABLE IF NOT EXISTS profiles (
	id UUID PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL DEFAULT '',
	display_name TEXT,
	credits BIGINT NOT NULL DEFAULT 0 CHECK (credits >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// ProfileStore implements port.ProfileStore with sqlx.
type ProfileStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Connect opens a PostgreSQL connection pool.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// NewProfileStore wraps an open pool.
func NewProfileStore(db *sqlx.DB, logger *zap.Logger) *ProfileStore {
	return &ProfileStore{db: db, logger: logger}
}

// EnsureSchema creates the profiles table when missing.
func (s *ProfileStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create profiles table: %w", err)
	}
	return nil
}

// GetByEmail returns nil, nil when no row matches.
func (s *ProfileStore) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetProfileByEmail")
	defer span.End()

	var p domain.Profile
	err := s.db.GetContext(ctx, &p,
		`SELECT id, email, password_hash, display_name, credits, created_at
		   FROM profiles WHERE email = $1 LIMIT 1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("postgres: get profile failed", zap.Error(err))
		return nil, &domain.ErrExternalService{Service: "postgres/profiles", Err: err}
	}
	return &p, nil
}

// Create inserts p and returns the stored row.
func (s *ProfileStore) Create(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateProfile")
	defer span.End()

	var out domain.Profile
	err := s.db.GetContext(ctx, &out,
		`INSERT INTO profiles (id, email, password_hash, display_name, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, email, password_hash, display_name, credits, created_at`,
		p.ID, p.Email, p.PasswordHash, p.DisplayName, p.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, &domain.ErrConflict{Message: "Email already registered"}
		}
		s.logger.Error("postgres: insert profile failed", zap.Error(err))
		return nil, &domain.ErrExternalService{Service: "postgres/profiles", Err: err}
	}
	return &out, nil
}

// UpdatePasswordHash replaces the hash for email.
func (s *ProfileStore) UpdatePasswordHash(ctx context.Context, email, hash string) error {
	ctx, span := tracer.Start(ctx, "Postgres.UpdatePasswordHash")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `UPDATE profiles SET password_hash = $1 WHERE email = $2`, hash, email)
	if err != nil {
		s.logger.Error("postgres: update password failed", zap.Error(err))
		return &domain.ErrExternalService{Service: "postgres/profiles", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &domain.ErrExternalService{Service: "postgres/profiles", Err: err}
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: "user", ID: email}
	}
	return nil
}

// Ping checks the connection.
func (s *ProfileStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
