package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mityansk/My-Books/internal/model"
)

func (db *Postgres) EnsureAuthSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS refresh_sessions (
			user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			token_hash TEXT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (db *Postgres) CreateUser(ctx context.Context, username, email, passwordHash string) (*model.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, username, email, password_hash, created_at, updated_at
	`
	var user model.User
	err := db.Pool.QueryRow(ctx, query, username, email, passwordHash).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *Postgres) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	var user model.User
	err := db.Pool.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *Postgres) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user model.User
	err := db.Pool.QueryRow(ctx, query, userID).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SetRefreshSession replaces whatever session the user had with a new one.
// Sign-in from a second device displaces the first (single-session model).
func (db *Postgres) SetRefreshSession(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_sessions (user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			token_hash = EXCLUDED.token_hash,
			expires_at = EXCLUDED.expires_at,
			created_at = NOW()
	`
	_, err := db.Pool.Exec(ctx, query, userID, tokenHash, expiresAt)
	return err
}

func (db *Postgres) GetRefreshSession(ctx context.Context, userID int64) (*model.RefreshSession, error) {
	query := `
		SELECT user_id, token_hash, expires_at, created_at
		FROM refresh_sessions
		WHERE user_id = $1
	`
	var session model.RefreshSession
	err := db.Pool.QueryRow(ctx, query, userID).Scan(
		&session.UserID,
		&session.TokenHash,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// RotateRefreshSession swaps the stored token hash only if it still matches
// the hash being consumed. Returns false when another rotation got there
// first (or the token was already replaced), so exactly one of two
// concurrent rotations succeeds.
func (db *Postgres) RotateRefreshSession(ctx context.Context, userID int64, oldTokenHash, newTokenHash string, newExpiresAt time.Time) (bool, error) {
	query := `
		UPDATE refresh_sessions
		SET token_hash = $3, expires_at = $4, created_at = NOW()
		WHERE user_id = $1 AND token_hash = $2
	`
	tag, err := db.Pool.Exec(ctx, query, userID, oldTokenHash, newTokenHash, newExpiresAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (db *Postgres) ClearRefreshSession(ctx context.Context, userID int64) error {
	query := `DELETE FROM refresh_sessions WHERE user_id = $1`
	_, err := db.Pool.Exec(ctx, query, userID)
	return err
}

func IsNoRows(err error) bool {
	return err == pgx.ErrNoRows
}
