package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/oscarmarin21/Admin/internal/auth"
)

var _ auth.SessionStore = (*Sessions)(nil)

// Sessions stores refresh sessions. Rows are never swept; callers treat an
// expired row as absent.
type Sessions struct{ db *sql.DB }

func (s *Sessions) Create(ctx context.Context, sess *auth.Session) error {
	timestamps(&sess.CreatedAt, &sess.UpdatedAt)
	_, err := s.db.ExecContext(ctx, `
		insert into sessions (id, user_id, refresh_token_hash, user_agent, ip_address, expires_at, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, sess.ID, sess.UserID, sess.RefreshTokenHash, sess.UserAgent, sess.IPAddress,
		sess.ExpiresAt, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return auth.ErrConflict
		}
		return err
	}
	return nil
}

const sessionColumns = `id, user_id, refresh_token_hash, user_agent, ip_address, expires_at, created_at, updated_at`

func (s *Sessions) FindByID(ctx context.Context, id string) (*auth.Session, error) {
	return scanSession(s.db.QueryRowContext(ctx,
		`select `+sessionColumns+` from sessions where id = $1`, id))
}

func (s *Sessions) FindByRefreshHash(ctx context.Context, hash string) (*auth.Session, error) {
	return scanSession(s.db.QueryRowContext(ctx,
		`select `+sessionColumns+` from sessions where refresh_token_hash = $1`, hash))
}

// DeleteByID removes the session and reports whether this call removed it.
func (s *Sessions) DeleteByID(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `delete from sessions where id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Sessions) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `delete from sessions where user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func scanSession(row *sql.Row) (*auth.Session, error) {
	var (
		sess      auth.Session
		expiresAt time.Time
	)
	err := row.Scan(&sess.ID, &sess.UserID, &sess.RefreshTokenHash, &sess.UserAgent, &sess.IPAddress,
		&expiresAt, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	sess.ExpiresAt = expiresAt.UTC()
	return &sess, nil
}
