package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/oscarmarin21/Admin/internal/auth"
	"github.com/oscarmarin21/Admin/internal/ids"
)

var _ auth.InvitationStore = (*Invitations)(nil)

type Invitations struct{ db *sql.DB }

func (s *Invitations) Create(ctx context.Context, inv *auth.Invitation) error {
	if inv.ID == "" {
		inv.ID = ids.New()
	}
	inv.Email = strings.ToLower(strings.TrimSpace(inv.Email))
	timestamps(&inv.CreatedAt, &inv.UpdatedAt)
	_, err := s.db.ExecContext(ctx, `
		insert into invitations (id, organization_id, email, role, token, invited_by, status,
			expires_at, accepted_at, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, inv.ID, inv.OrganizationID, inv.Email, string(inv.Role), inv.Token, inv.InvitedBy,
		string(inv.Status), inv.ExpiresAt, nullTime(inv.AcceptedAt), inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return auth.ErrConflict
		}
		return err
	}
	return nil
}

const invitationColumns = `id, organization_id, email, role, token, invited_by, status, expires_at, accepted_at, created_at, updated_at`

func (s *Invitations) FindByID(ctx context.Context, id string) (*auth.Invitation, error) {
	return scanInvitation(s.db.QueryRowContext(ctx,
		`select `+invitationColumns+` from invitations where id = $1`, id))
}

func (s *Invitations) FindByToken(ctx context.Context, token string) (*auth.Invitation, error) {
	return scanInvitation(s.db.QueryRowContext(ctx,
		`select `+invitationColumns+` from invitations where token = $1`, token))
}

// FindPending returns the most recent invitation stored as pending for the
// address, whether or not it has expired.
func (s *Invitations) FindPending(ctx context.Context, orgID, email string) (*auth.Invitation, error) {
	return scanInvitation(s.db.QueryRowContext(ctx, `
		select `+invitationColumns+`
		from invitations
		where organization_id = $1 and email = $2 and status = 'pending'
		order by created_at desc, id desc
		limit 1
	`, orgID, strings.ToLower(strings.TrimSpace(email))))
}

func (s *Invitations) ListByOrganization(ctx context.Context, orgID string) ([]*auth.Invitation, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+invitationColumns+`
		from invitations
		where organization_id = $1
		order by created_at desc, id desc
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*auth.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, inv)
	}
	return res, rows.Err()
}

// Transition performs a conditional status update so that two concurrent
// redemptions of one token cannot both succeed.
func (s *Invitations) Transition(ctx context.Context, id string, from, to auth.InvitationStatus, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update invitations
		set status = $3,
		    accepted_at = case when $3 = 'accepted' then $4 when $3 = 'pending' then null else accepted_at end,
		    updated_at = $4
		where id = $1 and status = $2
	`, id, string(from), string(to), at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, `select exists(select 1 from invitations where id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return auth.ErrNotFound
	}
	return auth.ErrConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvitation(row rowScanner) (*auth.Invitation, error) {
	var (
		inv          auth.Invitation
		role, status string
		acceptedAt   sql.NullTime
	)
	err := row.Scan(&inv.ID, &inv.OrganizationID, &inv.Email, &role, &inv.Token, &inv.InvitedBy,
		&status, &inv.ExpiresAt, &acceptedAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	inv.Role = auth.Role(role)
	inv.Status = auth.InvitationStatus(status)
	if acceptedAt.Valid {
		t := acceptedAt.Time
		inv.AcceptedAt = &t
	}
	return &inv, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
