package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/oscarmarin21/Admin/internal/auth"
	"github.com/oscarmarin21/Admin/internal/ids"
)

var (
	_ auth.OrganizationStore = (*Organizations)(nil)
	_ auth.UserStore         = (*Users)(nil)
)

// Organization store ---------------------------------------------------------
type Organizations struct{ db *sql.DB }

func (s *Organizations) Create(ctx context.Context, org *auth.Organization) error {
	if org.ID == "" {
		org.ID = ids.New()
	}
	timestamps(&org.CreatedAt, &org.UpdatedAt)
	_, err := s.db.ExecContext(ctx, `
		insert into organizations (id, name, slug, default_locale, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6)
	`, org.ID, org.Name, org.Slug, string(org.DefaultLocale), org.CreatedAt, org.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return auth.ErrConflict
		}
		return err
	}
	return nil
}

const orgColumns = `id, name, slug, default_locale, created_at, updated_at`

func (s *Organizations) FindByID(ctx context.Context, id string) (*auth.Organization, error) {
	return scanOrganization(s.db.QueryRowContext(ctx,
		`select `+orgColumns+` from organizations where id = $1`, id))
}

func (s *Organizations) FindBySlug(ctx context.Context, slug string) (*auth.Organization, error) {
	return scanOrganization(s.db.QueryRowContext(ctx,
		`select `+orgColumns+` from organizations where slug = $1`, slug))
}

func scanOrganization(row *sql.Row) (*auth.Organization, error) {
	var (
		org    auth.Organization
		locale string
	)
	if err := row.Scan(&org.ID, &org.Name, &org.Slug, &locale, &org.CreatedAt, &org.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	org.DefaultLocale = auth.Locale(locale)
	return &org, nil
}

// User store -----------------------------------------------------------------
type Users struct{ db *sql.DB }

func (s *Users) Create(ctx context.Context, u *auth.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	timestamps(&u.CreatedAt, &u.UpdatedAt)
	_, err := s.db.ExecContext(ctx, `
		insert into users (id, organization_id, email, password_hash, first_name, last_name,
			role, locale, status, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, u.ID, u.OrganizationID, u.Email, u.PasswordHash, u.FirstName, u.LastName,
		string(u.Role), string(u.Locale), string(u.Status), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return auth.ErrConflict
		}
		return err
	}
	return nil
}

const userColumns = `id, organization_id, email, password_hash, first_name, last_name, role, locale, status, created_at, updated_at`

func (s *Users) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id = $1`, id))
}

func (s *Users) FindByEmail(ctx context.Context, orgID, email string) (*auth.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where organization_id = $1 and email = $2`,
		orgID, strings.ToLower(strings.TrimSpace(email))))
}

func scanUser(row *sql.Row) (*auth.User, error) {
	var (
		u                    auth.User
		role, locale, status string
	)
	err := row.Scan(&u.ID, &u.OrganizationID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&role, &locale, &status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	u.Role = auth.Role(role)
	u.Locale = auth.Locale(locale)
	u.Status = auth.UserStatus(status)
	return &u, nil
}
