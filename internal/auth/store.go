package auth

import (
	"context"
	"time"
)

// OrganizationStore persists tenants. Create returns ErrConflict when the
// slug is already taken.
type OrganizationStore interface {
	Create(ctx context.Context, org *Organization) error
	FindByID(ctx context.Context, id string) (*Organization, error)
	FindBySlug(ctx context.Context, slug string) (*Organization, error)
}

// UserStore persists users. Create returns ErrConflict when the email is
// already registered in the organization.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, organizationID, email string) (*User, error)
}

// SessionStore persists refresh sessions.
//
// DeleteByID reports whether a record was removed so that concurrent
// rotations of the same session can tell which one won.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	FindByID(ctx context.Context, id string) (*Session, error)
	FindByRefreshHash(ctx context.Context, hash string) (*Session, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
}

// InvitationStore persists invitations.
//
// Transition moves an invitation from one stored status to another and
// returns ErrConflict when the invitation is no longer in status from.
type InvitationStore interface {
	Create(ctx context.Context, inv *Invitation) error
	FindByID(ctx context.Context, id string) (*Invitation, error)
	FindByToken(ctx context.Context, token string) (*Invitation, error)
	FindPending(ctx context.Context, organizationID, email string) (*Invitation, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]*Invitation, error)
	Transition(ctx context.Context, id string, from, to InvitationStatus, at time.Time) error
}
