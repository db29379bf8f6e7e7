package identity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oscarmarin21/Admin/internal/auth"
	"github.com/oscarmarin21/Admin/internal/ids"
	"github.com/oscarmarin21/Admin/internal/mail"
)

// DefaultInvitationTTL is how long a new invitation can be redeemed.
const DefaultInvitationTTL = 7 * 24 * time.Hour

const fallbackInviterName = "Admin Platform"

var (
	errPendingInvitation  = auth.Conflict("User already has a pending invitation.")
	errAlreadyMember      = auth.Conflict("User already belongs to this organization.")
	errInvitationNotFound = auth.NotFound("Invitation not found for this organization.")
	errNotCancelable      = auth.Validation("Only pending invitations can be canceled.")
	errInvitationInvalid  = auth.Validation("Invitation is not valid.")
	errInvalidRole        = auth.Validation("Role is not valid.")
)

// InviteInput is what an admin submits to invite someone.
type InviteInput struct {
	Email string
	Role  auth.Role
}

// AcceptInput redeems an invitation.
type AcceptInput struct {
	Token     string
	Password  string
	FirstName string
	LastName  string
}

// Invitations runs the invitation state machine: pending moves to accepted
// or revoked, and a pending invitation past its expiry reads as expired.
type Invitations struct {
	orgs          auth.OrganizationStore
	users         auth.UserStore
	store         auth.InvitationStore
	hasher        PasswordHasher
	mailer        mail.Sender
	now           func() time.Time
	log           *zap.Logger
	appBaseURL    string
	invitationTTL time.Duration
}

func newInvitations(deps Deps, cfg settings) *Invitations {
	return &Invitations{
		orgs:          deps.Organizations,
		users:         deps.Users,
		store:         deps.Invitations,
		hasher:        deps.Hasher,
		mailer:        deps.Mailer,
		now:           cfg.now,
		log:           cfg.log,
		appBaseURL:    cfg.appBaseURL,
		invitationTTL: cfg.invitationTTL,
	}
}

// Invite creates a pending invitation and emails it. Delivery problems are
// logged; the invitation stands either way.
func (m *Invitations) Invite(ctx context.Context, orgID, email string, role auth.Role, invitedBy string) (*auth.Invitation, error) {
	if !role.Valid() {
		return nil, errInvalidRole
	}
	email = normalizeEmail(email)

	org, err := m.orgs.FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, errOrganizationNotFound
		}
		return nil, auth.Internal(fmt.Errorf("find organization: %w", err))
	}

	now := m.now().UTC()
	existing, err := m.store.FindPending(ctx, org.ID, email)
	switch {
	case err == nil && existing.Redeemable(now):
		return nil, errPendingInvitation
	case err != nil && !errors.Is(err, auth.ErrNotFound):
		return nil, auth.Internal(fmt.Errorf("find pending invitation: %w", err))
	}
	if _, err := m.users.FindByEmail(ctx, org.ID, email); err == nil {
		return nil, errAlreadyMember
	} else if !errors.Is(err, auth.ErrNotFound) {
		return nil, auth.Internal(fmt.Errorf("find user by email: %w", err))
	}

	inv := &auth.Invitation{
		ID:             ids.New(),
		OrganizationID: org.ID,
		Email:          email,
		Role:           role,
		Token:          uuid.NewString(),
		InvitedBy:      invitedBy,
		Status:         auth.InvitationPending,
		ExpiresAt:      now.Add(m.invitationTTL),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := m.store.Create(ctx, inv); err != nil {
		return nil, auth.Internal(fmt.Errorf("create invitation: %w", err))
	}
	m.log.Info("invitation created",
		zap.String("organization_id", org.ID),
		zap.String("invitation_id", inv.ID),
		zap.String("role", string(role)),
	)

	m.notify(ctx, org, inv)
	return inv, nil
}

func (m *Invitations) notify(ctx context.Context, org *auth.Organization, inv *auth.Invitation) {
	if m.mailer == nil {
		return
	}
	msg, err := mail.RenderInvitation(mail.Invitation{
		To:               inv.Email,
		OrganizationName: org.Name,
		InvitedBy:        m.inviterName(ctx, inv.InvitedBy),
		Role:             inv.Role,
		AcceptURL:        m.acceptURL(inv.Token),
		ExpiresAt:        inv.ExpiresAt,
		Locale:           org.DefaultLocale,
	})
	if err != nil {
		m.log.Error("render invitation email", zap.String("invitation_id", inv.ID), zap.Error(err))
		return
	}
	if err := m.mailer.Send(ctx, msg); err != nil {
		m.log.Warn("send invitation email", zap.String("invitation_id", inv.ID), zap.Error(err))
	}
}

func (m *Invitations) inviterName(ctx context.Context, userID string) string {
	if userID == "" {
		return fallbackInviterName
	}
	u, err := m.users.FindByID(ctx, userID)
	if err != nil {
		return fallbackInviterName
	}
	if name := u.DisplayName(); name != "" {
		return name
	}
	return fallbackInviterName
}

func (m *Invitations) acceptURL(token string) string {
	return m.appBaseURL + "/accept-invitation?token=" + url.QueryEscape(token)
}

// List returns the organization's invitations newest first, with expired
// pending invitations reported as expired.
func (m *Invitations) List(ctx context.Context, orgID string) ([]*auth.Invitation, error) {
	invs, err := m.store.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, auth.Internal(fmt.Errorf("list invitations: %w", err))
	}
	now := m.now()
	for _, inv := range invs {
		inv.Status = inv.EffectiveStatus(now)
	}
	if invs == nil {
		invs = []*auth.Invitation{}
	}
	return invs, nil
}

// Cancel revokes a pending invitation. Invitations of other organizations
// are reported as missing.
func (m *Invitations) Cancel(ctx context.Context, orgID, invitationID string) error {
	if !ids.Valid(invitationID) {
		return errInvitationNotFound
	}
	inv, err := m.store.FindByID(ctx, invitationID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return errInvitationNotFound
		}
		return auth.Internal(fmt.Errorf("find invitation: %w", err))
	}
	if inv.OrganizationID != orgID {
		return errInvitationNotFound
	}
	if inv.Status != auth.InvitationPending {
		return errNotCancelable
	}
	err = m.store.Transition(ctx, inv.ID, auth.InvitationPending, auth.InvitationRevoked, m.now().UTC())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrConflict):
		return errNotCancelable
	case errors.Is(err, auth.ErrNotFound):
		return errInvitationNotFound
	default:
		return auth.Internal(fmt.Errorf("revoke invitation: %w", err))
	}
}

// Accept redeems a token. The invitation is claimed with a conditional
// pending to accepted update before the user is created, so of two
// concurrent redemptions exactly one succeeds.
func (m *Invitations) Accept(ctx context.Context, in AcceptInput) (*auth.User, error) {
	token := strings.TrimSpace(in.Token)
	if token == "" {
		return nil, errInvitationInvalid
	}
	inv, err := m.store.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, errInvitationInvalid
		}
		return nil, auth.Internal(fmt.Errorf("find invitation: %w", err))
	}
	now := m.now().UTC()
	if !inv.Redeemable(now) {
		return nil, errInvitationInvalid
	}

	digest, err := m.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, auth.Internal(fmt.Errorf("hash password: %w", err))
	}

	if err := m.store.Transition(ctx, inv.ID, auth.InvitationPending, auth.InvitationAccepted, now); err != nil {
		if errors.Is(err, auth.ErrConflict) || errors.Is(err, auth.ErrNotFound) {
			return nil, errInvitationInvalid
		}
		return nil, auth.Internal(fmt.Errorf("accept invitation: %w", err))
	}

	user := &auth.User{
		ID:             ids.New(),
		OrganizationID: inv.OrganizationID,
		Email:          inv.Email,
		PasswordHash:   digest,
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		Role:           inv.Role,
		Locale:         auth.LocaleEN,
		Status:         auth.UserActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := m.users.Create(ctx, user); err != nil {
		// Give the invitation back so it can be retried.
		if rerr := m.store.Transition(ctx, inv.ID, auth.InvitationAccepted, auth.InvitationPending, now); rerr != nil {
			m.log.Error("restore invitation", zap.String("invitation_id", inv.ID), zap.Error(rerr))
		}
		if errors.Is(err, auth.ErrConflict) {
			return nil, errAlreadyMember
		}
		return nil, auth.Internal(fmt.Errorf("create user: %w", err))
	}
	m.log.Info("invitation accepted",
		zap.String("organization_id", inv.OrganizationID),
		zap.String("invitation_id", inv.ID),
		zap.String("user_id", user.ID),
	)
	return user, nil
}
