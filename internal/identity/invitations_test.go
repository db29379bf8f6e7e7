package identity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscarmarin21/Admin/internal/auth"
)

func (f *fixture) invite(t *testing.T, admin auth.Principal, email string, role auth.Role) *auth.Invitation {
	t.Helper()
	inv, err := f.svc.InviteUser(context.Background(), admin, InviteInput{Email: email, Role: role})
	require.NoError(t, err)
	return inv
}

func accept(f *fixture, token string) (*auth.User, error) {
	return f.svc.AcceptInvitation(context.Background(), AcceptInput{
		Token:     token,
		Password:  "Welcome123",
		FirstName: "Nia",
		LastName:  "New",
	})
}

func TestInvite_CreatesPendingInvitationAndSendsMail(t *testing.T) {
	f := newFixture(t)
	admin := principalOf(f.signUpAcme(t))

	inv := f.invite(t, admin, " New@Acme.Test ", auth.RoleMember)
	assert.Equal(t, "new@acme.test", inv.Email)
	assert.Equal(t, auth.InvitationPending, inv.Status)
	assert.Equal(t, admin.UserID, inv.InvitedBy)
	assert.Equal(t, f.clock.Now().Add(DefaultInvitationTTL), inv.ExpiresAt)
	assert.NotEmpty(t, inv.Token)

	sent := f.mailer.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "new@acme.test", sent[0].To)
	assert.Equal(t, "You have been invited to Admin Platform", sent[0].Subject)
	assert.Contains(t, sent[0].Text, "https://app.example.com/accept-invitation?token="+inv.Token)
	assert.Contains(t, sent[0].Text, "Ada Owner")
	assert.Contains(t, sent[0].HTML, "Member")
}

func TestInvite_DuplicatePendingConflicts(t *testing.T) {
	f := newFixture(t)
	admin := principalOf(f.signUpAcme(t))

	f.invite(t, admin, "new@acme.test", auth.RoleMember)
	_, err := f.svc.InviteUser(context.Background(), admin, InviteInput{Email: "NEW@acme.test", Role: auth.RoleStakeholder})
	requireAppError(t, err, auth.KindConflict, "User already has a pending invitation.")

	// Once the first one lapses a fresh invitation is allowed.
	f.clock.Advance(DefaultInvitationTTL + time.Hour)
	f.invite(t, admin, "new@acme.test", auth.RoleMember)
}

func TestInvite_Rejections(t *testing.T) {
	f := newFixture(t)
	admin := principalOf(f.signUpAcme(t))
	ctx := context.Background()

	_, err := f.svc.InviteUser(ctx, admin, InviteInput{Email: "x@acme.test", Role: auth.Role("owner")})
	requireAppError(t, err, auth.KindValidation, "")

	_, err = f.svc.InviteUser(ctx, admin, InviteInput{Email: "owner@acme.test", Role: auth.RoleMember})
	requireAppError(t, err, auth.KindConflict, "User already belongs to this organization.")

	ghost := admin
	ghost.OrganizationID = "missing-org"
	_, err = f.svc.InviteUser(ctx, ghost, InviteInput{Email: "x@acme.test", Role: auth.RoleMember})
	requireAppError(t, err, auth.KindNotFound, "Organization not found.")
}

func TestInvite_MailFailureIsNotReturned(t *testing.T) {
	f := newFixture(t)
	admin := principalOf(f.signUpAcme(t))
	f.mailer.err = errors.New("smtp unavailable")

	inv, err := f.svc.InviteUser(context.Background(), admin, InviteInput{Email: "new@acme.test", Role: auth.RoleMember})
	require.NoError(t, err)
	assert.Equal(t, auth.InvitationPending, inv.Status)
}

func TestInvite_UsesOrganizationLocale(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.SignUp(context.Background(), SignUpInput{
		OrganizationName: "Empresa Uno",
		DefaultLocale:    auth.LocaleES,
		Admin:            AdminInput{Email: "jefa@empresa.test", Password: "password123"},
	})
	require.NoError(t, err)

	f.invite(t, principalOf(res), "nuevo@empresa.test", auth.RoleProjectManager)
	sent := f.mailer.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Te han invitado a Admin Platform", sent[0].Subject)
	// The admin has no name, so the platform signs the invitation.
	assert.Contains(t, sent[0].Text, "Invitado por: Admin Platform")
}

func TestAccept_RedeemsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	admin := principalOf(f.signUpAcme(t))
	inv := f.invite(t, admin, "new@acme.test", auth.RoleProjectManager)

	user, err := accept(f, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, "new@acme.test", user.Email)
	assert.Equal(t, auth.RoleProjectManager, user.Role)
	assert.Equal(t, auth.LocaleEN, user.Locale)
	assert.Equal(t, auth.UserActive, user.Status)
	assert.Equal(t, admin.OrganizationID, user.OrganizationID)

	_, err = accept(f, inv.Token)
	requireAppError(t, err, auth.KindValidation, "Invitation is not valid.")

	stored, err := f.invitations.FindByID(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.InvitationAccepted, stored.Status)
	require.NotNil(t, stored.AcceptedAt)

	_, err = f.svc.SignIn(context.Background(), SignInInput{Email: "new@acme.test", Password: "Welcome123", OrganizationSlug: "acme-inc"})
	require.NoError(t, err)
}

func TestAccept_ConcurrentRedemptionHasSingleWinner(t *testing.T) {
	f := newFixture(t)
	admin := principalOf(f.signUpAcme(t))
	inv := f.invite(t, admin, "new@acme.test", auth.RoleMember)

	var wins, invalid atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := accept(f, inv.Token)
			if err == nil {
				wins.Add(1)
				return
			}
			if auth.KindOf(err) == auth.KindValidation {
				invalid.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(5), invalid.Load())
}

func TestAccept_ExpiredPendingInvitationFails(t *testing.T) {
	f := newFixture(t)
	admin := principalOf(f.signUpAcme(t))
	inv := f.invite(t, admin, "late@acme.test", auth.RoleMember)

	f.clock.Advance(DefaultInvitationTTL + time.Second)

	stored, err := f.invitations.FindByID(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, auth.InvitationPending, stored.Status)

	_, err = accept(f, inv.Token)
	requireAppError(t, err, auth.KindValidation, "Invitation is not valid.")
}

func TestAccept_UnknownOrRevokedToken(t *testing.T) {
	f := newFixture(t)
	admin := principalOf(f.signUpAcme(t))

	_, err := accept(f, "3f0c7a52-0000-4000-8000-000000000000")
	requireAppError(t, err, auth.KindValidation, "Invitation is not valid.")

	inv := f.invite(t, admin, "gone@acme.test", auth.RoleMember)
	require.NoError(t, f.svc.CancelInvitation(context.Background(), admin, inv.ID))
	_, err = accept(f, inv.Token)
	requireAppError(t, err, auth.KindValidation, "Invitation is not valid.")
}

func TestCancelInvitation(t *testing.T) {
	f := newFixture(t)
	admin := principalOf(f.signUpAcme(t))
	ctx := context.Background()

	pending := f.invite(t, admin, "p@acme.test", auth.RoleMember)
	require.NoError(t, f.svc.CancelInvitation(ctx, admin, pending.ID))
	err := f.svc.CancelInvitation(ctx, admin, pending.ID)
	requireAppError(t, err, auth.KindValidation, "Only pending invitations can be canceled.")

	accepted := f.invite(t, admin, "a@acme.test", auth.RoleMember)
	_, err = accept(f, accepted.Token)
	require.NoError(t, err)
	err = f.svc.CancelInvitation(ctx, admin, accepted.ID)
	requireAppError(t, err, auth.KindValidation, "Only pending invitations can be canceled.")

	err = f.svc.CancelInvitation(ctx, admin, "not-an-id")
	requireAppError(t, err, auth.KindNotFound, "Invitation not found for this organization.")
}

func TestCancelInvitation_OtherOrganization(t *testing.T) {
	f := newFixture(t)
	acme := principalOf(f.signUpAcme(t))
	other, err := f.svc.SignUp(context.Background(), SignUpInput{
		OrganizationName: "Globex",
		Admin:            AdminInput{Email: "boss@globex.test", Password: "password123"},
	})
	require.NoError(t, err)

	inv := f.invite(t, acme, "new@acme.test", auth.RoleMember)
	err = f.svc.CancelInvitation(context.Background(), principalOf(other), inv.ID)
	requireAppError(t, err, auth.KindNotFound, "Invitation not found for this organization.")

	stored, err := f.invitations.FindByID(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.InvitationPending, stored.Status)
}

func TestListInvitations(t *testing.T) {
	f := newFixture(t)
	admin := principalOf(f.signUpAcme(t))
	ctx := context.Background()

	empty, err := f.svc.ListInvitations(ctx, admin)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	first := f.invite(t, admin, "first@acme.test", auth.RoleMember)
	f.clock.Advance(DefaultInvitationTTL - time.Hour)
	second := f.invite(t, admin, "second@acme.test", auth.RoleStakeholder)
	f.clock.Advance(2 * time.Hour)
	third := f.invite(t, admin, "third@acme.test", auth.RoleMember)
	require.NoError(t, f.svc.CancelInvitation(ctx, admin, third.ID))

	list, err := f.svc.ListInvitations(ctx, admin)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, third.ID, list[0].ID)
	assert.Equal(t, auth.InvitationRevoked, list[0].Status)
	assert.Equal(t, second.ID, list[1].ID)
	assert.Equal(t, auth.InvitationPending, list[1].Status)
	assert.Equal(t, first.ID, list[2].ID)
	assert.Equal(t, auth.InvitationExpired, list[2].Status)
}
