// Package memory holds process-local implementations of the identity
// stores. They back the test suites and the STORE_DRIVER=memory mode.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oscarmarin21/Admin/internal/auth"
	"github.com/oscarmarin21/Admin/internal/ids"
)

var (
	_ auth.OrganizationStore = (*Organizations)(nil)
	_ auth.UserStore         = (*Users)(nil)
	_ auth.SessionStore      = (*Sessions)(nil)
	_ auth.InvitationStore   = (*Invitations)(nil)
)

// Organizations --------------------------------------------------------------

type Organizations struct {
	mu     sync.RWMutex
	byID   map[string]auth.Organization
	bySlug map[string]string
}

func NewOrganizations() *Organizations {
	return &Organizations{byID: map[string]auth.Organization{}, bySlug: map[string]string{}}
}

func (s *Organizations) Create(_ context.Context, org *auth.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.bySlug[org.Slug]; taken {
		return auth.ErrConflict
	}
	if org.ID == "" {
		org.ID = ids.New()
	}
	stamp(&org.CreatedAt, &org.UpdatedAt)
	s.byID[org.ID] = *org
	s.bySlug[org.Slug] = org.ID
	return nil
}

func (s *Organizations) FindByID(_ context.Context, id string) (*auth.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &org, nil
}

func (s *Organizations) FindBySlug(_ context.Context, slug string) (*auth.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySlug[slug]
	if !ok {
		return nil, auth.ErrNotFound
	}
	org := s.byID[id]
	return &org, nil
}

// Users ----------------------------------------------------------------------

type Users struct {
	mu      sync.RWMutex
	byID    map[string]auth.User
	byEmail map[string]string
}

func NewUsers() *Users {
	return &Users{byID: map[string]auth.User{}, byEmail: map[string]string{}}
}

func emailKey(orgID, email string) string {
	return orgID + "\x00" + strings.ToLower(email)
}

func (s *Users) Create(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := emailKey(u.OrganizationID, u.Email)
	if _, taken := s.byEmail[key]; taken {
		return auth.ErrConflict
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	stamp(&u.CreatedAt, &u.UpdatedAt)
	s.byID[u.ID] = *u
	s.byEmail[key] = u.ID
	return nil
}

func (s *Users) FindByID(_ context.Context, id string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &u, nil
}

func (s *Users) FindByEmail(_ context.Context, orgID, email string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[emailKey(orgID, email)]
	if !ok {
		return nil, auth.ErrNotFound
	}
	u := s.byID[id]
	return &u, nil
}

// SetStatus changes a user's status. Used by operators and tests; the
// identity API never suspends users itself.
func (s *Users) SetStatus(_ context.Context, id string, status auth.UserStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.Status = status
	u.UpdatedAt = time.Now().UTC()
	s.byID[id] = u
	return nil
}

// Delete removes a user.
func (s *Users) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return auth.ErrNotFound
	}
	delete(s.byID, id)
	delete(s.byEmail, emailKey(u.OrganizationID, u.Email))
	return nil
}

// Sessions -------------------------------------------------------------------

type Sessions struct {
	mu     sync.Mutex
	byID   map[string]auth.Session
	byHash map[string]string
}

func NewSessions() *Sessions {
	return &Sessions{byID: map[string]auth.Session{}, byHash: map[string]string{}}
}

func (s *Sessions) Create(_ context.Context, sess *auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byID[sess.ID]; taken {
		return auth.ErrConflict
	}
	if _, taken := s.byHash[sess.RefreshTokenHash]; taken {
		return auth.ErrConflict
	}
	stamp(&sess.CreatedAt, &sess.UpdatedAt)
	s.byID[sess.ID] = *sess
	s.byHash[sess.RefreshTokenHash] = sess.ID
	return nil
}

func (s *Sessions) FindByID(_ context.Context, id string) (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &sess, nil
}

func (s *Sessions) FindByRefreshHash(_ context.Context, hash string) (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byHash[hash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	sess := s.byID[id]
	return &sess, nil
}

func (s *Sessions) DeleteByID(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if !ok {
		return false, nil
	}
	delete(s.byID, id)
	delete(s.byHash, sess.RefreshTokenHash)
	return true, nil
}

func (s *Sessions) DeleteAllForUser(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.byID {
		if sess.UserID != userID {
			continue
		}
		delete(s.byID, id)
		delete(s.byHash, sess.RefreshTokenHash)
		n++
	}
	return n, nil
}

// Len reports the number of stored sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Invitations ----------------------------------------------------------------

type Invitations struct {
	mu      sync.RWMutex
	byID    map[string]auth.Invitation
	byToken map[string]string
}

func NewInvitations() *Invitations {
	return &Invitations{byID: map[string]auth.Invitation{}, byToken: map[string]string{}}
}

func (s *Invitations) Create(_ context.Context, inv *auth.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byToken[inv.Token]; taken {
		return auth.ErrConflict
	}
	if inv.ID == "" {
		inv.ID = ids.New()
	}
	stamp(&inv.CreatedAt, &inv.UpdatedAt)
	s.byID[inv.ID] = *inv
	s.byToken[inv.Token] = inv.ID
	return nil
}

func (s *Invitations) FindByID(_ context.Context, id string) (*auth.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &inv, nil
}

func (s *Invitations) FindByToken(_ context.Context, token string) (*auth.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byToken[token]
	if !ok {
		return nil, auth.ErrNotFound
	}
	inv := s.byID[id]
	return &inv, nil
}

func (s *Invitations) FindPending(_ context.Context, orgID, email string) (*auth.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *auth.Invitation
	for _, inv := range s.byID {
		if inv.OrganizationID != orgID || inv.Status != auth.InvitationPending || !strings.EqualFold(inv.Email, email) {
			continue
		}
		if found == nil || inv.CreatedAt.After(found.CreatedAt) || (inv.CreatedAt.Equal(found.CreatedAt) && inv.ID > found.ID) {
			cp := inv
			found = &cp
		}
	}
	if found == nil {
		return nil, auth.ErrNotFound
	}
	return found, nil
}

func (s *Invitations) ListByOrganization(_ context.Context, orgID string) ([]*auth.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*auth.Invitation
	for _, inv := range s.byID {
		if inv.OrganizationID != orgID {
			continue
		}
		cp := inv
		res = append(res, &cp)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID > res[j].ID
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (s *Invitations) Transition(_ context.Context, id string, from, to auth.InvitationStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.byID[id]
	if !ok {
		return auth.ErrNotFound
	}
	if inv.Status != from {
		return auth.ErrConflict
	}
	inv.Status = to
	inv.UpdatedAt = at
	switch to {
	case auth.InvitationAccepted:
		accepted := at
		inv.AcceptedAt = &accepted
	case auth.InvitationPending:
		inv.AcceptedAt = nil
	}
	s.byID[id] = inv
	return nil
}

func stamp(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = *created
	}
}
