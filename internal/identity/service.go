// Package identity implements tenant sign-up, sign-in, session rotation
// and the invitation workflow on top of the auth primitives and stores.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oscarmarin21/Admin/internal/auth"
	"github.com/oscarmarin21/Admin/internal/ids"
	"github.com/oscarmarin21/Admin/internal/mail"
)

const (
	signUpUserAgent = "signup"
	signUpIPAddress = "0.0.0.0"
)

var (
	errOrganizationExists   = auth.Conflict("Organization already exists. Choose a different name.")
	errOrganizationNotFound = auth.NotFound("Organization not found.")
	errInvalidCredentials   = auth.Unauthorized("Invalid credentials.")
	errInvalidRefreshToken  = auth.Unauthorized("Invalid or expired token.")
	errSessionExpired       = auth.Unauthorized("Session expired.")
	errSessionUserMissing   = auth.Unauthorized("User not found.")
	errSessionOrgMissing    = auth.Unauthorized("Organization not found.")
	errInvalidOrgName       = auth.Validation("Organization name must contain letters or digits.")
)

// PasswordHasher is the credential hashing dependency.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, digest, password string) (bool, error)
	VerifyMissing(ctx context.Context, password string) error
}

// TokenIssuer mints and verifies token pairs.
type TokenIssuer interface {
	IssuePair(p auth.Principal) (auth.TokenPair, error)
	VerifyRefresh(token string) (*auth.Claims, error)
}

// Deps are the collaborators of Service. Mailer may be nil, in which case
// invitation emails are skipped.
type Deps struct {
	Organizations auth.OrganizationStore
	Users         auth.UserStore
	Sessions      auth.SessionStore
	Invitations   auth.InvitationStore
	Hasher        PasswordHasher
	Tokens        TokenIssuer
	Mailer        mail.Sender
}

func (d Deps) validate() error {
	switch {
	case d.Organizations == nil:
		return errors.New("identity: organization store is required")
	case d.Users == nil:
		return errors.New("identity: user store is required")
	case d.Sessions == nil:
		return errors.New("identity: session store is required")
	case d.Invitations == nil:
		return errors.New("identity: invitation store is required")
	case d.Hasher == nil:
		return errors.New("identity: password hasher is required")
	case d.Tokens == nil:
		return errors.New("identity: token issuer is required")
	}
	return nil
}

type settings struct {
	now           func() time.Time
	log           *zap.Logger
	appBaseURL    string
	invitationTTL time.Duration
}

// Option configures a Service.
type Option func(*settings)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(s *settings) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *settings) {
		if log != nil {
			s.log = log
		}
	}
}

// WithAppBaseURL sets the public frontend URL used in invitation links.
func WithAppBaseURL(url string) Option {
	return func(s *settings) {
		s.appBaseURL = strings.TrimRight(strings.TrimSpace(url), "/")
	}
}

// WithInvitationTTL overrides how long invitations stay redeemable.
func WithInvitationTTL(ttl time.Duration) Option {
	return func(s *settings) {
		if ttl > 0 {
			s.invitationTTL = ttl
		}
	}
}

// Service is the identity facade used by the transport layer. It holds no
// mutable state of its own.
type Service struct {
	orgs     auth.OrganizationStore
	users    auth.UserStore
	sessions auth.SessionStore
	hasher   PasswordHasher
	tokens   TokenIssuer
	invites  *Invitations
	now      func() time.Time
	log      *zap.Logger
}

// New wires a Service from its dependencies.
func New(deps Deps, opts ...Option) (*Service, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg := settings{
		now:           time.Now,
		log:           zap.NewNop(),
		appBaseURL:    "http://localhost:5173",
		invitationTTL: DefaultInvitationTTL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Service{
		orgs:     deps.Organizations,
		users:    deps.Users,
		sessions: deps.Sessions,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		invites:  newInvitations(deps, cfg),
		now:      cfg.now,
		log:      cfg.log,
	}, nil
}

// AuthResult is returned by sign-up, sign-in and refresh.
type AuthResult struct {
	Organization *auth.Organization `json:"organization"`
	User         *auth.User         `json:"user"`
	Tokens       auth.TokenPair     `json:"tokens"`
}

// AdminInput describes the first administrator of a new organization.
type AdminInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// SignUpInput creates an organization together with its administrator.
type SignUpInput struct {
	OrganizationName string
	DefaultLocale    auth.Locale
	Admin            AdminInput
}

// SignInInput identifies a user inside an organization. OrganizationSlug
// may be the display name; it is normalized before lookup.
type SignInInput struct {
	Email            string
	Password         string
	OrganizationSlug string
	UserAgent        string
	IPAddress        string
}

// ClientInfo describes the caller of a refresh.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

// SignUp registers a new organization and its admin, and opens a session.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.OrganizationName)
	slug := auth.Slugify(name)
	if slug == "" {
		return nil, errInvalidOrgName
	}
	if _, err := s.orgs.FindBySlug(ctx, slug); err == nil {
		return nil, errOrganizationExists
	} else if !errors.Is(err, auth.ErrNotFound) {
		return nil, auth.Internal(fmt.Errorf("find organization by slug: %w", err))
	}

	digest, err := s.hasher.Hash(ctx, in.Admin.Password)
	if err != nil {
		return nil, auth.Internal(fmt.Errorf("hash password: %w", err))
	}

	locale := in.DefaultLocale
	if !locale.Valid() {
		locale = auth.LocaleEN
	}
	now := s.now().UTC()
	org := &auth.Organization{
		ID:            ids.New(),
		Name:          name,
		Slug:          slug,
		DefaultLocale: locale,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.orgs.Create(ctx, org); err != nil {
		if errors.Is(err, auth.ErrConflict) {
			return nil, errOrganizationExists
		}
		return nil, auth.Internal(fmt.Errorf("create organization: %w", err))
	}

	user := &auth.User{
		ID:             ids.New(),
		OrganizationID: org.ID,
		Email:          normalizeEmail(in.Admin.Email),
		PasswordHash:   digest,
		FirstName:      strings.TrimSpace(in.Admin.FirstName),
		LastName:       strings.TrimSpace(in.Admin.LastName),
		Role:           auth.RoleAdmin,
		Locale:         org.DefaultLocale,
		Status:         auth.UserActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, auth.Internal(fmt.Errorf("create admin user: %w", err))
	}

	tokens, err := s.openSession(ctx, user, signUpUserAgent, signUpIPAddress)
	if err != nil {
		return nil, err
	}
	s.log.Info("organization created",
		zap.String("organization_id", org.ID),
		zap.String("slug", org.Slug),
		zap.String("user_id", user.ID),
	)
	return &AuthResult{Organization: org, User: user, Tokens: tokens}, nil
}

// SignIn verifies credentials and opens a session. Unknown users,
// suspended users and wrong passwords fail identically.
func (s *Service) SignIn(ctx context.Context, in SignInInput) (*AuthResult, error) {
	org, err := s.orgs.FindBySlug(ctx, auth.Slugify(in.OrganizationSlug))
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, errOrganizationNotFound
		}
		return nil, auth.Internal(fmt.Errorf("find organization by slug: %w", err))
	}

	user, err := s.users.FindByEmail(ctx, org.ID, normalizeEmail(in.Email))
	if err != nil {
		if !errors.Is(err, auth.ErrNotFound) {
			return nil, auth.Internal(fmt.Errorf("find user by email: %w", err))
		}
		// Spend one hash so a miss costs the same as a wrong password.
		if err := s.hasher.VerifyMissing(ctx, in.Password); err != nil {
			return nil, auth.Internal(fmt.Errorf("verify password: %w", err))
		}
		return nil, errInvalidCredentials
	}

	ok, err := s.hasher.Verify(ctx, user.PasswordHash, in.Password)
	if err != nil {
		return nil, auth.Internal(fmt.Errorf("verify password: %w", err))
	}
	if !ok || user.Status == auth.UserSuspended {
		return nil, errInvalidCredentials
	}

	tokens, err := s.openSession(ctx, user, in.UserAgent, in.IPAddress)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Organization: org, User: user, Tokens: tokens}, nil
}

// SignOut removes the session. An unknown session is not an error.
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if _, err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		return auth.Internal(fmt.Errorf("delete session: %w", err))
	}
	return nil
}

// SignOutAll removes every session of the user and reports how many were
// removed.
func (s *Service) SignOutAll(ctx context.Context, userID string) (int, error) {
	n, err := s.sessions.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, auth.Internal(fmt.Errorf("delete user sessions: %w", err))
	}
	return n, nil
}

// RefreshSession rotates a refresh token. The old session is removed with
// a compare-and-delete; when two requests race on the same token only the
// one that removed the session gets a new pair.
func (s *Service) RefreshSession(ctx context.Context, refreshToken string, client ClientInfo) (*AuthResult, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, errInvalidRefreshToken
	}

	sess, err := s.sessions.FindByRefreshHash(ctx, auth.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, errSessionExpired
		}
		return nil, auth.Internal(fmt.Errorf("find session: %w", err))
	}
	if sess.ID != claims.SessionID || sess.UserID != claims.Subject {
		return nil, errSessionExpired
	}
	if sess.Expired(s.now()) {
		if _, err := s.sessions.DeleteByID(ctx, sess.ID); err != nil {
			s.log.Warn("drop expired session", zap.String("session_id", sess.ID), zap.Error(err))
		}
		return nil, errSessionExpired
	}

	removed, err := s.sessions.DeleteByID(ctx, sess.ID)
	if err != nil {
		return nil, auth.Internal(fmt.Errorf("delete session: %w", err))
	}
	if !removed {
		return nil, errSessionExpired
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, errSessionUserMissing
		}
		return nil, auth.Internal(fmt.Errorf("find user: %w", err))
	}
	if user.Status == auth.UserSuspended {
		return nil, errInvalidCredentials
	}
	org, err := s.orgs.FindByID(ctx, user.OrganizationID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, errSessionOrgMissing
		}
		return nil, auth.Internal(fmt.Errorf("find organization: %w", err))
	}

	tokens, err := s.openSession(ctx, user, client.UserAgent, client.IPAddress)
	if err != nil {
		return nil, err
	}
	s.log.Debug("session rotated",
		zap.String("user_id", user.ID),
		zap.String("old_session_id", sess.ID),
		zap.String("session_id", tokens.SessionID),
	)
	return &AuthResult{Organization: org, User: user, Tokens: tokens}, nil
}

// InviteUser creates an invitation in the caller's organization.
func (s *Service) InviteUser(ctx context.Context, actor auth.Principal, in InviteInput) (*auth.Invitation, error) {
	return s.invites.Invite(ctx, actor.OrganizationID, in.Email, in.Role, actor.UserID)
}

// ListInvitations lists the caller's organization invitations.
func (s *Service) ListInvitations(ctx context.Context, actor auth.Principal) ([]*auth.Invitation, error) {
	return s.invites.List(ctx, actor.OrganizationID)
}

// CancelInvitation revokes a pending invitation of the caller's organization.
func (s *Service) CancelInvitation(ctx context.Context, actor auth.Principal, invitationID string) error {
	return s.invites.Cancel(ctx, actor.OrganizationID, invitationID)
}

// AcceptInvitation redeems an invitation token and creates the user.
func (s *Service) AcceptInvitation(ctx context.Context, in AcceptInput) (*auth.User, error) {
	return s.invites.Accept(ctx, in)
}

func (s *Service) openSession(ctx context.Context, user *auth.User, userAgent, ip string) (auth.TokenPair, error) {
	pair, err := s.tokens.IssuePair(auth.Principal{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Role:           user.Role,
		Locale:         user.Locale,
	})
	if err != nil {
		return auth.TokenPair{}, auth.Internal(fmt.Errorf("issue tokens: %w", err))
	}
	now := s.now().UTC()
	sess := &auth.Session{
		ID:               pair.SessionID,
		UserID:           user.ID,
		RefreshTokenHash: auth.HashToken(pair.RefreshToken),
		UserAgent:        userAgent,
		IPAddress:        ip,
		ExpiresAt:        pair.RefreshTokenExpiresAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return auth.TokenPair{}, auth.Internal(fmt.Errorf("create session: %w", err))
	}
	return pair, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
