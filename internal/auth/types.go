package auth

import "time"

// Role is the closed set of tenant roles.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleProjectManager Role = "project_manager"
	RoleMember         Role = "member"
	RoleStakeholder    Role = "stakeholder"
)

// Roles lists every known role in display order.
var Roles = []Role{RoleAdmin, RoleProjectManager, RoleMember, RoleStakeholder}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleProjectManager, RoleMember, RoleStakeholder:
		return true
	}
	return false
}

// ParseRole converts raw input into a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// RoleAllowed reports whether role is a member of allowed.
func RoleAllowed(role Role, allowed ...Role) bool {
	for _, a := range allowed {
		if a == role {
			return true
		}
	}
	return false
}

// UserStatus tracks whether a user may sign in.
type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserInvited   UserStatus = "invited"
	UserSuspended UserStatus = "suspended"
)

// InvitationStatus is the stored state of an invitation. StatusExpired is
// never written; it is reported for pending invitations past their expiry.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
	InvitationRevoked  InvitationStatus = "revoked"
)

// Organization is a tenant.
type Organization struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	DefaultLocale Locale    `json:"defaultLocale"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// User belongs to exactly one organization. Email is unique within it.
type User struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organizationId"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	Role           Role       `json:"role"`
	Locale         Locale     `json:"locale"`
	Status         UserStatus `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// DisplayName joins first and last name.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.LastName
	}
}

// Session is the server side record of one live refresh token. Only the
// SHA-256 digest of the token is kept.
type Session struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	RefreshTokenHash string    `json:"refreshTokenHash"`
	UserAgent        string    `json:"userAgent"`
	IPAddress        string    `json:"ipAddress"`
	ExpiresAt        time.Time `json:"expiresAt"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}

// Invitation is a single-use grant to join an organization with a role.
type Invitation struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organizationId"`
	Email          string           `json:"email"`
	Role           Role             `json:"role"`
	Token          string           `json:"-"`
	InvitedBy      string           `json:"invitedBy"`
	Status         InvitationStatus `json:"status"`
	ExpiresAt      time.Time        `json:"expiresAt"`
	AcceptedAt     *time.Time       `json:"acceptedAt,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// Expired reports whether the invitation is past its expiry at now.
func (i *Invitation) Expired(now time.Time) bool {
	return i.ExpiresAt.Before(now)
}

// EffectiveStatus is the status as observed at now.
func (i *Invitation) EffectiveStatus(now time.Time) InvitationStatus {
	if i.Status == InvitationPending && i.Expired(now) {
		return InvitationExpired
	}
	return i.Status
}

// Redeemable reports whether the invitation can still be accepted.
func (i *Invitation) Redeemable(now time.Time) bool {
	return i.EffectiveStatus(now) == InvitationPending
}
