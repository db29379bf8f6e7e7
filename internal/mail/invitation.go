package mail

import (
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/oscarmarin21/Admin/internal/auth"
)

// Invitation holds what the invitation email needs to render.
type Invitation struct {
	To               string
	OrganizationName string
	InvitedBy        string
	Role             auth.Role
	AcceptURL        string
	ExpiresAt        time.Time
	Locale           auth.Locale
}

type invitationCopy struct {
	Subject     string
	Greeting    string
	IntroPrefix string
	IntroSuffix string
	TextIntro   string
	InvitedBy   string
	Role        string
	CTA         string
	Expires     string
	Footer      string
}

var invitationCopies = map[auth.Locale]invitationCopy{
	auth.LocaleEN: {
		Subject:     "You have been invited to Admin Platform",
		Greeting:    "Hello",
		IntroPrefix: "You have been invited to join the",
		IntroSuffix: "organization in Admin Platform.",
		TextIntro:   "has invited you to Admin Platform.",
		InvitedBy:   "Invited by",
		Role:        "Role assigned",
		CTA:         "Join now",
		Expires:     "This link expires on",
		Footer:      "If you were not expecting this invitation, you can safely ignore this message.",
	},
	auth.LocaleES: {
		Subject:     "Te han invitado a Admin Platform",
		Greeting:    "Hola",
		IntroPrefix: "Has sido invitado a unirte a la organización",
		IntroSuffix: "en Admin Platform.",
		TextIntro:   "te ha invitado a Admin Platform.",
		InvitedBy:   "Invitado por",
		Role:        "Rol asignado",
		CTA:         "Unirme ahora",
		Expires:     "Este enlace caduca el",
		Footer:      "Si no estabas esperando esta invitación, puedes ignorar este mensaje de forma segura.",
	},
}

var roleLabels = map[auth.Locale]map[auth.Role]string{
	auth.LocaleEN: {
		auth.RoleAdmin:          "Admin",
		auth.RoleProjectManager: "Project manager",
		auth.RoleMember:         "Member",
		auth.RoleStakeholder:    "Stakeholder",
	},
	auth.LocaleES: {
		auth.RoleAdmin:          "Administrador",
		auth.RoleProjectManager: "Project manager",
		auth.RoleMember:         "Miembro",
		auth.RoleStakeholder:    "Interesado",
	},
}

var monthAbbrev = map[auth.Locale][12]string{
	auth.LocaleEN: {"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
	auth.LocaleES: {"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sept", "oct", "nov", "dic"},
}

var invitationHTML = htmltemplate.Must(htmltemplate.New("invitation.html").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <p>{{.Copy.Greeting}},</p>
  <p>{{.Copy.IntroPrefix}} <strong>{{.Organization}}</strong> {{.Copy.IntroSuffix}}</p>
  <ul>
    <li>{{.Copy.InvitedBy}}: {{.InvitedBy}}</li>
    <li>{{.Copy.Role}}: {{.RoleLabel}}</li>
  </ul>
  <p><a href="{{.AcceptURL}}" style="background:#2563eb;color:#fff;padding:10px 16px;border-radius:6px;text-decoration:none;">{{.Copy.CTA}}</a></p>
  <p>{{.Copy.Expires}} {{.ExpiresOn}}.</p>
  <p style="font-size:12px;color:#6b7280;">{{.Copy.Footer}}</p>
</body>
</html>
`))

var invitationText = texttemplate.Must(texttemplate.New("invitation.txt").Parse(`{{.Copy.Greeting}},

{{.Organization}} {{.Copy.TextIntro}}

{{.Copy.InvitedBy}}: {{.InvitedBy}}
{{.Copy.Role}}: {{.RoleLabel}}

{{.Copy.CTA}}: {{.AcceptURL}}

{{.Copy.Expires}} {{.ExpiresOn}}.

{{.Copy.Footer}}
`))

type invitationView struct {
	Lang         string
	Copy         invitationCopy
	Organization string
	InvitedBy    string
	RoleLabel    string
	AcceptURL    string
	ExpiresOn    string
}

// RenderInvitation builds the localized invitation message. Unknown locales
// fall back to English.
func RenderInvitation(inv Invitation) (Message, error) {
	locale := inv.Locale
	if !locale.Valid() {
		locale = auth.LocaleEN
	}
	view := invitationView{
		Lang:         string(locale),
		Copy:         invitationCopies[locale],
		Organization: inv.OrganizationName,
		InvitedBy:    inv.InvitedBy,
		RoleLabel:    RoleLabel(inv.Role, locale),
		AcceptURL:    inv.AcceptURL,
		ExpiresOn:    FormatDate(inv.ExpiresAt, locale),
	}

	var html, text strings.Builder
	if err := invitationHTML.Execute(&html, view); err != nil {
		return Message{}, err
	}
	if err := invitationText.Execute(&text, view); err != nil {
		return Message{}, err
	}
	return Message{
		To:      inv.To,
		Subject: view.Copy.Subject,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

// RoleLabel returns the display name of role in locale.
func RoleLabel(role auth.Role, locale auth.Locale) string {
	labels, ok := roleLabels[locale]
	if !ok {
		labels = roleLabels[auth.LocaleEN]
	}
	if label, ok := labels[role]; ok {
		return label
	}
	return string(role)
}

// FormatDate renders t in UTC as a medium date with a short time.
func FormatDate(t time.Time, locale auth.Locale) string {
	t = t.UTC()
	months, ok := monthAbbrev[locale]
	if !ok {
		months = monthAbbrev[auth.LocaleEN]
		locale = auth.LocaleEN
	}
	month := months[t.Month()-1]
	if locale == auth.LocaleES {
		return t.Format("2") + " " + month + " " + t.Format("2006, 15:04") + " UTC"
	}
	return month + " " + t.Format("2, 2006, 3:04 PM") + " UTC"
}
