package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/oscarmarin21/Admin/internal/auth"
	"github.com/oscarmarin21/Admin/internal/identity"
	"github.com/oscarmarin21/Admin/internal/obs"
)

type adminRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
	FirstName string `json:"firstName" validate:"required,min=2,max=80"`
	LastName  string `json:"lastName" validate:"required,min=2,max=80"`
}

type signUpRequest struct {
	OrganizationName string       `json:"organizationName" validate:"required,min=3,max=120"`
	DefaultLocale    string       `json:"defaultLocale" validate:"omitempty,oneof=en es"`
	Admin            adminRequest `json:"admin"`
}

type signInRequest struct {
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=8,max=128"`
	OrganizationSlug string `json:"organizationSlug" validate:"required,min=1,max=120"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required,min=10"`
}

type inviteRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Role  string `json:"role" validate:"required,oneof=admin project_manager member stakeholder"`
}

type acceptInvitationRequest struct {
	Token     string `json:"token" validate:"required,uuid"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
	FirstName string `json:"firstName" validate:"required,min=2,max=80"`
	LastName  string `json:"lastName" validate:"required,min=2,max=80"`
}

func (a *API) signUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !a.bind(w, r, &req) {
		return
	}
	locale := auth.Locale(req.DefaultLocale)
	if req.DefaultLocale == "" {
		locale = auth.LocaleFromContext(r.Context())
	}
	res, err := a.identity.SignUp(r.Context(), identity.SignUpInput{
		OrganizationName: req.OrganizationName,
		DefaultLocale:    locale,
		Admin: identity.AdminInput{
			Email:     req.Admin.Email,
			Password:  req.Admin.Password,
			FirstName: req.Admin.FirstName,
			LastName:  req.Admin.LastName,
		},
	})
	obs.RecordEvent("sign_up", err)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (a *API) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !a.bind(w, r, &req) {
		return
	}
	client := clientInfo(r)
	res, err := a.identity.SignIn(r.Context(), identity.SignInInput{
		Email:            req.Email,
		Password:         req.Password,
		OrganizationSlug: req.OrganizationSlug,
		UserAgent:        client.UserAgent,
		IPAddress:        client.IPAddress,
	})
	obs.RecordEvent("sign_in", err)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !a.bind(w, r, &req) {
		return
	}
	res, err := a.identity.RefreshSession(r.Context(), req.RefreshToken, clientInfo(r))
	obs.RecordEvent("refresh", err)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) signOut(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.Header.Get(sessionIDHeader))
	if sessionID == "" {
		a.writeError(w, r, auth.Validation("Missing session identifier."))
		return
	}
	err := a.identity.SignOut(r.Context(), sessionID)
	obs.RecordEvent("sign_out", err)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) signOutAll(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	n, err := a.identity.SignOutAll(r.Context(), principal.UserID)
	obs.RecordEvent("sign_out_all", err)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"sessionsRevoked": n})
}

func (a *API) createInvitation(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if !a.bind(w, r, &req) {
		return
	}
	principal, _ := auth.PrincipalFromContext(r.Context())
	inv, err := a.identity.InviteUser(r.Context(), principal, identity.InviteInput{
		Email: req.Email,
		Role:  auth.Role(req.Role),
	})
	obs.RecordEvent("invite", err)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (a *API) listInvitations(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	invs, err := a.identity.ListInvitations(r.Context(), principal)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invs)
}

func (a *API) cancelInvitation(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	err := a.identity.CancelInvitation(r.Context(), principal, chi.URLParam(r, "id"))
	obs.RecordEvent("cancel_invitation", err)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	var req acceptInvitationRequest
	if !a.bind(w, r, &req) {
		return
	}
	user, err := a.identity.AcceptInvitation(r.Context(), identity.AcceptInput{
		Token:     req.Token,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	obs.RecordEvent("accept_invitation", err)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func clientInfo(r *http.Request) identity.ClientInfo {
	info := identity.ClientInfo{UserAgent: r.UserAgent(), IPAddress: clientIP(r)}
	if info.UserAgent == "" {
		info.UserAgent = "unknown"
	}
	if info.IPAddress == "" {
		info.IPAddress = "0.0.0.0"
	}
	return info
}
