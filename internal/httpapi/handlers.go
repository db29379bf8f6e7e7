package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/oscarmarin21/Admin/internal/auth"
	"github.com/oscarmarin21/Admin/internal/identity"
	"github.com/oscarmarin21/Admin/internal/obs"
)

const serviceName = "admin-platform"

// Checker is a dependency that can report whether it is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// ReadyProbe checks every named dependency. An empty probe is always ready.
type ReadyProbe struct {
	Checks map[string]Checker
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	names := make([]string, 0, len(rp.Checks))
	for name := range rp.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := rp.Checks[name].Check(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// IdentityService is the subset of identity.Service the handlers use.
type IdentityService interface {
	SignUp(ctx context.Context, in identity.SignUpInput) (*identity.AuthResult, error)
	SignIn(ctx context.Context, in identity.SignInInput) (*identity.AuthResult, error)
	SignOut(ctx context.Context, sessionID string) error
	SignOutAll(ctx context.Context, userID string) (int, error)
	RefreshSession(ctx context.Context, refreshToken string, client identity.ClientInfo) (*identity.AuthResult, error)
	InviteUser(ctx context.Context, actor auth.Principal, in identity.InviteInput) (*auth.Invitation, error)
	ListInvitations(ctx context.Context, actor auth.Principal) ([]*auth.Invitation, error)
	CancelInvitation(ctx context.Context, actor auth.Principal, invitationID string) error
	AcceptInvitation(ctx context.Context, in identity.AcceptInput) (*auth.User, error)
}

// Options configures the HTTP layer.
type Options struct {
	Identity     IdentityService
	Tokens       auth.AccessVerifier
	Ready        ReadyProbe
	Logger       *zap.Logger
	Version      string
	AllowOrigin  string
	MaxBodyBytes int64
}

// API is the HTTP transport.
type API struct {
	router     chi.Router
	identity   IdentityService
	tokens     auth.AccessVerifier
	readyProbe ReadyProbe
	log        *zap.Logger
	version    string
}

func New(opts Options) *API {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	a := &API{
		router:     chi.NewRouter(),
		identity:   opts.Identity,
		tokens:     opts.Tokens,
		readyProbe: opts.Ready,
		log:        log,
		version:    opts.Version,
	}

	r := a.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingJSON(log))
	r.Use(middleware.Recoverer)
	r.Use(obs.Instrument)
	r.Use(SecurityHeaders)
	r.Use(CORS(opts.AllowOrigin))
	r.Use(LanguageResolver)
	r.Use(MaxBodyBytes(maxBody))

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Handle("/metrics", obs.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", a.Health)
		r.Route("/auth", a.authRoutes)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Message: "Resource not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Message: "Method not allowed"})
	})
	return a
}

func (a *API) authRoutes(r chi.Router) {
	r.Post("/sign-up", a.signUp)
	r.Post("/sign-in", a.signIn)
	r.Post("/refresh", a.refresh)
	r.Post("/invitations/accept", a.acceptInvitation)

	r.Group(func(r chi.Router) {
		r.Use(RequireAccess(a.tokens))
		r.Post("/sign-out", a.signOut)
		r.Post("/sign-out/all", a.signOutAll)

		r.Group(func(r chi.Router) {
			r.Use(RequireRoles(auth.RoleAdmin, auth.RoleProjectManager))
			r.Post("/invitations", a.createInvitation)
			r.Get("/invitations", a.listInvitations)
			r.Delete("/invitations/{id}", a.cancelInvitation)
		})
	})
}

// Handler returns the root handler.
func (a *API) Handler() http.Handler {
	return a.router
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		obs.SetReady(false)
		a.log.Warn("readiness check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// Health is the public liveness endpoint under /api.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
