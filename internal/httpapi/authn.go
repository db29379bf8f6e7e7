package httpapi

import (
	"errors"
	"net/http"

	"github.com/oscarmarin21/Admin/internal/auth"
)

const (
	authHeader      = "Authorization"
	sessionIDHeader = "X-Session-Id"
)

const (
	msgMissingAuthorization = "Missing authorization header."
	msgInvalidAuthorization = "Invalid authorization header."
	msgInvalidToken         = "Invalid or expired token."
	msgForbidden            = "You do not have permission to perform this action."
)

// RequireAccess verifies the bearer access token and stores the principal
// in the request context. It does not touch any store.
func RequireAccess(v auth.AccessVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := auth.VerifyBearer(v, r.Header.Get(authHeader))
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrMissingAuthorization):
					unauthorized(w, msgMissingAuthorization)
				case errors.Is(err, auth.ErrMalformedAuthorization):
					unauthorized(w, msgInvalidAuthorization)
				default:
					unauthorized(w, msgInvalidToken)
				}
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRoles lets the request through only when the principal's role is
// one of roles. It must run after RequireAccess.
func RequireRoles(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				unauthorized(w, msgMissingAuthorization)
				return
			}
			if !auth.RoleAllowed(principal.Role, roles...) {
				w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
				writeJSON(w, http.StatusForbidden, errorBody{Message: msgForbidden})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="`+serviceName+`"`)
	writeJSON(w, http.StatusUnauthorized, errorBody{Message: msg})
}
