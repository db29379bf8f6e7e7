package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/oscarmarin21/Admin/internal/auth"
)

type errorBody struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func statusFor(kind auth.Kind) int {
	switch kind {
	case auth.KindValidation:
		return http.StatusBadRequest
	case auth.KindUnauthorized:
		return http.StatusUnauthorized
	case auth.KindForbidden:
		return http.StatusForbidden
	case auth.KindNotFound:
		return http.StatusNotFound
	case auth.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err onto the error taxonomy. Anything that is not an
// *auth.Error, and every internal error, is logged and answered with a
// generic 500.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *auth.Error
	if !errors.As(err, &appErr) {
		appErr = auth.Internal(err)
	}
	status := statusFor(appErr.Kind)
	if status == http.StatusInternalServerError {
		a.log.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, status, errorBody{Message: "Internal server error"})
		return
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="`+serviceName+`"`)
	}
	writeJSON(w, status, errorBody{Message: appErr.Message, Details: appErr.Details})
}
