package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	goVPS "github.com/MrEthical07/goVPS"
)

// StatusFor maps an engine error to its HTTP status. Disabled accounts read
// as 401 like any other credential failure unless revealDisabled is set.
func StatusFor(err error, revealDisabled bool) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, goVPS.ErrThrottled):
		return http.StatusTooManyRequests
	case errors.Is(err, goVPS.ErrThrottleUnavailable), errors.Is(err, goVPS.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, goVPS.ErrInvalidCredentials),
		errors.Is(err, goVPS.ErrInvalidTwoFactor),
		errors.Is(err, goVPS.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, goVPS.ErrAccountDisabled):
		if revealDisabled {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case errors.Is(err, goVPS.ErrTwoFactorRequired):
		return http.StatusBadRequest
	case errors.Is(err, goVPS.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, goVPS.ErrNotFound), errors.Is(err, goVPS.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, goVPS.ErrConflict),
		errors.Is(err, goVPS.ErrEmailTaken),
		errors.Is(err, goVPS.ErrUsernameTaken),
		errors.Is(err, goVPS.ErrTwoFactorNotEnrolled):
		return http.StatusConflict
	case errors.Is(err, goVPS.ErrValidation):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error string `json:"error"`
	// Status is the observed VPS status a lifecycle conflict was decided on.
	Status string `json:"status,omitempty"`
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	reveal := a.engine.Config().Security.RevealDisabledAccount
	status := StatusFor(err, reveal)
	body := errorBody{Error: a.engine.ExternalMessage(err)}

	var tc *goVPS.TransitionConflict
	if errors.As(err, &tc) {
		body.Status = string(tc.Observed)
	}
	if status >= http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
