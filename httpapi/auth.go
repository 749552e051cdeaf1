package httpapi

import (
	"net/http"

	goVPS "github.com/MrEthical07/goVPS"
)

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := a.engine.Register(r.Context(), goVPS.RegisterRequest{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

type loginRequest struct {
	// Identifier is an email or a username. Username is accepted as an alias.
	Identifier    string `json:"identifier"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	TwoFactorCode string `json:"totp_code"`
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Identifier == "" {
		req.Identifier = req.Username
	}
	pair, err := a.engine.Login(r.Context(), goVPS.LoginRequest{
		Identifier:    req.Identifier,
		Password:      req.Password,
		TwoFactorCode: req.TwoFactorCode,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	pair, err := a.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	acct, err := a.engine.GetAccount(r.Context(), p, p.AccountID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	view := newAccountView(acct)
	view.Capabilities = a.engine.Capabilities(p)
	writeJSON(w, http.StatusOK, view)
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.Logout(r.Context(), principal(r)); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := a.engine.ChangePassword(r.Context(), principal(r), req.CurrentPassword, req.NewPassword); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type totpCodeRequest struct {
	Code string `json:"code"`
}

func (a *API) beginTOTP(w http.ResponseWriter, r *http.Request) {
	enrollment, err := a.engine.BeginTOTPEnrollment(r.Context(), principal(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollment)
}

func (a *API) confirmTOTP(w http.ResponseWriter, r *http.Request) {
	var req totpCodeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := a.engine.ConfirmTOTPEnrollment(r.Context(), principal(r), req.Code); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) disableTOTP(w http.ResponseWriter, r *http.Request) {
	var req totpCodeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := a.engine.DisableTOTP(r.Context(), principal(r), req.Code); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
