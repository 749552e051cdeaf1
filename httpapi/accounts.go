package httpapi

import (
	"net/http"

	goVPS "github.com/MrEthical07/goVPS"
	"github.com/MrEthical07/goVPS/permission"
	"github.com/MrEthical07/goVPS/store"
)

type createAccountRequest struct {
	Email    string          `json:"email"`
	Username string          `json:"username"`
	Password string          `json:"password"`
	FullName string          `json:"full_name"`
	Role     permission.Role `json:"role"`
	Disabled bool            `json:"disabled"`
}

func (a *API) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !decode(w, r, &req) {
		return
	}
	acct, err := a.engine.CreateAccount(r.Context(), principal(r), goVPS.CreateAccountRequest(req))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAccountView(acct))
}

func (a *API) listAccounts(w http.ResponseWriter, r *http.Request) {
	filter := store.AccountFilter{
		Role:   permission.Role(r.URL.Query().Get("role")),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
	switch r.URL.Query().Get("active") {
	case "true":
		active := true
		filter.Active = &active
	case "false":
		active := false
		filter.Active = &active
	}
	list, err := a.engine.ListAccounts(r.Context(), principal(r), filter)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, newAccountView))
}

func (a *API) getAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	acct, err := a.engine.GetAccount(r.Context(), principal(r), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(acct))
}

type updateAccountRequest struct {
	Email    *string          `json:"email"`
	Username *string          `json:"username"`
	FullName *string          `json:"full_name"`
	Role     *permission.Role `json:"role"`
	Active   *bool            `json:"active"`
}

func (a *API) updateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateAccountRequest
	if !decode(w, r, &req) {
		return
	}
	acct, err := a.engine.UpdateAccount(r.Context(), principal(r), id, goVPS.AccountUpdate(req))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(acct))
}

func (a *API) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.engine.DeleteAccount(r.Context(), principal(r), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
