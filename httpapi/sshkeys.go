package httpapi

import (
	"net/http"

	goVPS "github.com/MrEthical07/goVPS"
)

type createSSHKeyRequest struct {
	Name      string `json:"name"`
	PublicKey string `json:"public_key"`
}

// listSSHKeys serves the caller's keys; staff may pass ?owner_id=.
func (a *API) listSSHKeys(w http.ResponseWriter, r *http.Request) {
	list, err := a.engine.ListSSHKeys(r.Context(), principal(r), int64(queryInt(r, "owner_id")))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, newSSHKeyView))
}

func (a *API) createSSHKey(w http.ResponseWriter, r *http.Request) {
	var req createSSHKeyRequest
	if !decode(w, r, &req) {
		return
	}
	k, err := a.engine.CreateSSHKey(r.Context(), principal(r), goVPS.CreateSSHKeyRequest{
		Name:      req.Name,
		PublicKey: req.PublicKey,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSSHKeyView(k))
}

func (a *API) deleteSSHKey(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.engine.DeleteSSHKey(r.Context(), principal(r), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
