package httpapi

import (
	"context"
	"net/http"
	"time"

	goVPS "github.com/MrEthical07/goVPS"
	"github.com/MrEthical07/goVPS/lifecycle"
	"github.com/MrEthical07/goVPS/store"
)

type createVPSRequest struct {
	Name             string                 `json:"name"`
	CPUCores         int                    `json:"cpu_cores"`
	RAMGB            float64                `json:"ram_gb"`
	StorageGB        int                    `json:"storage_gb"`
	ImageID          int64                  `json:"image_id"`
	NetworkType      store.NetworkType      `json:"network_type"`
	OwnerID          int64                  `json:"owner_id"`
	HostID           *int64                 `json:"host_id"`
	ExpiresAt        *time.Time             `json:"expires_at"`
	ExpirationAction store.ExpirationAction `json:"expiration_action"`
	AutoBackups      bool                   `json:"auto_backups"`
	StartOnCreate    bool                   `json:"start_on_create"`
	CloudInit        string                 `json:"cloud_init"`
}

func (a *API) createVPS(w http.ResponseWriter, r *http.Request) {
	var req createVPSRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := a.engine.CreateVPS(r.Context(), principal(r), goVPS.CreateVPSRequest(req))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newVPSView(v))
}

func (a *API) listVPS(w http.ResponseWriter, r *http.Request) {
	opts := goVPS.VPSListOptions{
		Status: lifecycle.Status(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
	if owner := int64(queryInt(r, "owner_id")); owner > 0 {
		opts.OwnerID = &owner
	}
	list, err := a.engine.ListVPS(r.Context(), principal(r), opts)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, newVPSView))
}

func (a *API) getVPS(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := a.engine.GetVPS(r.Context(), principal(r), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newVPSView(v))
}

type updateVPSRequest struct {
	Name             *string                 `json:"name"`
	CPUCores         *int                    `json:"cpu_cores"`
	RAMGB            *float64                `json:"ram_gb"`
	StorageGB        *int                    `json:"storage_gb"`
	AutoBackups      *bool                   `json:"auto_backups"`
	ExpiresAt        *time.Time              `json:"expires_at"`
	ExpirationAction *store.ExpirationAction `json:"expiration_action"`
}

func (a *API) updateVPS(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateVPSRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := a.engine.UpdateVPS(r.Context(), principal(r), id, store.VPSPatch(req))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newVPSView(v))
}

type vpsCommand func(ctx context.Context, p goVPS.Principal, id int64) (*store.VPS, error)

// command answers 202: the status moved, the hypervisor has not confirmed yet.
func (a *API) command(fn vpsCommand) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		v, err := fn(r.Context(), principal(r), id)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, newVPSView(v))
	}
}

func (a *API) startVPS(w http.ResponseWriter, r *http.Request)  { a.command(a.engine.StartVPS)(w, r) }
func (a *API) stopVPS(w http.ResponseWriter, r *http.Request)   { a.command(a.engine.StopVPS)(w, r) }
func (a *API) rebootVPS(w http.ResponseWriter, r *http.Request) { a.command(a.engine.RebootVPS)(w, r) }
func (a *API) deleteVPS(w http.ResponseWriter, r *http.Request) { a.command(a.engine.DeleteVPS)(w, r) }

type observationRequest struct {
	Command  lifecycle.Command `json:"command"`
	Observed lifecycle.Status  `json:"observed"`
	Error    string            `json:"error"`
}

// observeVPS is the callback a hypervisor agent uses to confirm a command
// whose dispatch timed out.
func (a *API) observeVPS(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req observationRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := a.engine.ConfirmVPSObservation(r.Context(), principal(r), id, req.Command, req.Observed, req.Error)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newVPSView(v))
}

func (a *API) remoteShell(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	grant, err := a.engine.AuthorizeRemoteShell(r.Context(), principal(r), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}
