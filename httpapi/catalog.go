package httpapi

import (
	"net/http"

	"github.com/MrEthical07/goVPS/store"
)

type createImageRequest struct {
	Name        string            `json:"name"`
	OSType      string            `json:"os_type"`
	Version     string            `json:"version"`
	Format      store.ImageFormat `json:"format"`
	Description string            `json:"description"`
	IsPublic    bool              `json:"is_public"`
}

func (a *API) createImage(w http.ResponseWriter, r *http.Request) {
	var req createImageRequest
	if !decode(w, r, &req) {
		return
	}
	img, err := a.engine.CreateImage(r.Context(), principal(r), store.Image{
		Name:        req.Name,
		OSType:      req.OSType,
		Version:     req.Version,
		Format:      req.Format,
		Description: req.Description,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newImageView(img))
}

func (a *API) listImages(w http.ResponseWriter, r *http.Request) {
	list, err := a.engine.ListImages(r.Context(), principal(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, newImageView))
}

func (a *API) getImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	img, err := a.engine.GetImage(r.Context(), principal(r), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newImageView(img))
}

func (a *API) deactivateImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.engine.DeactivateImage(r.Context(), principal(r), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createHostRequest struct {
	Name           string           `json:"name"`
	Address        string           `json:"address"`
	TotalCPU       int              `json:"total_cpu"`
	TotalRAMGB     float64          `json:"total_ram_gb"`
	TotalStorageGB int              `json:"total_storage_gb"`
	Status         store.HostStatus `json:"status"`
}

func (a *API) createHost(w http.ResponseWriter, r *http.Request) {
	var req createHostRequest
	if !decode(w, r, &req) {
		return
	}
	h, err := a.engine.CreateHost(r.Context(), principal(r), store.Host{
		Name:           req.Name,
		Address:        req.Address,
		TotalCPU:       req.TotalCPU,
		TotalRAMGB:     req.TotalRAMGB,
		TotalStorageGB: req.TotalStorageGB,
		Status:         req.Status,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newHostView(h))
}

func (a *API) listHosts(w http.ResponseWriter, r *http.Request) {
	list, err := a.engine.ListHosts(r.Context(), principal(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, newHostView))
}

func (a *API) getHost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	h, err := a.engine.GetHost(r.Context(), principal(r), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newHostView(h))
}
