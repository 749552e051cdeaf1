// Package httpapi is the JSON-over-HTTP boundary of the panel. Handlers
// decode requests, call goVPS.Engine and map its errors to status codes; no
// business rule lives here.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	goVPS "github.com/MrEthical07/goVPS"
	"github.com/MrEthical07/goVPS/middleware"
	"github.com/MrEthical07/goVPS/permission"
)

const maxBodyBytes = 1 << 20

// Options configures the router.
type Options struct {
	Logger *slog.Logger
	// TrustProxy makes client IP extraction honor X-Forwarded-For.
	TrustProxy bool
	// Metrics, when set, is served at GET /metrics without authentication.
	Metrics http.Handler
}

// API serves the panel routes.
type API struct {
	engine *goVPS.Engine
	logger *slog.Logger
}

// New builds the full handler chain: recovery, client IP, request logging
// and the route mux.
func New(engine *goVPS.Engine, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &API{engine: engine, logger: logger}

	mux := http.NewServeMux()
	a.routes(mux)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.ClientIP(opts.TrustProxy)(h)
	h = middleware.Recover(logger)(h)
	return h
}

func (a *API) routes(mux *http.ServeMux) {
	auth := middleware.Guard(a.engine)
	protect := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, auth(fn))
	}

	mux.HandleFunc("GET /healthz", a.health)

	mux.HandleFunc("POST /api/v1/auth/register", a.register)
	mux.HandleFunc("POST /api/v1/auth/login", a.login)
	mux.HandleFunc("POST /api/v1/auth/refresh", a.refresh)
	protect("GET /api/v1/auth/me", a.me)
	protect("POST /api/v1/auth/logout", a.logout)
	protect("POST /api/v1/auth/password", a.changePassword)
	protect("POST /api/v1/auth/totp/enroll", a.beginTOTP)
	protect("POST /api/v1/auth/totp/confirm", a.confirmTOTP)
	protect("POST /api/v1/auth/totp/disable", a.disableTOTP)

	protect("POST /api/v1/vps", a.createVPS)
	protect("GET /api/v1/vps", a.listVPS)
	protect("GET /api/v1/vps/{id}", a.getVPS)
	protect("PATCH /api/v1/vps/{id}", a.updateVPS)
	protect("DELETE /api/v1/vps/{id}", a.deleteVPS)
	protect("POST /api/v1/vps/{id}/start", a.startVPS)
	protect("POST /api/v1/vps/{id}/stop", a.stopVPS)
	protect("POST /api/v1/vps/{id}/reboot", a.rebootVPS)
	protect("POST /api/v1/vps/{id}/observations", a.observeVPS)
	protect("POST /api/v1/vps/{id}/console", a.remoteShell)

	protect("POST /api/v1/accounts", a.createAccount)
	protect("GET /api/v1/accounts", a.listAccounts)
	protect("GET /api/v1/accounts/{id}", a.getAccount)
	protect("PATCH /api/v1/accounts/{id}", a.updateAccount)
	protect("DELETE /api/v1/accounts/{id}", a.deleteAccount)

	protect("GET /api/v1/ssh-keys", a.listSSHKeys)
	protect("POST /api/v1/ssh-keys", a.createSSHKey)
	protect("DELETE /api/v1/ssh-keys/{id}", a.deleteSSHKey)

	protect("GET /api/v1/images", a.listImages)
	protect("GET /api/v1/images/{id}", a.getImage)
	protect("POST /api/v1/images", a.createImage)
	protect("DELETE /api/v1/images/{id}", a.deactivateImage)

	// Host routes are staff-only; reject before decoding anything.
	gate := func(pattern string, c permission.Capability, fn http.HandlerFunc) {
		mux.Handle(pattern, auth(middleware.RequireCapability(a.engine, c)(fn)))
	}
	gate("GET /api/v1/hosts", permission.HostRead, a.listHosts)
	gate("GET /api/v1/hosts/{id}", permission.HostRead, a.getHost)
	gate("POST /api/v1/hosts", permission.HostManage, a.createHost)
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

var errMalformedBody = errors.New("malformed request body")

// decode reads a JSON body into dst and writes a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errMalformedBody.Error()})
		return false
	}
	return true
}

// pathID parses the {id} wildcard and writes a 404 when it is not a positive
// integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

func principal(r *http.Request) goVPS.Principal {
	p, _ := middleware.PrincipalFromContext(r.Context())
	return p
}
