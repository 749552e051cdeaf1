package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	goVPS "github.com/MrEthical07/goVPS"
	"github.com/MrEthical07/goVPS/permission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValidator map[string]goVPS.Principal

func (f fakeValidator) Validate(_ context.Context, token string) (goVPS.Principal, error) {
	p, ok := f[token]
	if !ok {
		return goVPS.Principal{}, goVPS.ErrInvalidToken
	}
	return p, nil
}

type roleAuthorizer struct{}

func (roleAuthorizer) Authorize(p goVPS.Principal, c permission.Capability) error {
	if permission.Default().Check(p.Role, c) {
		return nil
	}
	return goVPS.ErrForbidden
}

func principalEcho(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		require.True(t, ok)
		w.Header().Set("X-Role", string(p.Role))
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestGuard(t *testing.T) {
	v := fakeValidator{"good": {AccountID: 7, Role: permission.RoleUser}}
	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", status: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", status: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer bad", status: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer good", status: http.StatusNoContent},
		{name: "lowercase scheme", header: "bearer good", status: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/vps", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			Guard(v)(principalEcho(t)).ServeHTTP(rr, req)
			assert.Equal(t, tt.status, rr.Code)
			if tt.status == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"unauthorized"}`, rr.Body.String())
			}
		})
	}
}

func TestRequireCapability(t *testing.T) {
	v := fakeValidator{
		"user":  {AccountID: 1, Role: permission.RoleUser},
		"admin": {AccountID: 2, Role: permission.RoleAdmin},
	}
	h := Guard(v)(RequireCapability(roleAuthorizer{}, permission.HostManage)(principalEcho(t)))

	for token, want := range map[string]int{"user": http.StatusForbidden, "admin": http.StatusNoContent} {
		req := httptest.NewRequest(http.MethodPost, "/hosts", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, want, rr.Code, token)
	}

	rr := httptest.NewRecorder()
	RequireCapability(roleAuthorizer{}, permission.HostManage)(principalEcho(t)).
		ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/hosts", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRemoteIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		trust      bool
		want       string
	}{
		{name: "remote addr port stripped", remoteAddr: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "xff ignored without trust", remoteAddr: "192.0.2.1:5555", xff: "203.0.113.9", want: "192.0.2.1"},
		{name: "xff first hop", remoteAddr: "10.0.0.1:1", xff: "203.0.113.9, 10.0.0.2", trust: true, want: "203.0.113.9"},
		{name: "x-real-ip fallback", remoteAddr: "10.0.0.1:1", xri: "198.51.100.4", trust: true, want: "198.51.100.4"},
		{name: "ipv6", remoteAddr: "[2001:db8::1]:443", want: "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, RemoteIP(req, tt.trust))
		})
	}
}

func TestClientIPStoresAddressForEngine(t *testing.T) {
	var got string
	h := ClientIP(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = goVPS.ClientIPFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "198.51.100.7:40000"
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "198.51.100.7", got)
}

func TestLoggingLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("nope"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/vps/9", nil))

	out := buf.String()
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"status":404`)
	assert.Contains(t, out, `"path":"/vps/9"`)
	assert.Contains(t, out, `"bytes":4`)
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := Recover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(errors.New("boom"))
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, buf.String(), "panic recovered")
}
