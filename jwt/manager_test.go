package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Secret:     testSecret,
		Issuer:     "govps",
		Now:        clock.Now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestAccessRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock)

	issued, err := m.CreateAccess(42, "support")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if want := clock.now.Add(30 * time.Minute); !issued.ExpiresAt.Equal(want) {
		t.Fatalf("expiry = %v, want %v", issued.ExpiresAt, want)
	}

	claims, err := m.Parse(issued.Token, TypeAccess)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	id, _ := claims.AccountID()
	if id != 42 || claims.Role != "support" || claims.Type != TypeAccess {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestRefreshTokenRejectedForAccessUse(t *testing.T) {
	m := newTestManager(t, &fakeClock{now: time.Now()})

	refresh, err := m.CreateRefresh(7)
	if err != nil {
		t.Fatalf("create refresh: %v", err)
	}
	if _, err := m.Parse(refresh.Token, TypeAccess); !errors.Is(err, ErrTokenType) {
		t.Fatalf("expected ErrTokenType, got %v", err)
	}
	if _, err := m.Parse(refresh.Token, TypeRefresh); err != nil {
		t.Fatalf("refresh token should parse as refresh: %v", err)
	}

	access, _ := m.CreateAccess(7, "user")
	_, err = m.Parse(access.Token, TypeRefresh)
	if !errors.Is(err, ErrTokenType) || !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrTokenType wrapping ErrInvalidToken, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock)

	issued, _ := m.CreateAccess(1, "admin")
	clock.now = clock.now.Add(31 * time.Minute)

	if _, err := m.Parse(issued.Token, TypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTamperedAndForeignTokensRejected(t *testing.T) {
	m := newTestManager(t, &fakeClock{now: time.Now()})
	issued, _ := m.CreateAccess(1, "user")

	parts := strings.Split(issued.Token, ".")
	forged := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := m.Parse(forged, TypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected forged signature to fail, got %v", err)
	}

	other, _ := NewManager(Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, Secret: []byte(strings.Repeat("z", 32)), Issuer: "govps"})
	foreign, _ := other.CreateAccess(1, "admin")
	if _, err := m.Parse(foreign.Token, TypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected foreign secret to fail, got %v", err)
	}

	for _, junk := range []string{"", "abc", "a.b.c"} {
		if _, err := m.Parse(junk, TypeAccess); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected malformed %q to fail, got %v", junk, err)
		}
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	m := newTestManager(t, &fakeClock{now: time.Now()})

	claims := Claims{Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "1",
		Issuer:    "govps",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS512, claims)
	signed, err := tok.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(signed, TypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected HS512 token to be rejected, got %v", err)
	}

	none := gjwt.NewWithClaims(gjwt.SigningMethodNone, claims)
	unsigned, _ := none.SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if _, err := m.Parse(unsigned, TypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected alg=none token to be rejected, got %v", err)
	}
}

func TestTokensIssuedInSameInstantDiffer(t *testing.T) {
	m := newTestManager(t, &fakeClock{now: time.Now()})
	a, _ := m.CreateRefresh(3)
	b, _ := m.CreateRefresh(3)
	if a.Token == b.Token {
		t.Fatal("rotation must yield distinct tokens")
	}
}

func TestNewManagerValidation(t *testing.T) {
	cases := []Config{
		{AccessTTL: 0, RefreshTTL: time.Hour, Secret: testSecret},
		{AccessTTL: time.Hour, RefreshTTL: time.Minute, Secret: testSecret},
		{AccessTTL: time.Minute, RefreshTTL: time.Hour, Secret: []byte("short")},
		{AccessTTL: time.Minute, RefreshTTL: time.Hour, Secret: testSecret, Leeway: time.Hour},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
