package flows

import (
	"context"
	"errors"
	"testing"
)

var (
	errNotReady       = errors.New("not ready")
	errThrottled      = errors.New("throttled")
	errUnavailable    = errors.New("unavailable")
	errInvalidCreds   = errors.New("invalid credentials")
	errUnknown        = errors.New("unknown identity")
	errMismatch       = errors.New("password mismatch")
	errDisabled       = errors.New("disabled")
	errTwoFARequired  = errors.New("2fa required")
	errTwoFAInvalid   = errors.New("2fa invalid")
	errMissingAccount = errors.New("missing")
)

type loginFixture struct {
	throttled bool
	failures  int
	resets    int
	touched   int
	issued    int
	steps     []string
	accounts  map[string]LoginAccount
}

func newLoginFixture() *loginFixture {
	return &loginFixture{accounts: map[string]LoginAccount{
		"alice": {ID: 1, Role: "user", PasswordHash: "hash:secret", Active: true},
	}}
}

func (f *loginFixture) deps() LoginDeps {
	find := func(_ context.Context, key string) (LoginAccount, error) {
		f.steps = append(f.steps, "identify")
		a, ok := f.accounts[key]
		if !ok {
			return LoginAccount{}, errMissingAccount
		}
		return a, nil
	}
	return LoginDeps{
		ShouldThrottle: func(context.Context, string) (bool, error) {
			f.steps = append(f.steps, "throttle")
			return f.throttled, nil
		},
		RecordFailure: func(context.Context, string) error { f.failures++; return nil },
		ResetThrottle: func(context.Context, string) error { f.resets++; return nil },
		FindByEmail:   find,
		FindByUsername: func(ctx context.Context, key string) (LoginAccount, error) {
			return find(ctx, key)
		},
		IsNotFound: func(err error) bool { return errors.Is(err, errMissingAccount) },
		VerifyPassword: func(password, hash string) (bool, error) {
			f.steps = append(f.steps, "password")
			return hash == "hash:"+password, nil
		},
		VerifyTOTP: func(secret, code string) (bool, error) {
			f.steps = append(f.steps, "totp")
			return code == "123456", nil
		},
		TouchLastLogin: func(context.Context, int64) error { f.touched++; return nil },
		IssueTokens: func(context.Context, LoginAccount) (Tokens, error) {
			f.issued++
			return Tokens{AccessToken: "a", RefreshToken: "r"}, nil
		},
		Errors: LoginErrors{
			EngineNotReady:      errNotReady,
			Throttled:           errThrottled,
			ThrottleUnavailable: errUnavailable,
			InvalidCredentials:  errInvalidCreds,
			UnknownIdentity:     errUnknown,
			PasswordMismatch:    errMismatch,
			AccountDisabled:     errDisabled,
			TwoFactorRequired:   errTwoFARequired,
			InvalidTwoFactor:    errTwoFAInvalid,
		},
	}
}

func TestRunLoginSuccessResetsAndIssues(t *testing.T) {
	f := newLoginFixture()
	res, err := RunLogin(context.Background(), LoginRequest{Identity: "ip", Identifier: "alice", Password: "secret"}, f.deps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Tokens.AccessToken != "a" || res.Account.ID != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if f.resets != 1 || f.touched != 1 || f.issued != 1 || f.failures != 0 {
		t.Fatalf("unexpected side effects: %+v", f)
	}
}

func TestRunLoginThrottledSkipsEverything(t *testing.T) {
	f := newLoginFixture()
	f.throttled = true
	_, err := RunLogin(context.Background(), LoginRequest{Identity: "ip", Identifier: "alice", Password: "secret"}, f.deps())
	if !errors.Is(err, errThrottled) {
		t.Fatalf("expected throttled, got %v", err)
	}
	if f.failures != 0 {
		t.Fatalf("throttled attempt must not record a failure, got %d", f.failures)
	}
	if len(f.steps) != 1 || f.steps[0] != "throttle" {
		t.Fatalf("expected only the throttle check, got %v", f.steps)
	}
}

func TestRunLoginThrottleStoreFailsClosed(t *testing.T) {
	f := newLoginFixture()
	deps := f.deps()
	deps.ShouldThrottle = func(context.Context, string) (bool, error) { return false, errors.New("redis down") }
	_, err := RunLogin(context.Background(), LoginRequest{Identifier: "alice", Password: "secret"}, deps)
	if !errors.Is(err, errUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestRunLoginUnknownAndWrongPasswordLookAlike(t *testing.T) {
	f := newLoginFixture()
	_, unknownErr := RunLogin(context.Background(), LoginRequest{Identifier: "mallory", Password: "secret"}, f.deps())
	_, wrongErr := RunLogin(context.Background(), LoginRequest{Identifier: "alice", Password: "nope"}, f.deps())

	if !errors.Is(unknownErr, errInvalidCreds) || !errors.Is(wrongErr, errInvalidCreds) {
		t.Fatalf("expected invalid credentials for both, got %v / %v", unknownErr, wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatalf("messages differ: %q vs %q", unknownErr, wrongErr)
	}
	if !errors.Is(unknownErr, errUnknown) || !errors.Is(wrongErr, errMismatch) {
		t.Fatal("internal causes must stay distinguishable")
	}
	if f.failures != 2 {
		t.Fatalf("expected 2 recorded failures, got %d", f.failures)
	}
}

func TestRunLoginDisabledAfterPassword(t *testing.T) {
	f := newLoginFixture()
	a := f.accounts["alice"]
	a.Active = false
	f.accounts["alice"] = a

	_, err := RunLogin(context.Background(), LoginRequest{Identifier: "alice", Password: "nope"}, f.deps())
	if !errors.Is(err, errInvalidCreds) {
		t.Fatalf("wrong password on disabled account must read as invalid credentials, got %v", err)
	}
	_, err = RunLogin(context.Background(), LoginRequest{Identifier: "alice", Password: "secret"}, f.deps())
	if !errors.Is(err, errDisabled) {
		t.Fatalf("expected disabled, got %v", err)
	}
	if f.issued != 0 || f.failures != 2 {
		t.Fatalf("unexpected side effects: %+v", f)
	}
}

func TestRunLoginTwoFactor(t *testing.T) {
	f := newLoginFixture()
	a := f.accounts["alice"]
	a.TOTPEnabled = true
	a.TOTPSecret = "JBSWY3DPEHPK3PXP"
	f.accounts["alice"] = a

	_, err := RunLogin(context.Background(), LoginRequest{Identifier: "alice", Password: "secret"}, f.deps())
	if !errors.Is(err, errTwoFARequired) {
		t.Fatalf("expected two-factor required, got %v", err)
	}
	_, err = RunLogin(context.Background(), LoginRequest{Identifier: "alice", Password: "secret", TwoFactorCode: "000000"}, f.deps())
	if !errors.Is(err, errTwoFAInvalid) {
		t.Fatalf("expected invalid two-factor, got %v", err)
	}
	if f.failures != 2 {
		t.Fatalf("expected 2 recorded failures, got %d", f.failures)
	}
	if _, err := RunLogin(context.Background(), LoginRequest{Identifier: "alice", Password: "secret", TwoFactorCode: "123456"}, f.deps()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunLoginEmailIdentifierRoutesToEmailLookup(t *testing.T) {
	f := newLoginFixture()
	var usedEmail bool
	deps := f.deps()
	deps.FindByEmail = func(context.Context, string) (LoginAccount, error) {
		usedEmail = true
		return f.accounts["alice"], nil
	}
	if _, err := RunLogin(context.Background(), LoginRequest{Identifier: "Alice@Example.com", Password: "secret"}, deps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !usedEmail {
		t.Fatal("identifier containing @ must use the email lookup")
	}
}

func TestRunLoginRehashIsBestEffort(t *testing.T) {
	f := newLoginFixture()
	deps := f.deps()
	deps.RehashOnLogin = true
	deps.NeedsRehash = func(string) bool { return true }
	deps.HashPassword = func(p string) (string, error) { return "hash:" + p, nil }
	deps.UpdatePasswordHash = func(context.Context, int64, string) error { return errors.New("db down") }

	if _, err := RunLogin(context.Background(), LoginRequest{Identifier: "alice", Password: "secret"}, deps); err != nil {
		t.Fatalf("rehash failure must not fail login: %v", err)
	}
}

func TestRunLoginMissingDeps(t *testing.T) {
	_, err := RunLogin(context.Background(), LoginRequest{}, LoginDeps{Errors: LoginErrors{EngineNotReady: errNotReady}})
	if !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}
