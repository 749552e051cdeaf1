package flows

import (
	"context"
	"strings"
	"time"
)

// LoginRequest is the flow-local login input.
type LoginRequest struct {
	// Identity keys the throttle counter, normally the client IP.
	Identity      string
	Identifier    string
	Password      string
	TwoFactorCode string
}

// LoginAccount is the flow-local account model shared by login and refresh.
type LoginAccount struct {
	ID           int64
	Role         string
	PasswordHash string
	Active       bool
	TOTPEnabled  bool
	TOTPSecret   string
}

// Tokens is an issued access/refresh pair.
type Tokens struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// LoginResult carries the issued tokens and the authenticated account.
type LoginResult struct {
	Account LoginAccount
	Tokens  Tokens
}

// LoginMetrics carries metric IDs used by the login flow.
type LoginMetrics struct {
	Success           int
	Failure           int
	Throttled         int
	TwoFactorRequired int
	TwoFactorFailure  int
	AccountDisabled   int
	PasswordRehashed  int
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady      error
	Throttled           error
	ThrottleUnavailable error
	InvalidCredentials  error
	UnknownIdentity     error
	PasswordMismatch    error
	AccountDisabled     error
	TwoFactorRequired   error
	InvalidTwoFactor    error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	RehashOnLogin bool
	// DummyHash is verified against when the identifier matches no account so
	// that a miss costs as much as a wrong password.
	DummyHash string

	ShouldThrottle func(context.Context, string) (bool, error)
	RecordFailure  func(context.Context, string) error
	ResetThrottle  func(context.Context, string) error

	FindByEmail    func(context.Context, string) (LoginAccount, error)
	FindByUsername func(context.Context, string) (LoginAccount, error)
	IsNotFound     func(error) bool

	VerifyPassword     func(password, hash string) (bool, error)
	NeedsRehash        func(hash string) bool
	HashPassword       func(string) (string, error)
	UpdatePasswordHash func(context.Context, int64, string) error
	VerifyTOTP         func(secret, code string) (bool, error)
	TouchLastLogin     func(context.Context, int64) error
	IssueTokens        func(context.Context, LoginAccount) (Tokens, error)

	MetricInc func(int)
	// Audit records the attempt. reason is empty on success.
	Audit func(ctx context.Context, success bool, accountID int64, identifier, reason string, err error)
	Warn  func(string, ...any)

	Metrics LoginMetrics
	Errors  LoginErrors
}

// RunLogin walks one login attempt through throttle check, identification,
// password verification, the disabled check, the optional second factor and
// token issuance. Every rejection after the throttle check records a failure
// against req.Identity.
func RunLogin(ctx context.Context, req LoginRequest, deps LoginDeps) (*LoginResult, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.Audit == nil {
		deps.Audit = func(context.Context, bool, int64, string, string, error) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	if deps.ShouldThrottle == nil ||
		deps.RecordFailure == nil ||
		deps.ResetThrottle == nil ||
		deps.FindByEmail == nil ||
		deps.FindByUsername == nil ||
		deps.IsNotFound == nil ||
		deps.VerifyPassword == nil ||
		deps.VerifyTOTP == nil ||
		deps.IssueTokens == nil {
		return nil, deps.Errors.EngineNotReady
	}

	// THROTTLE_CHECK: a throttled attempt never touches the counter.
	throttled, err := deps.ShouldThrottle(ctx, req.Identity)
	if err != nil {
		deps.Warn("login throttle check failed", "error", err)
		return nil, deps.Errors.ThrottleUnavailable
	}
	if throttled {
		deps.MetricInc(deps.Metrics.Throttled)
		deps.Audit(ctx, false, 0, req.Identifier, "throttled", deps.Errors.Throttled)
		return nil, deps.Errors.Throttled
	}

	reject := func(accountID int64, metric int, reason string, kind error) (*LoginResult, error) {
		if err := deps.RecordFailure(ctx, req.Identity); err != nil {
			deps.Warn("login failure not recorded", "error", err)
		}
		deps.MetricInc(metric)
		deps.Audit(ctx, false, accountID, req.Identifier, reason, kind)
		return nil, kind
	}

	// IDENTIFY
	identifier := strings.TrimSpace(req.Identifier)
	var account LoginAccount
	if strings.Contains(identifier, "@") {
		account, err = deps.FindByEmail(ctx, identifier)
	} else {
		account, err = deps.FindByUsername(ctx, identifier)
	}
	if err != nil {
		if !deps.IsNotFound(err) {
			return nil, err
		}
		if deps.DummyHash != "" {
			_, _ = deps.VerifyPassword(req.Password, deps.DummyHash)
		}
		return reject(0, deps.Metrics.Failure, "unknown_identity",
			wrapKind(deps.Errors.InvalidCredentials, deps.Errors.UnknownIdentity))
	}

	// VERIFY_PASSWORD
	if req.Password == "" {
		return reject(account.ID, deps.Metrics.Failure, "empty_password",
			wrapKind(deps.Errors.InvalidCredentials, deps.Errors.PasswordMismatch))
	}
	ok, err := deps.VerifyPassword(req.Password, account.PasswordHash)
	if err != nil {
		deps.Warn("stored password hash unreadable", "account_id", account.ID, "error", err)
		ok = false
	}
	if !ok {
		return reject(account.ID, deps.Metrics.Failure, "password_mismatch",
			wrapKind(deps.Errors.InvalidCredentials, deps.Errors.PasswordMismatch))
	}

	if !account.Active {
		return reject(account.ID, deps.Metrics.AccountDisabled, "account_disabled", deps.Errors.AccountDisabled)
	}

	// VERIFY_2FA
	if account.TOTPEnabled {
		if strings.TrimSpace(req.TwoFactorCode) == "" {
			return reject(account.ID, deps.Metrics.TwoFactorRequired, "two_factor_required", deps.Errors.TwoFactorRequired)
		}
		valid, err := deps.VerifyTOTP(account.TOTPSecret, req.TwoFactorCode)
		if err != nil {
			deps.Warn("totp verification failed", "account_id", account.ID, "error", err)
			valid = false
		}
		if !valid {
			return reject(account.ID, deps.Metrics.TwoFactorFailure, "invalid_two_factor", deps.Errors.InvalidTwoFactor)
		}
	}

	// ISSUE_TOKENS
	if deps.RehashOnLogin && deps.NeedsRehash != nil && deps.HashPassword != nil && deps.UpdatePasswordHash != nil &&
		deps.NeedsRehash(account.PasswordHash) {
		if upgraded, err := deps.HashPassword(req.Password); err != nil {
			deps.Warn("password rehash failed", "account_id", account.ID, "error", err)
		} else if err := deps.UpdatePasswordHash(ctx, account.ID, upgraded); err != nil {
			deps.Warn("password rehash not stored", "account_id", account.ID, "error", err)
		} else {
			account.PasswordHash = upgraded
			deps.MetricInc(deps.Metrics.PasswordRehashed)
		}
	}

	if deps.TouchLastLogin != nil {
		if err := deps.TouchLastLogin(ctx, account.ID); err != nil {
			deps.Warn("last login not recorded", "account_id", account.ID, "error", err)
		}
	}

	tokens, err := deps.IssueTokens(ctx, account)
	if err != nil {
		return nil, err
	}

	if err := deps.ResetThrottle(ctx, req.Identity); err != nil {
		deps.Warn("login throttle reset failed", "error", err)
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.Audit(ctx, true, account.ID, req.Identifier, "", nil)

	return &LoginResult{Account: account, Tokens: tokens}, nil
}

// wrapKind joins a public kind with the internal cause so both match errors.Is.
func wrapKind(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return &kindError{kind: kind, cause: cause}
}

type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string { return e.kind.Error() }

func (e *kindError) Unwrap() []error { return []error{e.kind, e.cause} }
