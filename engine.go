package goVPS

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/MrEthical07/goVPS/access"
	"github.com/MrEthical07/goVPS/hypervisor"
	internalflows "github.com/MrEthical07/goVPS/internal/flows"
	"github.com/MrEthical07/goVPS/jwt"
	"github.com/MrEthical07/goVPS/password"
	"github.com/MrEthical07/goVPS/permission"
	"github.com/MrEthical07/goVPS/store"
	"github.com/MrEthical07/goVPS/throttle"
	"github.com/google/uuid"
)

// Engine is the panel core. It authenticates callers, authorizes them against
// the role table and entity ownership, and drives VPS lifecycle transitions.
// All methods are safe for concurrent use.
type Engine struct {
	config     Config
	store      store.Store
	access     *access.Mediator
	throttle   *throttle.Guard
	hasher     *password.Hasher
	dummyHash  string
	jwt        *jwt.Manager
	totp       *totpManager
	audit      *auditDispatcher
	metrics    *Metrics
	hypervisor *hypervisor.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
	closed     atomic.Bool
}

// Close stops the hypervisor dispatcher and flushes queued audit events.
// Commands already queued still run.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.hypervisor.Close()
	e.audit.Close()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// HypervisorDropped counts lifecycle commands the dispatcher queue rejected.
func (e *Engine) HypervisorDropped() uint64 {
	if e == nil || e.hypervisor == nil {
		return 0
	}
	return e.hypervisor.Dropped()
}

// HypervisorAbandoned reports timed-out controller calls that have not yet
// returned because the controller ignored its context.
func (e *Engine) HypervisorAbandoned() int64 {
	if e == nil || e.hypervisor == nil {
		return 0
	}
	return e.hypervisor.Abandoned()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// ExternalMessage is [ExternalMessage] honoring Security.RevealDisabledAccount.
func (e *Engine) ExternalMessage(err error) string {
	return externalMessage(err, e.config.Security.RevealDisabledAccount)
}

func (e *Engine) ready() error {
	if e == nil || e.closed.Load() {
		return ErrEngineNotReady
	}
	return nil
}

/*
====================================
AUTHENTICATION
====================================
*/

// Login authenticates one attempt. The throttle identity is the client IP
// from ctx (see [WithClientIP]); without one, the normalized identifier is used.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	res, err := internalflows.RunLogin(ctx, internalflows.LoginRequest{
		Identity:      throttleIdentity(ctx, req.Identifier),
		Identifier:    req.Identifier,
		Password:      req.Password,
		TwoFactorCode: req.TwoFactorCode,
	}, e.loginFlowDeps())
	if err != nil {
		return nil, err
	}
	return tokenPair(res.Tokens), nil
}

func throttleIdentity(ctx context.Context, identifier string) string {
	if ip := ClientIPFromContext(ctx); ip != "" {
		return "ip:" + ip
	}
	return "id:" + strings.ToLower(strings.TrimSpace(identifier))
}

func (e *Engine) loginFlowDeps() internalflows.LoginDeps {
	return internalflows.LoginDeps{
		RehashOnLogin: e.config.Security.RehashOnLogin,
		DummyHash:     e.dummyHash,
		ShouldThrottle: func(ctx context.Context, identity string) (bool, error) {
			return e.throttle.ShouldThrottle(ctx, identity)
		},
		RecordFailure: func(ctx context.Context, identity string) error {
			_, err := e.throttle.RecordFailure(ctx, identity)
			return err
		},
		ResetThrottle: e.throttle.Reset,
		FindByEmail: func(ctx context.Context, email string) (internalflows.LoginAccount, error) {
			a, err := e.store.AccountByEmail(ctx, email)
			if err != nil {
				return internalflows.LoginAccount{}, err
			}
			return loginAccount(a), nil
		},
		FindByUsername: func(ctx context.Context, username string) (internalflows.LoginAccount, error) {
			a, err := e.store.AccountByUsername(ctx, username)
			if err != nil {
				return internalflows.LoginAccount{}, err
			}
			return loginAccount(a), nil
		},
		IsNotFound:     isNotFound,
		VerifyPassword: e.hasher.Verify,
		NeedsRehash:    e.hasher.NeedsRehash,
		HashPassword:   e.hasher.Hash,
		UpdatePasswordHash: func(ctx context.Context, id int64, hash string) error {
			_, err := e.store.UpdateAccount(ctx, id, store.AccountPatch{PasswordHash: &hash}, e.now())
			return err
		},
		VerifyTOTP: func(secret, code string) (bool, error) {
			return e.totp.Verify(secret, code, e.now())
		},
		TouchLastLogin: func(ctx context.Context, id int64) error {
			return e.store.SetLastLogin(ctx, id, e.now())
		},
		IssueTokens: e.issueTokens,
		MetricInc:   func(id int) { e.metricInc(MetricID(id)) },
		Audit: func(ctx context.Context, success bool, accountID int64, identifier, reason string, err error) {
			ev := AuditEvent{
				Action:     AuditLogin,
				Resource:   ResourceUser,
				ResourceID: formatID(accountID),
				ActorID:    formatID(accountID),
				Metadata:   map[string]string{"identifier": identifier},
			}
			if reason != "" {
				ev.Metadata["reason"] = reason
			}
			e.emitAudit(ctx, ev, err)
		},
		Warn: func(msg string, args ...any) { e.logger.Warn(msg, args...) },
		Metrics: internalflows.LoginMetrics{
			Success:           int(MetricLoginSuccess),
			Failure:           int(MetricLoginFailure),
			Throttled:         int(MetricLoginThrottled),
			TwoFactorRequired: int(MetricTwoFactorRequired),
			TwoFactorFailure:  int(MetricTwoFactorFailure),
			AccountDisabled:   int(MetricAccountDisabled),
			PasswordRehashed:  int(MetricPasswordRehashed),
		},
		Errors: internalflows.LoginErrors{
			EngineNotReady:      ErrEngineNotReady,
			Throttled:           ErrThrottled,
			ThrottleUnavailable: ErrThrottleUnavailable,
			InvalidCredentials:  ErrInvalidCredentials,
			UnknownIdentity:     errUnknownIdentity,
			PasswordMismatch:    errPasswordMismatch,
			AccountDisabled:     ErrAccountDisabled,
			TwoFactorRequired:   ErrTwoFactorRequired,
			InvalidTwoFactor:    ErrInvalidTwoFactor,
		},
	}
}

// Refresh exchanges a refresh token for a brand-new pair. The new access
// token carries the account's current role.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	res := internalflows.RunRefresh(ctx, refreshToken, internalflows.RefreshDeps{
		ParseRefresh: func(token string) (int64, error) {
			claims, err := e.jwt.Parse(token, jwt.TypeRefresh)
			if err != nil {
				return 0, err
			}
			return claims.AccountID()
		},
		GetAccount: func(ctx context.Context, id int64) (internalflows.LoginAccount, error) {
			a, err := e.store.AccountByID(ctx, id)
			if err != nil {
				return internalflows.LoginAccount{}, err
			}
			return loginAccount(a), nil
		},
		IsNotFound:  isNotFound,
		IssueTokens: e.issueTokens,
	})

	var err error
	switch res.Failure {
	case internalflows.RefreshFailureNone:
	case internalflows.RefreshFailureDecode:
		err = res.Err
		if !errors.Is(err, ErrInvalidToken) {
			err = fmt.Errorf("%w: %w", ErrInvalidToken, res.Err)
		}
	case internalflows.RefreshFailureAccountNotFound:
		err = ErrAccountNotFound
	case internalflows.RefreshFailureAccountDisabled:
		err = ErrAccountDisabled
	default:
		err = res.Err
	}

	e.emitAudit(ctx, AuditEvent{
		Action:     AuditRefresh,
		Resource:   ResourceUser,
		ResourceID: formatID(res.AccountID),
		ActorID:    formatID(res.AccountID),
	}, err)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}
	e.metricInc(MetricRefreshSuccess)
	return tokenPair(res.Tokens), nil
}

// Logout records that p ended its session. Tokens are stateless, so the
// client discards them and they stay valid until they expire.
func (e *Engine) Logout(ctx context.Context, p Principal) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.emitAudit(ctx, AuditEvent{
		Action:     AuditLogout,
		Resource:   ResourceUser,
		ResourceID: formatID(p.AccountID),
		ActorID:    formatID(p.AccountID),
	}, nil)
	return nil
}

// Validate parses an access token and returns the caller it names. It does
// not consult the store: the role is the snapshot taken at issuance.
func (e *Engine) Validate(ctx context.Context, accessToken string) (Principal, error) {
	if err := e.ready(); err != nil {
		return Principal{}, err
	}
	if e.metrics.LatencyEnabled() {
		started := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(started)) }()
	}

	claims, err := e.jwt.Parse(accessToken, jwt.TypeAccess)
	if err != nil {
		return Principal{}, err
	}
	id, err := claims.AccountID()
	if err != nil {
		return Principal{}, err
	}
	role := permission.Role(claims.Role)
	if !e.access.Table().Known(role) {
		return Principal{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return Principal{AccountID: id, Role: role}, nil
}

// Authorize checks a capability with no target entity.
func (e *Engine) Authorize(p Principal, c permission.Capability) error {
	if err := e.access.Require(p, c); err != nil {
		e.metricInc(MetricForbidden)
		return err
	}
	return nil
}

// Capabilities lists what p's role may do.
func (e *Engine) Capabilities(p Principal) []permission.Capability {
	return e.access.Table().Capabilities(p.Role)
}

func (e *Engine) issueTokens(_ context.Context, a internalflows.LoginAccount) (internalflows.Tokens, error) {
	accessTok, err := e.jwt.CreateAccess(a.ID, a.Role)
	if err != nil {
		return internalflows.Tokens{}, err
	}
	refreshTok, err := e.jwt.CreateRefresh(a.ID)
	if err != nil {
		return internalflows.Tokens{}, err
	}
	return internalflows.Tokens{
		AccessToken:      accessTok.Token,
		RefreshToken:     refreshTok.Token,
		AccessExpiresAt:  accessTok.ExpiresAt,
		RefreshExpiresAt: refreshTok.ExpiresAt,
	}, nil
}

func tokenPair(t internalflows.Tokens) *TokenPair {
	return &TokenPair{
		AccessToken:      t.AccessToken,
		RefreshToken:     t.RefreshToken,
		TokenType:        "bearer",
		AccessExpiresAt:  t.AccessExpiresAt,
		RefreshExpiresAt: t.RefreshExpiresAt,
	}
}

func loginAccount(a *store.Account) internalflows.LoginAccount {
	return internalflows.LoginAccount{
		ID:           a.ID,
		Role:         string(a.Role),
		PasswordHash: a.PasswordHash,
		Active:       a.Active,
		TOTPEnabled:  a.TOTPEnabled,
		TOTPSecret:   a.TOTPSecret,
	}
}

/*
====================================
REGISTRATION
====================================
*/

// Register creates a self-service account with role user. Email and username
// are unique case-insensitively, matching the login lookup.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (int64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return internalflows.RunRegister(ctx, internalflows.RegisterRequest{
		Email:    strings.TrimSpace(req.Email),
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
		FullName: strings.TrimSpace(req.FullName),
		Role:     string(permission.RoleUser),
		Active:   true,
	}, e.registerFlowDeps(Principal{}))
}

func (e *Engine) registerFlowDeps(actor Principal) internalflows.RegisterDeps {
	return internalflows.RegisterDeps{
		Validate: func(r internalflows.RegisterRequest) error {
			if err := validateEmail(r.Email); err != nil {
				return err
			}
			if err := validateUsername(r.Username); err != nil {
				return err
			}
			return e.validatePassword(r.Password)
		},
		EmailExists: func(ctx context.Context, email string) (bool, error) {
			return exists(e.store.AccountByEmail(ctx, email))
		},
		UsernameExists: func(ctx context.Context, username string) (bool, error) {
			return exists(e.store.AccountByUsername(ctx, username))
		},
		HashPassword: e.hasher.Hash,
		Create: func(ctx context.Context, r internalflows.RegisterRequest, hash string) (int64, error) {
			a := &store.Account{
				ExternalID:   uuid.New(),
				Email:        r.Email,
				Username:     r.Username,
				PasswordHash: hash,
				FullName:     r.FullName,
				Role:         permission.Role(r.Role),
				Active:       r.Active,
				CreatedAt:    e.now().UTC(),
			}
			if err := e.store.CreateAccount(ctx, a); err != nil {
				return 0, mapStoreErr(err)
			}
			return a.ID, nil
		},
		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		Audit: func(ctx context.Context, success bool, accountID int64, email string, err error) {
			actorID := actor.AccountID
			if actorID == 0 {
				actorID = accountID
			}
			e.emitAudit(ctx, AuditEvent{
				Action:     AuditCreate,
				Resource:   ResourceUser,
				ResourceID: formatID(accountID),
				ActorID:    formatID(actorID),
				Metadata:   map[string]string{"email": email},
			}, err)
		},
		Metrics: internalflows.RegisterMetrics{
			Success:   int(MetricRegisterSuccess),
			Duplicate: int(MetricRegisterDuplicate),
		},
		Errors: internalflows.RegisterErrors{
			EngineNotReady: ErrEngineNotReady,
			EmailTaken:     ErrEmailTaken,
			UsernameTaken:  ErrUsernameTaken,
		},
	}
}

func exists[T any](v *T, err error) (bool, error) {
	switch {
	case err == nil:
		return v != nil, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: email %q is not a valid address", ErrValidation, email)
	}
	return nil
}

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < 3 || n > 50 {
		return fmt.Errorf("%w: username must be 3 to 50 characters", ErrValidation)
	}
	// login treats any identifier containing "@" as an email
	if strings.ContainsAny(username, "@ \t\n") {
		return fmt.Errorf("%w: username must not contain '@' or whitespace", ErrValidation)
	}
	return nil
}

func (e *Engine) validatePassword(pw string) error {
	n := len(pw)
	if n < e.config.Security.MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, e.config.Security.MinPasswordLength)
	}
	if n > e.config.Security.MaxPasswordLength {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, e.config.Security.MaxPasswordLength)
	}
	return nil
}

/*
====================================
STORE ERROR MAPPING
====================================
*/

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// mapStoreErr translates store sentinels into the engine taxonomy.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrEmailTaken):
		return ErrEmailTaken
	case errors.Is(err, store.ErrUsernameTaken):
		return ErrUsernameTaken
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case errors.Is(err, store.ErrStatusChanged), errors.Is(err, store.ErrInUse):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%w: %s %d", ErrNotFound, kind, id)
}
