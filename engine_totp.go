package goVPS

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrEthical07/goVPS/store"
)

// BeginTOTPEnrollment stores a fresh secret for the caller without enabling
// it. The second factor takes effect once [Engine.ConfirmTOTPEnrollment]
// sees a valid code. Starting again replaces an unconfirmed secret.
func (e *Engine) BeginTOTPEnrollment(ctx context.Context, p Principal) (*TOTPEnrollment, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	a, err := e.enrollingAccount(ctx, p)
	if err != nil {
		return nil, err
	}
	if a.TOTPEnabled {
		return nil, fmt.Errorf("%w: two-factor already enabled", ErrConflict)
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	disabled := false
	if _, err := e.store.UpdateAccount(ctx, a.ID, store.AccountPatch{TOTPSecret: &secret, TOTPEnabled: &disabled}, e.now().UTC()); err != nil {
		return nil, mapStoreErr(err)
	}

	label := a.Email
	if label == "" {
		label = a.Username
	}
	return &TOTPEnrollment{
		Secret:          secret,
		ProvisioningURI: e.totp.ProvisionURI(label, secret),
	}, nil
}

// ConfirmTOTPEnrollment enables the second factor if code matches the
// pending secret.
func (e *Engine) ConfirmTOTPEnrollment(ctx context.Context, p Principal, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	a, err := e.enrollingAccount(ctx, p)
	if err != nil {
		return err
	}
	if a.TOTPEnabled {
		return fmt.Errorf("%w: two-factor already enabled", ErrConflict)
	}
	if a.TOTPSecret == "" {
		return ErrTwoFactorNotEnrolled
	}
	if err := e.checkTOTP(a.TOTPSecret, code); err != nil {
		e.emitTOTPAudit(ctx, a.ID, "enable", err)
		return err
	}

	enabled := true
	if _, err := e.store.UpdateAccount(ctx, a.ID, store.AccountPatch{TOTPEnabled: &enabled}, e.now().UTC()); err != nil {
		return mapStoreErr(err)
	}
	e.emitTOTPAudit(ctx, a.ID, "enable", nil)
	return nil
}

// DisableTOTP turns the second factor off. It needs a current code.
func (e *Engine) DisableTOTP(ctx context.Context, p Principal, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	a, err := e.enrollingAccount(ctx, p)
	if err != nil {
		return err
	}
	if !a.TOTPEnabled {
		return ErrTwoFactorNotEnrolled
	}
	if err := e.checkTOTP(a.TOTPSecret, code); err != nil {
		e.emitTOTPAudit(ctx, a.ID, "disable", err)
		return err
	}

	disabled, empty := false, ""
	if _, err := e.store.UpdateAccount(ctx, a.ID, store.AccountPatch{TOTPEnabled: &disabled, TOTPSecret: &empty}, e.now().UTC()); err != nil {
		return mapStoreErr(err)
	}
	e.emitTOTPAudit(ctx, a.ID, "disable", nil)
	return nil
}

func (e *Engine) enrollingAccount(ctx context.Context, p Principal) (*store.Account, error) {
	a, err := e.store.AccountByID(ctx, p.AccountID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if !a.Active {
		return nil, ErrAccountDisabled
	}
	return a, nil
}

func (e *Engine) checkTOTP(secret, code string) error {
	if strings.TrimSpace(code) == "" {
		return ErrTwoFactorRequired
	}
	ok, err := e.totp.Verify(secret, code, e.now())
	if err != nil {
		e.logger.Warn("totp verification failed", "error", err)
	}
	if err != nil || !ok {
		e.metricInc(MetricTwoFactorFailure)
		return ErrInvalidTwoFactor
	}
	return nil
}

func (e *Engine) emitTOTPAudit(ctx context.Context, accountID int64, op string, err error) {
	e.emitAudit(ctx, AuditEvent{
		Action:     AuditUpdate,
		Resource:   ResourceUser,
		ResourceID: formatID(accountID),
		ActorID:    formatID(accountID),
		Metadata:   map[string]string{"field": "totp", "op": op},
	}, err)
}
