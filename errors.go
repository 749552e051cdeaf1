package goVPS

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goVPS/jwt"
	"github.com/MrEthical07/goVPS/lifecycle"
	"github.com/MrEthical07/goVPS/permission"
)

var (
	// ErrEngineNotReady is returned when the engine is nil or closed.
	ErrEngineNotReady = errors.New("engine not ready")

	// ErrInvalidCredentials covers a missing account and a wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled is returned for an inactive account.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrTwoFactorRequired is returned when an enrolled account logs in without a code.
	ErrTwoFactorRequired = errors.New("two-factor code required")
	// ErrInvalidTwoFactor is returned for a wrong second-factor code.
	ErrInvalidTwoFactor = errors.New("invalid two-factor code")
	// ErrThrottled is returned while a client identity is over its failure budget.
	ErrThrottled = errors.New("too many failed login attempts")
	// ErrThrottleUnavailable is returned when the failure counter store cannot be reached.
	// Login fails closed.
	ErrThrottleUnavailable = errors.New("login throttle backend unavailable")
	// ErrInvalidToken is returned for bad signatures, malformed or expired tokens, and type mismatches.
	ErrInvalidToken = jwt.ErrInvalidToken

	// ErrForbidden is returned when the caller lacks a capability or ownership.
	ErrForbidden = permission.ErrForbidden
	// ErrConflict is returned for illegal state transitions and duplicates.
	ErrConflict = errors.New("conflict")
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAccountNotFound is returned when a token subject no longer exists.
	ErrAccountNotFound = errors.New("account not found")
	// ErrEmailTaken is returned when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUsernameTaken is returned when the username is already registered.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("invalid request")

	// ErrTwoFactorNotEnrolled is returned when confirming or disabling a second factor that was never started.
	ErrTwoFactorNotEnrolled = errors.New("two-factor not enrolled")
)

// Internal kinds wrapped under ErrInvalidCredentials. They keep the cause
// visible to logs and audit without changing the boundary message.
var (
	errUnknownIdentity  = errors.New("unknown identity")
	errPasswordMismatch = errors.New("password mismatch")
)

// TransitionConflict is returned when a lifecycle command cannot apply to the
// status the VPS is in, either because the state machine forbids it or
// because a concurrent command changed the status first. It matches
// ErrConflict.
type TransitionConflict struct {
	VPSID   int64
	Command lifecycle.Command
	// Observed is the status the command was checked against.
	Observed lifecycle.Status
	// Raced is set when the command lost a compare-and-swap.
	Raced bool
	cause error
}

func (e *TransitionConflict) Error() string {
	if e.Raced {
		return fmt.Sprintf("conflict: vps %d changed concurrently, now %s", e.VPSID, e.Observed)
	}
	if e.cause != nil {
		return "conflict: " + e.cause.Error()
	}
	return fmt.Sprintf("conflict: cannot %s vps %d in status %s", e.Command, e.VPSID, e.Observed)
}

func (e *TransitionConflict) Is(target error) bool { return target == ErrConflict }

func (e *TransitionConflict) Unwrap() error { return e.cause }

const genericCredentialsMessage = "incorrect credentials"

// ExternalMessage returns the message safe to show a client. Missing accounts,
// wrong passwords and disabled accounts all read as incorrect credentials.
func ExternalMessage(err error) string {
	return externalMessage(err, false)
}

func externalMessage(err error, revealDisabled bool) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return genericCredentialsMessage
	case errors.Is(err, ErrAccountDisabled):
		if revealDisabled {
			return "account is disabled"
		}
		return genericCredentialsMessage
	case errors.Is(err, ErrThrottled):
		return "too many failed login attempts, try again later"
	case errors.Is(err, ErrThrottleUnavailable):
		return "login temporarily unavailable"
	case errors.Is(err, ErrTwoFactorRequired):
		return "two-factor code required"
	case errors.Is(err, ErrInvalidTwoFactor):
		return "invalid two-factor code"
	case errors.Is(err, ErrInvalidToken):
		return "invalid or expired token"
	case errors.Is(err, ErrAccountNotFound):
		return "account not found"
	case errors.Is(err, ErrEmailTaken):
		return "email already registered"
	case errors.Is(err, ErrUsernameTaken):
		return "username already taken"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrConflict), errors.Is(err, ErrValidation), errors.Is(err, ErrTwoFactorNotEnrolled):
		// these carry caller-facing detail
		return err.Error()
	default:
		return "internal error"
	}
}
