package flows

import (
	"context"
	"errors"
)

// RegisterRequest is the flow-local account creation input.
type RegisterRequest struct {
	Email    string
	Username string
	Password string
	FullName string
	Role     string
	Active   bool
}

// RegisterMetrics carries metric IDs used by the register flow.
type RegisterMetrics struct {
	Success   int
	Duplicate int
}

// RegisterErrors carries host-level sentinel errors used by the register flow.
type RegisterErrors struct {
	EngineNotReady error
	EmailTaken     error
	UsernameTaken  error
}

// RegisterDeps captures account creation dependencies.
type RegisterDeps struct {
	Validate       func(RegisterRequest) error
	EmailExists    func(context.Context, string) (bool, error)
	UsernameExists func(context.Context, string) (bool, error)
	HashPassword   func(string) (string, error)
	// Create persists the account. Uniqueness races surface here as the
	// same EmailTaken and UsernameTaken errors.
	Create func(context.Context, RegisterRequest, string) (int64, error)

	MetricInc func(int)
	Audit     func(ctx context.Context, success bool, accountID int64, email string, err error)

	Metrics RegisterMetrics
	Errors  RegisterErrors
}

// RunRegister checks uniqueness, hashes the password and creates the account.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) (int64, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.Audit == nil {
		deps.Audit = func(context.Context, bool, int64, string, error) {}
	}
	if deps.EmailExists == nil || deps.UsernameExists == nil || deps.HashPassword == nil || deps.Create == nil {
		return 0, deps.Errors.EngineNotReady
	}

	if deps.Validate != nil {
		if err := deps.Validate(req); err != nil {
			return 0, err
		}
	}

	duplicate := func(kind error) (int64, error) {
		deps.MetricInc(deps.Metrics.Duplicate)
		deps.Audit(ctx, false, 0, req.Email, kind)
		return 0, kind
	}

	taken, err := deps.EmailExists(ctx, req.Email)
	if err != nil {
		return 0, err
	}
	if taken {
		return duplicate(deps.Errors.EmailTaken)
	}
	taken, err = deps.UsernameExists(ctx, req.Username)
	if err != nil {
		return 0, err
	}
	if taken {
		return duplicate(deps.Errors.UsernameTaken)
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return 0, err
	}

	id, err := deps.Create(ctx, req, hash)
	if err != nil {
		if errors.Is(err, deps.Errors.EmailTaken) || errors.Is(err, deps.Errors.UsernameTaken) {
			deps.MetricInc(deps.Metrics.Duplicate)
			deps.Audit(ctx, false, 0, req.Email, err)
		}
		return 0, err
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.Audit(ctx, true, id, req.Email, nil)
	return id, nil
}
