package flows

import "context"

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureAccountNotFound
	RefreshFailureLookup
	RefreshFailureAccountDisabled
	RefreshFailureIssue
)

// RefreshResult carries either the rotated token pair or failure metadata.
type RefreshResult struct {
	Failure   RefreshFailureKind
	Err       error
	AccountID int64
	Account   LoginAccount
	Tokens    Tokens
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	// ParseRefresh decodes the token, failing unless it is an unexpired
	// refresh token, and returns its subject.
	ParseRefresh func(string) (int64, error)
	GetAccount   func(context.Context, int64) (LoginAccount, error)
	IsNotFound   func(error) bool
	IssueTokens  func(context.Context, LoginAccount) (Tokens, error)
}

// RunRefresh decodes a refresh token, re-checks the account and always issues
// a brand-new pair. The role in the new access token is read fresh from the
// account, not copied from the old token.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	accountID, err := deps.ParseRefresh(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}

	account, err := deps.GetAccount(ctx, accountID)
	if err != nil {
		if deps.IsNotFound(err) {
			return RefreshResult{Failure: RefreshFailureAccountNotFound, Err: err, AccountID: accountID}
		}
		return RefreshResult{Failure: RefreshFailureLookup, Err: err, AccountID: accountID}
	}
	if !account.Active {
		return RefreshResult{Failure: RefreshFailureAccountDisabled, AccountID: accountID, Account: account}
	}

	tokens, err := deps.IssueTokens(ctx, account)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, AccountID: accountID, Account: account}
	}

	return RefreshResult{AccountID: accountID, Account: account, Tokens: tokens}
}
