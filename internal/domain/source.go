package domain

import "context"

// DataSource is the upstream market-data collaborator. Implementations own
// retry and backoff; callers see a single terminal error per operation.
// User addresses are passed already validated and lowercased.
type DataSource interface {
	// UserFills returns the account's full fill history, unordered.
	UserFills(ctx context.Context, user string) ([]Fill, error)
	// AccountState returns the current clearinghouse snapshot.
	AccountState(ctx context.Context, user string) (AccountState, error)
	// UserDeposits returns positive USDC inflows, unordered.
	UserDeposits(ctx context.Context, user string) ([]Deposit, error)
}

// FetchCache stores raw upstream fetch results so repeated queries for the
// same account do not refetch. A miss is reported as ErrNotFound. Cache
// failures are advisory: callers fall through to the data source.
type FetchCache interface {
	GetFills(ctx context.Context, user string) ([]Fill, error)
	SetFills(ctx context.Context, user string, fills []Fill) error
	GetAccountState(ctx context.Context, user string) (AccountState, error)
	SetAccountState(ctx context.Context, user string, state AccountState) error
}
