// Package authstrategy holds the pluggable verifiers that resolve a caller
// identity before the account service acts on it. Every strategy yields the
// same contract: the resolved user or a typed rejection.
package authstrategy

import (
	"context"
	"errors"

	"github.com/tendant/simple-account/pkg/account"
)

var (
	// ErrBadCredentials is returned when email or password do not match
	ErrBadCredentials = errors.New("incorrect email or password")
)

// Accounts is the slice of the account service the strategies depend on.
// *account.Service satisfies it.
type Accounts interface {
	VerifiedUserByEmail(ctx context.Context, email string) (*account.User, error)
	UserByID(ctx context.Context, userID int64) (*account.User, error)
	TouchActive(ctx context.Context, userID int64) error
	LoginWithProvider(ctx context.Context, provider account.Provider, profile account.ProviderProfile) (*account.User, error)
}
