package authstrategy

import (
	"context"

	"github.com/tendant/simple-account/pkg/account"
)

// ProviderStrategy resolves a caller from an externally resolved OAuth
// identity. The protocol exchange happens upstream; the strategy only runs
// the link-or-create step.
type ProviderStrategy struct {
	provider account.Provider
	accounts Accounts
}

// NewGoogleStrategy creates the strategy for Google identities
func NewGoogleStrategy(accounts Accounts) *ProviderStrategy {
	return &ProviderStrategy{provider: account.ProviderGoogle, accounts: accounts}
}

// NewFacebookStrategy creates the strategy for Facebook identities
func NewFacebookStrategy(accounts Accounts) *ProviderStrategy {
	return &ProviderStrategy{provider: account.ProviderFacebook, accounts: accounts}
}

// Authenticate links or creates the account for the resolved profile
func (s *ProviderStrategy) Authenticate(ctx context.Context, profile account.ProviderProfile) (*account.User, error) {
	return s.accounts.LoginWithProvider(ctx, s.provider, profile)
}
