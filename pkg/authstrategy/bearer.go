package authstrategy

import (
	"context"
	"log/slog"

	"github.com/tendant/simple-account/pkg/account"
	"github.com/tendant/simple-account/pkg/sessiontoken"
)

// BearerStrategy resolves a caller from a signed session token
type BearerStrategy struct {
	tokens   *sessiontoken.Service
	accounts Accounts
}

// NewBearerStrategy creates a new BearerStrategy
func NewBearerStrategy(tokens *sessiontoken.Service, accounts Accounts) *BearerStrategy {
	return &BearerStrategy{tokens: tokens, accounts: accounts}
}

// Authenticate verifies the token, loads the user and refreshes the user's
// last active time. Token expiry surfaces as sessiontoken.ErrTokenExpired.
func (s *BearerStrategy) Authenticate(ctx context.Context, tokenStr string) (*account.User, error) {
	claims, err := s.tokens.Parse(tokenStr)
	if err != nil {
		return nil, err
	}

	user, err := s.accounts.UserByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.TouchActive(ctx, user.ID); err != nil {
		slog.Error("Failed to touch active time", "user_id", user.ID, "err", err)
		return nil, err
	}
	return user, nil
}
