package authstrategy

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-account/pkg/account"
)

// PasswordStrategy resolves a caller from email and password
type PasswordStrategy struct {
	accounts Accounts
}

// NewPasswordStrategy creates a new PasswordStrategy
func NewPasswordStrategy(accounts Accounts) *PasswordStrategy {
	return &PasswordStrategy{accounts: accounts}
}

// Authenticate looks the user up by email, rejects unverified users and
// compares the submitted password against the stored hash.
func (s *PasswordStrategy) Authenticate(ctx context.Context, email, password string) (*account.User, error) {
	user, err := s.accounts.VerifiedUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}
	return user, nil
}
