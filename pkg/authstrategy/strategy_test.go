package authstrategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-account/pkg/account"
	"github.com/tendant/simple-account/pkg/sessiontoken"
)

// MockAccounts is a mock implementation of the Accounts interface
type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) VerifiedUserByEmail(ctx context.Context, email string) (*account.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.User), args.Error(1)
}

func (m *MockAccounts) UserByID(ctx context.Context, userID int64) (*account.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.User), args.Error(1)
}

func (m *MockAccounts) TouchActive(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockAccounts) LoginWithProvider(ctx context.Context, provider account.Provider, profile account.ProviderProfile) (*account.User, error) {
	args := m.Called(ctx, provider, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.User), args.Error(1)
}

func TestPasswordStrategy(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("Passw0rd!"), bcrypt.MinCost)
	require.NoError(t, err)

	accounts := new(MockAccounts)
	strategy := NewPasswordStrategy(accounts)
	ctx := context.Background()

	accounts.On("VerifiedUserByEmail", ctx, "ok@example.com").
		Return(&account.User{ID: 1, Email: "ok@example.com", HashedPassword: string(hash)}, nil)

	user, err := strategy.Authenticate(ctx, "ok@example.com", "Passw0rd!")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)

	_, err = strategy.Authenticate(ctx, "ok@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestPasswordStrategyRejections(t *testing.T) {
	accounts := new(MockAccounts)
	strategy := NewPasswordStrategy(accounts)
	ctx := context.Background()

	accounts.On("VerifiedUserByEmail", ctx, "ghost@example.com").
		Return(nil, account.ErrUserNotFound)
	accounts.On("VerifiedUserByEmail", ctx, "pending@example.com").
		Return(nil, account.ErrUserNotVerified)

	_, err := strategy.Authenticate(ctx, "ghost@example.com", "whatever")
	assert.ErrorIs(t, err, account.ErrUserNotFound)

	_, err = strategy.Authenticate(ctx, "pending@example.com", "whatever")
	assert.ErrorIs(t, err, account.ErrUserNotVerified)
}

func TestBearerStrategy(t *testing.T) {
	tokens := sessiontoken.New("test-secret")
	accounts := new(MockAccounts)
	strategy := NewBearerStrategy(tokens, accounts)
	ctx := context.Background()

	token, err := tokens.Issue(42)
	require.NoError(t, err)

	accounts.On("UserByID", ctx, int64(42)).Return(&account.User{ID: 42}, nil)
	accounts.On("TouchActive", ctx, int64(42)).Return(nil)

	user, err := strategy.Authenticate(ctx, token.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), user.ID)

	accounts.AssertCalled(t, "TouchActive", ctx, int64(42))
}

func TestBearerStrategyExpiredToken(t *testing.T) {
	tokens := sessiontoken.New("test-secret", sessiontoken.WithExpiry(-time.Minute))
	accounts := new(MockAccounts)
	strategy := NewBearerStrategy(tokens, accounts)
	ctx := context.Background()

	token, err := tokens.Issue(42)
	require.NoError(t, err)

	_, err = strategy.Authenticate(ctx, token.Token)
	assert.ErrorIs(t, err, sessiontoken.ErrTokenExpired)

	accounts.AssertNotCalled(t, "UserByID", mock.Anything, mock.Anything)
	accounts.AssertNotCalled(t, "TouchActive", mock.Anything, mock.Anything)
}

func TestBearerStrategyUserGone(t *testing.T) {
	tokens := sessiontoken.New("test-secret")
	accounts := new(MockAccounts)
	strategy := NewBearerStrategy(tokens, accounts)
	ctx := context.Background()

	token, err := tokens.Issue(7)
	require.NoError(t, err)

	accounts.On("UserByID", ctx, int64(7)).Return(nil, account.ErrUserNotFound)

	_, err = strategy.Authenticate(ctx, token.Token)
	assert.ErrorIs(t, err, account.ErrUserNotFound)
}

func TestProviderStrategy(t *testing.T) {
	accounts := new(MockAccounts)
	google := NewGoogleStrategy(accounts)
	facebook := NewFacebookStrategy(accounts)
	ctx := context.Background()

	profile := account.ProviderProfile{ExternalID: "sub-1", Email: "g@example.com", DisplayName: "G"}

	accounts.On("LoginWithProvider", ctx, account.ProviderGoogle, profile).
		Return(&account.User{ID: 3, Provider: account.ProviderGoogle}, nil)
	accounts.On("LoginWithProvider", ctx, account.ProviderFacebook, profile).
		Return(nil, account.ErrEmailLinkedElsewhere)

	user, err := google.Authenticate(ctx, profile)
	require.NoError(t, err)
	assert.Equal(t, account.ProviderGoogle, user.Provider)

	_, err = facebook.Authenticate(ctx, profile)
	assert.ErrorIs(t, err, account.ErrEmailLinkedElsewhere)
}
