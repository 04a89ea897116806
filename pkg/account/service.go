package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-account/pkg/notification"
	"github.com/tendant/simple-account/pkg/sessiontoken"
)

// DefaultBcryptCost matches the cost the stored hashes were created with.
const DefaultBcryptCost = 10

// Service orchestrates account mutations. Every multi-statement operation
// runs in its own transaction against the repository; no user state is cached
// across calls.
type Service struct {
	repo       Repository
	tokens     *sessiontoken.Service
	notifier   notification.Notifier
	webURL     string
	bcryptCost int
}

// Option configures a Service
type Option func(*Service)

// WithBcryptCost sets the password hashing cost factor
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// New creates a new account service
func New(repo Repository, tokens *sessiontoken.Service, notifier notification.Notifier, webURL string, opts ...Option) *Service {
	service := &Service{
		repo:       repo,
		tokens:     tokens,
		notifier:   notifier,
		webURL:     webURL,
		bcryptCost: DefaultBcryptCost,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *Service) hashPassword(password string) (string, error) {
	// bcrypt embeds a fresh random salt in every hash
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// dispatchVerification sends the verification mail without blocking the
// caller. Failures are logged, never propagated.
func (s *Service) dispatchVerification(email, code string) {
	msg, err := notification.VerificationMessage(email, s.webURL, code)
	if err != nil {
		slog.Error("Failed to build verification email", "email", email, "err", err)
		return
	}
	go func() {
		if err := s.notifier.Send(msg); err != nil {
			slog.Error("Failed to send verification email", "email", email, "err", err)
		}
	}()
}

// Register creates an unverified local user and its verification ticket in
// one transaction. Mail dispatch is best-effort and does not participate in
// the transaction outcome.
func (s *Service) Register(ctx context.Context, email, password string) error {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	exists, err := tx.CheckEmailExists(ctx, email)
	if err != nil {
		return err
	}
	if exists {
		return ErrEmailExists
	}

	hashed, err := s.hashPassword(password)
	if err != nil {
		return err
	}

	if err := tx.InsertLocalUser(ctx, email, hashed); err != nil {
		return err
	}

	userID, err := tx.GetUserIDByEmail(ctx, email)
	if err != nil {
		return err
	}

	code := uuid.NewString()
	if err := tx.InsertVerification(ctx, userID, code); err != nil {
		return err
	}

	s.dispatchVerification(email, code)

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit registration: %w", err)
	}

	slog.Info("User registered", "user_id", userID, "email", email)
	return nil
}

// VerifyEmail flips the owning user's status to pass for a matching ticket
// code. The ticket row is locked before the status write so concurrent
// verifications of the same code serialize. Verifying an already verified
// user is a status no-op; the ticket is never deleted.
func (s *Service) VerifyEmail(ctx context.Context, code string) error {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	userID, err := tx.LockVerificationByCode(ctx, code)
	if err != nil {
		return err
	}

	if err := tx.MarkUserVerified(ctx, userID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit verification: %w", err)
	}

	slog.Info("Email verified", "user_id", userID)
	return nil
}

// ResendEmail re-dispatches the verification mail using the existing ticket code
func (s *Service) ResendEmail(ctx context.Context, email string) error {
	verification, err := s.repo.GetEmailVerification(ctx, email)
	if err != nil {
		return err
	}
	if verification.Status != VerifyNotYet {
		return ErrEmailAlreadyVerified
	}

	s.dispatchVerification(email, verification.Code)
	return nil
}

// Login issues a session token and records the login bookkeeping (last login
// time, login counter, last active time) in a single statement.
func (s *Service) Login(ctx context.Context, userID int64) (*sessiontoken.Token, error) {
	token, err := s.tokens.Issue(userID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.RecordLogin(ctx, userID, time.Unix(token.IssuedAt, 0).UTC()); err != nil {
		return nil, err
	}

	slog.Info("User logged in", "user_id", userID)
	return token, nil
}

// TouchActive refreshes the user's last active time (bearer-token side effect)
func (s *Service) TouchActive(ctx context.Context, userID int64) error {
	return s.repo.TouchActiveTime(ctx, userID)
}

// VerifiedUserByEmail returns the user holding the email, rejecting users that
// have not passed email verification.
func (s *Service) VerifiedUserByEmail(ctx context.Context, email string) (*User, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.IsVerify != VerifyPass {
		return nil, ErrUserNotVerified
	}
	return user, nil
}

// UserByID returns the user with the given ID
func (s *Service) UserByID(ctx context.Context, userID int64) (*User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// Profile returns the email and display name of a user
func (s *Service) Profile(ctx context.Context, userID int64) (*Profile, error) {
	return s.repo.GetProfile(ctx, userID)
}

// ModifyName updates the display name under a row lock
func (s *Service) ModifyName(ctx context.Context, userID int64, name string) error {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	user, err := tx.LockUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := tx.UpdateUserName(ctx, user.ID, name); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit name change: %w", err)
	}
	return nil
}

// ResetPassword verifies the old password against the stored hash and replaces
// it with a fresh hash. The row lock is taken before the hash comparison so a
// failed comparison still releases deterministically on rollback.
func (s *Service) ResetPassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	user, err := tx.LockUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(oldPassword)); err != nil {
		return ErrIncorrectOldPassword
	}

	hashed, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := tx.UpdateUserPassword(ctx, user.ID, hashed); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit password reset: %w", err)
	}

	slog.Info("Password reset", "user_id", userID)
	return nil
}

// Dashboard runs the four aggregate reads concurrently. The reads are not
// linearized against concurrent writes; each statement sees its own snapshot.
func (s *Service) Dashboard(ctx context.Context, page, pageSize int) (*Dashboard, error) {
	now := time.Now().UTC()
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	startOfWeek := startOfToday.AddDate(0, 0, -6)

	dashboard := &Dashboard{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		users, err := s.repo.ListUsers(ctx, page, pageSize)
		if err != nil {
			return err
		}
		dashboard.UserList = users
		return nil
	})
	g.Go(func() error {
		count, err := s.repo.CountUsers(ctx)
		if err != nil {
			return err
		}
		dashboard.TotalUser = count
		return nil
	})
	g.Go(func() error {
		count, err := s.repo.CountActiveSince(ctx, startOfToday)
		if err != nil {
			return err
		}
		dashboard.TotalActiveToday = count
		return nil
	})
	g.Go(func() error {
		count, err := s.repo.CountActiveSince(ctx, startOfWeek)
		if err != nil {
			return err
		}
		dashboard.TotalActiveWeek = count
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dashboard, nil
}

// LoginWithProvider links or creates the user for a resolved provider
// identity. A new row is only created when the provider email does not
// already belong to an account created another way.
func (s *Service) LoginWithProvider(ctx context.Context, provider Provider, profile ProviderProfile) (*User, error) {
	user, err := s.repo.GetProviderUser(ctx, profile.ExternalID, provider)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	exists, err := s.repo.CheckEmailExists(ctx, profile.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailLinkedElsewhere
	}

	if err := s.repo.InsertProviderUser(ctx, provider, profile); err != nil {
		// the insert can race another writer holding the same email; when the
		// writer was this same provider identity, resolve to its row instead
		// of rejecting
		if errors.Is(err, ErrEmailLinkedElsewhere) {
			if user, raceErr := s.repo.GetProviderUser(ctx, profile.ExternalID, provider); raceErr == nil {
				return user, nil
			}
		}
		return nil, err
	}

	slog.Info("Provider user created", "provider", provider, "subject", profile.ExternalID)
	return s.repo.GetProviderUser(ctx, profile.ExternalID, provider)
}
