package account

import (
	"context"
	"time"
)

// Repository is the credential store. Methods on Repository run as single
// auto-committed statements; multi-statement mutations go through BeginTx.
type Repository interface {
	// BeginTx starts an explicitly bounded transaction. The caller must end it
	// with Commit or Rollback on every exit path so the underlying connection
	// is returned to the pool.
	BeginTx(ctx context.Context) (TxRepository, error)

	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, userID int64) (*User, error)
	GetProfile(ctx context.Context, userID int64) (*Profile, error)
	GetEmailVerification(ctx context.Context, email string) (*EmailVerification, error)
	GetProviderUser(ctx context.Context, subject string, provider Provider) (*User, error)
	CheckEmailExists(ctx context.Context, email string) (bool, error)
	InsertProviderUser(ctx context.Context, provider Provider, profile ProviderProfile) error
	RecordLogin(ctx context.Context, userID int64, loginTime time.Time) error
	TouchActiveTime(ctx context.Context, userID int64) error

	ListUsers(ctx context.Context, page, pageSize int) ([]DashboardUser, error)
	CountUsers(ctx context.Context) (int64, error)
	CountActiveSince(ctx context.Context, since time.Time) (int64, error)
}

// TxRepository is a transaction handle over the credential store. Reads that
// precede a write to the same row take a row-level lock so concurrent mutators
// of that row serialize on the transaction boundary.
type TxRepository interface {
	CheckEmailExists(ctx context.Context, email string) (bool, error)
	InsertLocalUser(ctx context.Context, email, hashedPassword string) error
	GetUserIDByEmail(ctx context.Context, email string) (int64, error)
	InsertVerification(ctx context.Context, userID int64, code string) error

	// LockVerificationByCode locks the matching ticket row and returns the
	// owning user ID.
	LockVerificationByCode(ctx context.Context, code string) (int64, error)
	MarkUserVerified(ctx context.Context, userID int64) error

	// LockUserByID locks the user row for the remainder of the transaction.
	LockUserByID(ctx context.Context, userID int64) (*User, error)
	UpdateUserName(ctx context.Context, userID int64, name string) error
	UpdateUserPassword(ctx context.Context, userID int64, hashedPassword string) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
