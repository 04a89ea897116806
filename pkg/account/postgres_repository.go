package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation reports whether err is a unique-constraint violation on the
// named constraint or index.
func uniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL account repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
	}
}

// logQuery records statement duration, mirroring the store's query log.
func logQuery(name string, start time.Time) {
	slog.Debug("executed query", "name", name, "duration", time.Since(start))
}

// getPagination appends LIMIT/OFFSET clauses for a 1-based page number.
// The offset formula (pageSize-1)*page is kept as-is for compatibility with
// stored behavior; TestGetPagination pins it.
func getPagination(query string, page, pageSize int) string {
	query += fmt.Sprintf(" LIMIT %d", pageSize)
	if page-1 > 0 {
		query += fmt.Sprintf(" OFFSET %d", (pageSize-1)*page)
	}
	return query
}

const userColumns = `
	id, email, name, hashed_password, provider, subject, is_verify,
	create_time, last_login_time, login_times, last_active_time
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	user := &User{}
	var name, hashedPassword, subject sql.NullString
	var lastLogin, lastActive sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Email,
		&name,
		&hashedPassword,
		&user.Provider,
		&subject,
		&user.IsVerify,
		&user.CreateTime,
		&lastLogin,
		&user.LoginTimes,
		&lastActive,
	)
	if err != nil {
		return nil, err
	}

	user.Name = name.String
	user.HashedPassword = hashedPassword.String
	user.Subject = subject.String
	if lastLogin.Valid {
		user.LastLoginTime = &lastLogin.Time
	}
	if lastActive.Valid {
		user.LastActiveTime = &lastActive.Time
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	defer logQuery("GetUserByEmail", time.Now())
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1
	`

	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by ID
func (r *PostgresRepository) GetUserByID(ctx context.Context, userID int64) (*User, error) {
	defer logQuery("GetUserByID", time.Now())
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`

	user, err := scanUser(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetProfile retrieves the email and name of a user
func (r *PostgresRepository) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	defer logQuery("GetProfile", time.Now())
	query := `
		SELECT email, name
		FROM users
		WHERE id = $1
	`

	profile := &Profile{}
	var name sql.NullString
	err := r.pool.QueryRow(ctx, query, userID).Scan(&profile.Email, &name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	profile.Name = name.String
	return profile, nil
}

// GetEmailVerification retrieves the verification status and ticket code for an email
func (r *PostgresRepository) GetEmailVerification(ctx context.Context, email string) (*EmailVerification, error) {
	defer logQuery("GetEmailVerification", time.Now())
	query := `
		SELECT u.is_verify, e.hash
		FROM users u
		LEFT JOIN verify_email e ON e.user_id = u.id
		WHERE u.email = $1
	`

	verification := &EmailVerification{}
	var code sql.NullString
	err := r.pool.QueryRow(ctx, query, email).Scan(&verification.Status, &code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVerificationNotFound
		}
		return nil, fmt.Errorf("failed to get email verification: %w", err)
	}
	verification.Code = code.String
	return verification, nil
}

// GetProviderUser retrieves a user by provider subject
func (r *PostgresRepository) GetProviderUser(ctx context.Context, subject string, provider Provider) (*User, error) {
	defer logQuery("GetProviderUser", time.Now())
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE subject = $1
		AND provider = $2
	`

	user, err := scanUser(r.pool.QueryRow(ctx, query, subject, provider))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get provider user: %w", err)
	}
	return user, nil
}

// CheckEmailExists reports whether any user row holds the given email
func (r *PostgresRepository) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	defer logQuery("CheckEmailExists", time.Now())
	return checkEmailExists(ctx, r.pool, email)
}

// InsertProviderUser inserts a new verified user originating from an OAuth provider
func (r *PostgresRepository) InsertProviderUser(ctx context.Context, provider Provider, profile ProviderProfile) error {
	defer logQuery("InsertProviderUser", time.Now())
	query := `
		INSERT INTO users (email, name, provider, subject, is_verify)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query, profile.Email, profile.DisplayName, provider, profile.ExternalID, VerifyPass)
	if err != nil {
		// a concurrent login with the same identity already created the row;
		// the caller re-reads it
		if uniqueViolation(err, "users_provider_subject_idx") {
			return nil
		}
		if uniqueViolation(err, "users_email_key") {
			return ErrEmailLinkedElsewhere
		}
		return fmt.Errorf("failed to insert provider user: %w", err)
	}
	return nil
}

// RecordLogin updates last login time, login counter and last active time in one statement
func (r *PostgresRepository) RecordLogin(ctx context.Context, userID int64, loginTime time.Time) error {
	defer logQuery("RecordLogin", time.Now())
	query := `
		UPDATE users
		SET last_login_time = $1,
		    login_times = login_times + 1,
		    last_active_time = CURRENT_TIMESTAMP
		WHERE id = $2
	`

	_, err := r.pool.Exec(ctx, query, loginTime, userID)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// TouchActiveTime refreshes the user's last active time
func (r *PostgresRepository) TouchActiveTime(ctx context.Context, userID int64) error {
	defer logQuery("TouchActiveTime", time.Now())
	query := `
		UPDATE users
		SET last_active_time = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to touch active time: %w", err)
	}
	return nil
}

// ListUsers returns one page of users ordered by creation time descending
func (r *PostgresRepository) ListUsers(ctx context.Context, page, pageSize int) ([]DashboardUser, error) {
	defer logQuery("ListUsers", time.Now())
	query := `
		SELECT email, name, create_time, login_times, last_active_time
		FROM users
		ORDER BY create_time DESC
	`
	query = getPagination(query, page, pageSize)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []DashboardUser{}
	for rows.Next() {
		var u DashboardUser
		var name sql.NullString
		var lastActive sql.NullTime
		if err := rows.Scan(&u.Email, &name, &u.CreateTime, &u.LoginTimes, &lastActive); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		u.Name = name.String
		if lastActive.Valid {
			u.LastActiveTime = &lastActive.Time
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read user rows: %w", err)
	}
	return users, nil
}

// CountUsers returns the total number of users
func (r *PostgresRepository) CountUsers(ctx context.Context) (int64, error) {
	defer logQuery("CountUsers", time.Now())
	query := `
		SELECT COUNT(1) AS count
		FROM users
	`

	var count int64
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// CountActiveSince returns the number of users active at or after the given time
func (r *PostgresRepository) CountActiveSince(ctx context.Context, since time.Time) (int64, error) {
	defer logQuery("CountActiveSince", time.Now())
	query := `
		SELECT COUNT(1) AS count
		FROM users
		WHERE last_active_time >= $1
	`

	var count int64
	if err := r.pool.QueryRow(ctx, query, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active users: %w", err)
	}
	return count, nil
}

// BeginTx starts a transaction and returns a handle bound to it
func (r *PostgresRepository) BeginTx(ctx context.Context) (TxRepository, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &postgresTx{tx: tx}, nil
}

// postgresTx implements TxRepository on a pgx transaction. Rollback after a
// successful Commit is a no-op, which lets callers defer it unconditionally.
type postgresTx struct {
	tx pgx.Tx
}

type execer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func checkEmailExists(ctx context.Context, db execer, email string) (bool, error) {
	query := `
		SELECT COUNT(1) AS count
		FROM users
		WHERE email = $1
	`

	var count int64
	if err := db.QueryRow(ctx, query, email).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return count != 0, nil
}

// CheckEmailExists reports whether any user row holds the given email
func (t *postgresTx) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	defer logQuery("tx.CheckEmailExists", time.Now())
	return checkEmailExists(ctx, t.tx, email)
}

// InsertLocalUser inserts an unverified password-based user
func (t *postgresTx) InsertLocalUser(ctx context.Context, email, hashedPassword string) error {
	defer logQuery("tx.InsertLocalUser", time.Now())
	query := `
		INSERT INTO users (email, hashed_password, provider, is_verify)
		VALUES ($1, $2, $3, $4)
	`

	_, err := t.tx.Exec(ctx, query, email, hashedPassword, ProviderLocal, VerifyNotYet)
	if err != nil {
		// two registrations can race past CheckEmailExists; the unique index
		// decides the loser, who must observe the same error as a sequential
		// duplicate
		if uniqueViolation(err, "users_email_key") {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUserIDByEmail returns the ID of the user holding the given email
func (t *postgresTx) GetUserIDByEmail(ctx context.Context, email string) (int64, error) {
	defer logQuery("tx.GetUserIDByEmail", time.Now())
	query := `
		SELECT id
		FROM users
		WHERE email = $1
	`

	var userID int64
	err := t.tx.QueryRow(ctx, query, email).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to get user id: %w", err)
	}
	return userID, nil
}

// InsertVerification inserts a verification ticket for the user
func (t *postgresTx) InsertVerification(ctx context.Context, userID int64, code string) error {
	defer logQuery("tx.InsertVerification", time.Now())
	query := `
		INSERT INTO verify_email (user_id, hash)
		VALUES ($1, $2)
	`

	_, err := t.tx.Exec(ctx, query, userID, code)
	if err != nil {
		return fmt.Errorf("failed to insert verification: %w", err)
	}
	return nil
}

// LockVerificationByCode locks the ticket row matching the code and returns the owning user ID
func (t *postgresTx) LockVerificationByCode(ctx context.Context, code string) (int64, error) {
	defer logQuery("tx.LockVerificationByCode", time.Now())
	query := `
		SELECT user_id
		FROM verify_email
		WHERE hash = $1
		FOR UPDATE
	`

	var userID int64
	err := t.tx.QueryRow(ctx, query, code).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrVerificationNotFound
		}
		return 0, fmt.Errorf("failed to lock verification: %w", err)
	}
	return userID, nil
}

// MarkUserVerified flips the user's verification status to pass
func (t *postgresTx) MarkUserVerified(ctx context.Context, userID int64) error {
	defer logQuery("tx.MarkUserVerified", time.Now())
	query := `
		UPDATE users
		SET is_verify = $1
		WHERE id = $2
	`

	_, err := t.tx.Exec(ctx, query, VerifyPass, userID)
	if err != nil {
		return fmt.Errorf("failed to mark user verified: %w", err)
	}
	return nil
}

// LockUserByID locks the user row for the remainder of the transaction
func (t *postgresTx) LockUserByID(ctx context.Context, userID int64) (*User, error) {
	defer logQuery("tx.LockUserByID", time.Now())
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
		FOR UPDATE
	`

	user, err := scanUser(t.tx.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	return user, nil
}

// UpdateUserName updates the display name of a locked user row
func (t *postgresTx) UpdateUserName(ctx context.Context, userID int64, name string) error {
	defer logQuery("tx.UpdateUserName", time.Now())
	query := `
		UPDATE users
		SET name = $1
		WHERE id = $2
	`

	_, err := t.tx.Exec(ctx, query, name, userID)
	if err != nil {
		return fmt.Errorf("failed to update name: %w", err)
	}
	return nil
}

// UpdateUserPassword replaces the stored password hash of a locked user row
func (t *postgresTx) UpdateUserPassword(ctx context.Context, userID int64, hashedPassword string) error {
	defer logQuery("tx.UpdateUserPassword", time.Now())
	query := `
		UPDATE users
		SET hashed_password = $1
		WHERE id = $2
	`

	_, err := t.tx.Exec(ctx, query, hashedPassword, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// Commit commits the transaction
func (t *postgresTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback aborts the transaction; after Commit it is a no-op
func (t *postgresTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}
