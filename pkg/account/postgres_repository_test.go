package account

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-account/pkg/notification"
	"github.com/tendant/simple-account/pkg/sessiontoken"
)

func setupTestDatabase(t *testing.T) (*pgxpool.Pool, func()) {
	ctx := context.Background()

	dbName := "account_db"
	dbUser := "account"
	dbPassword := "pwd"

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithInitScripts(filepath.Join("../../migrations", "account_db.sql")),
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	require.NoError(t, err)

	connString, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	poolConfig, err := pgxpool.ParseConfig(connString)
	require.NoError(t, err)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

func newPgTestService(pool *pgxpool.Pool) (*Service, *notification.MockNotifier) {
	notifier := notification.NewMockNotifier()
	tokens := sessiontoken.New("test-secret")
	repo := NewPostgresRepository(pool)
	return New(repo, tokens, notifier, "http://localhost:3000", WithBcryptCost(bcrypt.MinCost)), notifier
}

func verificationCode(t *testing.T, pool *pgxpool.Pool, email string) string {
	var code string
	err := pool.QueryRow(context.Background(), `
		SELECT e.hash
		FROM verify_email e
		JOIN users u ON u.id = e.user_id
		WHERE u.email = $1
	`, email).Scan(&code)
	require.NoError(t, err)
	return code
}

func TestRegisterAndVerifyFlow(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	service, notifier := newPgTestService(pool)
	repo := NewPostgresRepository(pool)

	err := service.Register(ctx, "flow@example.com", "Passw0rd!")
	require.NoError(t, err)

	user, err := repo.GetUserByEmail(ctx, "flow@example.com")
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, user.Provider)
	assert.Equal(t, VerifyNotYet, user.IsVerify)
	assert.NotEmpty(t, user.HashedPassword)

	// duplicate registration is rejected and leaves a single row
	err = service.Register(ctx, "flow@example.com", "Passw0rd!")
	assert.ErrorIs(t, err, ErrEmailExists)

	code := verificationCode(t, pool, "flow@example.com")

	err = service.VerifyEmail(ctx, code)
	require.NoError(t, err)

	user, err = repo.GetUserByEmail(ctx, "flow@example.com")
	require.NoError(t, err)
	assert.Equal(t, VerifyPass, user.IsVerify)

	// the ticket is never deleted: a second verification succeeds and the
	// status simply stays pass
	err = service.VerifyEmail(ctx, code)
	require.NoError(t, err)

	user, err = repo.GetUserByEmail(ctx, "flow@example.com")
	require.NoError(t, err)
	assert.Equal(t, VerifyPass, user.IsVerify)

	assert.Eventually(t, func() bool {
		return len(notifier.Sent()) >= 1
	}, time.Second, 10*time.Millisecond)
}

func TestConcurrentRegisterSameEmail(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	service, _ := newPgTestService(pool)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = service.Register(ctx, "race@example.com", "Passw0rd!")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			// the loser observes the same error as a sequential duplicate,
			// even though its existence check ran before the winner committed
			assert.ErrorIs(t, err, ErrEmailExists)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one concurrent registration must win")

	var count int64
	err := pool.QueryRow(ctx, `SELECT COUNT(1) FROM users WHERE email = $1`, "race@example.com").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestConcurrentModifyNameSerializes(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	service, _ := newPgTestService(pool)
	repo := NewPostgresRepository(pool)

	require.NoError(t, service.Register(ctx, "lock@example.com", "Passw0rd!"))
	user, err := repo.GetUserByEmail(ctx, "lock@example.com")
	require.NoError(t, err)

	var wg sync.WaitGroup
	names := []string{"first-writer", "second-writer"}
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			assert.NoError(t, service.ModifyName(ctx, user.ID, name))
		}(name)
	}
	wg.Wait()

	// the row lock serializes both writers; the stored value is exactly one
	// of the two payloads, never a corrupted mix
	updated, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Contains(t, names, updated.Name)
}

func TestResetPasswordAgainstDatabase(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	service, _ := newPgTestService(pool)
	repo := NewPostgresRepository(pool)

	require.NoError(t, service.Register(ctx, "reset@example.com", "OldPass1!"))
	user, err := repo.GetUserByEmail(ctx, "reset@example.com")
	require.NoError(t, err)

	err = service.ResetPassword(ctx, user.ID, "WrongPass1!", "NewPass1!")
	assert.ErrorIs(t, err, ErrIncorrectOldPassword)

	// stored hash unchanged after the rejected attempt
	unchanged, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.HashedPassword, unchanged.HashedPassword)

	require.NoError(t, service.ResetPassword(ctx, user.ID, "OldPass1!", "NewPass1!"))

	updated, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.HashedPassword), []byte("NewPass1!")))
}

func TestLoginBookkeeping(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	service, _ := newPgTestService(pool)
	repo := NewPostgresRepository(pool)

	require.NoError(t, service.Register(ctx, "login@example.com", "Passw0rd!"))
	user, err := repo.GetUserByEmail(ctx, "login@example.com")
	require.NoError(t, err)
	require.Equal(t, int64(0), user.LoginTimes)

	token, err := service.Login(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)

	updated, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.LoginTimes)
	assert.NotNil(t, updated.LastLoginTime)
	assert.NotNil(t, updated.LastActiveTime)
}

func TestProviderUserRoundTrip(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	service, _ := newPgTestService(pool)

	profile := ProviderProfile{ExternalID: "google-sub-1", Email: "guser@example.com", DisplayName: "G User"}
	user, err := service.LoginWithProvider(ctx, ProviderGoogle, profile)
	require.NoError(t, err)
	assert.Equal(t, VerifyPass, user.IsVerify)
	assert.Empty(t, user.HashedPassword)

	// second login resolves the same row
	again, err := service.LoginWithProvider(ctx, ProviderGoogle, profile)
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)

	// a local account already holding the email blocks linking
	require.NoError(t, service.Register(ctx, "taken@example.com", "Passw0rd!"))
	_, err = service.LoginWithProvider(ctx, ProviderGoogle, ProviderProfile{ExternalID: "google-sub-2", Email: "taken@example.com"})
	assert.ErrorIs(t, err, ErrEmailLinkedElsewhere)
}

func TestConcurrentProviderLogin(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	service, _ := newPgTestService(pool)

	profile := ProviderProfile{ExternalID: "race-sub", Email: "prace@example.com", DisplayName: "Race"}

	var wg sync.WaitGroup
	users := make([]*User, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			users[i], errs[i] = service.LoginWithProvider(ctx, ProviderGoogle, profile)
		}(i)
	}
	wg.Wait()

	// both logins carry the same identity, so both resolve to the single row
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, users[0].ID, users[1].ID)

	var count int64
	err := pool.QueryRow(ctx, `SELECT COUNT(1) FROM users WHERE subject = $1`, "race-sub").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDashboardAggregates(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	service, _ := newPgTestService(pool)
	repo := NewPostgresRepository(pool)

	for _, email := range []string{"d1@example.com", "d2@example.com", "d3@example.com"} {
		require.NoError(t, service.Register(ctx, email, "Passw0rd!"))
	}
	user, err := repo.GetUserByEmail(ctx, "d1@example.com")
	require.NoError(t, err)
	_, err = service.Login(ctx, user.ID)
	require.NoError(t, err)

	dashboard, err := service.Dashboard(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), dashboard.TotalUser)
	assert.Len(t, dashboard.UserList, 3)
	assert.Equal(t, int64(1), dashboard.TotalActiveToday)
	assert.Equal(t, int64(1), dashboard.TotalActiveWeek)
}
