package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jinzhu/copier"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"

	"github.com/tendant/simple-account/pkg/account"
	"github.com/tendant/simple-account/pkg/account/api"
	"github.com/tendant/simple-account/pkg/authstrategy"
	"github.com/tendant/simple-account/pkg/notification"
	"github.com/tendant/simple-account/pkg/sessiontoken"
)

type DbConfig struct {
	Host          string `env:"ACCOUNT_PG_HOST" env-default:"localhost"`
	Port          uint16 `env:"ACCOUNT_PG_PORT" env-default:"5432"`
	Database      string `env:"ACCOUNT_PG_DATABASE" env-default:"account_db"`
	User          string `env:"ACCOUNT_PG_USER" env-default:"account"`
	Password      string `env:"ACCOUNT_PG_PASSWORD" env-default:"pwd"`
	PoolMax       int32  `env:"ACCOUNT_PG_POOL_MAX" env-default:"20"`
	IdleTimeoutMs int64  `env:"ACCOUNT_PG_IDLE_TIMEOUT_MS" env-default:"30000"`
}

func (d DbConfig) toDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		d.User, d.Password, d.Host, d.Port, d.Database)
}

type JwtConfig struct {
	Secret        string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	ExpireSeconds int64  `env:"TOKEN_EXPIRE_TIME" env-default:"18000"`
}

type PasswordConfig struct {
	BcryptCost int `env:"PASSWORD_BCRYPT_COST" env-default:"10"`
}

type EmailConfig struct {
	Host     string `env:"EMAIL_HOST" env-default:"localhost"`
	Port     int    `env:"EMAIL_PORT" env-default:"1025"`
	Username string `env:"EMAIL_USERNAME" env-default:""`
	Password string `env:"EMAIL_PASSWORD" env-default:""`
	From     string `env:"EMAIL_FROM" env-default:"noreply@example.com"`
	TLS      bool   `env:"EMAIL_TLS" env-default:"false"`
}

type Config struct {
	DbConfig       DbConfig
	JwtConfig      JwtConfig
	PasswordConfig PasswordConfig
	EmailConfig    EmailConfig
	AppConfig      app.AppConfig
	WebURL         string `env:"WEB_URL" env-default:"http://localhost:3000"`
}

// newDbPool builds a bounded pool. TLS is enabled without peer verification;
// this matches the deployment the service talks to.
func newDbPool(ctx context.Context, config DbConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(config.toDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolConfig.MaxConns = config.PoolMax
	poolConfig.MaxConnIdleTime = time.Duration(config.IdleTimeoutMs) * time.Millisecond
	poolConfig.ConnConfig.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	return pgxpool.NewWithConfig(ctx, poolConfig)
}

func main() {
	godotenv.Load()

	config := Config{}
	cleanenv.ReadEnv(&config)

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	pool, err := newDbPool(context.Background(), config.DbConfig)
	if err != nil {
		slog.Error("Failed creating dbpool", "db", config.DbConfig.Database, "host", config.DbConfig.Host, "err", err)
		os.Exit(-1)
	}

	var smtpConfig notification.SMTPConfig
	copier.Copy(&smtpConfig, &config.EmailConfig)
	notifier, err := notification.NewEmailNotifier(smtpConfig)
	if err != nil {
		slog.Error("Failed creating email notifier", "err", err)
		os.Exit(-1)
	}

	tokenService := sessiontoken.New(
		config.JwtConfig.Secret,
		sessiontoken.WithExpiry(time.Duration(config.JwtConfig.ExpireSeconds)*time.Second),
	)

	repo := account.NewPostgresRepository(pool)
	accountService := account.New(
		repo,
		tokenService,
		notifier,
		config.WebURL,
		account.WithBcryptCost(config.PasswordConfig.BcryptCost),
	)

	handle := api.NewHandle(
		api.WithAccountService(accountService),
		api.WithPasswordStrategy(authstrategy.NewPasswordStrategy(accountService)),
		api.WithBearerStrategy(authstrategy.NewBearerStrategy(tokenService, accountService)),
		api.WithGoogleStrategy(authstrategy.NewGoogleStrategy(accountService)),
		api.WithFacebookStrategy(authstrategy.NewFacebookStrategy(accountService)),
		api.WithWebURL(config.WebURL),
	)

	handle.RegisterRoutes(server.R)

	server.Run()
}
