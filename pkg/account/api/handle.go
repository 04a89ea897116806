package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ggicci/httpin"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-account/pkg/account"
	"github.com/tendant/simple-account/pkg/authstrategy"
	"github.com/tendant/simple-account/pkg/sessiontoken"
)

type contextKey string

// AuthUserKey is the request-context key holding the authenticated user
const AuthUserKey contextKey = "authUser"

// Handle handles HTTP requests for the account service
type Handle struct {
	accounts *account.Service
	password *authstrategy.PasswordStrategy
	bearer   *authstrategy.BearerStrategy
	google   *authstrategy.ProviderStrategy
	facebook *authstrategy.ProviderStrategy
	webURL   string
}

// Option is a function that configures a Handle
type Option func(*Handle)

// WithAccountService sets the account service
func WithAccountService(service *account.Service) Option {
	return func(h *Handle) {
		h.accounts = service
	}
}

// WithPasswordStrategy sets the password authentication strategy
func WithPasswordStrategy(strategy *authstrategy.PasswordStrategy) Option {
	return func(h *Handle) {
		h.password = strategy
	}
}

// WithBearerStrategy sets the bearer authentication strategy
func WithBearerStrategy(strategy *authstrategy.BearerStrategy) Option {
	return func(h *Handle) {
		h.bearer = strategy
	}
}

// WithGoogleStrategy sets the Google provider strategy
func WithGoogleStrategy(strategy *authstrategy.ProviderStrategy) Option {
	return func(h *Handle) {
		h.google = strategy
	}
}

// WithFacebookStrategy sets the Facebook provider strategy
func WithFacebookStrategy(strategy *authstrategy.ProviderStrategy) Option {
	return func(h *Handle) {
		h.facebook = strategy
	}
}

// WithWebURL sets the frontend base URL used for provider redirects
func WithWebURL(webURL string) Option {
	return func(h *Handle) {
		h.webURL = webURL
	}
}

// NewHandle creates a new account handler
func NewHandle(opts ...Option) *Handle {
	h := &Handle{}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers the account routes. The protected group runs the
// bearer strategy, which verifies the token, loads the user and refreshes
// last-active time.
func (h *Handle) RegisterRoutes(r chi.Router) {
	r.Route("/user", func(r chi.Router) {
		r.With(httpin.NewInput(RegisterInput{})).Post("/sign-up", h.SignUp)
		r.With(httpin.NewInput(VerifyEmailInput{})).Put("/verify-email", h.VerifyEmail)
		r.With(httpin.NewInput(ResendEmailInput{})).Post("/resend-email", h.ResendEmail)
		r.With(httpin.NewInput(LoginInput{})).Post("/login", h.Login)
		r.With(httpin.NewInput(ProviderCallbackInput{})).Post("/login/google/callback", h.GoogleCallback)
		r.With(httpin.NewInput(ProviderCallbackInput{})).Post("/login/facebook/callback", h.FacebookCallback)

		r.Group(func(r chi.Router) {
			r.Use(h.AuthUserMiddleware)
			r.Get("/", h.Profile)
			r.With(httpin.NewInput(ModifyNameInput{})).Put("/name", h.ModifyName)
			r.With(httpin.NewInput(ResetPasswordInput{})).Put("/reset-password", h.ResetPassword)
			r.With(httpin.NewInput(DashboardInput{})).Get("/dashboard", h.Dashboard)
		})
	})
}

// AuthUserMiddleware authenticates the bearer token and stores the resolved
// user in the request context.
func (h *Handle) AuthUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := jwtauth.TokenFromHeader(r)
		if tokenStr == "" {
			fail(w, r, sessiontoken.ErrInvalidToken)
			return
		}

		user, err := h.bearer.Authenticate(r.Context(), tokenStr)
		if err != nil {
			fail(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), AuthUserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authUser returns the user stored by AuthUserMiddleware
func authUser(r *http.Request) (*account.User, bool) {
	user, ok := r.Context().Value(AuthUserKey).(*account.User)
	return user, ok
}

// fail maps domain errors onto stable codes. Unexpected errors are normalized
// so internals never leak to callers.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var resp ErrorResponse

	switch {
	case errors.Is(err, account.ErrEmailExists):
		status, resp = http.StatusBadRequest, ErrorResponse{CodeEmailExists, "has same email exist"}
	case errors.Is(err, account.ErrVerificationNotFound):
		status, resp = http.StatusBadRequest, ErrorResponse{CodeNotFoundVerifyEmail, "not found verify email"}
	case errors.Is(err, account.ErrEmailAlreadyVerified):
		status, resp = http.StatusBadRequest, ErrorResponse{CodeEmailAlreadyVerified, "email is already verify"}
	case errors.Is(err, account.ErrUserNotFound):
		status, resp = http.StatusBadRequest, ErrorResponse{CodeNotFoundUser, "not found user"}
	case errors.Is(err, account.ErrUserNotVerified):
		status, resp = http.StatusBadRequest, ErrorResponse{CodeUserNotVerified, "user not verify"}
	case errors.Is(err, account.ErrIncorrectOldPassword):
		status, resp = http.StatusBadRequest, ErrorResponse{CodeIncorrectOldPassword, "incorrect old password"}
	case errors.Is(err, account.ErrEmailLinkedElsewhere):
		status, resp = http.StatusUnauthorized, ErrorResponse{CodeEmailExistOtherWay, "exist email but other way"}
	case errors.Is(err, authstrategy.ErrBadCredentials):
		status, resp = http.StatusUnauthorized, ErrorResponse{CodeBadCredentials, "incorrect email or password"}
	case errors.Is(err, sessiontoken.ErrTokenExpired):
		status, resp = http.StatusUnauthorized, ErrorResponse{CodeTokenExpired, "token expired"}
	case errors.Is(err, sessiontoken.ErrInvalidToken):
		status, resp = http.StatusUnauthorized, ErrorResponse{CodeInvalidToken, "invalid token"}
	default:
		slog.Error("Unexpected error", "err", err)
		status, resp = http.StatusInternalServerError, ErrorResponse{CodeInternalError, "internal server error"}
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}

func failValidation(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{CodeValidateError, err.Error()})
}

// SignUp handles registration
func (h *Handle) SignUp(w http.ResponseWriter, r *http.Request) {
	params := r.Context().Value(httpin.Input).(*RegisterInput).Payload
	if err := validateRegister(params); err != nil {
		failValidation(w, r, err)
		return
	}

	if err := h.accounts.Register(r.Context(), params.Email, params.Password); err != nil {
		fail(w, r, err)
		return
	}
	render.NoContent(w, r)
}

// VerifyEmail handles ticket-code verification
func (h *Handle) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	params := r.Context().Value(httpin.Input).(*VerifyEmailInput).Payload
	if params.VerifyCode == "" {
		failValidation(w, r, errors.New("verifyCode is required"))
		return
	}

	if err := h.accounts.VerifyEmail(r.Context(), params.VerifyCode); err != nil {
		fail(w, r, err)
		return
	}
	render.NoContent(w, r)
}

// ResendEmail handles verification mail re-dispatch
func (h *Handle) ResendEmail(w http.ResponseWriter, r *http.Request) {
	params := r.Context().Value(httpin.Input).(*ResendEmailInput).Payload
	if err := validateEmail(params.Email); err != nil {
		failValidation(w, r, err)
		return
	}

	if err := h.accounts.ResendEmail(r.Context(), params.Email); err != nil {
		fail(w, r, err)
		return
	}
	render.NoContent(w, r)
}

// Login handles password login and returns the issued session token
func (h *Handle) Login(w http.ResponseWriter, r *http.Request) {
	params := r.Context().Value(httpin.Input).(*LoginInput).Payload

	user, err := h.password.Authenticate(r.Context(), params.Email, params.Password)
	if err != nil {
		fail(w, r, err)
		return
	}

	token, err := h.accounts.Login(r.Context(), user.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	render.JSON(w, r, token)
}

// GoogleCallback handles a resolved Google identity
func (h *Handle) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	h.providerCallback(w, r, h.google)
}

// FacebookCallback handles a resolved Facebook identity
func (h *Handle) FacebookCallback(w http.ResponseWriter, r *http.Request) {
	h.providerCallback(w, r, h.facebook)
}

func (h *Handle) providerCallback(w http.ResponseWriter, r *http.Request, strategy *authstrategy.ProviderStrategy) {
	params := r.Context().Value(httpin.Input).(*ProviderCallbackInput).Payload
	profile := account.ProviderProfile{
		ExternalID:  params.ExternalID,
		Email:       params.Email,
		DisplayName: params.DisplayName,
	}

	user, err := strategy.Authenticate(r.Context(), profile)
	if err != nil {
		fail(w, r, err)
		return
	}

	token, err := h.accounts.Login(r.Context(), user.ID)
	if err != nil {
		fail(w, r, err)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("%s/auth?token=%s&exp=%d", h.webURL, token.Token, token.ExpiresAt), http.StatusFound)
}

// Profile returns the caller's email and display name
func (h *Handle) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := authUser(r)
	if !ok {
		fail(w, r, sessiontoken.ErrInvalidToken)
		return
	}

	profile, err := h.accounts.Profile(r.Context(), user.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	render.JSON(w, r, profile)
}

// ModifyName updates the caller's display name
func (h *Handle) ModifyName(w http.ResponseWriter, r *http.Request) {
	user, ok := authUser(r)
	if !ok {
		fail(w, r, sessiontoken.ErrInvalidToken)
		return
	}

	params := r.Context().Value(httpin.Input).(*ModifyNameInput).Payload
	if params.Name == "" {
		failValidation(w, r, errors.New("name is required"))
		return
	}

	if err := h.accounts.ModifyName(r.Context(), user.ID, params.Name); err != nil {
		fail(w, r, err)
		return
	}
	render.NoContent(w, r)
}

// ResetPassword changes the caller's password
func (h *Handle) ResetPassword(w http.ResponseWriter, r *http.Request) {
	user, ok := authUser(r)
	if !ok {
		fail(w, r, sessiontoken.ErrInvalidToken)
		return
	}

	params := r.Context().Value(httpin.Input).(*ResetPasswordInput).Payload
	if err := validateResetPassword(params); err != nil {
		failValidation(w, r, err)
		return
	}

	if err := h.accounts.ResetPassword(r.Context(), user.ID, params.OldPassword, params.NewPassword); err != nil {
		fail(w, r, err)
		return
	}
	render.NoContent(w, r)
}

// Dashboard returns the paginated user list and activity aggregates
func (h *Handle) Dashboard(w http.ResponseWriter, r *http.Request) {
	if _, ok := authUser(r); !ok {
		fail(w, r, sessiontoken.ErrInvalidToken)
		return
	}

	input := r.Context().Value(httpin.Input).(*DashboardInput)
	if input.Page < 1 || input.PageSize < 1 {
		failValidation(w, r, errors.New("page and pageSize must be positive"))
		return
	}

	dashboard, err := h.accounts.Dashboard(r.Context(), input.Page, input.PageSize)
	if err != nil {
		fail(w, r, err)
		return
	}
	render.JSON(w, r, dashboard)
}
