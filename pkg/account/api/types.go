package api

// Error codes returned to callers. Codes are stable machine-readable
// identifiers; messages are for humans.
const (
	CodeValidateError        = "VALIDATE_ERROR"
	CodeEmailExists          = "EMAIL_EXIST"
	CodeNotFoundVerifyEmail  = "NOT_FOUND_VERIFY_EMAIL"
	CodeEmailAlreadyVerified = "EMAIL_ALREADY_VERIFY"
	CodeNotFoundUser         = "NOT_FOUND_USER"
	CodeUserNotVerified      = "USER_NOT_VERIFY"
	CodeIncorrectOldPassword = "INCORRECT_OLD_PASSWORD"
	CodeEmailExistOtherWay   = "EMAIL_EXIST_OTHER_WAY"
	CodeBadCredentials       = "INCORRECT_EMAIL_OR_PASSWORD"
	CodeTokenExpired         = "TOKEN_EXPIRED"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeInternalError        = "INTERNAL_SERVER_ERROR"
)

// ErrorResponse is the uniform error payload
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RegisterParams is the sign-up payload
type RegisterParams struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// RegisterInput binds the sign-up body
type RegisterInput struct {
	Payload *RegisterParams `in:"body=json"`
}

// VerifyEmailParams carries the one-time verification code
type VerifyEmailParams struct {
	VerifyCode string `json:"verifyCode"`
}

// VerifyEmailInput binds the verify-email body
type VerifyEmailInput struct {
	Payload *VerifyEmailParams `in:"body=json"`
}

// ResendEmailParams carries the address to re-send verification to
type ResendEmailParams struct {
	Email string `json:"email"`
}

// ResendEmailInput binds the resend-email body
type ResendEmailInput struct {
	Payload *ResendEmailParams `in:"body=json"`
}

// LoginParams is the password login payload
type LoginParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginInput binds the login body
type LoginInput struct {
	Payload *LoginParams `in:"body=json"`
}

// ProviderCallbackParams is the identity resolved by the upstream OAuth
// exchange
type ProviderCallbackParams struct {
	ExternalID  string `json:"externalId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// ProviderCallbackInput binds the provider callback body
type ProviderCallbackInput struct {
	Payload *ProviderCallbackParams `in:"body=json"`
}

// ModifyNameParams is the display-name change payload
type ModifyNameParams struct {
	Name string `json:"name"`
}

// ModifyNameInput binds the modify-name body
type ModifyNameInput struct {
	Payload *ModifyNameParams `in:"body=json"`
}

// ResetPasswordParams is the password change payload
type ResetPasswordParams struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ResetPasswordInput binds the reset-password body
type ResetPasswordInput struct {
	Payload *ResetPasswordParams `in:"body=json"`
}

// DashboardInput binds the dashboard query parameters
type DashboardInput struct {
	Page     int `in:"query=page;required"`
	PageSize int `in:"query=pageSize;required"`
}
