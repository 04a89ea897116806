package api

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode"
)

const passwordSpecialChars = "@$!%*#?&"

// validateEmail checks that the address parses as an email
func validateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.New("email must be a valid email address")
	}
	return nil
}

// validatePassword enforces the complexity rule: at least 8 characters from
// the allowed set, containing a letter, a digit and a special character.
func validatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	var hasLetter, hasDigit, hasSpecial bool
	for _, c := range password {
		switch {
		case unicode.IsLetter(c) && c < unicode.MaxASCII:
			hasLetter = true
		case unicode.IsDigit(c):
			hasDigit = true
		case strings.ContainsRune(passwordSpecialChars, c):
			hasSpecial = true
		default:
			return fmt.Errorf("password contains disallowed character %q", c)
		}
	}

	if !hasLetter || !hasDigit || !hasSpecial {
		return errors.New("password must contain a letter, a digit and a special character")
	}
	return nil
}

func validateRegister(params *RegisterParams) error {
	if err := validateEmail(params.Email); err != nil {
		return err
	}
	if err := validatePassword(params.Password); err != nil {
		return err
	}
	if params.ConfirmPassword != params.Password {
		return errors.New("confirmPassword must match password")
	}
	return nil
}

func validateResetPassword(params *ResetPasswordParams) error {
	if err := validatePassword(params.OldPassword); err != nil {
		return err
	}
	if err := validatePassword(params.NewPassword); err != nil {
		return err
	}
	if params.NewPassword == params.OldPassword {
		return errors.New("newPassword must differ from oldPassword")
	}
	if params.ConfirmPassword != params.NewPassword {
		return errors.New("confirmPassword must match newPassword")
	}
	return nil
}
