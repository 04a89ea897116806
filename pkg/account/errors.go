package account

import "errors"

var (
	// ErrUserNotFound is returned when no user matches the given ID or email
	ErrUserNotFound = errors.New("not found user")

	// ErrUserNotVerified is returned when a user exists but has not passed email verification
	ErrUserNotVerified = errors.New("user not verify")

	// ErrEmailExists is returned when registering an email that is already taken
	ErrEmailExists = errors.New("has same email exist")

	// ErrVerificationNotFound is returned when no verification ticket matches the code or email
	ErrVerificationNotFound = errors.New("not found verify email")

	// ErrEmailAlreadyVerified is returned when resending verification for an already verified email
	ErrEmailAlreadyVerified = errors.New("email is already verify")

	// ErrIncorrectOldPassword is returned when the old password does not match the stored hash
	ErrIncorrectOldPassword = errors.New("incorrect old password")

	// ErrEmailLinkedElsewhere is returned when a provider login resolves to an email
	// that already belongs to an account created another way
	ErrEmailLinkedElsewhere = errors.New("exist email but other way")
)
