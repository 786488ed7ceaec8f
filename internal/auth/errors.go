package auth

import "errors"

// Sign-up and sign-in failures.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTooManyAttempts    = errors.New("too many failed sign-in attempts, try again later")
	ErrEmailInUse         = errors.New("email already in use")
	ErrWeakPassword       = errors.New("password is too weak")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrUserNotFound       = errors.New("user not found")
)

// Password change failures.
var (
	ErrWrongPassword       = errors.New("current password is incorrect")
	ErrRequiresRecentLogin = errors.New("recent login required")
)

// IsAuthFailure reports whether err is a credential failure the caller should
// show to the user rather than treat as an internal error.
func IsAuthFailure(err error) bool {
	for _, target := range []error{ErrInvalidCredentials, ErrTooManyAttempts, ErrEmailInUse, ErrWeakPassword, ErrInvalidEmail, ErrWrongPassword} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsReauthRequired reports whether the user must sign in again before retrying.
func IsReauthRequired(err error) bool {
	return errors.Is(err, ErrRequiresRecentLogin)
}
