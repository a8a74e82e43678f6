package accounts

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument indicates malformed sign-up or sign-in input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrEmailTaken indicates an account with the email already exists.
	ErrEmailTaken = errors.New("account with this email already exists")
	// ErrUsernameTaken indicates an account with the username already exists.
	ErrUsernameTaken = errors.New("account with this username already exists")
	// ErrInvalidCredentials indicates the email/password pair does not match
	// an account. Deliberately indistinguishable from an unknown email.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// DeviceRegistrationError reports that the device-link step of sign-up failed.
// By the time it is returned the freshly created account has been compensated
// away: an account without a usable device binding never existed.
type DeviceRegistrationError struct {
	Err error
}

func (e *DeviceRegistrationError) Error() string {
	return fmt.Sprintf("device registration failed: %v", e.Err)
}

func (e *DeviceRegistrationError) Unwrap() error {
	return e.Err
}
