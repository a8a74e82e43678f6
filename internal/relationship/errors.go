package relationship

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument indicates malformed input such as a self-request.
	// Never retried.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrRequestExists indicates a pending request already links the two users.
	ErrRequestExists = errors.New("friend request already exists")
	// ErrUserNotFound indicates a participant uid resolves to no user record.
	ErrUserNotFound = errors.New("user not found")
	// ErrForbidden indicates the acting user is not a participant of the request.
	ErrForbidden = errors.New("not a participant of this friend request")
	// ErrInvalidTransition indicates an attempt to resolve a request that has
	// already left the pending state.
	ErrInvalidTransition = errors.New("friend request is not pending")
)

// UpdateFailedError reports a forward step that failed after earlier steps had
// committed. Compensation for the completed steps has already run by the time
// this error is returned; if any compensation itself failed, the caller sees a
// *saga.CompensationError instead.
type UpdateFailedError struct {
	Step string
	Err  error
}

func (e *UpdateFailedError) Error() string {
	return fmt.Sprintf("relationship update failed at %s: %v", e.Step, e.Err)
}

func (e *UpdateFailedError) Unwrap() error {
	return e.Err
}
