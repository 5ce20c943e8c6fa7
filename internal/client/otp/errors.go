package otp

import "errors"

var (
	// ErrCodeTooShort and ErrCodeTooLong are local format failures; the
	// server is never contacted for them.
	ErrCodeTooShort = errors.New("otp too short")
	ErrCodeTooLong  = errors.New("otp too long")
	ErrCodeFormat   = errors.New("otp has invalid characters")

	// ErrResendThrottled is returned while the resend cooldown is running.
	ErrResendThrottled = errors.New("resend not allowed yet")
	// ErrBusy means a submit or resend is already in flight.
	ErrBusy = errors.New("otp request already in flight")
	// ErrClosed is returned after the challenge was disposed.
	ErrClosed = errors.New("otp challenge closed")
	// ErrWrongMeeting is returned when a call names another meeting.
	ErrWrongMeeting = errors.New("otp challenge belongs to another meeting")
)

// VerificationError is a failed submit. Reason is safe to show to the operator.
type VerificationError struct {
	Reason string
	Err    error
}

func (e *VerificationError) Error() string { return e.Reason }
func (e *VerificationError) Unwrap() error { return e.Err }

// ResendError is a resend the server refused or could not be reached for.
type ResendError struct {
	Reason string
	Err    error
}

func (e *ResendError) Error() string { return e.Reason }
func (e *ResendError) Unwrap() error { return e.Err }
