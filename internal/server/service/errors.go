package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidOTP         = errors.New("invalid otp")
	ErrOTPExpired         = errors.New("otp expired, please resend")
	ErrPhotoNotAllowed    = errors.New("photos can only be added to completed meetings without one")
	ErrUnsupportedMedia   = errors.New("only image uploads are accepted")
	ErrPhotoTooLarge      = errors.New("photo too large")
	ErrAccountExists      = errors.New("username or email already registered")
)

// ValidationError is a rejected request body.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// TransitionError is an event the meeting's current status has no edge for.
type TransitionError struct {
	From  models.MeetingStatus
	Event models.Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a meeting that is %s", e.Event, e.From)
}

// ThrottleError rejects a resend inside the cooldown window.
type ThrottleError struct {
	RetryAfter time.Duration
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("please wait %ds before requesting another code", int(e.RetryAfter.Round(time.Second)/time.Second))
}
