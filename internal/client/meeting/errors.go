package meeting

import (
	"errors"
	"fmt"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/models"
)

var (
	// ErrTransitionRejected is matched by every TransitionError.
	ErrTransitionRejected   = errors.New("transition rejected")
	ErrNotFound             = errors.New("meeting not found")
	ErrNotConfirmed         = errors.New("cancellation must be confirmed")
	ErrVerificationRequired = errors.New("OTP verification is required to complete a meeting")
	ErrEvidenceRequired     = errors.New("please capture a photo to finish")
	ErrPhotoNotAllowed      = errors.New("photos can only be added to completed meetings without one")
)

// TransitionError reports an event the meeting's current status has no edge for.
type TransitionError struct {
	MeetingID string
	From      models.MeetingStatus
	Event     models.Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("meeting %s: cannot %s from %s", e.MeetingID, e.Event, e.From)
}

func (e *TransitionError) Is(target error) bool { return target == ErrTransitionRejected }

// ValidationError lists rejected scheduling fields.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	for _, k := range validationOrder {
		if msg, ok := e.Fields[k]; ok {
			return msg
		}
	}
	return "invalid meeting"
}

var validationOrder = []string{"title", "meeting_type", "start_time", "duration_minutes", "recipient_emails"}
