package meeting

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/api"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/session"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/models"
)

// ParseRecipients splits a comma separated address list, dropping blanks.
func ParseRecipients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks a scheduling request the way the schedule form does.
func Validate(req models.CreateMeetingRequest) error {
	fields := map[string]string{}
	if strings.TrimSpace(req.Title) == "" {
		fields["title"] = "Title is required"
	}
	switch req.MeetingType {
	case models.MeetingTypeOnline, models.MeetingTypeInPerson:
	default:
		fields["meeting_type"] = "Meeting type must be online or in-person"
	}
	if req.StartTime.IsZero() {
		fields["start_time"] = "Start time is required"
	}
	if req.DurationMinutes <= 0 {
		fields["duration_minutes"] = "End time must be after start time"
	}
	for _, addr := range req.RecipientEmails {
		if _, err := mail.ParseAddress(addr); err != nil {
			fields["recipient_emails"] = "Invalid recipient email: " + addr
			break
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Create schedules a meeting and then reloads the board from the server.
func (l *Lifecycle) Create(ctx context.Context, req models.CreateMeetingRequest) (models.Meeting, error) {
	if err := Validate(req); err != nil {
		return models.Meeting{}, err
	}
	var created models.Meeting
	err := l.guard.Admit(func() error {
		m, err := l.remote.CreateMeeting(ctx, req)
		if err != nil {
			return authOr(err)
		}
		created = m
		return nil
	})
	if err != nil {
		return models.Meeting{}, err
	}
	if _, err := l.Reload(ctx); err != nil {
		l.logger.Printf("WARN: reload after create: %v", err)
	}
	if m, ok := l.Get(created.UID); ok {
		return m, nil
	}
	return created, nil
}

// Delete removes a meeting after explicit confirmation and reloads the board.
func (l *Lifecycle) Delete(ctx context.Context, uid string, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	err := l.guard.Admit(func() error {
		if err := l.remote.DeleteMeeting(ctx, uid); err != nil {
			return authOr(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	l.resolveCancel(uid)
	_, err = l.Reload(ctx)
	return err
}

func authOr(err error) error {
	if errors.Is(err, api.ErrUnauthorized) {
		return session.ErrAuthExpired
	}
	return err
}
