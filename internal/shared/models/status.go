package models

import (
	"errors"
	"strings"
)

// MeetingStatus is the closed set of lifecycle states.
type MeetingStatus string

const (
	StatusScheduled  MeetingStatus = "scheduled"
	StatusInProgress MeetingStatus = "in_progress"
	StatusCompleted  MeetingStatus = "completed"
	StatusCancelled  MeetingStatus = "cancelled"
)

// Event names an operator command that may move a meeting between states.
type Event string

const (
	EventStart    Event = "start"
	EventComplete Event = "complete"
	EventCancel   Event = "cancel"
)

var transitions = map[MeetingStatus]map[Event]MeetingStatus{
	StatusScheduled: {
		EventStart:    StatusInProgress,
		EventComplete: StatusCompleted,
		EventCancel:   StatusCancelled,
	},
	StatusInProgress: {
		EventComplete: StatusCompleted,
		EventCancel:   StatusCancelled,
	},
}

// Next returns the state reached by applying e to s. ok is false when the
// table has no such edge, which is always the case for terminal states.
func (s MeetingStatus) Next(e Event) (MeetingStatus, bool) {
	to, ok := transitions[s][e]
	return to, ok
}

// IsTerminal reports whether no further transition is possible.
func (s MeetingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s MeetingStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus accepts the wire form and a few spellings used by operators.
func ParseStatus(raw string) (MeetingStatus, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	if s == "canceled" {
		s = string(StatusCancelled)
	}
	status := MeetingStatus(s)
	if !status.Valid() {
		return "", errors.New("unknown meeting status: " + raw)
	}
	return status, nil
}
