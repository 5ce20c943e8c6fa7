// Package meeting is the client-side meeting state machine. It mirrors the
// server's meetings, drives transitions through the remote service and is the
// single place the local board is mutated.
package meeting

import (
	"context"
	"errors"
	"io"
	"log"
	"sort"
	"sync"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/api"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/evidence"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/session"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/models"
)

// Remote is the meeting service as seen by the lifecycle.
type Remote interface {
	ListMeetings(ctx context.Context) ([]models.Meeting, error)
	GetMeeting(ctx context.Context, uid string) (models.Meeting, error)
	CreateMeeting(ctx context.Context, req models.CreateMeetingRequest) (models.Meeting, error)
	DeleteMeeting(ctx context.Context, uid string) error
	MarkInProgress(ctx context.Context, uid string) error
	MarkCancelled(ctx context.Context, uid string) error
}

// Admitter gates protected actions (session.Guard).
type Admitter interface {
	Admit(action func() error) error
}

// Verifier reports a successful OTP submit for a meeting (otp.Challenge).
type Verifier interface {
	Verified(meetingID string) bool
}

// Evidence is the photo capture consulted on completion (evidence.Capture).
type Evidence interface {
	Satisfied() bool
	Pending() (evidence.Ref, bool)
	Upload(ctx context.Context, meetingID string) (models.Photo, error)
}

// Request is one event addressed to one meeting.
type Request struct {
	MeetingID string
	Event     models.Event
	// Confirmed must be set for cancel.
	Confirmed bool
	Challenge Verifier
	Evidence  Evidence
}

type Lifecycle struct {
	remote Remote
	guard  Admitter
	flow   Flow
	logger *log.Logger

	mu             sync.Mutex
	meetings       []models.Meeting
	index          map[string]int
	pendingCancels map[string]struct{}
	pending        PendingStore
	subscribers    []func(models.Meeting)
}

func New(remote Remote, guard Admitter, flow Flow, logger *log.Logger, opts ...Option) *Lifecycle {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	l := &Lifecycle{
		remote:         remote,
		guard:          guard,
		flow:           flow,
		logger:         logger,
		index:          make(map[string]int),
		pendingCancels: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Lifecycle) Flow() Flow { return l.flow }

// Subscribe registers fn to receive every updated meeting.
func (l *Lifecycle) Subscribe(fn func(models.Meeting)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribers = append(l.subscribers, fn)
}

// Board returns a copy of the local meeting list in server order.
func (l *Lifecycle) Board() []models.Meeting {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Meeting, len(l.meetings))
	copy(out, l.meetings)
	return out
}

func (l *Lifecycle) Get(uid string) (models.Meeting, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, ok := l.index[uid]
	if !ok {
		return models.Meeting{}, false
	}
	return l.meetings[i], true
}

// PendingCancels lists meetings whose cancel has not reached the server yet.
func (l *Lifecycle) PendingCancels() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.pendingCancels))
	for uid := range l.pendingCancels {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out
}

func (l *Lifecycle) Start(ctx context.Context, uid string) (models.Meeting, error) {
	return l.Apply(ctx, Request{MeetingID: uid, Event: models.EventStart})
}

func (l *Lifecycle) Complete(ctx context.Context, uid string, challenge Verifier, ev Evidence) (models.Meeting, error) {
	return l.Apply(ctx, Request{MeetingID: uid, Event: models.EventComplete, Challenge: challenge, Evidence: ev})
}

func (l *Lifecycle) Cancel(ctx context.Context, uid string, confirmed bool) (models.Meeting, error) {
	return l.Apply(ctx, Request{MeetingID: uid, Event: models.EventCancel, Confirmed: confirmed})
}

// Apply admits the request through the session guard, validates it against
// the transition table and commits the new status locally.
func (l *Lifecycle) Apply(ctx context.Context, req Request) (models.Meeting, error) {
	var out models.Meeting
	err := l.guard.Admit(func() error {
		m, err := l.apply(ctx, req)
		out = m
		return err
	})
	return out, err
}

func (l *Lifecycle) apply(ctx context.Context, req Request) (models.Meeting, error) {
	m, ok := l.Get(req.MeetingID)
	if !ok {
		return models.Meeting{}, ErrNotFound
	}
	if _, ok := m.Status.Next(req.Event); !ok {
		return m, &TransitionError{MeetingID: m.UID, From: m.Status, Event: req.Event}
	}

	var photo *models.Photo
	switch req.Event {
	case models.EventStart:
		if err := l.remote.MarkInProgress(ctx, m.UID); err != nil {
			if errors.Is(err, api.ErrUnauthorized) {
				return m, session.ErrAuthExpired
			}
			l.logger.Printf("WARN: start %s: server call failed, continuing locally: %v", m.UID, err)
		}

	case models.EventComplete:
		if req.Challenge == nil || !req.Challenge.Verified(m.UID) {
			return m, ErrVerificationRequired
		}
		needsPhoto := l.flow.RequireEvidence && evidence.Required(m)
		if needsPhoto && (req.Evidence == nil || !req.Evidence.Satisfied()) {
			return m, ErrEvidenceRequired
		}
		if req.Evidence != nil {
			if _, pending := req.Evidence.Pending(); pending {
				p, err := req.Evidence.Upload(ctx, m.UID)
				if err != nil {
					return m, err
				}
				photo = &p
			}
		}

	case models.EventCancel:
		if !req.Confirmed {
			return m, ErrNotConfirmed
		}
		if err := l.remote.MarkCancelled(ctx, m.UID); err != nil {
			if errors.Is(err, api.ErrUnauthorized) {
				return m, session.ErrAuthExpired
			}
			l.logger.Printf("WARN: cancel %s: server call failed, will retry on reload: %v", m.UID, err)
			l.mu.Lock()
			l.pendingCancels[m.UID] = struct{}{}
			l.mu.Unlock()
			l.savePending()
		}
	}

	return l.commit(m.UID, req.Event, photo)
}

// commit re-checks the edge under the lock so a concurrent transition on the
// same meeting turns into a rejection instead of a double transition.
func (l *Lifecycle) commit(uid string, ev models.Event, photo *models.Photo) (models.Meeting, error) {
	l.mu.Lock()
	i, ok := l.index[uid]
	if !ok {
		l.mu.Unlock()
		return models.Meeting{}, ErrNotFound
	}
	m := l.meetings[i]
	next, ok := m.Status.Next(ev)
	if !ok {
		l.mu.Unlock()
		return m, &TransitionError{MeetingID: uid, From: m.Status, Event: ev}
	}
	m.Status = next
	if ev == models.EventComplete {
		m.IsVerified = true
	}
	if photo != nil {
		m.Photos = append(append([]models.Photo(nil), m.Photos...), *photo)
	}
	l.meetings[i] = m
	subs := append([]func(models.Meeting){}, l.subscribers...)
	l.mu.Unlock()

	for _, fn := range subs {
		fn(m)
	}
	return m, nil
}

// AttachPhoto uploads evidence for a completed meeting that has none yet.
func (l *Lifecycle) AttachPhoto(ctx context.Context, uid string, ev Evidence) (models.Meeting, error) {
	var out models.Meeting
	err := l.guard.Admit(func() error {
		m, ok := l.Get(uid)
		if !ok {
			return ErrNotFound
		}
		if m.Status != models.StatusCompleted || m.HasPhoto() {
			out = m
			return ErrPhotoNotAllowed
		}
		p, err := ev.Upload(ctx, uid)
		if err != nil {
			out = m
			return err
		}
		out, err = l.patch(uid, func(m *models.Meeting) {
			m.Photos = append(append([]models.Photo(nil), m.Photos...), p)
		})
		return err
	})
	return out, err
}

func (l *Lifecycle) patch(uid string, fn func(*models.Meeting)) (models.Meeting, error) {
	l.mu.Lock()
	i, ok := l.index[uid]
	if !ok {
		l.mu.Unlock()
		return models.Meeting{}, ErrNotFound
	}
	fn(&l.meetings[i])
	m := l.meetings[i]
	subs := append([]func(models.Meeting){}, l.subscribers...)
	l.mu.Unlock()
	for _, fn := range subs {
		fn(m)
	}
	return m, nil
}
