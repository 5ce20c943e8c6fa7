package meeting

import (
	"context"
	"errors"
	"net/http"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/api"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/session"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/models"
)

// Reload replaces the board with the server's list. Cancels that failed
// earlier are retried while the server still reports a live status; a
// terminal status on the server wins.
func (l *Lifecycle) Reload(ctx context.Context) ([]models.Meeting, error) {
	var out []models.Meeting
	err := l.guard.Admit(func() error {
		list, err := l.remote.ListMeetings(ctx)
		if err != nil {
			if errors.Is(err, api.ErrUnauthorized) {
				return session.ErrAuthExpired
			}
			return err
		}
		l.reconcile(ctx, list)
		l.replace(list)
		out = l.Board()
		return nil
	})
	return out, err
}

// Fetch reads one meeting from the server and refreshes it on the board. A
// cancel that has not reached the server yet keeps the meeting cancelled.
func (l *Lifecycle) Fetch(ctx context.Context, uid string) (models.Meeting, error) {
	var out models.Meeting
	err := l.guard.Admit(func() error {
		m, err := l.remote.GetMeeting(ctx, uid)
		switch {
		case errors.Is(err, api.ErrUnauthorized):
			return session.ErrAuthExpired
		case api.StatusOf(err) == http.StatusNotFound:
			return ErrNotFound
		case err != nil:
			return err
		}
		l.loadPending()
		l.mu.Lock()
		_, pending := l.pendingCancels[uid]
		l.mu.Unlock()
		if pending && !m.Status.IsTerminal() {
			m.Status = models.StatusCancelled
		}
		out = l.upsert(m)
		return nil
	})
	return out, err
}

func (l *Lifecycle) reconcile(ctx context.Context, list []models.Meeting) {
	l.loadPending()
	pending := l.PendingCancels()
	if len(pending) == 0 {
		return
	}
	defer l.savePending()
	byUID := make(map[string]int, len(list))
	for i, m := range list {
		byUID[m.UID] = i
	}
	for _, uid := range pending {
		i, ok := byUID[uid]
		if !ok {
			l.resolveCancel(uid)
			continue
		}
		if list[i].Status.IsTerminal() {
			if list[i].Status != models.StatusCancelled {
				l.logger.Printf("WARN: cancel %s dropped: server reports %s", uid, list[i].Status)
			}
			l.resolveCancel(uid)
			continue
		}
		if err := l.remote.MarkCancelled(ctx, uid); err != nil {
			l.logger.Printf("WARN: cancel %s retry failed: %v", uid, err)
		} else {
			l.resolveCancel(uid)
		}
		list[i].Status = models.StatusCancelled
	}
}

func (l *Lifecycle) resolveCancel(uid string) {
	l.mu.Lock()
	delete(l.pendingCancels, uid)
	l.mu.Unlock()
}

func (l *Lifecycle) upsert(m models.Meeting) models.Meeting {
	l.mu.Lock()
	if i, ok := l.index[m.UID]; ok {
		l.meetings[i] = m
	} else {
		l.index[m.UID] = len(l.meetings)
		l.meetings = append(l.meetings, m)
	}
	subs := append([]func(models.Meeting){}, l.subscribers...)
	l.mu.Unlock()
	for _, fn := range subs {
		fn(m)
	}
	return m
}

func (l *Lifecycle) replace(list []models.Meeting) {
	l.mu.Lock()
	l.meetings = append(l.meetings[:0:0], list...)
	l.index = make(map[string]int, len(list))
	for i, m := range l.meetings {
		l.index[m.UID] = i
	}
	snapshot := append([]models.Meeting(nil), l.meetings...)
	subs := append([]func(models.Meeting){}, l.subscribers...)
	l.mu.Unlock()

	for _, m := range snapshot {
		for _, fn := range subs {
			fn(m)
		}
	}
}
