package meeting

import (
	"strings"
	"time"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/models"
)

// Filter narrows a board for listing.
type Filter struct {
	// Query matches title or meeting type, case-insensitively.
	Query    string
	ThisWeek bool
	Status   models.MeetingStatus
}

// Apply returns the meetings matching f. now anchors the week window, which
// runs Sunday 00:00 through the end of Saturday in now's location.
func (f Filter) Apply(meetings []models.Meeting, now time.Time) []models.Meeting {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	start, end := weekBounds(now)
	var out []models.Meeting
	for _, m := range meetings {
		if q != "" && !strings.Contains(strings.ToLower(m.Title), q) && !strings.Contains(strings.ToLower(m.MeetingType), q) {
			continue
		}
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		if f.ThisWeek {
			t := m.StartTime.In(now.Location())
			if t.Before(start) || !t.Before(end) {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

func weekBounds(now time.Time) (time.Time, time.Time) {
	y, mo, d := now.Date()
	day := time.Date(y, mo, d, 0, 0, 0, 0, now.Location())
	start := day.AddDate(0, 0, -int(now.Weekday()))
	return start, start.AddDate(0, 0, 7)
}

// Stats are the dashboard counters.
type Stats struct {
	Total     int
	Today     int
	Upcoming  int
	Completed int
	Cancelled int
}

func Summarize(meetings []models.Meeting, now time.Time) Stats {
	s := Stats{Total: len(meetings)}
	y, mo, d := now.Date()
	for _, m := range meetings {
		t := m.StartTime.In(now.Location())
		if ty, tm, td := t.Date(); ty == y && tm == mo && td == d {
			s.Today++
		}
		switch {
		case m.Status == models.StatusCompleted:
			s.Completed++
		case m.Status == models.StatusCancelled:
			s.Cancelled++
		case t.After(now):
			s.Upcoming++
		}
	}
	return s
}
