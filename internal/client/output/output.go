package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/meeting"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/otp"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/models"
)

const timeLayout = "Mon 02 Jan 2006 15:04"

type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintf(f.w, "❌ %s\n", msg)
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintf(f.w, "ℹ️  %s\n", msg)
}

func (f *Formatter) Success(msg string) {
	fmt.Fprintf(f.w, "✅ %s\n", msg)
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintf(f.w, "⚠️  %s\n", msg)
}

func statusLabel(m models.Meeting) string {
	switch m.Status {
	case models.StatusScheduled:
		return "🗓  scheduled"
	case models.StatusInProgress:
		return "▶️  in progress"
	case models.StatusCompleted:
		if m.IsVerified {
			return "✅ completed (verified)"
		}
		return "✅ completed"
	case models.StatusCancelled:
		return "🚫 cancelled"
	}
	return string(m.Status)
}

// MeetingList prints one row per meeting.
func (f *Formatter) MeetingList(meetings []models.Meeting, loc *time.Location) {
	if len(meetings) == 0 {
		fmt.Fprintln(f.w, "No meetings found.")
		return
	}
	tw := tabwriter.NewWriter(f.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UID\tTITLE\tTYPE\tSTART\tSTATUS\tPHOTO")
	for _, m := range meetings {
		photo := "-"
		if m.HasPhoto() {
			photo = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			m.UID, m.Title, m.MeetingType, m.StartTime.In(loc).Format(timeLayout), statusLabel(m), photo)
	}
	tw.Flush()
}

// MeetingDetail prints every field of m.
func (f *Formatter) MeetingDetail(m models.Meeting, loc *time.Location) {
	fmt.Fprintf(f.w, "📋 %s\n\n", m.Title)
	fmt.Fprintf(f.w, "  UID:       %s\n", m.UID)
	fmt.Fprintf(f.w, "  Status:    %s\n", statusLabel(m))
	fmt.Fprintf(f.w, "  Type:      %s\n", m.MeetingType)
	fmt.Fprintf(f.w, "  When:      %s – %s (%d min)\n",
		m.StartTime.In(loc).Format(timeLayout), m.EndTime().In(loc).Format("15:04"), m.DurationMinutes)
	if m.Location != "" {
		fmt.Fprintf(f.w, "  Location:  %s\n", m.Location)
	}
	if len(m.RecipientEmails) > 0 {
		fmt.Fprintf(f.w, "  Recipients: %s\n", strings.Join(m.RecipientEmails, ", "))
	}
	if m.CompanyParticipants != "" {
		fmt.Fprintf(f.w, "  Company:   %s\n", m.CompanyParticipants)
	}
	if m.Description != "" {
		fmt.Fprintf(f.w, "  Notes:     %s\n", m.Description)
	}
	for _, p := range m.Photos {
		fmt.Fprintf(f.w, "  📷 %s\n", p.File)
	}
}

// Stats prints the dashboard counters.
func (f *Formatter) Stats(s meeting.Stats) {
	fmt.Fprintf(f.w, "Total %d · Today %d · Upcoming %d · Completed %d · Cancelled %d\n",
		s.Total, s.Today, s.Upcoming, s.Completed, s.Cancelled)
}

// Challenge prints the OTP dialog state.
func (f *Formatter) Challenge(s otp.State) {
	switch {
	case s.Error != "":
		f.Error(s.Error)
	case s.CooldownRemaining > 0:
		fmt.Fprintf(f.w, "✉️  Code sent. Resend in %ds\n", s.CooldownRemaining)
	case s.Status == otp.StatusSent:
		fmt.Fprintln(f.w, "✉️  Code sent.")
	}
}
