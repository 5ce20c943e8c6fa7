package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/api"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/evidence"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/meeting"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/otp"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/session"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/models"
)

type meetingsClient struct {
	opts *rootOptions

	search   string
	thisWeek bool
	status   string

	title        string
	meetingType  string
	date         string
	start        string
	end          string
	location     string
	recipients   string
	company      string
	description  string
	otpCode      string
	photoPath    string
	resendFirst  bool
	assumeYes    bool
	attemptLimit int
}

func newMeetingsCmd(o *rootOptions) *cobra.Command {
	m := &meetingsClient{opts: o}
	cmd := &cobra.Command{Use: "meetings", Aliases: []string{"m"}, Short: "Manage meetings"}

	list := &cobra.Command{Use: "list", Short: "List meetings", RunE: m.list}
	list.Flags().StringVar(&m.search, "search", "", "Filter by title or type")
	list.Flags().BoolVar(&m.thisWeek, "this-week", false, "Only meetings starting this week")
	list.Flags().StringVar(&m.status, "status", "", "Only meetings with this status")

	create := &cobra.Command{Use: "create", Short: "Schedule a meeting", RunE: m.create}
	create.Flags().StringVar(&m.title, "title", "", "Title")
	create.Flags().StringVar(&m.meetingType, "type", models.MeetingTypeOnline, "online or in-person")
	create.Flags().StringVar(&m.date, "date", "", "Date (YYYY-MM-DD), default today")
	create.Flags().StringVar(&m.start, "start", "09:00", "Start time (HH:MM)")
	create.Flags().StringVar(&m.end, "end", "10:00", "End time (HH:MM)")
	create.Flags().StringVar(&m.location, "location", "", "Location or meeting link")
	create.Flags().StringVar(&m.recipients, "recipients", "", "Comma separated recipient emails")
	create.Flags().StringVar(&m.company, "company", "", "Company participants")
	create.Flags().StringVar(&m.description, "description", "", "Description")

	complete := &cobra.Command{Use: "complete UID", Short: "Verify the OTP and complete a meeting", Args: cobra.ExactArgs(1), RunE: m.complete}
	complete.Flags().StringVar(&m.otpCode, "otp", "", "OTP received by the recipient")
	complete.Flags().StringVar(&m.photoPath, "photo", "", "Photo proving the meeting took place")
	complete.Flags().BoolVar(&m.resendFirst, "resend", false, "Ask the server to resend the OTP first")
	complete.Flags().IntVar(&m.attemptLimit, "attempts", 3, "Interactive OTP attempts before giving up")

	cancel := &cobra.Command{Use: "cancel UID", Short: "Cancel a meeting", Args: cobra.ExactArgs(1), RunE: m.cancel}
	cancel.Flags().BoolVarP(&m.assumeYes, "yes", "y", false, "Do not ask for confirmation")

	del := &cobra.Command{Use: "delete UID", Short: "Delete a meeting", Args: cobra.ExactArgs(1), RunE: m.delete}
	del.Flags().BoolVarP(&m.assumeYes, "yes", "y", false, "Do not ask for confirmation")

	cmd.AddCommand(list, create, complete, cancel, del)
	cmd.AddCommand(&cobra.Command{Use: "show UID", Short: "Show one meeting", Args: cobra.ExactArgs(1), RunE: m.show})
	cmd.AddCommand(&cobra.Command{Use: "start UID", Short: "Mark a meeting in progress", Args: cobra.ExactArgs(1), RunE: m.startMeeting})
	cmd.AddCommand(&cobra.Command{Use: "resend-otp UID", Short: "Resend the completion OTP", Args: cobra.ExactArgs(1), RunE: m.resend})
	cmd.AddCommand(&cobra.Command{Use: "upload-photo UID PATH", Short: "Attach a photo to a completed meeting", Args: cobra.ExactArgs(2), RunE: m.uploadPhoto})
	return cmd
}

// board bootstraps the session and loads the meetings.
func (m *meetingsClient) board(cmd *cobra.Command) (*Dependencies, *meeting.Lifecycle, error) {
	d, err := m.opts.deps(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := d.requireSession(cmd); err != nil {
		return nil, nil, err
	}
	l := d.lifecycle()
	if _, err := l.Reload(cmd.Context()); err != nil {
		return nil, nil, err
	}
	return d, l, nil
}

func (m *meetingsClient) list(cmd *cobra.Command, args []string) error {
	d, l, err := m.board(cmd)
	if err != nil {
		return err
	}
	f := meeting.Filter{Query: m.search, ThisWeek: m.thisWeek}
	if m.status != "" {
		if f.Status, err = models.ParseStatus(m.status); err != nil {
			return err
		}
	}
	now := time.Now()
	all := l.Board()
	d.Out.Stats(meeting.Summarize(all, now))
	d.Out.MeetingList(f.Apply(all, now), time.Local)
	return nil
}

func (m *meetingsClient) show(cmd *cobra.Command, args []string) error {
	d, err := m.opts.deps(cmd)
	if err != nil {
		return err
	}
	if err := d.requireSession(cmd); err != nil {
		return err
	}
	mt, err := d.lifecycle().Fetch(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	d.Out.MeetingDetail(mt, time.Local)
	return nil
}

func (m *meetingsClient) create(cmd *cobra.Command, args []string) error {
	d, l, err := m.board(cmd)
	if err != nil {
		return err
	}
	title, err := d.Prompts.valueOr(m.title, "Title: ")
	if err != nil {
		return err
	}
	day := m.date
	if day == "" {
		day = time.Now().Format("2006-01-02")
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", day+" "+m.start, time.Local)
	if err != nil {
		return fmt.Errorf("invalid date or start time: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", day+" "+m.end, time.Local)
	if err != nil {
		return fmt.Errorf("invalid end time: %w", err)
	}
	req := models.CreateMeetingRequest{
		Title:               title,
		MeetingType:         m.meetingType,
		StartTime:           start.UTC(),
		DurationMinutes:     int(end.Sub(start).Round(time.Minute) / time.Minute),
		Location:            m.location,
		RecipientEmails:     meeting.ParseRecipients(m.recipients),
		CompanyParticipants: m.company,
		Description:         m.description,
	}
	created, err := l.Create(cmd.Context(), req)
	if err != nil {
		return err
	}
	d.Out.Success(fmt.Sprintf("Meeting scheduled successfully! (%s)", created.UID))
	return nil
}

func (m *meetingsClient) startMeeting(cmd *cobra.Command, args []string) error {
	d, l, err := m.board(cmd)
	if err != nil {
		return err
	}
	mt, err := l.Start(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	d.Out.Success(fmt.Sprintf("%s is in progress. An OTP was sent to the recipients.", mt.Title))
	return nil
}

func (m *meetingsClient) resend(cmd *cobra.Command, args []string) error {
	d, l, err := m.board(cmd)
	if err != nil {
		return err
	}
	if _, ok := l.Get(args[0]); !ok {
		return meeting.ErrNotFound
	}
	ch := otp.New(args[0], d.Flow.OTP, d.Client)
	defer ch.Close()
	err = d.Guard.Admit(func() error { return ch.Resend(cmd.Context(), args[0]) })
	if err != nil {
		return err
	}
	d.Out.Challenge(ch.State())
	return nil
}

func (m *meetingsClient) complete(cmd *cobra.Command, args []string) error {
	d, l, err := m.board(cmd)
	if err != nil {
		return err
	}
	uid := args[0]
	mt, ok := l.Get(uid)
	if !ok {
		return meeting.ErrNotFound
	}
	if mt.Status.IsTerminal() {
		return &meeting.TransitionError{MeetingID: uid, From: mt.Status, Event: models.EventComplete}
	}

	capture := evidence.New(d.Client, evidence.WithDir(filepath.Join(d.Config.StateDir, "previews")), evidence.WithMaxBytes(maxPhoto(d)))
	defer capture.Close()
	if d.Flow.RequireEvidence && evidence.Required(mt) {
		path, err := d.Prompts.valueOr(m.photoPath, "Photo path: ")
		if err != nil {
			return err
		}
		if path == "" {
			return meeting.ErrEvidenceRequired
		}
		if _, err := capture.AttachFile(path); err != nil {
			return err
		}
	}

	// Nothing has issued a code for a meeting that was never started.
	if mt.Status == models.StatusScheduled && m.otpCode == "" && !m.resendFirst {
		err := d.Guard.Admit(func() error { return d.Client.GenerateOTP(cmd.Context(), uid) })
		if errors.Is(err, api.ErrUnauthorized) {
			return session.ErrAuthExpired
		}
		if err != nil {
			return err
		}
		d.Out.Info("An OTP was sent to the recipients.")
	}

	ch := otp.New(uid, d.Flow.OTP, d.Client)
	defer ch.Close()
	if m.resendFirst {
		if err := d.Guard.Admit(func() error { return ch.Resend(cmd.Context(), uid) }); err != nil {
			return err
		}
		d.Out.Challenge(ch.State())
	}
	if err := m.verify(cmd, d, ch, uid); err != nil {
		return err
	}

	done, err := l.Complete(cmd.Context(), uid, ch, capture)
	if err != nil {
		if hint := photoRetryHint(err, uid); hint != "" {
			d.Out.Warning(hint)
		}
		return err
	}
	d.Out.Success(fmt.Sprintf("%s completed and verified.", done.Title))

	if !d.Flow.RequireEvidence && m.photoPath != "" && evidence.Required(done) {
		if _, err := capture.AttachFile(m.photoPath); err != nil {
			return err
		}
		if _, err := l.AttachPhoto(cmd.Context(), uid, capture); err != nil {
			return err
		}
		d.Out.Success("Photo attached.")
	}
	return nil
}

// verify submits the OTP, prompting again on a rejected code when the code
// was not given on the command line.
func (m *meetingsClient) verify(cmd *cobra.Command, d *Dependencies, ch *otp.Challenge, uid string) error {
	interactive := m.otpCode == ""
	attempts := m.attemptLimit
	if !interactive || attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		code, err := d.Prompts.valueOr(m.otpCode, "OTP: ")
		if err != nil {
			return err
		}
		lastErr = d.Guard.Admit(func() error { return ch.Submit(cmd.Context(), uid, code) })
		if lastErr == nil {
			return nil
		}
		var ve *otp.VerificationError
		if !errors.As(lastErr, &ve) {
			return lastErr
		}
		if interactive && i < attempts-1 {
			d.Out.Error(ve.Reason)
		}
	}
	return lastErr
}

func (m *meetingsClient) cancel(cmd *cobra.Command, args []string) error {
	d, l, err := m.board(cmd)
	if err != nil {
		return err
	}
	confirmed := m.assumeYes
	if !confirmed {
		if confirmed, err = d.Prompts.confirm("Are you sure you want to cancel this meeting?"); err != nil {
			return err
		}
	}
	if !confirmed {
		d.Out.Info("Cancellation aborted")
		return nil
	}
	mt, err := l.Cancel(cmd.Context(), args[0], true)
	if err != nil {
		return err
	}
	d.Out.Success(fmt.Sprintf("%s cancelled.", mt.Title))
	return nil
}

func (m *meetingsClient) delete(cmd *cobra.Command, args []string) error {
	d, l, err := m.board(cmd)
	if err != nil {
		return err
	}
	confirmed := m.assumeYes
	if !confirmed {
		if confirmed, err = d.Prompts.confirm("Are you sure you want to delete this meeting?"); err != nil {
			return err
		}
	}
	if !confirmed {
		d.Out.Info("Deletion aborted")
		return nil
	}
	if err := l.Delete(cmd.Context(), args[0], true); err != nil {
		return err
	}
	d.Out.Success("Meeting deleted.")
	return nil
}

func (m *meetingsClient) uploadPhoto(cmd *cobra.Command, args []string) error {
	d, l, err := m.board(cmd)
	if err != nil {
		return err
	}
	capture := evidence.New(d.Client, evidence.WithDir(filepath.Join(d.Config.StateDir, "previews")), evidence.WithMaxBytes(maxPhoto(d)))
	defer capture.Close()
	if _, err := capture.AttachFile(args[1]); err != nil {
		return err
	}
	if _, err := l.AttachPhoto(cmd.Context(), args[0], capture); err != nil {
		return err
	}
	d.Out.Success("Photo uploaded.")
	return nil
}

// photoRetryHint explains how to finish a completion whose photo upload
// failed after the server had already accepted the code.
func photoRetryHint(err error, uid string) string {
	var ue *evidence.UploadError
	if !errors.As(err, &ue) && !errors.Is(err, session.ErrAuthExpired) {
		return ""
	}
	return fmt.Sprintf("The meeting is completed on the server but the photo was not saved. Retry with `meetflow meetings upload-photo %s PATH`.", uid)
}

func maxPhoto(d *Dependencies) int64 {
	if d.Config.MaxPhotoBytes > 0 {
		return d.Config.MaxPhotoBytes
	}
	return evidence.DefaultMaxBytes
}
