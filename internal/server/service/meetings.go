package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/notify"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/otpstore"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/repository"
	cryptohelper "github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/crypto"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/models"
)

// MediaPrefix is the URL path photos are served under.
const MediaPrefix = "/media/"

// MeetingsService owns meeting records and enforces the lifecycle table.
// Completion requires a code issued by MarkInProgress, GenerateOTP or ResendOTP.
type MeetingsService struct {
	repo     Repository
	otps     otpstore.Store
	notifier notify.Notifier
	logger   *log.Logger

	otpTTL         time.Duration
	otpLength      int
	resendCooldown time.Duration
	photoDir       string
	maxUploadBytes int64
	now            func() time.Time
}

func (s *MeetingsService) Create(ctx context.Context, ownerID string, req models.CreateMeetingRequest) (models.Meeting, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return models.Meeting{}, invalid("title is required")
	}
	switch req.MeetingType {
	case "":
		req.MeetingType = models.MeetingTypeOnline
	case models.MeetingTypeOnline, models.MeetingTypeInPerson:
	default:
		return models.Meeting{}, invalid("meeting_type must be %q or %q", models.MeetingTypeOnline, models.MeetingTypeInPerson)
	}
	if req.StartTime.IsZero() {
		return models.Meeting{}, invalid("start_time is required")
	}
	if req.DurationMinutes <= 0 {
		return models.Meeting{}, invalid("end time must be after start time")
	}
	recipients := make([]string, 0, len(req.RecipientEmails))
	for _, e := range req.RecipientEmails {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, err := mail.ParseAddress(e); err != nil {
			return models.Meeting{}, invalid("invalid recipient email %q", e)
		}
		recipients = append(recipients, e)
	}
	return s.repo.CreateMeeting(ctx, ownerID, models.Meeting{
		Title:               req.Title,
		MeetingType:         req.MeetingType,
		StartTime:           req.StartTime,
		DurationMinutes:     req.DurationMinutes,
		Location:            req.Location,
		RecipientEmails:     recipients,
		CompanyParticipants: req.CompanyParticipants,
		Description:         req.Description,
		Status:              models.StatusScheduled,
	})
}

func (s *MeetingsService) List(ctx context.Context, ownerID string) ([]models.Meeting, error) {
	return s.repo.ListMeetings(ctx, ownerID)
}

func (s *MeetingsService) Get(ctx context.Context, ownerID, uid string) (models.Meeting, error) {
	return s.repo.GetMeeting(ctx, ownerID, uid)
}

func (s *MeetingsService) Delete(ctx context.Context, ownerID, uid string) error {
	return s.repo.DeleteMeeting(ctx, ownerID, uid)
}

// transition applies ev to the stored meeting. A concurrent change between
// the read and the conditional update surfaces as a TransitionError.
func (s *MeetingsService) transition(ctx context.Context, ownerID, uid string, ev models.Event, verified bool, check func(models.Meeting) error) (models.Meeting, error) {
	m, err := s.repo.GetMeeting(ctx, ownerID, uid)
	if err != nil {
		return models.Meeting{}, err
	}
	to, ok := m.Status.Next(ev)
	if !ok {
		return models.Meeting{}, &TransitionError{From: m.Status, Event: ev}
	}
	if check != nil {
		if err := check(m); err != nil {
			return models.Meeting{}, err
		}
	}
	if err := s.repo.UpdateMeetingStatus(ctx, ownerID, uid, m.Status, to, verified || m.IsVerified); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			latest, gerr := s.repo.GetMeeting(ctx, ownerID, uid)
			if gerr == nil {
				return models.Meeting{}, &TransitionError{From: latest.Status, Event: ev}
			}
		}
		return models.Meeting{}, err
	}
	return s.repo.GetMeeting(ctx, ownerID, uid)
}

// MarkInProgress starts the meeting and sends the completion code.
func (s *MeetingsService) MarkInProgress(ctx context.Context, ownerID, uid string) (models.Meeting, error) {
	m, err := s.transition(ctx, ownerID, uid, models.EventStart, false, nil)
	if err != nil {
		return models.Meeting{}, err
	}
	if err := s.issue(ctx, m); err != nil {
		s.logger.Printf("WARN: issuing otp for %s: %v", uid, err)
	}
	return m, nil
}

// GenerateOTP issues a fresh code for an open meeting, replacing any previous one.
func (s *MeetingsService) GenerateOTP(ctx context.Context, ownerID, uid string) error {
	m, err := s.openMeeting(ctx, ownerID, uid, models.EventComplete)
	if err != nil {
		return err
	}
	return s.issue(ctx, m)
}

// ResendOTP is GenerateOTP throttled by the resend cooldown.
func (s *MeetingsService) ResendOTP(ctx context.Context, ownerID, uid string) error {
	m, err := s.openMeeting(ctx, ownerID, uid, models.EventComplete)
	if err != nil {
		return err
	}
	if s.resendCooldown > 0 {
		prev, err := s.otps.GetOTP(ctx, uid)
		switch {
		case err == nil:
			if wait := prev.IssuedAt.Add(s.resendCooldown).Sub(s.now()); wait > 0 {
				return &ThrottleError{RetryAfter: wait}
			}
		case !errors.Is(err, otpstore.ErrNotFound):
			return err
		}
	}
	return s.issue(ctx, m)
}

func (s *MeetingsService) openMeeting(ctx context.Context, ownerID, uid string, ev models.Event) (models.Meeting, error) {
	m, err := s.repo.GetMeeting(ctx, ownerID, uid)
	if err != nil {
		return models.Meeting{}, err
	}
	if _, ok := m.Status.Next(ev); !ok {
		return models.Meeting{}, &TransitionError{From: m.Status, Event: ev}
	}
	return m, nil
}

func (s *MeetingsService) issue(ctx context.Context, m models.Meeting) error {
	code, err := cryptohelper.NumericCode(s.otpLength)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	if err := s.otps.SaveOTP(ctx, m.UID, otpstore.Code{
		Hash:      cryptohelper.HashToken(code),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.otpTTL),
	}); err != nil {
		return err
	}
	return s.notifier.SendOTP(ctx, m, code)
}

// MarkCompleted finishes the meeting when code matches the active one. The
// code is single use.
func (s *MeetingsService) MarkCompleted(ctx context.Context, ownerID, uid, code string) (models.Meeting, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return models.Meeting{}, invalid("otp_code is required")
	}
	m, err := s.transition(ctx, ownerID, uid, models.EventComplete, true, func(models.Meeting) error {
		return s.checkCode(ctx, uid, code)
	})
	if err != nil {
		return models.Meeting{}, err
	}
	if err := s.otps.DeleteOTP(ctx, uid); err != nil {
		s.logger.Printf("WARN: deleting used otp for %s: %v", uid, err)
	}
	return m, nil
}

func (s *MeetingsService) checkCode(ctx context.Context, uid, code string) error {
	active, err := s.otps.GetOTP(ctx, uid)
	if errors.Is(err, otpstore.ErrNotFound) {
		return ErrInvalidOTP
	}
	if err != nil {
		return err
	}
	if active.Expired(s.now()) {
		_ = s.otps.DeleteOTP(ctx, uid)
		return ErrOTPExpired
	}
	if !cryptohelper.TokenMatches(active.Hash, code) {
		return ErrInvalidOTP
	}
	return nil
}

func (s *MeetingsService) MarkCancelled(ctx context.Context, ownerID, uid string) (models.Meeting, error) {
	m, err := s.transition(ctx, ownerID, uid, models.EventCancel, false, nil)
	if err != nil {
		return models.Meeting{}, err
	}
	if err := s.otps.DeleteOTP(ctx, uid); err != nil {
		s.logger.Printf("WARN: deleting otp for cancelled %s: %v", uid, err)
	}
	return m, nil
}

// UploadPhoto stores completion evidence. Only completed meetings that have
// no photo yet accept one.
func (s *MeetingsService) UploadPhoto(ctx context.Context, ownerID, uid, filename string, r io.Reader) (models.Photo, error) {
	m, err := s.repo.GetMeeting(ctx, ownerID, uid)
	if err != nil {
		return models.Photo{}, err
	}
	if m.Status != models.StatusCompleted || m.HasPhoto() {
		return models.Photo{}, ErrPhotoNotAllowed
	}

	br := bufio.NewReaderSize(r, 512)
	head, _ := br.Peek(512)
	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "image/") {
		return models.Photo{}, ErrUnsupportedMedia
	}

	dir := s.photoDir
	if dir == "" {
		dir = "media"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return models.Photo{}, err
	}
	name := uuid.NewString() + photoExt(filename, contentType)
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return models.Photo{}, err
	}
	var src io.Reader = br
	if s.maxUploadBytes > 0 {
		src = io.LimitReader(br, s.maxUploadBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxUploadBytes > 0 && n > s.maxUploadBytes {
		err = ErrPhotoTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		return models.Photo{}, err
	}

	p, err := s.repo.AddPhoto(ctx, uid, models.Photo{
		File:        MediaPrefix + name,
		ContentType: contentType,
		Size:        n,
		UploadedAt:  s.now().UTC(),
	})
	if err != nil {
		_ = os.Remove(path)
		return models.Photo{}, fmt.Errorf("record photo: %w", err)
	}
	return p, nil
}

func photoExt(filename, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" && len(ext) <= 5 {
		if t := mime.TypeByExtension(ext); strings.HasPrefix(t, "image/") {
			return ext
		}
	}
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		return exts[0]
	}
	return ".img"
}
