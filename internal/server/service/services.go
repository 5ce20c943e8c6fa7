package service

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/config"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/notify"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/otpstore"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/models"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/passhash"
)

type Repository interface {
	CreateUser(ctx context.Context, u models.User, passwordHash []byte) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, []byte, error)
	GetUser(ctx context.Context, id string) (models.User, error)

	CreateRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, tokenHash string) (userID string, expiresAt time.Time, err error)
	DeleteRefreshToken(ctx context.Context, tokenHash string) error

	CreateMeeting(ctx context.Context, ownerID string, m models.Meeting) (models.Meeting, error)
	ListMeetings(ctx context.Context, ownerID string) ([]models.Meeting, error)
	GetMeeting(ctx context.Context, ownerID, uid string) (models.Meeting, error)
	UpdateMeetingStatus(ctx context.Context, ownerID, uid string, from, to models.MeetingStatus, verified bool) error
	DeleteMeeting(ctx context.Context, ownerID, uid string) error
	AddPhoto(ctx context.Context, meetingUID string, p models.Photo) (models.Photo, error)
}

type Services struct {
	Auth     *AuthService
	Meetings *MeetingsService
}

// NewServices wires the auth and meeting services. otps holds issued codes
// and may be the sqlite repository itself or a redis store.
func NewServices(repo Repository, otps otpstore.Store, notifier notify.Notifier, cfg config.Config, logger *log.Logger) *Services {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if notifier == nil {
		notifier = notify.NewLog(logger)
	}
	return &Services{
		Auth: &AuthService{
			repo:       repo,
			jwtSecret:  []byte(cfg.JWTSecret),
			accessTTL:  orDefault(cfg.AccessTokenTTL, 24*time.Hour),
			refreshTTL: orDefault(cfg.RefreshTokenTTL, 30*24*time.Hour),
			params:     passhash.Default,
			now:        time.Now,
		},
		Meetings: &MeetingsService{
			repo:           repo,
			otps:           otps,
			notifier:       notifier,
			logger:         logger,
			otpTTL:         orDefault(cfg.OTPTTL, 10*time.Minute),
			otpLength:      otpLength(cfg.OTPLength),
			resendCooldown: cfg.OTPResendCooldown,
			photoDir:       cfg.PhotoDir,
			maxUploadBytes: cfg.MaxUploadBytes,
			now:            time.Now,
		},
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func otpLength(n int) int {
	if n < 4 || n > 6 {
		return 6
	}
	return n
}
