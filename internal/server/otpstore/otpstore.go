// Package otpstore keeps issued completion codes. Only a hash of each code is
// stored, keyed by meeting uid, so issuing a new code replaces the old one.
package otpstore

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("no active code")

type Code struct {
	Hash      string    `json:"hash"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether c is no longer valid at now.
func (c Code) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

type Store interface {
	SaveOTP(ctx context.Context, meetingUID string, c Code) error
	GetOTP(ctx context.Context, meetingUID string) (Code, error)
	DeleteOTP(ctx context.Context, meetingUID string) error
}

// Sweeper is implemented by stores that do not expire entries on their own.
type Sweeper interface {
	DeleteExpiredOTPs(ctx context.Context, now time.Time) (int64, error)
}
