// Package otp drives the one-time-passcode exchange that gates meeting
// completion: local format checks, server verification, and the throttled
// resend with its one-second cooldown countdown.
package otp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/api"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/session"
)

const (
	StatusSent = "sent"

	defaultVerifyFailure = "Invalid OTP. Please try again or resend."
	defaultResendFailure = "Failed to resend OTP."
)

// Policy is the per-flow shape of an acceptable code and the resend window.
type Policy struct {
	MinLength  int
	MaxLength  int // 0 means unbounded
	DigitsOnly bool
	Cooldown   time.Duration
}

var (
	// VerifiedPolicy backs the two-step flow (code, then photo).
	VerifiedPolicy = Policy{MinLength: 4, MaxLength: 6, DigitsOnly: true, Cooldown: 60 * time.Second}
	// QuickPolicy backs the single-step flow.
	QuickPolicy = Policy{MinLength: 4, MaxLength: 10, Cooldown: 30 * time.Second}
)

func (p Policy) cooldownSeconds() int {
	return int(p.Cooldown / time.Second)
}

// Validate checks code locally and returns a VerificationError describing the
// first problem found.
func (p Policy) Validate(code string) error {
	unit := "characters"
	if p.DigitsOnly {
		unit = "digits"
		for _, r := range code {
			if r < '0' || r > '9' {
				return &VerificationError{Reason: "OTP must contain digits only", Err: ErrCodeFormat}
			}
		}
	}
	if len(code) < p.MinLength {
		return &VerificationError{Reason: fmt.Sprintf("OTP must be at least %d %s", p.MinLength, unit), Err: ErrCodeTooShort}
	}
	if p.MaxLength > 0 && len(code) > p.MaxLength {
		return &VerificationError{Reason: fmt.Sprintf("OTP must be at most %d %s", p.MaxLength, unit), Err: ErrCodeTooLong}
	}
	return nil
}

// Server is the slice of the remote service a challenge talks to.
type Server interface {
	MarkCompleted(ctx context.Context, uid, otp string) error
	ResendOTP(ctx context.Context, uid string) error
}

// State is a snapshot for rendering.
type State struct {
	MeetingID         string
	Error             string
	Status            string
	CooldownRemaining int
	Verified          bool
	Busy              bool
}

// TickerFunc starts a periodic tick and returns its channel and a stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

type Option func(*Challenge)

func WithTicker(fn TickerFunc) Option {
	return func(c *Challenge) { c.newTicker = fn }
}

// Challenge is the per-meeting, per-dialog OTP state. It is never persisted.
type Challenge struct {
	meetingID string
	policy    Policy
	server    Server
	newTicker TickerFunc

	mu        sync.Mutex
	lastErr   string
	status    string
	cooldown  int
	verified  bool
	busy      bool
	closed    bool
	timer     *countdown
	listeners []func(State)
}

type countdown struct {
	stop func()
	done chan struct{}
}

func New(meetingID string, policy Policy, server Server, opts ...Option) *Challenge {
	c := &Challenge{meetingID: meetingID, policy: policy, server: server, newTicker: realTicker}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Challenge) MeetingID() string { return c.meetingID }
func (c *Challenge) Policy() Policy    { return c.policy }

// OnChange registers fn to receive a snapshot after every state change.
func (c *Challenge) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Challenge) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Challenge) snapshotLocked() State {
	return State{
		MeetingID:         c.meetingID,
		Error:             c.lastErr,
		Status:            c.status,
		CooldownRemaining: c.cooldown,
		Verified:          c.verified,
		Busy:              c.busy,
	}
}

// Verified reports whether the most recent submit for meetingID succeeded.
func (c *Challenge) Verified(meetingID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.verified && meetingID == c.meetingID
}

// Submit validates code locally and then asks the server to verify it.
func (c *Challenge) Submit(ctx context.Context, meetingID, code string) error {
	code = strings.TrimSpace(code)

	c.mu.Lock()
	if err := c.admitLocked(meetingID); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.policy.Validate(code); err != nil {
		c.verified = false
		c.lastErr = err.Error()
		c.mu.Unlock()
		c.notify()
		return err
	}
	c.busy = true
	c.lastErr = ""
	c.mu.Unlock()
	c.notify()

	err := c.server.MarkCompleted(ctx, meetingID, code)

	c.mu.Lock()
	c.busy = false
	if err != nil {
		c.verified = false
		err = verificationFailure(err)
		c.lastErr = err.Error()
	} else {
		c.verified = true
	}
	c.mu.Unlock()
	c.notify()
	return err
}

// Resend asks the server for a new code. While the cooldown is running it is
// rejected with ErrResendThrottled without any network call.
func (c *Challenge) Resend(ctx context.Context, meetingID string) error {
	c.mu.Lock()
	if err := c.admitLocked(meetingID); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.cooldown > 0 {
		c.mu.Unlock()
		return ErrResendThrottled
	}
	c.busy = true
	c.lastErr = ""
	c.status = ""
	c.mu.Unlock()
	c.notify()

	err := c.server.ResendOTP(ctx, meetingID)

	c.mu.Lock()
	c.busy = false
	if err != nil {
		if wait, ok := throttledFor(err); ok && !c.closed {
			c.cooldown = wait
			if c.cooldown == 0 {
				c.cooldown = c.policy.cooldownSeconds()
			}
			if c.cooldown > 0 {
				c.startTimerLocked()
			}
		}
		err = resendFailure(err)
		c.lastErr = err.Error()
	} else if !c.closed {
		c.status = StatusSent
		c.cooldown = c.policy.cooldownSeconds()
		c.startTimerLocked()
	}
	c.mu.Unlock()
	c.notify()
	return err
}

// Tick advances the cooldown by one second. At zero the sent status clears
// and the countdown stops.
func (c *Challenge) Tick() {
	c.mu.Lock()
	if c.closed || c.cooldown == 0 {
		c.mu.Unlock()
		return
	}
	c.cooldown--
	if c.cooldown == 0 {
		c.status = ""
		c.stopTimerLocked()
	}
	c.mu.Unlock()
	c.notify()
}

// Close disposes the challenge and cancels the countdown. No state changes
// after Close returns.
func (c *Challenge) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.verified = false
	c.stopTimerLocked()
	c.listeners = nil
}

func (c *Challenge) admitLocked(meetingID string) error {
	switch {
	case c.closed:
		return ErrClosed
	case meetingID != c.meetingID:
		return ErrWrongMeeting
	case c.busy:
		return ErrBusy
	}
	return nil
}

func (c *Challenge) startTimerLocked() {
	if c.timer != nil {
		return
	}
	ch, stop := c.newTicker(time.Second)
	cd := &countdown{stop: stop, done: make(chan struct{})}
	c.timer = cd
	go func() {
		for {
			select {
			case <-cd.done:
				return
			case <-ch:
				c.Tick()
			}
		}
	}()
}

func (c *Challenge) stopTimerLocked() {
	if c.timer == nil {
		return
	}
	c.timer.stop()
	close(c.timer.done)
	c.timer = nil
}

func (c *Challenge) notify() {
	c.mu.Lock()
	s := c.snapshotLocked()
	listeners := append([]func(State){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}

func verificationFailure(err error) error {
	if errors.Is(err, api.ErrUnauthorized) {
		return session.ErrAuthExpired
	}
	return &VerificationError{Reason: operatorReason(err, defaultVerifyFailure), Err: err}
}

// throttledFor reports whether the server refused a resend for rate
// limiting, and the wait it asked for in whole seconds.
func throttledFor(err error) (int, bool) {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusTooManyRequests {
		return 0, false
	}
	return int((apiErr.RetryAfter + time.Second - 1) / time.Second), true
}

func resendFailure(err error) error {
	if errors.Is(err, api.ErrUnauthorized) {
		return session.ErrAuthExpired
	}
	return &ResendError{Reason: operatorReason(err, defaultResendFailure), Err: err}
}

func operatorReason(err error, fallback string) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.Is(err, api.ErrNetwork) {
		return "Network error. Please check your connection and try again."
	}
	return fallback
}
