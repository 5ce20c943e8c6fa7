package otp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/api"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/session"
)

type fakeServer struct {
	mu          sync.Mutex
	completeErr error
	resendErr   error
	completes   []string
	resends     int
	block       chan struct{}
}

func (f *fakeServer) MarkCompleted(ctx context.Context, uid, code string) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completes = append(f.completes, code)
	return f.completeErr
}

func (f *fakeServer) ResendOTP(ctx context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resends++
	return f.resendErr
}

// manualTicker never fires; tests drive the countdown with Tick.
type manualTicker struct {
	started, stopped int
}

func (m *manualTicker) fn(time.Duration) (<-chan time.Time, func()) {
	m.started++
	return make(chan time.Time), func() { m.stopped++ }
}

func newChallenge(p Policy, srv *fakeServer) (*Challenge, *manualTicker) {
	mt := &manualTicker{}
	return New("m1", p, srv, WithTicker(mt.fn)), mt
}

func TestSubmit_AcceptsMinimumLength(t *testing.T) {
	srv := &fakeServer{}
	c, _ := newChallenge(QuickPolicy, srv)
	if err := c.Submit(context.Background(), "m1", "1234"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !c.Verified("m1") {
		t.Fatalf("challenge must be verified after success")
	}
	if c.Verified("m2") {
		t.Fatalf("verification is per meeting")
	}
	if len(srv.completes) != 1 || srv.completes[0] != "1234" {
		t.Fatalf("server saw %v", srv.completes)
	}
}

func TestSubmit_TooShortRejectedLocally(t *testing.T) {
	for name, p := range map[string]Policy{"quick": QuickPolicy, "verified": VerifiedPolicy} {
		t.Run(name, func(t *testing.T) {
			srv := &fakeServer{}
			c, _ := newChallenge(p, srv)
			err := c.Submit(context.Background(), "m1", "12")
			var ve *VerificationError
			if !errors.As(err, &ve) || !errors.Is(err, ErrCodeTooShort) {
				t.Fatalf("want too-short VerificationError, got %v", err)
			}
			if ve.Reason != "OTP must be at least 4 digits" && ve.Reason != "OTP must be at least 4 characters" {
				t.Fatalf("reason %q", ve.Reason)
			}
			if len(srv.completes) != 0 {
				t.Fatalf("server must not be contacted")
			}
			if c.State().Error != ve.Reason {
				t.Fatalf("state error %q", c.State().Error)
			}
		})
	}
}

func TestSubmit_VerifiedPolicyFormat(t *testing.T) {
	c, _ := newChallenge(VerifiedPolicy, &fakeServer{})
	if err := c.Submit(context.Background(), "m1", "12a4"); !errors.Is(err, ErrCodeFormat) {
		t.Fatalf("want ErrCodeFormat, got %v", err)
	}
	if err := c.Submit(context.Background(), "m1", "1234567"); !errors.Is(err, ErrCodeTooLong) {
		t.Fatalf("want ErrCodeTooLong, got %v", err)
	}
}

func TestSubmit_ServerRejectionResetsVerified(t *testing.T) {
	srv := &fakeServer{}
	c, _ := newChallenge(QuickPolicy, srv)
	if err := c.Submit(context.Background(), "m1", "1234"); err != nil {
		t.Fatal(err)
	}
	srv.completeErr = &api.Error{Status: 400, Message: "OTP has expired"}
	err := c.Submit(context.Background(), "m1", "9999")
	var ve *VerificationError
	if !errors.As(err, &ve) || ve.Reason != "OTP has expired" {
		t.Fatalf("want server reason, got %v", err)
	}
	if c.Verified("m1") {
		t.Fatalf("a failed submit must clear verification")
	}

	srv.completeErr = errors.New("opaque")
	if err := c.Submit(context.Background(), "m1", "9999"); err.Error() != defaultVerifyFailure {
		t.Fatalf("want default reason, got %v", err)
	}
}

func TestSubmit_UnauthorizedIsAuthExpired(t *testing.T) {
	c, _ := newChallenge(QuickPolicy, &fakeServer{completeErr: api.ErrUnauthorized})
	if err := c.Submit(context.Background(), "m1", "1234"); !errors.Is(err, session.ErrAuthExpired) {
		t.Fatalf("want ErrAuthExpired, got %v", err)
	}
}

func TestSubmit_BusyRejectsSecondCall(t *testing.T) {
	srv := &fakeServer{block: make(chan struct{})}
	c, _ := newChallenge(QuickPolicy, srv)

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), "m1", "1234") }()
	deadline := time.Now().Add(2 * time.Second)
	for !c.State().Busy {
		if time.Now().After(deadline) {
			t.Fatalf("first submit never went in flight")
		}
		time.Sleep(time.Millisecond)
	}
	if err := c.Submit(context.Background(), "m1", "5678"); !errors.Is(err, ErrBusy) {
		t.Fatalf("want ErrBusy, got %v", err)
	}
	if err := c.Resend(context.Background(), "m1"); !errors.Is(err, ErrBusy) {
		t.Fatalf("want ErrBusy for resend, got %v", err)
	}
	close(srv.block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if srv.resends != 0 || len(srv.completes) != 1 {
		t.Fatalf("rejected calls must not reach the server: %+v", srv)
	}
}

func TestResend_CooldownScenario(t *testing.T) {
	srv := &fakeServer{}
	c, mt := newChallenge(VerifiedPolicy, srv)

	if err := c.Resend(context.Background(), "m1"); err != nil {
		t.Fatal(err)
	}
	s := c.State()
	if s.CooldownRemaining != 60 || s.Status != StatusSent {
		t.Fatalf("after resend: %+v", s)
	}
	for i := 0; i < 5; i++ {
		c.Tick()
	}
	if err := c.Resend(context.Background(), "m1"); !errors.Is(err, ErrResendThrottled) {
		t.Fatalf("want ErrResendThrottled, got %v", err)
	}
	if got := c.State().CooldownRemaining; got != 55 {
		t.Fatalf("rejected resend changed cooldown to %d", got)
	}
	if srv.resends != 1 {
		t.Fatalf("throttled resend reached the server: %d calls", srv.resends)
	}
	if mt.started != 1 {
		t.Fatalf("ticker started %d times", mt.started)
	}
}

func TestResend_CountsDownToZeroThenOnce(t *testing.T) {
	srv := &fakeServer{}
	c, mt := newChallenge(QuickPolicy, srv)
	_ = c.Resend(context.Background(), "m1")
	for i := 0; i < 100; i++ {
		c.Tick()
	}
	s := c.State()
	if s.CooldownRemaining != 0 || s.Status != "" {
		t.Fatalf("after countdown: %+v", s)
	}
	if mt.stopped != 1 {
		t.Fatalf("ticker must stop at zero, stopped=%d", mt.stopped)
	}
	if err := c.Resend(context.Background(), "m1"); err != nil {
		t.Fatal(err)
	}
	if got := c.State().CooldownRemaining; got != 30 {
		t.Fatalf("second cooldown must reset to the window, got %d", got)
	}
	if err := c.Resend(context.Background(), "m1"); !errors.Is(err, ErrResendThrottled) {
		t.Fatalf("want throttled, got %v", err)
	}
	if srv.resends != 2 {
		t.Fatalf("server resends %d", srv.resends)
	}
}

func TestResend_FailureKeepsCooldownIdle(t *testing.T) {
	c, mt := newChallenge(QuickPolicy, &fakeServer{resendErr: &api.Error{Status: 500, Message: ""}})
	err := c.Resend(context.Background(), "m1")
	var re *ResendError
	if !errors.As(err, &re) || re.Reason != defaultResendFailure {
		t.Fatalf("want ResendError, got %v", err)
	}
	if c.State().CooldownRemaining != 0 || mt.started != 0 {
		t.Fatalf("failed resend must not start the cooldown")
	}
}

func TestResend_ServerThrottleSeedsCooldown(t *testing.T) {
	srv := &fakeServer{resendErr: &api.Error{Status: 429, Message: "Please wait.", RetryAfter: 12500 * time.Millisecond}}
	c, mt := newChallenge(VerifiedPolicy, srv)

	err := c.Resend(context.Background(), "m1")
	var re *ResendError
	if !errors.As(err, &re) || re.Reason != "Please wait." {
		t.Fatalf("want ResendError, got %v", err)
	}
	s := c.State()
	if s.CooldownRemaining != 13 || s.Status != "" || mt.started != 1 {
		t.Fatalf("server throttle must start the local cooldown: %+v started=%d", s, mt.started)
	}
	if err := c.Resend(context.Background(), "m1"); !errors.Is(err, ErrResendThrottled) {
		t.Fatalf("want ErrResendThrottled, got %v", err)
	}
	if srv.resends != 1 {
		t.Fatalf("resend inside the server window reached the server: %d", srv.resends)
	}
}

func TestResend_ServerThrottleWithoutHintUsesPolicy(t *testing.T) {
	c, _ := newChallenge(QuickPolicy, &fakeServer{resendErr: &api.Error{Status: 429, Message: "Please wait."}})
	_ = c.Resend(context.Background(), "m1")
	if got := c.State().CooldownRemaining; got != 30 {
		t.Fatalf("cooldown %d, want the policy window", got)
	}
}

func TestClose_StopsCountdown(t *testing.T) {
	c, mt := newChallenge(QuickPolicy, &fakeServer{})
	_ = c.Resend(context.Background(), "m1")
	c.Close()
	if mt.stopped != 1 {
		t.Fatalf("close must stop the ticker")
	}
	before := c.State().CooldownRemaining
	c.Tick()
	if c.State().CooldownRemaining != before {
		t.Fatalf("tick after close mutated state")
	}
	if err := c.Submit(context.Background(), "m1", "1234"); !errors.Is(err, ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}
	c.Close()
}

func TestRealTickerDrivesCountdown(t *testing.T) {
	ticks := make(chan time.Time)
	c := New("m1", Policy{MinLength: 4, Cooldown: 2 * time.Second}, &fakeServer{},
		WithTicker(func(time.Duration) (<-chan time.Time, func()) { return ticks, func() {} }))
	changes := make(chan State, 8)
	c.OnChange(func(s State) { changes <- s })
	_ = c.Resend(context.Background(), "m1")

	ticks <- time.Now()
	ticks <- time.Now()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-changes:
			if s.CooldownRemaining == 0 && s.Status == "" && !s.Busy {
				return
			}
		case <-deadline:
			t.Fatalf("countdown never reached zero: %+v", c.State())
		}
	}
}
