// Package notify delivers completion codes to meeting participants.
package notify

import (
	"context"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/models"
)

type Notifier interface {
	SendOTP(ctx context.Context, m models.Meeting, code string) error
}

// Log writes codes to the server log. It is the development transport.
type Log struct {
	logger *log.Logger
}

func NewLog(logger *log.Logger) *Log {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Log{logger: logger}
}

func (n *Log) SendOTP(_ context.Context, m models.Meeting, code string) error {
	to := strings.Join(m.RecipientEmails, ", ")
	if to == "" {
		to = "(no recipients)"
	}
	n.logger.Printf("otp for meeting %s %q to %s: %s", m.UID, m.Title, to, code)
	return nil
}

// Memory keeps the last code sent per meeting.
type Memory struct {
	mu    sync.Mutex
	codes map[string]string
	sent  int
}

func NewMemory() *Memory {
	return &Memory{codes: map[string]string{}}
}

func (n *Memory) SendOTP(_ context.Context, m models.Meeting, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes[m.UID] = code
	n.sent++
	return nil
}

// Last returns the most recent code sent for meetingUID.
func (n *Memory) Last(meetingUID string) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	c, ok := n.codes[meetingUID]
	return c, ok
}

func (n *Memory) Sent() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent
}
