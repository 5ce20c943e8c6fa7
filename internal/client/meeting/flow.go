package meeting

import (
	"fmt"
	"strings"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/otp"
)

// Flow is a completion preset. Both presets require OTP verification for
// completed; they differ in code shape, resend window and when the photo is
// taken.
type Flow struct {
	Name            string
	OTP             otp.Policy
	RequireEvidence bool
}

var (
	// VerifiedFlow takes the photo before the meeting is finalized locally.
	VerifiedFlow = Flow{Name: "verified", OTP: otp.VerifiedPolicy, RequireEvidence: true}
	// QuickFlow finalizes on OTP acceptance; the photo may be attached afterwards.
	QuickFlow = Flow{Name: "quick", OTP: otp.QuickPolicy}
)

func FlowByName(name string) (Flow, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", VerifiedFlow.Name:
		return VerifiedFlow, nil
	case QuickFlow.Name:
		return QuickFlow, nil
	}
	return Flow{}, fmt.Errorf("unknown flow %q (want %q or %q)", name, VerifiedFlow.Name, QuickFlow.Name)
}
