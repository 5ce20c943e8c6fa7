package cmd

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/evidence"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/meeting"
	serverconfig "github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/config"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/httpapi"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/notify"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/repository/sqlite"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/service"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

// withTempState points config and state lookups at fresh directories.
func withTempState(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	state := filepath.Join(home, "state")
	t.Setenv("MEETFLOW_STATE_DIR", state)
	t.Setenv("MEETFLOW_FLOW", "")
	return state
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("1.0.0", "2026-03-01")
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRoot_VersionAndVault(t *testing.T) {
	state := withTempState(t)

	out, err := run(t, "", "version")
	if err != nil || !strings.HasPrefix(out, "meetflow 1.0.0") {
		t.Fatalf("version: %q %v", out, err)
	}

	out, err = run(t, "", "vault", "status")
	if err != nil || !strings.Contains(out, "not initialized") {
		t.Fatalf("status before init: %q %v", out, err)
	}
	if out, err = run(t, "", "vault", "init"); err != nil || !strings.Contains(out, "generated") {
		t.Fatalf("init: %q %v", out, err)
	}
	if _, err := os.Stat(filepath.Join(state, "vault_key")); err != nil {
		t.Fatalf("vault key not written: %v", err)
	}
	if out, err = run(t, "", "vault", "init"); err != nil || !strings.Contains(out, "already present") {
		t.Fatalf("second init: %q %v", out, err)
	}
	if out, _ = run(t, "", "vault", "status"); !strings.Contains(out, "ready") {
		t.Fatalf("status after init: %q", out)
	}
}

func TestRoot_UnknownFlow(t *testing.T) {
	withTempState(t)
	if _, err := run(t, "", "--flow", "express", "vault", "status"); err == nil {
		t.Fatalf("unknown flow must be rejected")
	}
}

func TestRoot_RequiresLogin(t *testing.T) {
	withTempState(t)
	_, err := run(t, "", "--server", "http://127.0.0.1:1", "meetings", "list")
	if err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Fatalf("want not logged in, got %v", err)
	}
	out, err := run(t, "", "auth", "status")
	if err != nil || !strings.Contains(out, "Not logged in") {
		t.Fatalf("auth status: %q %v", out, err)
	}
}

func TestRoot_RegisterValidation(t *testing.T) {
	withTempState(t)
	_, err := run(t, "abc\nabc\n", "--server", "http://127.0.0.1:1", "auth", "register", "--full-name", "Ana", "--username", "ana", "--email", "ana@example.com")
	if err == nil || !strings.Contains(err.Error(), "at least 6") {
		t.Fatalf("short password: %v", err)
	}
	_, err = run(t, "secret1\nsecret2\n", "--server", "http://127.0.0.1:1", "auth", "register", "--full-name", "Ana", "--username", "ana", "--email", "ana@example.com")
	if err == nil || !strings.Contains(err.Error(), "do not match") {
		t.Fatalf("mismatch: %v", err)
	}
}

func startService(t *testing.T, name string) *notify.Memory {
	t.Helper()
	repo, err := sqlite.New("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	codes := notify.NewMemory()
	cfg := serverconfig.Config{JWTSecret: "test", OTPLength: 6, OTPResendCooldown: 30 * time.Second, PhotoDir: t.TempDir(), MaxUploadBytes: 1 << 20}
	svcs := service.NewServices(repo, repo, codes, cfg, nil)
	ts := httptest.NewServer(httpapi.NewRouter(svcs, nil, httpapi.Options{MaxUploadBytes: cfg.MaxUploadBytes, PhotoDir: cfg.PhotoDir}))
	t.Cleanup(ts.Close)
	t.Setenv("MEETFLOW_SERVER_URL", ts.URL)
	return codes
}

var uidPattern = regexp.MustCompile(`\(([0-9a-f-]{36})\)`)

func TestRoot_VerifiedMeetingEndToEnd(t *testing.T) {
	state := withTempState(t)
	codes := startService(t, "cli_verified")

	out, err := run(t, "secret1\nsecret1\n", "auth", "register", "--full-name", "Ana Lima", "--username", "ana", "--email", "ana@example.com")
	if err != nil || !strings.Contains(out, "Registered and logged in as ana") {
		t.Fatalf("register: %q %v", out, err)
	}
	if out, _ = run(t, "", "auth", "status"); !strings.Contains(out, "Logged in as ana (Ana Lima)") || !strings.Contains(out, "Server: "+os.Getenv("MEETFLOW_SERVER_URL")) {
		t.Fatalf("status: %q", out)
	}

	out, err = run(t, "", "meetings", "create", "--title", "Site visit", "--type", "in-person",
		"--date", "2026-03-04", "--start", "09:00", "--end", "09:45", "--recipients", "client@example.com, boss@example.com")
	if err != nil {
		t.Fatalf("create: %q %v", out, err)
	}
	match := uidPattern.FindStringSubmatch(out)
	if match == nil {
		t.Fatalf("no uid in %q", out)
	}
	uid := match[1]

	if out, err = run(t, "", "meetings", "list", "--search", "site"); err != nil || !strings.Contains(out, "Site visit") {
		t.Fatalf("list: %q %v", out, err)
	}
	if out, err = run(t, "", "meetings", "start", uid); err != nil || !strings.Contains(out, "in progress") {
		t.Fatalf("start: %q %v", out, err)
	}
	code, ok := codes.Last(uid)
	if !ok {
		t.Fatalf("start must send a code")
	}

	_, err = run(t, "", "meetings", "complete", uid, "--otp", code)
	if !errors.Is(err, meeting.ErrEvidenceRequired) {
		t.Fatalf("verified flow without photo: want ErrEvidenceRequired, got %v", err)
	}

	pdf := filepath.Join(t.TempDir(), "notes.pdf")
	_ = os.WriteFile(pdf, []byte("%PDF-1.4"), 0o600)
	_, err = run(t, "", "meetings", "complete", uid, "--otp", code, "--photo", pdf)
	if !errors.Is(err, evidence.ErrInvalidType) {
		t.Fatalf("pdf evidence: want ErrInvalidType, got %v", err)
	}

	photo := filepath.Join(t.TempDir(), "proof.png")
	_ = os.WriteFile(photo, pngHeader, 0o600)
	_, err = run(t, "", "meetings", "complete", uid, "--otp", "000000"+"0", "--photo", photo)
	if err == nil || !strings.Contains(err.Error(), "at most 6") {
		t.Fatalf("too long code must be rejected locally: %v", err)
	}
	out, err = run(t, "", "meetings", "complete", uid, "--otp", code, "--photo", photo)
	if err != nil || !strings.Contains(out, "completed and verified") {
		t.Fatalf("complete: %q %v", out, err)
	}

	out, err = run(t, "", "meetings", "show", uid)
	if err != nil || !strings.Contains(out, "completed (verified)") || !strings.Contains(out, "/media/") {
		t.Fatalf("show: %q %v", out, err)
	}
	if _, err := run(t, "", "meetings", "cancel", uid, "--yes"); !errors.Is(err, meeting.ErrTransitionRejected) {
		t.Fatalf("cancel completed: want ErrTransitionRejected, got %v", err)
	}

	if out, err = run(t, "", "auth", "logout"); err != nil || !strings.Contains(out, "Logged out") {
		t.Fatalf("logout: %q %v", out, err)
	}
	if _, err := os.Stat(filepath.Join(state, "credentials")); !os.IsNotExist(err) {
		t.Fatalf("credentials must be removed on logout")
	}
}

func TestRoot_QuickFlowCancelAndDelete(t *testing.T) {
	withTempState(t)
	codes := startService(t, "cli_quick")
	t.Setenv("MEETFLOW_FLOW", "quick")

	if _, err := run(t, "secret1\nsecret1\n", "auth", "register", "--full-name", "Bo", "--username", "bo", "--email", "bo@example.com"); err != nil {
		t.Fatal(err)
	}
	create := func(title string) string {
		out, err := run(t, "", "meetings", "create", "--title", title, "--date", "2026-03-04")
		if err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
		return uidPattern.FindStringSubmatch(out)[1]
	}

	first := create("Standup")
	if out, err := run(t, "", "meetings", "resend-otp", first); err != nil || !strings.Contains(out, "Code sent") {
		t.Fatalf("resend: %q %v", out, err)
	}
	code, _ := codes.Last(first)
	out, err := run(t, "", "meetings", "complete", first, "--otp", code)
	if err != nil || !strings.Contains(out, "completed and verified") {
		t.Fatalf("quick complete without photo: %q %v", out, err)
	}
	photo := filepath.Join(t.TempDir(), "later.png")
	_ = os.WriteFile(photo, pngHeader, 0o600)
	if out, err := run(t, "", "meetings", "upload-photo", first, photo); err != nil || !strings.Contains(out, "Photo uploaded") {
		t.Fatalf("late photo: %q %v", out, err)
	}

	second := create("Retro")
	if out, _ := run(t, "n\n", "meetings", "cancel", second); !strings.Contains(out, "aborted") {
		t.Fatalf("declined cancel: %q", out)
	}
	if out, err := run(t, "y\n", "meetings", "cancel", second); err != nil || !strings.Contains(out, "Retro cancelled") {
		t.Fatalf("cancel: %q %v", out, err)
	}
	if out, _ := run(t, "", "meetings", "list", "--status", "cancelled"); !strings.Contains(out, "Retro") || strings.Contains(out, "Standup") {
		t.Fatalf("status filter: %q", out)
	}
	if out, err := run(t, "", "meetings", "delete", second, "--yes"); err != nil || !strings.Contains(out, "deleted") {
		t.Fatalf("delete: %q %v", out, err)
	}
	if _, err := run(t, "", "meetings", "show", second); !errors.Is(err, meeting.ErrNotFound) {
		t.Fatalf("deleted meeting still listed: %v", err)
	}
}

func TestRoot_CompleteScheduledIssuesCode(t *testing.T) {
	withTempState(t)
	codes := startService(t, "cli_generate")
	t.Setenv("MEETFLOW_FLOW", "quick")

	if _, err := run(t, "secret1\nsecret1\n", "auth", "register", "--full-name", "Cy", "--username", "cy", "--email", "cy@example.com"); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "", "meetings", "create", "--title", "Kickoff", "--date", "2026-03-04")
	if err != nil {
		t.Fatal(err)
	}
	uid := uidPattern.FindStringSubmatch(out)[1]

	out, err = run(t, "abcd\n", "meetings", "complete", uid, "--attempts", "1")
	if err == nil || !strings.Contains(out, "An OTP was sent") {
		t.Fatalf("wrong code after generate: %q %v", out, err)
	}
	code, ok := codes.Last(uid)
	if !ok {
		t.Fatalf("completing a scheduled meeting must issue a code")
	}
	if out, err = run(t, "", "meetings", "complete", uid, "--otp", code); err != nil || !strings.Contains(out, "completed and verified") {
		t.Fatalf("complete: %q %v", out, err)
	}
}

func TestRoot_UploadFailureAfterCompletionHints(t *testing.T) {
	withTempState(t)
	codes := startService(t, "cli_upload_hint")

	if _, err := run(t, "secret1\nsecret1\n", "auth", "register", "--full-name", "Di", "--username", "di", "--email", "di@example.com"); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "", "meetings", "create", "--title", "Audit", "--type", "in-person", "--date", "2026-03-04")
	if err != nil {
		t.Fatal(err)
	}
	uid := uidPattern.FindStringSubmatch(out)[1]
	if _, err := run(t, "", "meetings", "start", uid); err != nil {
		t.Fatal(err)
	}
	code, _ := codes.Last(uid)

	// Within the client cap, over the server's upload limit.
	big := filepath.Join(t.TempDir(), "big.png")
	_ = os.WriteFile(big, append(append([]byte(nil), pngHeader...), make([]byte, 2<<20)...), 0o600)
	out, err = run(t, "", "meetings", "complete", uid, "--otp", code, "--photo", big)
	if !errors.As(err, new(*evidence.UploadError)) {
		t.Fatalf("want UploadError, got %v", err)
	}
	if !strings.Contains(out, "meetflow meetings upload-photo "+uid+" PATH") {
		t.Fatalf("missing retry hint: %q", out)
	}

	small := filepath.Join(t.TempDir(), "small.png")
	_ = os.WriteFile(small, pngHeader, 0o600)
	if out, err := run(t, "", "meetings", "upload-photo", uid, small); err != nil || !strings.Contains(out, "Photo uploaded") {
		t.Fatalf("retry upload: %q %v", out, err)
	}
}

func TestPhotoRetryHint(t *testing.T) {
	if got := photoRetryHint(meeting.ErrEvidenceRequired, "m1"); got != "" {
		t.Fatalf("no hint expected, got %q", got)
	}
	got := photoRetryHint(&evidence.UploadError{Reason: "Failed to upload photo."}, "m1")
	if !strings.Contains(got, "upload-photo m1 PATH") {
		t.Fatalf("hint %q", got)
	}
}
