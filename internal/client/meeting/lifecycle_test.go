package meeting

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/api"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/evidence"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/session"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/models"
)

type fakeRemote struct {
	mu         sync.Mutex
	meetings   []models.Meeting
	startErr   error
	cancelErr  error
	listErr    error
	calls      []string
	nextUID    int
	uploadErr  error
	uploadSeen int
}

func (f *fakeRemote) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeRemote) ListMeetings(ctx context.Context) ([]models.Meeting, error) {
	f.record("list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Meeting(nil), f.meetings...), nil
}

func (f *fakeRemote) GetMeeting(ctx context.Context, uid string) (models.Meeting, error) {
	f.record("get " + uid)
	for _, m := range f.meetings {
		if m.UID == uid {
			return m, nil
		}
	}
	return models.Meeting{}, &api.Error{Status: 404, Message: "Not found."}
}

func (f *fakeRemote) CreateMeeting(ctx context.Context, req models.CreateMeetingRequest) (models.Meeting, error) {
	f.record("create")
	f.nextUID++
	m := models.Meeting{UID: "new-" + string(rune('0'+f.nextUID)), Title: req.Title, MeetingType: req.MeetingType,
		StartTime: req.StartTime, DurationMinutes: req.DurationMinutes, Status: models.StatusScheduled}
	f.meetings = append(f.meetings, m)
	return m, nil
}

func (f *fakeRemote) DeleteMeeting(ctx context.Context, uid string) error {
	f.record("delete " + uid)
	for i, m := range f.meetings {
		if m.UID == uid {
			f.meetings = append(f.meetings[:i], f.meetings[i+1:]...)
			return nil
		}
	}
	return &api.Error{Status: 404, Message: "Not found."}
}

func (f *fakeRemote) MarkInProgress(ctx context.Context, uid string) error {
	f.record("start " + uid)
	return f.startErr
}

func (f *fakeRemote) MarkCancelled(ctx context.Context, uid string) error {
	f.record("cancel " + uid)
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.setStatus(uid, models.StatusCancelled)
	return nil
}

func (f *fakeRemote) UploadPhoto(ctx context.Context, uid, fileName, contentType string, data []byte) (models.Photo, error) {
	f.uploadSeen++
	if f.uploadErr != nil {
		return models.Photo{}, f.uploadErr
	}
	return models.Photo{ID: "p-" + uid, File: "/media/" + fileName, ContentType: contentType}, nil
}

func (f *fakeRemote) setStatus(uid string, s models.MeetingStatus) {
	for i := range f.meetings {
		if f.meetings[i].UID == uid {
			f.meetings[i].Status = s
		}
	}
}

func (f *fakeRemote) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

type fakeGuard struct{ deny bool }

func (g *fakeGuard) Admit(action func() error) error {
	if g.deny {
		return session.ErrAuthExpired
	}
	return action()
}

type verifiedFor string

func (v verifiedFor) Verified(id string) bool { return string(v) == id }

var jpeg = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00body")

func newBoard(t *testing.T, flow Flow, meetings ...models.Meeting) (*Lifecycle, *fakeRemote, *bytes.Buffer) {
	t.Helper()
	remote := &fakeRemote{meetings: meetings}
	var logs bytes.Buffer
	l := New(remote, &fakeGuard{}, flow, log.New(&logs, "", 0))
	if _, err := l.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	return l, remote, &logs
}

func mtg(uid string, s models.MeetingStatus) models.Meeting {
	return models.Meeting{UID: uid, Title: "Review " + uid, MeetingType: models.MeetingTypeInPerson, Status: s}
}

func TestStart_OptimisticOnServerFailure(t *testing.T) {
	l, remote, logs := newBoard(t, VerifiedFlow, mtg("a", models.StatusScheduled), mtg("b", models.StatusScheduled))

	m, err := l.Start(context.Background(), "a")
	if err != nil || m.Status != models.StatusInProgress {
		t.Fatalf("start a: %+v %v", m, err)
	}

	remote.startErr = api.ErrNetwork
	m, err = l.Start(context.Background(), "b")
	if err != nil || m.Status != models.StatusInProgress {
		t.Fatalf("start b must be optimistic: %+v %v", m, err)
	}
	if !strings.Contains(logs.String(), "WARN: start b") {
		t.Fatalf("expected a warning, got %q", logs.String())
	}
	if got, _ := l.Get("b"); got.Status != models.StatusInProgress {
		t.Fatalf("board not patched: %s", got.Status)
	}
}

func TestStart_UnauthorizedDoesNotPatch(t *testing.T) {
	l, remote, _ := newBoard(t, VerifiedFlow, mtg("a", models.StatusScheduled))
	remote.startErr = api.ErrUnauthorized
	if _, err := l.Start(context.Background(), "a"); !errors.Is(err, session.ErrAuthExpired) {
		t.Fatalf("want ErrAuthExpired, got %v", err)
	}
	if m, _ := l.Get("a"); m.Status != models.StatusScheduled {
		t.Fatalf("status changed to %s", m.Status)
	}
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	l, remote, _ := newBoard(t, QuickFlow, mtg("done", models.StatusCompleted), mtg("gone", models.StatusCancelled))
	reqs := []Request{
		{Event: models.EventStart},
		{Event: models.EventComplete, Challenge: verifiedFor("done")},
		{Event: models.EventCancel, Confirmed: true},
	}
	for _, uid := range []string{"done", "gone"} {
		for _, req := range reqs {
			req.MeetingID = uid
			if req.Challenge != nil {
				req.Challenge = verifiedFor(uid)
			}
			_, err := l.Apply(context.Background(), req)
			var te *TransitionError
			if !errors.Is(err, ErrTransitionRejected) || !errors.As(err, &te) {
				t.Fatalf("%s/%s: want TransitionError, got %v", uid, req.Event, err)
			}
		}
	}
	if remote.count("start") != 0 || remote.count("cancel") != 0 {
		t.Fatalf("rejected transitions must not reach the server: %v", remote.calls)
	}
}

func TestStartFromInProgressRejected(t *testing.T) {
	l, _, _ := newBoard(t, VerifiedFlow, mtg("a", models.StatusInProgress))
	if _, err := l.Start(context.Background(), "a"); !errors.Is(err, ErrTransitionRejected) {
		t.Fatalf("want rejection, got %v", err)
	}
}

func TestComplete_RequiresVerificationForThatMeeting(t *testing.T) {
	l, _, _ := newBoard(t, QuickFlow, mtg("a", models.StatusInProgress))
	for _, v := range []Verifier{nil, verifiedFor(""), verifiedFor("other")} {
		_, err := l.Complete(context.Background(), "a", v, nil)
		if !errors.Is(err, ErrVerificationRequired) {
			t.Fatalf("verifier %v: want ErrVerificationRequired, got %v", v, err)
		}
	}
	if m, _ := l.Get("a"); m.IsVerified || m.Status != models.StatusInProgress {
		t.Fatalf("meeting changed without verification: %+v", m)
	}
}

func TestComplete_VerifiedFlowNeedsPhoto(t *testing.T) {
	l, remote, _ := newBoard(t, VerifiedFlow, mtg("a", models.StatusInProgress))
	capture := evidence.New(remote, evidence.WithDir(t.TempDir()))

	if _, err := l.Complete(context.Background(), "a", verifiedFor("a"), capture); !errors.Is(err, ErrEvidenceRequired) {
		t.Fatalf("want ErrEvidenceRequired, got %v", err)
	}
	if _, err := capture.Attach(jpeg, "image/jpeg"); err != nil {
		t.Fatal(err)
	}
	m, err := l.Complete(context.Background(), "a", verifiedFor("a"), capture)
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != models.StatusCompleted || !m.IsVerified || !m.HasPhoto() {
		t.Fatalf("completed meeting: %+v", m)
	}
}

func TestComplete_UploadFailureBlocks(t *testing.T) {
	l, remote, _ := newBoard(t, VerifiedFlow, mtg("a", models.StatusScheduled))
	remote.uploadErr = api.ErrNetwork
	capture := evidence.New(remote, evidence.WithDir(t.TempDir()))
	_, _ = capture.Attach(jpeg, "image/jpeg")

	_, err := l.Complete(context.Background(), "a", verifiedFor("a"), capture)
	var ue *evidence.UploadError
	if !errors.As(err, &ue) {
		t.Fatalf("want UploadError, got %v", err)
	}
	if m, _ := l.Get("a"); m.Status != models.StatusScheduled || m.IsVerified {
		t.Fatalf("failed completion must not commit: %+v", m)
	}
	if _, ok := capture.Pending(); !ok {
		t.Fatalf("artifact must stay pending")
	}
}

func TestComplete_StoredPhotoSkipsCapture(t *testing.T) {
	withPhoto := mtg("a", models.StatusInProgress)
	withPhoto.Photos = []models.Photo{{ID: "p0"}}
	l, _, _ := newBoard(t, VerifiedFlow, withPhoto)
	m, err := l.Complete(context.Background(), "a", verifiedFor("a"), nil)
	if err != nil || m.Status != models.StatusCompleted {
		t.Fatalf("complete: %+v %v", m, err)
	}
}

func TestQuickFlow_PhotoAfterCompletion(t *testing.T) {
	l, remote, _ := newBoard(t, QuickFlow, mtg("a", models.StatusScheduled))
	if _, err := l.Complete(context.Background(), "a", verifiedFor("a"), nil); err != nil {
		t.Fatal(err)
	}
	capture := evidence.New(remote, evidence.WithDir(t.TempDir()))
	_, _ = capture.Attach(jpeg, "image/jpeg")
	m, err := l.AttachPhoto(context.Background(), "a", capture)
	if err != nil || !m.HasPhoto() {
		t.Fatalf("attach: %+v %v", m, err)
	}
	if _, err := l.AttachPhoto(context.Background(), "a", capture); !errors.Is(err, ErrPhotoNotAllowed) {
		t.Fatalf("second photo: want ErrPhotoNotAllowed, got %v", err)
	}
}

func TestCancel_RequiresConfirmation(t *testing.T) {
	l, remote, _ := newBoard(t, VerifiedFlow, mtg("a", models.StatusScheduled))
	if _, err := l.Cancel(context.Background(), "a", false); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("want ErrNotConfirmed, got %v", err)
	}
	if remote.count("cancel") != 0 {
		t.Fatalf("unconfirmed cancel reached the server")
	}
}

func TestCancel_SilentFailureReconciledOnReload(t *testing.T) {
	l, remote, logs := newBoard(t, VerifiedFlow, mtg("a", models.StatusScheduled), mtg("b", models.StatusInProgress))
	remote.cancelErr = api.ErrNetwork

	for _, uid := range []string{"a", "b"} {
		m, err := l.Cancel(context.Background(), uid, true)
		if err != nil || m.Status != models.StatusCancelled {
			t.Fatalf("cancel %s must be perceived as successful: %+v %v", uid, m, err)
		}
	}
	if got := l.PendingCancels(); len(got) != 2 {
		t.Fatalf("pending %v", got)
	}
	if !strings.Contains(logs.String(), "WARN: cancel a") {
		t.Fatalf("cancel failure must be logged: %q", logs.String())
	}

	remote.setStatus("b", models.StatusCompleted)
	if _, err := l.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if a, _ := l.Get("a"); a.Status != models.StatusCancelled {
		t.Fatalf("a must stay cancelled while the retry fails: %s", a.Status)
	}
	if b, _ := l.Get("b"); b.Status != models.StatusCompleted {
		t.Fatalf("server terminal status must win for b: %s", b.Status)
	}
	if got := l.PendingCancels(); len(got) != 1 || got[0] != "a" {
		t.Fatalf("pending after first reload %v", got)
	}

	remote.cancelErr = nil
	if _, err := l.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := l.PendingCancels(); len(got) != 0 {
		t.Fatalf("pending after successful retry %v", got)
	}
	if remote.meetings[0].Status != models.StatusCancelled {
		t.Fatalf("server never received the cancel")
	}
}

func TestGuardDeniesBeforeAnyRemoteCall(t *testing.T) {
	remote := &fakeRemote{meetings: []models.Meeting{mtg("a", models.StatusScheduled)}}
	guard := &fakeGuard{}
	l := New(remote, guard, VerifiedFlow, nil)
	_, _ = l.Reload(context.Background())
	guard.deny = true
	for _, ev := range []models.Event{models.EventStart, models.EventComplete, models.EventCancel} {
		if _, err := l.Apply(context.Background(), Request{MeetingID: "a", Event: ev, Confirmed: true, Challenge: verifiedFor("a")}); !errors.Is(err, session.ErrAuthExpired) {
			t.Fatalf("%s: want ErrAuthExpired, got %v", ev, err)
		}
	}
	if remote.count("start") != 0 || remote.count("cancel") != 0 {
		t.Fatalf("denied actions reached the server")
	}
}

func TestSubscribersSeeUpdates(t *testing.T) {
	l, _, _ := newBoard(t, VerifiedFlow, mtg("a", models.StatusScheduled))
	var seen []models.MeetingStatus
	l.Subscribe(func(m models.Meeting) { seen = append(seen, m.Status) })
	_, _ = l.Start(context.Background(), "a")
	_, _ = l.Cancel(context.Background(), "a", true)
	if len(seen) != 2 || seen[0] != models.StatusInProgress || seen[1] != models.StatusCancelled {
		t.Fatalf("seen %v", seen)
	}
}

func TestUnknownMeeting(t *testing.T) {
	l, _, _ := newBoard(t, VerifiedFlow)
	if _, err := l.Start(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestCreateValidatesAndReloads(t *testing.T) {
	l, remote, _ := newBoard(t, VerifiedFlow)
	_, err := l.Create(context.Background(), models.CreateMeetingRequest{MeetingType: "phone"})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Fields["title"] == "" || ve.Fields["meeting_type"] == "" || ve.Fields["duration_minutes"] == "" {
		t.Fatalf("want field errors, got %v", err)
	}
	if remote.count("create") != 0 {
		t.Fatalf("invalid request reached the server")
	}

	m, err := l.Create(context.Background(), models.CreateMeetingRequest{
		Title: "Kickoff", MeetingType: models.MeetingTypeOnline,
		StartTime: time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), DurationMinutes: 60,
		RecipientEmails: ParseRecipients(" a@example.com, ,b@example.com"),
	})
	if err != nil || m.Status != models.StatusScheduled {
		t.Fatalf("create: %+v %v", m, err)
	}
	if remote.count("list") != 2 || len(l.Board()) != 1 {
		t.Fatalf("create must reload the board: calls=%v", remote.calls)
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	l, remote, _ := newBoard(t, VerifiedFlow, mtg("a", models.StatusScheduled))
	if err := l.Delete(context.Background(), "a", false); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("want ErrNotConfirmed, got %v", err)
	}
	if err := l.Delete(context.Background(), "a", true); err != nil {
		t.Fatal(err)
	}
	if len(l.Board()) != 0 || remote.count("delete") != 1 {
		t.Fatalf("delete did not reload: %v", l.Board())
	}
}

func TestFlowByName(t *testing.T) {
	for in, want := range map[string]string{"": "verified", "Quick": "quick", "verified": "verified"} {
		f, err := FlowByName(in)
		if err != nil || f.Name != want {
			t.Fatalf("FlowByName(%q) = %v, %v", in, f.Name, err)
		}
	}
	if _, err := FlowByName("fast"); err == nil {
		t.Fatalf("expected error for unknown flow")
	}
}

func TestCancel_PendingSurvivesRestart(t *testing.T) {
	store := NewPendingFile(t.TempDir())
	remote := &fakeRemote{meetings: []models.Meeting{mtg("a", models.StatusScheduled)}}
	first := New(remote, &fakeGuard{}, VerifiedFlow, nil, WithPendingStore(store))
	if _, err := first.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	remote.cancelErr = api.ErrNetwork
	if _, err := first.Cancel(context.Background(), "a", true); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	remote.cancelErr = nil
	second := New(remote, &fakeGuard{}, VerifiedFlow, nil, WithPendingStore(store))
	if _, err := second.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if remote.count("cancel a") != 2 {
		t.Fatalf("second process must retry the cancel: %v", remote.calls)
	}
	if a, _ := second.Get("a"); a.Status != models.StatusCancelled {
		t.Fatalf("status after restart %s", a.Status)
	}
	if left, err := store.LoadPending(); err != nil || len(left) != 0 {
		t.Fatalf("pending file after retry %v %v", left, err)
	}
}

func TestFetch(t *testing.T) {
	l, remote, _ := newBoard(t, QuickFlow, mtg("a", models.StatusScheduled), mtg("b", models.StatusScheduled))
	remote.setStatus("a", models.StatusInProgress)
	var seen []string
	l.Subscribe(func(m models.Meeting) { seen = append(seen, m.UID) })

	m, err := l.Fetch(context.Background(), "a")
	if err != nil || m.Status != models.StatusInProgress {
		t.Fatalf("fetch: %+v %v", m, err)
	}
	if got, _ := l.Get("a"); got.Status != models.StatusInProgress {
		t.Fatalf("board not refreshed: %s", got.Status)
	}
	if len(seen) != 1 || seen[0] != "a" {
		t.Fatalf("subscribers saw %v", seen)
	}
	if _, err := l.Fetch(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	remote.cancelErr = api.ErrNetwork
	if _, err := l.Cancel(context.Background(), "b", true); err != nil {
		t.Fatal(err)
	}
	if m, _ := l.Fetch(context.Background(), "b"); m.Status != models.StatusCancelled {
		t.Fatalf("pending cancel must win over a live server status: %s", m.Status)
	}
}
