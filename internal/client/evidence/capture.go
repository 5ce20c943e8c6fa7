// Package evidence holds the photo artifact that proves a meeting took place
// until it is uploaded as multipart form data.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/api"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/session"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/models"
)

// DefaultMaxBytes caps a single capture.
const DefaultMaxBytes int64 = 10 << 20

var (
	ErrInvalidType    = errors.New("evidence must be an image")
	ErrNothingPending = errors.New("no photo captured")
	ErrClosed         = errors.New("evidence capture closed")
)

// CaptureError is a rejected attach. State is unchanged when it is returned.
type CaptureError struct {
	Reason string
	Err    error
}

func (e *CaptureError) Error() string { return e.Reason }
func (e *CaptureError) Unwrap() error { return e.Err }

// UploadError is a failed upload. The artifact stays pending for a retry.
type UploadError struct {
	Reason string
	Err    error
}

func (e *UploadError) Error() string { return e.Reason }
func (e *UploadError) Unwrap() error { return e.Err }

// Ref identifies a locally held artifact. PreviewPath is a non-authoritative
// rendering of it.
type Ref struct {
	ID          string
	MimeType    string
	Size        int
	PreviewPath string
}

// Uploader is the remote side of Upload.
type Uploader interface {
	UploadPhoto(ctx context.Context, uid, fileName, contentType string, data []byte) (models.Photo, error)
}

type Option func(*Capture)

// WithDir sets where preview files are written.
func WithDir(dir string) Option {
	return func(c *Capture) { c.dir = dir }
}

func WithMaxBytes(n int64) Option {
	return func(c *Capture) { c.maxBytes = n }
}

// Capture is the per-dialog evidence state.
type Capture struct {
	uploader Uploader
	dir      string
	maxBytes int64

	mu      sync.Mutex
	pending *artifact
	stored  *models.Photo
	closed  bool
}

type artifact struct {
	ref  Ref
	data []byte
}

func New(uploader Uploader, opts ...Option) *Capture {
	c := &Capture{uploader: uploader, maxBytes: DefaultMaxBytes}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Required reports whether m still needs evidence. Meetings that already
// carry a stored photo skip capture and display it instead.
func Required(m models.Meeting) bool {
	return !m.HasPhoto()
}

// Attach accepts an image artifact and writes a local preview of it.
func (c *Capture) Attach(data []byte, mimeType string) (Ref, error) {
	mt, err := checkImage(data, mimeType, c.maxBytes)
	if err != nil {
		return Ref{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Ref{}, ErrClosed
	}
	ref := Ref{ID: uuid.NewString(), MimeType: mt, Size: len(data)}
	preview, err := c.writePreview(ref, data)
	if err != nil {
		return Ref{}, fmt.Errorf("write preview: %w", err)
	}
	ref.PreviewPath = preview
	c.dropPendingLocked()
	c.pending = &artifact{ref: ref, data: append([]byte(nil), data...)}
	return ref, nil
}

// AttachFile reads path and attaches it, deriving the type from the extension
// and falling back to content sniffing.
func (c *Capture) AttachFile(path string) (Ref, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Ref{}, err
	}
	mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mt == "" {
		mt = http.DetectContentType(data)
	}
	return c.Attach(data, mt)
}

func checkImage(data []byte, mimeType string, max int64) (string, error) {
	invalid := func(reason string) (string, error) {
		return "", &CaptureError{Reason: reason, Err: ErrInvalidType}
	}
	if len(data) == 0 {
		return invalid("Photo is empty")
	}
	if max > 0 && int64(len(data)) > max {
		return invalid("Photo is larger than " + formatSize(max))
	}
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil || !strings.HasPrefix(mt, "image/") {
		return invalid("Please select an image file")
	}
	sniffed := http.DetectContentType(data)
	if sniffed != "application/octet-stream" && !strings.HasPrefix(sniffed, "image/") {
		return invalid("Please select an image file")
	}
	return mt, nil
}

// formatSize renders n in the largest unit that keeps it at or above one.
func formatSize(n int64) string {
	scaled := func(unit int64, name string) string {
		return strings.TrimSuffix(fmt.Sprintf("%.1f", float64(n)/float64(unit)), ".0") + " " + name
	}
	switch {
	case n >= 1<<20:
		return scaled(1<<20, "MB")
	case n >= 1<<10:
		return scaled(1<<10, "KB")
	}
	return fmt.Sprintf("%d bytes", n)
}

func (c *Capture) writePreview(ref Ref, data []byte) (string, error) {
	dir := c.dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, "preview-*"+extensionFor(ref.MimeType))
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), f.Close()
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	}
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// Pending returns the artifact awaiting upload.
func (c *Capture) Pending() (Ref, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return Ref{}, false
	}
	return c.pending.ref, true
}

// Satisfied reports whether a photo is attached or already stored.
func (c *Capture) Satisfied() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil || c.stored != nil
}

// Stored returns the server-side photo after a successful upload.
func (c *Capture) Stored() (models.Photo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stored == nil {
		return models.Photo{}, false
	}
	return *c.stored, true
}

// Upload sends the pending artifact. There is no automatic retry.
func (c *Capture) Upload(ctx context.Context, meetingID string) (models.Photo, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return models.Photo{}, ErrClosed
	}
	if c.pending == nil {
		c.mu.Unlock()
		return models.Photo{}, ErrNothingPending
	}
	a := c.pending
	c.mu.Unlock()

	name := fmt.Sprintf("meeting-%s-%s%s", meetingID, a.ref.ID[:8], extensionFor(a.ref.MimeType))
	photo, err := c.uploader.UploadPhoto(ctx, meetingID, name, a.ref.MimeType, a.data)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return models.Photo{}, session.ErrAuthExpired
		}
		reason := "Failed to upload photo."
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			reason = apiErr.Message
		}
		return models.Photo{}, &UploadError{Reason: reason, Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == a {
		c.dropPendingLocked()
	}
	c.stored = &photo
	return photo, nil
}

// Close discards any pending artifact and its preview.
func (c *Capture) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.dropPendingLocked()
}

func (c *Capture) dropPendingLocked() {
	if c.pending == nil {
		return
	}
	if c.pending.ref.PreviewPath != "" {
		_ = os.Remove(c.pending.ref.PreviewPath)
	}
	c.pending = nil
}
