package meeting

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const pendingCancelsFile = "pending_cancels.json"

// PendingStore keeps the uids of cancels that have not reached the server,
// so a later process can retry them.
type PendingStore interface {
	LoadPending() ([]string, error)
	SavePending(uids []string) error
}

// PendingFile is a PendingStore backed by a JSON file in the state dir.
type PendingFile struct {
	path string
}

func NewPendingFile(dir string) *PendingFile {
	return &PendingFile{path: filepath.Join(dir, pendingCancelsFile)}
}

// LoadPending returns the saved uids. A missing file means none.
func (p *PendingFile) LoadPending() ([]string, error) {
	raw, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var uids []string
	if err := json.Unmarshal(raw, &uids); err != nil {
		return nil, fmt.Errorf("decode pending cancels: %w", err)
	}
	return uids, nil
}

// SavePending replaces the file; an empty set removes it.
func (p *PendingFile) SavePending(uids []string) error {
	if len(uids) == 0 {
		if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	sorted := append([]string(nil), uids...)
	sort.Strings(sorted)
	raw, err := json.Marshal(sorted)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return err
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, p.path)
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithPendingStore persists failed cancels across processes.
func WithPendingStore(s PendingStore) Option {
	return func(l *Lifecycle) { l.pending = s }
}

// loadPending merges the persisted set into memory.
func (l *Lifecycle) loadPending() {
	if l.pending == nil {
		return
	}
	uids, err := l.pending.LoadPending()
	if err != nil {
		l.logger.Printf("WARN: load pending cancels: %v", err)
		return
	}
	l.mu.Lock()
	for _, uid := range uids {
		l.pendingCancels[uid] = struct{}{}
	}
	l.mu.Unlock()
}

func (l *Lifecycle) savePending() {
	if l.pending == nil {
		return
	}
	if err := l.pending.SavePending(l.PendingCancels()); err != nil {
		l.logger.Printf("WARN: save pending cancels: %v", err)
	}
}
