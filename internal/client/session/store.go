package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	cryptohelper "github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/crypto"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/models"
)

const (
	credentialsFile  = "credentials"
	credentialsLabel = "meetflow/credentials"
)

// KeySource yields the key used to seal the credential file (see vault.Vault).
type KeySource interface {
	Key() ([]byte, error)
}

type persisted struct {
	Credential
	Profile *models.User `json:"profile,omitempty"`
}

// Store holds the current credential pair and the cached profile. Reads are
// open to everyone; writes are unexported so that only the Guard can mutate.
type Store struct {
	mu      sync.RWMutex
	path    string
	keys    KeySource
	cred    *Credential
	profile *models.User
}

// NewStore returns a store persisted under dir and sealed with keys.
func NewStore(dir string, keys KeySource) *Store {
	return &Store{path: filepath.Join(dir, credentialsFile), keys: keys}
}

// NewMemoryStore returns a store that never touches disk.
func NewMemoryStore() *Store {
	return &Store{}
}

// Load reads a previously persisted credential. A missing file is not an error.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}
	sealed, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	key, err := s.keys.Key()
	if err != nil {
		return err
	}
	plain, err := cryptohelper.Open(key, sealed, credentialsLabel)
	if err != nil {
		return fmt.Errorf("read credentials: %w", err)
	}
	var p persisted
	if err := json.Unmarshal(plain, &p); err != nil {
		return fmt.Errorf("decode credentials: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.AccessToken != "" {
		cred := p.Credential
		s.cred = &cred
	}
	s.profile = p.Profile
	return nil
}

// Current returns the credential, if any.
func (s *Store) Current() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return Credential{}, false
	}
	return *s.cred, true
}

// AccessToken implements the transport's token source.
func (s *Store) AccessToken() string {
	c, _ := s.Current()
	return c.AccessToken
}

func (s *Store) Profile() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return models.User{}, false
	}
	return *s.profile, true
}

func (s *Store) set(cred Credential, profile *models.User) error {
	s.mu.Lock()
	s.cred = &cred
	if profile != nil {
		p := *profile
		s.profile = &p
	}
	snapshot := persisted{Credential: cred, Profile: s.profile}
	s.mu.Unlock()
	return s.persist(snapshot)
}

func (s *Store) setProfile(profile models.User) error {
	s.mu.Lock()
	if s.cred == nil {
		s.mu.Unlock()
		return ErrNoCredential
	}
	s.profile = &profile
	snapshot := persisted{Credential: *s.cred, Profile: s.profile}
	s.mu.Unlock()
	return s.persist(snapshot)
}

// clear drops the credential and profile. It reports whether anything was held.
func (s *Store) clear() (bool, error) {
	s.mu.Lock()
	had := s.cred != nil || s.profile != nil
	s.cred = nil
	s.profile = nil
	s.mu.Unlock()
	if s.path == "" {
		return had, nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return had, err
	}
	return had, nil
}

func (s *Store) persist(p persisted) error {
	if s.path == "" {
		return nil
	}
	plain, err := json.Marshal(p)
	if err != nil {
		return err
	}
	key, err := s.keys.Key()
	if err != nil {
		return err
	}
	sealed, err := cryptohelper.Seal(key, plain, credentialsLabel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, sealed, 0o600)
}
