// Package vault manages the local AES-256 key that seals client state at rest.
package vault

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// KeyLength defines AES-256 key size.
const KeyLength = 32

const keyFile = "vault_key"

var ErrExists = errors.New("vault key already exists")

// Vault is a key file inside the client state directory.
type Vault struct {
	dir string
}

func New(dir string) *Vault {
	return &Vault{dir: dir}
}

// Path returns the key file location.
func (v *Vault) Path() string {
	return filepath.Join(v.dir, keyFile)
}

func (v *Vault) Exists() bool {
	_, err := os.Stat(v.Path())
	return err == nil
}

// Generate creates and stores a new random key. It refuses to overwrite.
func (v *Vault) Generate() ([]byte, error) {
	if v.Exists() {
		return nil, ErrExists
	}
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := v.save(key); err != nil {
		return nil, err
	}
	return key, nil
}

// Key loads the key, generating it on first use.
func (v *Vault) Key() ([]byte, error) {
	key, err := v.Load()
	if errors.Is(err, os.ErrNotExist) {
		return v.Generate()
	}
	return key, err
}

func (v *Vault) Load() ([]byte, error) {
	b, err := os.ReadFile(v.Path())
	if err != nil {
		return nil, err
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(b)))
	if err != nil {
		return nil, err
	}
	if len(key) != KeyLength {
		return nil, errors.New("invalid key length")
	}
	return key, nil
}

func (v *Vault) save(key []byte) error {
	if err := os.MkdirAll(v.dir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(v.Path(), []byte(base64.StdEncoding.EncodeToString(key)), 0o600)
}
