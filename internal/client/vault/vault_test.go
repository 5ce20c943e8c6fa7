package vault

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateLoad(t *testing.T) {
	v := New(filepath.Join(t.TempDir(), "state"))
	if v.Exists() {
		t.Fatalf("key should not exist")
	}
	key, err := v.Generate()
	if err != nil {
		t.Fatal(err)
	}
	if len(key) != KeyLength {
		t.Fatalf("len: %d", len(key))
	}
	if !v.Exists() {
		t.Fatalf("key must exist after generate")
	}
	if _, err := v.Generate(); !errors.Is(err, ErrExists) {
		t.Fatalf("second generate: want ErrExists, got %v", err)
	}
	loaded, err := v.Load()
	if err != nil {
		t.Fatal(err)
	}
	if string(loaded) != string(key) {
		t.Fatalf("loaded key differs")
	}
	info, err := os.Stat(v.Path())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("perm %v", info.Mode().Perm())
	}
}

func TestKeyGeneratesOnFirstUse(t *testing.T) {
	v := New(t.TempDir())
	k1, err := v.Key()
	if err != nil {
		t.Fatal(err)
	}
	k2, err := v.Key()
	if err != nil {
		t.Fatal(err)
	}
	if string(k1) != string(k2) {
		t.Fatalf("Key must be stable after first generation")
	}
}

func TestLoadRejectsCorruptKey(t *testing.T) {
	v := New(t.TempDir())
	if err := os.WriteFile(v.Path(), []byte("c2hvcnQ="), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Load(); err == nil {
		t.Fatalf("expected invalid key length")
	}
}
