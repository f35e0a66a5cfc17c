package session

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"casewatch/internal/browser"
)

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	now := time.Date(2026, 6, 5, 15, 0, 0, 0, time.UTC)
	st := &State{
		CreatedAt:       now.Add(-24 * time.Hour),
		LastRefreshedAt: now,
		Cookies: []browser.Cookie{
			{Name: "sid", Value: "abc", Domain: ".example.com", Path: "/", Secure: true, HTTPOnly: true},
		},
	}
	if err := SaveState(path, st); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	got, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if diff := cmp.Diff(st, got); diff != "" {
		t.Errorf("state round trip mismatch:\n%s", diff)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat state file: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("state file mode = %o, want 600", perm)
		}
	}
}

func TestSaveState_NoTempLeftover(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")
	if err := SaveState(path, &State{CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("unexpected files next to state: %s", strings.Join(names, ", "))
	}
}

func TestLoadState_Missing(t *testing.T) {
	_, err := LoadState(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("LoadState on missing file: %v, want ErrNotExist", err)
	}
}

func TestCredentialFromEnv(t *testing.T) {
	t.Setenv("CASEWATCH_USERNAME", "user@example.com")
	t.Setenv("CASEWATCH_PASSWORD", "s3cret")
	cred := CredentialFromEnv()
	if !cred.IsSet() {
		t.Fatal("credential should be set")
	}
	if cred.Username != "user@example.com" {
		t.Errorf("Username = %q", cred.Username)
	}

	t.Setenv("CASEWATCH_PASSWORD", "")
	if CredentialFromEnv().IsSet() {
		t.Error("credential should not be set without a password")
	}
}
