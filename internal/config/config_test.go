package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := DefaultConfig()
	cfg.SetPath(path)
	cfg.Accounts = []Account{
		{Instance: "https://example.social", AccessToken: "tok", Acct: "ada@example.social"},
		{Instance: "https://other.example", AccessToken: "tok2"},
	}
	cfg.ActiveAccount = 1
	cfg.UI.OldestFirst = true

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty config file")
	}

	// Token files must not be world-readable.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 0600", perm)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.UI.PageSize != 40 {
		t.Errorf("PageSize = %d, want 40", cfg.UI.PageSize)
	}
	if cfg.Active() != nil {
		t.Error("Active() should be nil with no accounts")
	}
}

func TestActiveClampsBadIndex(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Accounts = []Account{{Instance: "https://a.example"}, {Instance: "https://b.example"}}
	cfg.ActiveAccount = 7

	active := cfg.Active()
	if active == nil || active.Instance != "https://a.example" {
		t.Errorf("Active() = %+v, want first account fallback", active)
	}
}
