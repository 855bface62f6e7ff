package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the persistent application configuration
type Config struct {
	// Accounts known to the client, in the order they were added
	Accounts []Account `json:"accounts"`

	// ActiveAccount is the index into Accounts rendered at startup
	ActiveAccount int `json:"active_account"`

	// UI Preferences
	UI UIConfig `json:"ui"`

	// path the config was loaded from; empty means the default location
	path string
}

// SetPath overrides where Save writes, mainly for tests.
func (c *Config) SetPath(path string) { c.path = path }

// Account holds one server identity. The engine reads these fields and
// never writes them; token acquisition happens outside the engine.
type Account struct {
	Instance    string `json:"instance"`
	AccessToken string `json:"access_token,omitempty"`
	Acct        string `json:"acct,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	UserID      string `json:"user_id,omitempty"`
}

// UIConfig holds UI preferences
type UIConfig struct {
	Theme       string `json:"theme"`
	PageSize    int    `json:"page_size"`    // entries per timeline fetch
	OldestFirst bool   `json:"oldest_first"` // display order, storage is always newest-first
	ShowMedia   bool   `json:"show_media"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Accounts:      []Account{},
		ActiveAccount: 0,
		UI: UIConfig{
			Theme:       "dark",
			PageSize:    40,
			OldestFirst: false,
			ShowMedia:   true,
		},
	}
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".murmur", "config.json")
}

// Load reads config from disk, or returns defaults
func Load() (*Config, error) {
	path := ConfigPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.UI.PageSize <= 0 {
		cfg.UI.PageSize = 40
	}
	if cfg.ActiveAccount < 0 || cfg.ActiveAccount >= len(cfg.Accounts) {
		cfg.ActiveAccount = 0
	}
	cfg.path = path

	return &cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		path = ConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600) // Restrictive permissions for tokens
}

// Active returns the account rendered at startup, or nil when none exist.
func (c *Config) Active() *Account {
	if len(c.Accounts) == 0 {
		return nil
	}
	if c.ActiveAccount < 0 || c.ActiveAccount >= len(c.Accounts) {
		return &c.Accounts[0]
	}
	return &c.Accounts[c.ActiveAccount]
}
