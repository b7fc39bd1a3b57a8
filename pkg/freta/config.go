package freta

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Defaults for the public Freta service endpoint.
const (
	DefaultClientID  = "5248a6f3-492f-4921-af11-b0f2faa2dca8"
	DefaultAuthority = "https://login.microsoftonline.com/common"
	DefaultEndpoint  = "https://freta.azure-api.net/freta/0.0.1/"
)

// DefaultScopes are the OAuth2 scopes requested for API tokens.
var DefaultScopes = []string{"https://microsoft.onmicrosoft.com/freta-api/.default"}

// Config holds the client identity and service endpoint settings. It is
// loaded from disk at startup and passed explicitly to New; there is no
// process-wide configuration state.
type Config struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret,omitempty"`
	Authority    string   `json:"authority"`
	Endpoint     string   `json:"endpoint"`
	Scopes       []string `json:"scopes"`

	// path remembers where the config was loaded from so Save writes back
	// to the same file.
	path string
}

// DefaultConfig returns the public service configuration.
func DefaultConfig() *Config {
	return &Config{
		ClientID:  DefaultClientID,
		Authority: DefaultAuthority,
		Endpoint:  DefaultEndpoint,
		Scopes:    append([]string(nil), DefaultScopes...),
	}
}

// ConfigDir returns the directory holding the config file and token cache,
// honoring the FRETA_CACHE_DIR override.
func ConfigDir() (string, error) {
	if dir := os.Getenv("FRETA_CACHE_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".cache", "freta"), nil
}

// ConfigPath returns the default config file location.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// TokenCachePath returns the default token cache location.
func TokenCachePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "access_token.json"), nil
}

// LoadConfig reads the config file from the default location, applying the
// saved values over the built-in defaults. A missing file yields the
// defaults.
func LoadConfig() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadConfigFrom(path)
}

// LoadConfigFrom reads a config file from an explicit location. Precedence
// is environment over file over built-in defaults.
func LoadConfigFrom(path string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays settings from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("FRETA_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv("FRETA_AUTHORITY"); v != "" {
		c.Authority = v
	}
	if v := os.Getenv("FRETA_CLIENT_ID"); v != "" {
		c.ClientID = v
	}
	if v := os.Getenv("FRETA_CLIENT_SECRET"); v != "" {
		c.ClientSecret = v
	}
}

// Save writes the config back to the file it was loaded from.
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		var err error
		path, err = ConfigPath()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Redacted returns a copy safe for printing, with the client secret masked.
func (c *Config) Redacted() *Config {
	out := *c
	if out.ClientSecret != "" {
		out.ClientSecret = "***"
	}
	return &out
}
