package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration. It is read from an optional YAML
// file and then overridden by environment variables.
type Config struct {
	// OpenRouter holds the settings for the extraction endpoint.
	OpenRouter OpenRouterConfig `yaml:"openrouter"`

	// Google holds the OAuth client used to talk to Google Calendar.
	Google GoogleConfig `yaml:"google"`

	// DatabasePath is the SQLite file holding the session.
	DatabasePath string `yaml:"database"`

	// Listen is the HTTP listen address for the web UI.
	Listen string `yaml:"listen"`

	// Timezone is the IANA zone stamped on created events. When empty the
	// zone is taken from $TZ or the system at call time.
	Timezone string `yaml:"timezone"`

	// Refresh is a cron schedule for refreshing upcoming events in serve mode.
	Refresh string `yaml:"refresh"`
}

type OpenRouterConfig struct {
	// APIKey is deliberately not read from the file. See Load.
	APIKey  string `yaml:"-"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Referer string `yaml:"referer"`
	Title   string `yaml:"title"`
}

type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	// RedirectURL overrides the OAuth redirect. Empty means the web
	// callback on Listen.
	RedirectURL string `yaml:"redirect_url"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		OpenRouter: OpenRouterConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Model:   "openai/gpt-4o-mini",
			Referer: "http://localhost:8080",
			Title:   "Smart Calendar",
		},
		DatabasePath: "smartcal.db",
		Listen:       "127.0.0.1:8080",
		Refresh:      "@every 5m",
	}
}

// Load reads the YAML file at path (missing file is not an error) and applies
// environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// keep defaults
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			return nil, fmt.Errorf("invalid timezone '%s': %w", cfg.Timezone, err)
		}
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	// The extraction key only comes from the environment.
	cfg.OpenRouter.APIKey = os.Getenv("OPENROUTER_API_KEY")

	override(&cfg.OpenRouter.Model, "OPENROUTER_MODEL")
	override(&cfg.OpenRouter.BaseURL, "OPENROUTER_BASE_URL")
	override(&cfg.Google.ClientID, "GOOGLE_CLIENT_ID")
	override(&cfg.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	override(&cfg.DatabasePath, "SMARTCAL_DB")
	override(&cfg.Listen, "SMARTCAL_LISTEN")
	override(&cfg.Timezone, "PRIMARY_TIMEZONE")
	override(&cfg.Refresh, "SMARTCAL_REFRESH")
}

func override(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// Location resolves the zone to stamp on new events. It is evaluated at call
// time so a changed $TZ is picked up.
func (c *Config) Location() *time.Location {
	if c.Timezone != "" {
		if loc, err := time.LoadLocation(c.Timezone); err == nil {
			return loc
		}
	}
	if tz := os.Getenv("TZ"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return time.Local
}

// CallbackURL is the OAuth redirect used by the web UI.
func (c *Config) CallbackURL() string {
	if c.Google.RedirectURL != "" {
		return c.Google.RedirectURL
	}
	return "http://" + c.Listen + "/oauth/callback"
}
