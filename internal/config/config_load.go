package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "~/.liveline/liveline.db",
		},
		Panel: PanelConfig{
			Host: "127.0.0.1",
			Port: 18890,
		},
		Reminder: ReminderConfig{
			Cron: "*/15 * * * *",
		},
		Broadcast: BroadcastConfig{
			MessagesPerSecond: 10,
		},
		Greeting: "Hi! Leave your message and an operator will get back to you.",
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file is not an error; env-only deployments are supported.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("LIVELINE_TELEGRAM_TOKEN", &c.Telegram.Token)
	envStr("LIVELINE_DB_PATH", &c.Database.Path)
	envStr("LIVELINE_PANEL_TOKEN", &c.Panel.Token)
	envStr("LIVELINE_PANEL_HOST", &c.Panel.Host)
	envStr("LIVELINE_REMINDER_CRON", &c.Reminder.Cron)
	envStr("LIVELINE_GREETING", &c.Greeting)

	if v := os.Getenv("LIVELINE_PANEL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Panel.Port = port
		}
	}
	if v := os.Getenv("LIVELINE_ADMIN_IDS"); v != "" {
		c.Telegram.AdminIDs = strings.Split(v, ",")
	}

	// Auto-enable the channel when credentials arrive via env.
	if c.Telegram.Token != "" {
		c.Telegram.Enabled = true
	}
}

// ResolvePath expands a leading ~ in filesystem paths from the config.
func ResolvePath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}
