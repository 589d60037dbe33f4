package config

import (
	"encoding/json"
	"fmt"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON. Telegram user
// IDs show up as bare numbers in hand-written configs.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for the liveline service.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Database  DatabaseConfig  `json:"database,omitempty"`
	Panel     PanelConfig     `json:"panel,omitempty"`
	Reminder  ReminderConfig  `json:"reminder,omitempty"`
	Broadcast BroadcastConfig `json:"broadcast,omitempty"`
	Rules     []RuleSeed      `json:"rules,omitempty"`
	Greeting  string          `json:"greeting,omitempty"`
}

// TelegramConfig configures the Telegram transport. AdminIDs are the user
// IDs allowed to run operator commands; the first one receives queue
// digests and forwarded traffic.
type TelegramConfig struct {
	Enabled  bool                `json:"enabled"`
	Token    string              `json:"token,omitempty"`
	AdminIDs FlexibleStringSlice `json:"admin_ids,omitempty"`
}

// DatabaseConfig locates the embedded SQLite database.
type DatabaseConfig struct {
	Path string `json:"path,omitempty"`
}

// PanelConfig configures the local state panel (HTTP + WebSocket).
type PanelConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host,omitempty"`
	Port    int    `json:"port,omitempty"`
	// Token gates /state and /ws. Empty disables auth (local use only).
	Token string `json:"token,omitempty"`
}

// ReminderConfig schedules the queue digest sent to the admin. An empty
// Cron expression disables the digest.
type ReminderConfig struct {
	Cron string `json:"cron,omitempty"`
}

// BroadcastConfig paces outbound broadcast sends so the transport's
// flood limits are respected.
type BroadcastConfig struct {
	// MessagesPerSecond caps the broadcast send rate. Zero means the
	// default of 10.
	MessagesPerSecond float64 `json:"messages_per_second,omitempty"`
}

// RuleSeed is an auto-reply rule seeded from the config file on first
// start. Rules added at runtime take precedence and are persisted.
type RuleSeed struct {
	Keyword  string `json:"keyword"`
	Reply    string `json:"reply"`
	MediaRef string `json:"media_ref,omitempty"`
}

// IsAdmin reports whether id is listed as an operator.
func (c *TelegramConfig) IsAdmin(id string) bool {
	for _, a := range c.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}

// PrimaryAdmin returns the admin ID that receives forwarded traffic and
// digests, or "" when none is configured.
func (c *TelegramConfig) PrimaryAdmin() string {
	if len(c.AdminIDs) == 0 {
		return ""
	}
	return c.AdminIDs[0]
}

// Validate checks the parts of the config that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return fmt.Errorf("telegram enabled but no token configured (set LIVELINE_TELEGRAM_TOKEN)")
	}
	if c.Telegram.Enabled && len(c.Telegram.AdminIDs) == 0 {
		return fmt.Errorf("telegram enabled but no admin_ids configured")
	}
	if c.Panel.Enabled && c.Panel.Port <= 0 {
		return fmt.Errorf("panel enabled but port is %d", c.Panel.Port)
	}
	return nil
}
