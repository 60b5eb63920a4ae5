package config

import "errors"

// ErrMissingCredentials is returned by Validate when the bot cannot log in.
var ErrMissingCredentials = errors.New("missing token or authorized user ID in configuration")

// Config is the on-disk configuration.
//
// Only Token and AuthorizedUserID are required. The optional sections are
// pointers so a freshly self-healed file stays minimal:
//
//	{ "token": "", "authorizedUserId": "" }
type Config struct {
	Token            string `json:"token"`
	AuthorizedUserID string `json:"authorizedUserId"`

	Logging   *LoggingConfig   `json:"logging,omitempty"`
	Storage   *StorageConfig   `json:"storage,omitempty"`
	Broadcast *BroadcastConfig `json:"broadcast,omitempty"`
	Discord   *DiscordConfig   `json:"discord,omitempty"`
}

type LoggingConfig struct {
	Level   string         `json:"level"`
	Console bool           `json:"console"`
	File    LoggingFile    `json:"file"`
	Discord LoggingDiscord `json:"discord"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingDiscord mirrors warnings and errors into a Discord channel.
type LoggingDiscord struct {
	Enabled    bool   `json:"enabled"`
	ChannelID  string `json:"channel_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig controls where announcement log records go.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./announcements.db", "retention": "2160h" }
//
// Driver values: "file" (default), "sqlite", "none".
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)

	// Retention drops log records older than this Go duration. "0s" or empty keeps everything.
	Retention string `json:"retention,omitempty"`
	// RetentionSchedule is a cron spec (5 or 6 fields, or a descriptor like "@daily").
	RetentionSchedule string `json:"retention_schedule,omitempty"`
}

// BroadcastConfig tunes the announcement worker.
type BroadcastConfig struct {
	// QueueSize bounds pending announcements while one is running.
	QueueSize int `json:"queue_size,omitempty"`
	// RatePerSec paces direct messages. 0 leaves pacing to the platform SDK.
	RatePerSec int `json:"rate_per_sec,omitempty"`

	FooterText    string `json:"footer_text,omitempty"`
	FooterIconURL string `json:"footer_icon_url,omitempty"`
}

type DiscordConfig struct {
	// Trigger is the command prefix. Defaults to "!announce".
	Trigger string `json:"trigger,omitempty"`
}

// Default is the value persisted when the store is missing or unreadable.
func Default() *Config {
	return &Config{Token: "", AuthorizedUserID: ""}
}

// Validate reports whether the bot has what it needs to come online.
func Validate(cfg *Config) error {
	if cfg == nil || cfg.Token == "" || cfg.AuthorizedUserID == "" {
		return ErrMissingCredentials
	}
	return nil
}
