package app

import (
	"fmt"
	"strings"
	"time"

	"announcebot/internal/broadcast"
	"announcebot/internal/command"
	"announcebot/internal/config"
	"announcebot/internal/format"
	"announcebot/internal/maintenance"
	"announcebot/internal/storage"
	logx "announcebot/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config, levelOverride string) logx.Config {
	out := logx.Config{Level: "info", Console: true}
	if cfg != nil && cfg.Logging != nil {
		lc := cfg.Logging
		out = logx.Config{
			Level:   lc.Level,
			Console: lc.Console,
			File: logx.FileConfig{
				Enabled: lc.File.Enabled,
				Path:    lc.File.Path,
			},
			Discord: logx.DiscordConfig{
				Enabled:    lc.Discord.Enabled,
				ChannelID:  lc.Discord.ChannelID,
				MinLevel:   lc.Discord.MinLevel,
				RatePerSec: lc.Discord.RatePerSec,
			},
		}
		// a config with no sink at all would silence the bot
		if !out.Console && !out.File.Enabled {
			out.Console = true
		}
	}
	if v := strings.TrimSpace(levelOverride); v != "" {
		out.Level = v
	}
	return out
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{Driver: "file", Path: storage.DefaultPath}, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "none":
		return storage.Config{Driver: "none"}, nil
	case "", "file", "json":
		if path == "" {
			path = storage.DefaultPath
		}
		return storage.Config{Driver: "file", Path: path}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapMaintenanceConfig(cfg *config.Config) (maintenance.Config, error) {
	if cfg == nil || cfg.Storage == nil {
		return maintenance.Config{}, nil
	}
	retention, err := config.ParseDurationField("storage.retention", cfg.Storage.Retention)
	if err != nil {
		return maintenance.Config{}, err
	}
	return maintenance.Config{
		Retention: retention,
		Schedule:  strings.TrimSpace(cfg.Storage.RetentionSchedule),
	}, nil
}

type broadcastSettings struct {
	queue  broadcast.Config
	engine broadcast.EngineConfig
}

func mapBroadcastConfig(cfg *config.Config) (broadcastSettings, error) {
	out := broadcastSettings{
		engine: broadcast.EngineConfig{Branding: format.DefaultBranding},
	}
	if cfg == nil || cfg.Broadcast == nil {
		return out, nil
	}
	bc := cfg.Broadcast
	if bc.QueueSize < 0 {
		return out, fmt.Errorf("broadcast.queue_size must be >= 0")
	}
	if bc.RatePerSec < 0 {
		return out, fmt.Errorf("broadcast.rate_per_sec must be >= 0")
	}
	out.queue.QueueSize = bc.QueueSize
	out.engine.RatePerSec = bc.RatePerSec
	if v := strings.TrimSpace(bc.FooterText); v != "" {
		out.engine.Branding.FooterText = v
	}
	if v := strings.TrimSpace(bc.FooterIconURL); v != "" {
		out.engine.Branding.FooterIconURL = v
	}
	return out, nil
}

func mapCommandConfig(cfg *config.Config) command.Config {
	out := command.Config{AuthorizedUserID: cfg.AuthorizedUserID}
	if cfg.Discord != nil {
		out.Trigger = strings.TrimSpace(cfg.Discord.Trigger)
	}
	return out
}
