package config

import (
	"reflect"
	"sort"
	"strings"

	logx "announcebot/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections and safe
// structured fields for logging. Secrets (the token) are never logged; only
// whether they changed.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	fields := make([]logx.Field, 0, 12)

	if strings.TrimSpace(oldCfg.Token) != strings.TrimSpace(newCfg.Token) {
		changed = append(changed, "token")
		fields = append(fields, logx.Bool("token.set", strings.TrimSpace(newCfg.Token) != ""))
	}
	if strings.TrimSpace(oldCfg.AuthorizedUserID) != strings.TrimSpace(newCfg.AuthorizedUserID) {
		changed = append(changed, "authorizedUserId")
		fields = append(fields, logx.String("authorizedUserId", strings.TrimSpace(newCfg.AuthorizedUserID)))
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		if l := newCfg.Logging; l != nil {
			fields = append(fields,
				logx.String("logging.level", l.Level),
				logx.Bool("logging.file_enabled", l.File.Enabled),
				logx.Bool("logging.discord_enabled", l.Discord.Enabled),
			)
		}
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		if s := newCfg.Storage; s != nil {
			fields = append(fields,
				logx.String("storage.driver", strings.TrimSpace(s.Driver)),
				logx.Bool("storage.path_set", strings.TrimSpace(s.Path) != ""),
				logx.String("storage.retention", strings.TrimSpace(s.Retention)),
			)
		}
	}

	if !reflect.DeepEqual(oldCfg.Broadcast, newCfg.Broadcast) {
		changed = append(changed, "broadcast")
		if b := newCfg.Broadcast; b != nil {
			fields = append(fields,
				logx.Int("broadcast.queue_size", b.QueueSize),
				logx.Int("broadcast.rate_per_sec", b.RatePerSec),
			)
		}
	}

	if !reflect.DeepEqual(oldCfg.Discord, newCfg.Discord) {
		changed = append(changed, "discord")
	}

	sort.Strings(changed)
	return changed, fields
}
