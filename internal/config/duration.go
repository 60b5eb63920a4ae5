package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

// ParseDurationField parses a config duration. Besides Go duration strings
// ("90s", "720h") it accepts whole days ("30d"), which is how retention
// windows are usually written. Empty means 0; negative values are rejected.
// name is the config key, used in error messages.
func ParseDurationField(name, raw string) (time.Duration, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0, nil
	}

	var (
		d   time.Duration
		err error
	)
	if n, ok := strings.CutSuffix(v, "d"); ok {
		var days int64
		days, err = strconv.ParseInt(n, 10, 64)
		if err == nil && days > int64(1<<63-1)/int64(day) {
			err = fmt.Errorf("too large")
		}
		d = time.Duration(days) * day
	} else {
		d, err = time.ParseDuration(v)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", name, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0, got %q", name, raw)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def substituted for 0.
func ParseDurationOrDefault(name, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(name, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
