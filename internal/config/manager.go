package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "announcebot/pkg/logx"
)

// ConfigManager owns the config store on disk.
//
// The configuration handed to the rest of the bot is loaded once at startup
// and never mutated; Watch only tells the operator that a restart is needed.
type ConfigManager struct {
	path string
	log  logx.Logger

	mu       sync.Mutex
	lastHash uint64
}

func NewConfigManager(path string) *ConfigManager {
	return &ConfigManager{path: path, log: logx.Nop()}
}

func (m *ConfigManager) SetLogger(log logx.Logger) {
	if log.IsZero() {
		log = logx.Nop()
	}
	m.log = log
}

func (m *ConfigManager) Path() string { return m.path }

// Parse reads and strictly decodes the store: unknown fields are an error.
func (m *ConfigManager) Parse() (*Config, error) { return m.parse(true) }

func (m *ConfigManager) parse(strict bool) (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	jb, _, err := coerceToJSONBytes(m.path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}
	return &cfg, nil
}

// Load returns the stored config. A missing or malformed store is replaced by
// Default(), which is written back immediately. Unknown keys are only warned
// about; the file is left untouched. Load never fails the caller.
func (m *ConfigManager) Load() *Config {
	cfg, err := m.parse(false)
	if err != nil {
		m.log.Error("error reading config file", logx.String("path", m.path), logx.Err(err))
		cfg = Default()
		if serr := m.Save(cfg); serr != nil {
			m.log.Error("error saving config file", logx.String("path", m.path), logx.Err(serr))
		}
	} else if _, serr := m.parse(true); serr != nil {
		m.log.Warn("config has unrecognized fields; ignoring them", logx.String("path", m.path), logx.Err(serr))
	}
	m.mu.Lock()
	m.lastHash = hashConfig(cfg)
	m.mu.Unlock()
	return cfg
}

// Save overwrites the store (temp file + rename).
func (m *ConfigManager) Save(cfg *Config) error {
	if cfg == nil {
		cfg = Default()
	}
	b, err := encodeForPath(m.path, cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(m.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, m.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	m.mu.Lock()
	m.lastHash = hashConfig(cfg)
	m.mu.Unlock()
	return nil
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	return hashBytes(b)
}

// Watch warns when the store changes on disk. The running bot keeps the
// config it started with; the warning names the changed sections so the
// operator knows a restart is due. onChange (optional) receives the parsed
// new value.
func (m *ConfigManager) Watch(ctx context.Context, running *Config, onChange func(*Config)) error {
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)

	const (
		restartBackoffBase = 250 * time.Millisecond
		restartBackoffMax  = 5 * time.Second
	)
	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	nextWait := func() time.Duration {
		wait := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		backoff = min(backoff*2, restartBackoffMax)
		return wait
	}

	// debounce to avoid partial writes
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, func() {
			cfg, err := m.parse(false)
			if err != nil {
				m.log.Warn("config parse failed", logx.String("path", m.path), logx.Err(err))
				return
			}
			h := hashConfig(cfg)
			m.mu.Lock()
			unchanged := h != 0 && h == m.lastHash
			m.lastHash = h
			m.mu.Unlock()
			if unchanged {
				m.log.Debug("config unchanged", logx.String("path", m.path))
				return
			}
			changed, fields := SummarizeConfigChange(running, cfg)
			fields = append(fields, logx.String("path", m.path), logx.Any("sections", changed))
			m.log.Warn("config changed on disk; restart to apply", fields...)
			if onChange != nil {
				onChange(cfg)
			}
		})
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		w, err := fsnotify.NewWatcher()
		if err == nil {
			if err = w.Add(dir); err != nil {
				_ = w.Close()
			}
		}
		if err != nil {
			m.log.Warn("config watch init failed", logx.Err(err), logx.String("dir", dir))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(nextWait()):
				continue
			}
		}

		backoff = restartBackoffBase
		m.log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				if strings.EqualFold(filepath.Base(ev.Name), file) &&
					ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					debounce()
				}
			case err, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				if err != nil {
					m.log.Warn("config watch error", logx.Err(err), logx.String("dir", dir))
				}
			}
		}

		_ = w.Close()
		wait := nextWait()
		m.log.Warn("config watcher stopped; restarting", logx.String("dir", dir), logx.Duration("backoff", wait))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}
