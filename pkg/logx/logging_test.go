package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"announcebot/internal/format"
	kit "announcebot/internal/transport"
)

type captureSender struct {
	mu   sync.Mutex
	sent []string
	ch   chan struct{}
}

func (c *captureSender) SendChannel(_ context.Context, channelID string, p format.Payload) (kit.MessageRef, error) {
	c.mu.Lock()
	c.sent = append(c.sent, channelID+"|"+p.Content)
	c.mu.Unlock()
	select {
	case c.ch <- struct{}{}:
	default:
	}
	return kit.MessageRef{ChannelID: channelID}, nil
}

func TestFormatLogLine(t *testing.T) {
	t.Parallel()
	line := []byte(`{"level":"warn","message":"summary post failed","run":"abc","time":"x"}` + "\n")
	got := formatLogLine(line)
	if !strings.HasPrefix(got, "[WARN] summary post failed") {
		t.Fatalf("formatLogLine = %q", got)
	}
	if !strings.Contains(got, "- run=abc") {
		t.Fatalf("formatLogLine missing field: %q", got)
	}
	if strings.Contains(got, "time=") {
		t.Fatalf("formatLogLine should drop time: %q", got)
	}
}

func TestFormatLogLineNotJSON(t *testing.T) {
	t.Parallel()
	if got := formatLogLine([]byte("  plain text \n")); got != "plain text" {
		t.Fatalf("formatLogLine = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	if got := truncate("abcdefghijklmnop", 12); got != "abcdefghi..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("short", 12); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
	// cuts count characters, not bytes
	in := strings.Repeat("📢", 20)
	got := truncate(in, 12)
	if !utf8.ValidString(got) || got != strings.Repeat("📢", 9)+"..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("é📢é📢", 3); got != "é📢é" {
		t.Fatalf("short truncate = %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	if parseLevel("warning", LevelInfo) != LevelWarn {
		t.Fatal("warning should map to warn")
	}
	if parseLevel("bogus", LevelInfo) != LevelInfo {
		t.Fatal("unknown level should fall back to default")
	}
}

func TestWriterLoggerFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "test"))
	log.Info("hello", Int("n", 3))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, buf.String())
	}
	if m["comp"] != "test" || m["message"] != "hello" || m["n"] != float64(3) {
		t.Fatalf("unexpected entry: %v", m)
	}
}

func TestZeroLoggerIsNoop(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	l.Error("nothing happens")
}

func TestDiscordSinkForwardsWarnings(t *testing.T) {
	sender := &captureSender{ch: make(chan struct{}, 4)}
	svc, log := New(Config{
		Level: "debug",
		Discord: DiscordConfig{
			Enabled:    true,
			ChannelID:  "42",
			MinLevel:   "warn",
			RatePerSec: 10,
		},
	})
	defer svc.Close()
	svc.SetSender(sender)

	log.Info("ignored")
	log.Warn("forwarded")

	select {
	case <-sender.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for discord sink")
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.sent) != 1 {
		t.Fatalf("sent = %v, want exactly one message", sender.sent)
	}
	if !strings.HasPrefix(sender.sent[0], "42|[WARN] forwarded") {
		t.Fatalf("sent[0] = %q", sender.sent[0])
	}
}
