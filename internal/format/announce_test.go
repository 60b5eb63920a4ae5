package format

import (
	"strings"
	"testing"
	"time"
)

func TestProgressColor(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name   string
		failed int
		want   int
	}{
		{name: "no failures", failed: 0, want: ColorSuccess},
		{name: "one failure", failed: 1, want: ColorAlert},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			p := Progress(3, 2, tt.failed, now)
			if p.Embed == nil {
				t.Fatal("expected embed")
			}
			if p.Embed.Color != tt.want {
				t.Fatalf("Color = %#x, want %#x", p.Embed.Color, tt.want)
			}
		})
	}
}

func TestProgressFields(t *testing.T) {
	t.Parallel()
	p := Progress(10, 7, 3, time.Now())
	want := []string{"10", "7", "3"}
	if len(p.Embed.Fields) != len(want) {
		t.Fatalf("fields = %d, want %d", len(p.Embed.Fields), len(want))
	}
	for i, f := range p.Embed.Fields {
		if f.Value != want[i] {
			t.Fatalf("field %d (%s) = %q, want %q", i, f.Name, f.Value, want[i])
		}
		if !f.Inline {
			t.Fatalf("field %d should be inline", i)
		}
	}
	if p.Embed.Title != progressTitle {
		t.Fatalf("Title = %q", p.Embed.Title)
	}
}

func TestCompletedKeepsCounters(t *testing.T) {
	t.Parallel()
	p := Completed(2, 1, 1, time.Now())
	if p.Embed.Title != completedTitle {
		t.Fatalf("Title = %q, want %q", p.Embed.Title, completedTitle)
	}
	if p.Embed.Color != ColorAlert {
		t.Fatalf("Color = %#x, want alert", p.Embed.Color)
	}
	if p.Embed.Fields[1].Value != "1" || p.Embed.Fields[2].Value != "1" {
		t.Fatalf("unexpected fields: %+v", p.Embed.Fields)
	}
}

func TestAnnouncementCarriesAuthorAndBranding(t *testing.T) {
	t.Parallel()
	now := time.Now()
	p := Announcement("Hello", Author{ID: "1", Username: "alice", AvatarURL: "https://a/x.png"}, DefaultBranding, now)
	if p.Content != announcementContent {
		t.Fatalf("Content = %q", p.Content)
	}
	e := p.Embed
	if e.Description != "Hello" {
		t.Fatalf("Description = %q", e.Description)
	}
	if e.Author == nil || e.Author.Name != "alice" || e.Author.IconURL != "https://a/x.png" {
		t.Fatalf("unexpected author: %+v", e.Author)
	}
	if e.Footer == nil || e.Footer.Text != DefaultBranding.FooterText {
		t.Fatalf("unexpected footer: %+v", e.Footer)
	}
	if !e.Timestamp.Equal(now) {
		t.Fatalf("Timestamp = %v, want %v", e.Timestamp, now)
	}
}

func TestAnnouncementWithoutBranding(t *testing.T) {
	t.Parallel()
	p := Announcement("x", Author{}, Branding{}, time.Now())
	if p.Embed.Footer != nil {
		t.Fatalf("expected no footer, got %+v", p.Embed.Footer)
	}
	if p.Embed.Author != nil {
		t.Fatalf("expected no author, got %+v", p.Embed.Author)
	}
}

func TestSummaryEmbedsCounters(t *testing.T) {
	t.Parallel()
	p := Summary(5, 4, 1, time.Now())
	for _, want := range []string{"**Total Members:** 5", "**Successful Transmissions:** 4", "**Failed Transmissions:** 1"} {
		if !strings.Contains(p.Embed.Description, want) {
			t.Fatalf("description %q missing %q", p.Embed.Description, want)
		}
	}
}
