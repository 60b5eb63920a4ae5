package config

import (
	"testing"
	"time"
)

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "", want: 0},
		{raw: "  ", want: 0},
		{raw: "90s", want: 90 * time.Second},
		{raw: " 720h ", want: 720 * time.Hour},
		{raw: "30d", want: 30 * 24 * time.Hour},
		{raw: "0d", want: 0},
		{raw: "-1s", wantErr: true},
		{raw: "-3d", wantErr: true},
		{raw: "1.5d", wantErr: true},
		{raw: "d", wantErr: true},
		{raw: "soon", wantErr: true},
		{raw: "999999999999d", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseDurationField("storage.retention", tt.raw)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseDurationField(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Fatalf("ParseDurationField(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	if got, _ := ParseDurationOrDefault("k", "", time.Second); got != time.Second {
		t.Fatalf("empty = %v, want default", got)
	}
	if got, _ := ParseDurationOrDefault("k", "3s", time.Second); got != 3*time.Second {
		t.Fatalf("3s = %v", got)
	}
	if _, err := ParseDurationOrDefault("k", "x", time.Second); err == nil {
		t.Fatal("expected error")
	}
}
