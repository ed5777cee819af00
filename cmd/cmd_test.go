package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/loomchat/loom/internal/library"
	"github.com/loomchat/loom/internal/session"
)

func TestFormatTime(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"just now", now.Add(-10 * time.Second), "just now"},
		{"minutes", now.Add(-5 * time.Minute), "5 minutes ago"},
		{"hours", now.Add(-3 * time.Hour), "3 hours ago"},
		{"days", now.Add(-48 * time.Hour), "2 days ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatTime(tt.t); got != tt.want {
				t.Errorf("formatTime() = %q, want %q", got, tt.want)
			}
		})
	}

	old := now.Add(-30 * 24 * time.Hour)
	if got := formatTime(old); !strings.Contains(got, old.Format("2006-01-02")) {
		t.Errorf("formatTime() = %q, want absolute date for old timestamps", got)
	}
}

func TestMessageSummary(t *testing.T) {
	text := session.NewMessage(session.RoleModel, "hello")
	if got := messageSummary(text); got != "hello" {
		t.Errorf("messageSummary(text) = %q", got)
	}

	img := session.NewMediaMessage(session.KindImage, "a fox", &genai.Blob{Data: []byte("png")})
	if got := messageSummary(img); got != "[image] a fox" {
		t.Errorf("messageSummary(image) = %q", got)
	}

	vid := session.NewMediaMessage(session.KindVideo, "a clip", &genai.Blob{Data: []byte("mp4")})
	if got := messageSummary(vid); got != "[video] a clip" {
		t.Errorf("messageSummary(video) = %q", got)
	}
}

func TestExportPath(t *testing.T) {
	rec := library.Record{
		ID:      uuid.New(),
		Payload: &genai.Blob{MIMEType: "video/mp4", Data: []byte("x")},
	}

	if got := exportPath(rec, []string{rec.ID.String(), "out.mp4"}); got != "out.mp4" {
		t.Errorf("exportPath() = %q, want the explicit path", got)
	}

	got := exportPath(rec, []string{rec.ID.String()})
	if !strings.HasPrefix(got, rec.ID.String()) {
		t.Errorf("exportPath() = %q, want id-derived name", got)
	}
	if !strings.HasPrefix(got[len(rec.ID.String()):], ".") {
		t.Errorf("exportPath() = %q, want an extension suffix", got)
	}
}

func TestPayloadSize(t *testing.T) {
	tests := []struct {
		name string
		rec  library.Record
		want string
	}{
		{"nil payload", library.Record{}, "0 B"},
		{"bytes", library.Record{Payload: &genai.Blob{Data: make([]byte, 512)}}, "512 B"},
		{"kib", library.Record{Payload: &genai.Blob{Data: make([]byte, 2048)}}, "2.0 KiB"},
		{"mib", library.Record{Payload: &genai.Blob{Data: make([]byte, 3<<20)}}, "3.0 MiB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := payloadSize(tt.rec); got != tt.want {
				t.Errorf("payloadSize() = %q, want %q", got, tt.want)
			}
		})
	}
}
