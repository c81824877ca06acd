package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"TubeDigest/internal/event"
)

func sampleArtifact() Artifact {
	return Artifact{
		VideoID: "abc123",
		Style:   "structured",
		Length:  "short",
		Summary: "## Overview\n\nA short talk.\n\n## Key Points\n\n- first\n- second\n\n## Conclusion\n\nDone.",
		Info: event.VideoInfo{
			Title:    "Event Pipelines",
			Uploader: "chan",
			Duration: 754 * time.Second,
			Language: "en",
		},
		GeneratedAt: time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
	}
}

func TestWriteTextArtifact(t *testing.T) {
	w := NewWriter(t.TempDir())
	path, err := w.Write(sampleArtifact(), FormatText)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(path) != "abc123_structured_short.txt" {
		t.Fatalf("unexpected artifact name %s", filepath.Base(path))
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	content := string(raw)
	for _, want := range []string{"Title: Event Pipelines", "Uploader: chan", "Duration: 12:34", "Summary length: short", "Generated: 2026-03-01"} {
		if !strings.Contains(content, want) {
			t.Fatalf("artifact missing %q:\n%s", want, content)
		}
	}
}

func TestWriteJSONArtifact(t *testing.T) {
	w := NewWriter(t.TempDir())
	path, err := w.Write(sampleArtifact(), FormatJSON)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("artifact is not valid json: %v", err)
	}
	if doc["video_id"] != "abc123" || doc["summary_style"] != "structured" {
		t.Fatalf("unexpected json fields: %v", doc)
	}
	if doc["generated_at"] != "2026-03-01T10:30:00Z" {
		t.Fatalf("unexpected timestamp: %v", doc["generated_at"])
	}
}

func TestWritePDFArtifact(t *testing.T) {
	w := NewWriter(t.TempDir())
	path, err := w.Write(sampleArtifact(), FormatPDF)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("pdf artifact is empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.HasPrefix(string(raw), "%PDF") {
		t.Fatalf("artifact is not a pdf document")
	}
}

func TestWriteRejectsUnknownFormat(t *testing.T) {
	w := NewWriter(t.TempDir())
	if _, err := w.Write(sampleArtifact(), "docx"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
