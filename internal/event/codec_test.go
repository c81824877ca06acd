package event

import (
	"testing"
	"time"
)

func TestCodecRoundTripPreservesEnvelopeAndFields(t *testing.T) {
	segments := []TranscriptSegment{
		{Start: 0, End: 4 * time.Second, Text: "hello there", Confidence: 0.92},
		{Start: 4 * time.Second, End: 9 * time.Second, Text: "general summary", Confidence: 0.88},
	}
	original := NewTranscriptGenerated(
		"abc123", "hello there general summary", "en", 0.97,
		segments, "whisper",
		VideoInfo{Title: "Talk", Uploader: "chan", Duration: 9 * time.Second},
		1500*time.Millisecond,
		WithSource("transcription_stage"),
		WithMetadata("attempt", "first"),
	)

	data, err := Encode(original)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	restored, ok := decoded.(*TranscriptGenerated)
	if !ok {
		t.Fatalf("decoded wrong type %T", decoded)
	}
	if restored.ID != original.ID {
		t.Fatalf("id mismatch: got %s want %s", restored.ID, original.ID)
	}
	if !restored.Timestamp.Equal(original.Timestamp) {
		t.Fatalf("timestamp mismatch: got %v want %v", restored.Timestamp, original.Timestamp)
	}
	if restored.Source != "transcription_stage" {
		t.Fatalf("source mismatch: got %s", restored.Source)
	}
	if restored.Metadata["attempt"] != "first" {
		t.Fatalf("metadata lost: %v", restored.Metadata)
	}
	if restored.VideoID != "abc123" || restored.Language != "en" || restored.Method != "whisper" {
		t.Fatalf("kind-specific fields mismatch: %+v", restored)
	}
	if len(restored.Segments) != 2 || restored.Segments[1].Text != "general summary" {
		t.Fatalf("segments mismatch: %+v", restored.Segments)
	}
	if restored.Info.Title != "Talk" || restored.Info.Duration != 9*time.Second {
		t.Fatalf("video info mismatch: %+v", restored.Info)
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	if _, err := Decode([]byte(`{"kind":"mystery","payload":{}}`)); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestSummaryCreatedDerivesWordCount(t *testing.T) {
	evt := NewSummaryCreated("vid1", "one two three", "text", "comprehensive", "short", 0, "gpt", 0, "", VideoInfo{}, 0)
	if evt.WordCount != 3 {
		t.Fatalf("expected derived word count 3, got %d", evt.WordCount)
	}

	explicit := NewSummaryCreated("vid1", "one two three", "text", "comprehensive", "short", 42, "gpt", 0, "", VideoInfo{}, 0)
	if explicit.WordCount != 42 {
		t.Fatalf("explicit word count should be kept, got %d", explicit.WordCount)
	}
}
