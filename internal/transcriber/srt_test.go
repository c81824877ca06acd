package transcriber

import (
	"testing"
	"time"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:04,200
Welcome to the channel

2
00:00:04,200 --> 00:00:08,000
today we talk about
event driven pipelines

3
not-a-timestamp
garbage block
`

func TestParseSRT(t *testing.T) {
	text, segments := ParseSRT(sampleSRT)

	want := "Welcome to the channel today we talk about event driven pipelines"
	if text != want {
		t.Fatalf("text mismatch:\ngot  %q\nwant %q", text, want)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Start != time.Second || segments[0].End != 4200*time.Millisecond {
		t.Fatalf("segment 0 timing mismatch: %+v", segments[0])
	}
	if segments[1].Text != "today we talk about event driven pipelines" {
		t.Fatalf("segment 1 text mismatch: %q", segments[1].Text)
	}
}

func TestParseSRTEmptyInput(t *testing.T) {
	text, segments := ParseSRT("")
	if text != "" || len(segments) != 0 {
		t.Fatalf("expected empty result, got %q %v", text, segments)
	}
}

func TestLogprobConfidence(t *testing.T) {
	if got := logprobConfidence(0); got != 1 {
		t.Fatalf("zero logprob should map to 1, got %f", got)
	}
	if got := logprobConfidence(-0.5); got <= 0 || got >= 1 {
		t.Fatalf("negative logprob should map into (0,1), got %f", got)
	}
}
