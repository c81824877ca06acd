package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"TubeDigest/internal/downloader"
	"TubeDigest/internal/event"
	"TubeDigest/internal/output"
	"TubeDigest/internal/summarizer"
	"TubeDigest/internal/transcriber"
)

type fakeBackend struct {
	dir          string
	captionsText string
	hasCaptions  bool
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) CanHandle(url string) bool {
	return strings.Contains(url, "youtube.com") || strings.Contains(url, "youtu.be")
}

func (b *fakeBackend) Info(ctx context.Context, url string) (event.VideoInfo, error) {
	return event.VideoInfo{Title: "Fake Talk", Uploader: "chan", Duration: 90 * time.Second, Language: "en"}, nil
}

func (b *fakeBackend) DownloadAudio(ctx context.Context, url string) (string, error) {
	path := filepath.Join(b.dir, downloader.ExtractVideoID(url)+".mp3")
	return path, os.WriteFile(path, []byte("audio"), 0o644)
}

func (b *fakeBackend) DownloadCaptions(ctx context.Context, url, lang string, preferManual bool) (string, bool, error) {
	if !b.hasCaptions {
		return "", false, nil
	}
	path := filepath.Join(b.dir, downloader.ExtractVideoID(url)+"."+lang+".srt")
	return path, true, os.WriteFile(path, []byte(b.captionsText), 0o644)
}

func (b *fakeBackend) ListCaptions(ctx context.Context, url string) (downloader.Captions, error) {
	if b.hasCaptions {
		return downloader.Captions{Manual: []string{"en"}}, nil
	}
	return downloader.Captions{}, nil
}

type fakeSpeech struct{}

func (fakeSpeech) Name() string { return "fake_speech" }

func (fakeSpeech) Transcribe(ctx context.Context, audioPath string) (*transcriber.Transcript, error) {
	return &transcriber.Transcript{
		Text:     "hello world from the fake transcript",
		Language: "en",
		Segments: []event.TranscriptSegment{{Start: 0, End: 2 * time.Second, Text: "hello world"}},
	}, nil
}

type fakeSummarizer struct{}

func (fakeSummarizer) Name() string { return "fake_summarizer" }

func (fakeSummarizer) Summarize(ctx context.Context, text, style, length string) (*summarizer.Result, error) {
	return &summarizer.Result{Text: "a fake summary", WordCount: 3, Model: "fake-model"}, nil
}

func newTestBus() *event.Bus {
	return event.NewBus(event.WithLogger(slog.New(slog.DiscardHandler)))
}

func TestPipelineEndToEnd(t *testing.T) {
	dir := t.TempDir()
	bus := newTestBus()
	backends := downloader.NewRegistry(&fakeBackend{dir: dir})
	logger := slog.New(slog.DiscardHandler)

	Attach(bus,
		NewDownloadStage(bus, backends, logger),
		NewTranscriptionStage(bus, fakeSpeech{}, backends, TranscriptionConfig{Method: MethodWhisper}, logger),
		NewSummarizationStage(bus, fakeSummarizer{}, output.NewWriter(dir), SummaryConfig{
			Style:  summarizer.StyleComprehensive,
			Length: summarizer.LengthShort,
			Format: output.FormatText,
		}, logger),
	)

	bus.Publish(context.Background(), event.NewVideoDiscovered("https://youtube.com/watch?v=abc123", "", "test", nil))

	downloads := bus.History(event.KindVideoDownloaded)
	if len(downloads) != 1 {
		t.Fatalf("expected one VideoDownloaded, got %d", len(downloads))
	}
	downloaded := downloads[0].(*event.VideoDownloaded)
	if downloaded.VideoID != "abc123" {
		t.Fatalf("expected video id abc123, got %s", downloaded.VideoID)
	}

	transcripts := bus.History(event.KindTranscriptGenerated)
	if len(transcripts) != 1 {
		t.Fatalf("expected one TranscriptGenerated, got %d", len(transcripts))
	}

	summaries := bus.History(event.KindSummaryCreated)
	if len(summaries) != 1 {
		t.Fatalf("expected one SummaryCreated, got %d", len(summaries))
	}
	summary := summaries[0].(*event.SummaryCreated)
	if summary.VideoID != "abc123" {
		t.Fatalf("summary should carry the chain video id, got %s", summary.VideoID)
	}
	if summary.WordCount != 3 {
		t.Fatalf("expected word count 3, got %d", summary.WordCount)
	}
	if _, err := os.Stat(summary.ArtifactPath); err != nil {
		t.Fatalf("summary artifact missing: %v", err)
	}

	for _, kind := range event.ErrorKinds() {
		if got := bus.History(kind); len(got) != 0 {
			t.Fatalf("unexpected %s events: %d", kind, len(got))
		}
	}
}

func TestCaptionsUnavailableEmitsExplicitError(t *testing.T) {
	dir := t.TempDir()
	bus := newTestBus()
	backends := downloader.NewRegistry(&fakeBackend{dir: dir, hasCaptions: false})
	logger := slog.New(slog.DiscardHandler)

	stage := NewTranscriptionStage(bus, nil, backends, TranscriptionConfig{
		Method:   MethodCaptions,
		Language: "en",
	}, logger)
	Attach(bus, stage)

	bus.Publish(context.Background(), event.NewVideoDownloaded(
		"abc123", "https://youtube.com/watch?v=abc123", filepath.Join(dir, "abc123.mp3"),
		event.VideoInfo{Title: "Fake Talk"}, time.Second,
	))

	failures := bus.History(event.KindTranscriptProcessingError)
	if len(failures) != 1 {
		t.Fatalf("expected one TranscriptProcessingError, got %d", len(failures))
	}
	failure := failures[0].(*event.TranscriptProcessingError)
	if failure.Stage != event.StageTranscription {
		t.Fatalf("expected stage transcription, got %s", failure.Stage)
	}
	if failure.Code != "NO_CAPTIONS" {
		t.Fatalf("expected NO_CAPTIONS code, got %s", failure.Code)
	}
	if got := bus.History(event.KindTranscriptGenerated); len(got) != 0 {
		t.Fatalf("no transcript should be generated, got %d", len(got))
	}
}

func TestCaptionsPathProducesTranscript(t *testing.T) {
	dir := t.TempDir()
	bus := newTestBus()
	srt := "1\n00:00:00,000 --> 00:00:02,000\nhello from captions\n"
	backends := downloader.NewRegistry(&fakeBackend{dir: dir, hasCaptions: true, captionsText: srt})
	logger := slog.New(slog.DiscardHandler)

	Attach(bus, NewTranscriptionStage(bus, nil, backends, TranscriptionConfig{
		Method:   MethodCaptions,
		Language: "en",
	}, logger))

	bus.Publish(context.Background(), event.NewVideoDownloaded(
		"abc123", "https://youtube.com/watch?v=abc123", filepath.Join(dir, "abc123.mp3"),
		event.VideoInfo{}, time.Second,
	))

	transcripts := bus.History(event.KindTranscriptGenerated)
	if len(transcripts) != 1 {
		t.Fatalf("expected one TranscriptGenerated, got %d", len(transcripts))
	}
	transcript := transcripts[0].(*event.TranscriptGenerated)
	if transcript.Text != "hello from captions" {
		t.Fatalf("unexpected transcript text %q", transcript.Text)
	}
	if transcript.Method != MethodCaptions {
		t.Fatalf("expected captions method tag, got %s", transcript.Method)
	}
}
