package run

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"TubeDigest/internal/event"
	"TubeDigest/pkg/plugin"
)

type scriptedProvider struct {
	plugin.Base
	bus  *event.Bus
	fail bool
}

func (p *scriptedProvider) SupportedURLPatterns() []string { return []string{"youtube.com"} }

func (p *scriptedProvider) CanHandle(url string) bool { return strings.Contains(url, "youtube.com") }

func (p *scriptedProvider) Process(ctx context.Context, url string) error {
	if p.fail {
		p.bus.Publish(ctx, event.NewVideoProcessingError("abc123", url, "DOWNLOAD_FAILED", "boom"))
		return nil
	}
	p.bus.Publish(ctx, event.NewSummaryCreated(
		"abc123", "a summary", "markdown", "comprehensive", "short",
		2, "test-model", 10, "summaries/abc123.md",
		event.VideoInfo{Title: "Talk"}, 0,
	))
	return nil
}

var _ plugin.Provider = (*scriptedProvider)(nil)

func newRunnerFixture(t *testing.T, fail bool) (*Runner, Store, *event.Bus) {
	t.Helper()
	dir := t.TempDir()
	manifest := `plugins:
  - name: scripted
    version: "1.0.0"
    kind: provider
    entry_point: test/scripted
`
	if err := os.WriteFile(filepath.Join(dir, "scripted.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	registry := plugin.NewRegistry()
	err := registry.Register("test/scripted", func(bus *event.Bus, cfg map[string]any) (plugin.Plugin, error) {
		info := plugin.Info{Name: "scripted", Version: "1.0.0", Kind: plugin.KindProvider, EntryPoint: "test/scripted"}
		return &scriptedProvider{Base: plugin.NewBase(info, cfg), bus: bus, fail: fail}, nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	quiet := slog.New(slog.DiscardHandler)
	bus := event.NewBus(event.WithLogger(quiet))
	manager, err := plugin.NewManager(bus,
		plugin.WithDirectory(dir),
		plugin.WithRegistry(registry),
		plugin.WithLogger(quiet),
	)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if loaded := manager.LoadAll(); !loaded["scripted"] {
		t.Fatalf("scripted plugin failed to load: %v", loaded)
	}

	store := NewMemoryStore()
	tracker := NewTracker(bus)
	return NewRunner(store, manager, tracker, quiet), store, bus
}

func TestRunnerRecordsSuccessfulOutcome(t *testing.T) {
	runner, store, _ := newRunnerFixture(t, false)
	ctx := context.Background()

	if err := store.Create(ctx, &Run{ID: "r1", URL: "https://youtube.com/watch?v=abc123", VideoID: "abc123", Status: StatusPending}); err != nil {
		t.Fatalf("create run: %v", err)
	}
	if err := runner.Handler()(ctx, "r1"); err != nil {
		t.Fatalf("process run: %v", err)
	}

	final, err := store.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if final.Status != StatusSucceeded {
		t.Fatalf("expected succeeded, got %s (%s)", final.Status, final.LastError)
	}
	if final.Result == nil || final.Result.ArtifactPath != "summaries/abc123.md" {
		t.Fatalf("unexpected outcome: %+v", final.Result)
	}
	if final.Result.Model != "test-model" || final.Result.WordCount != 2 {
		t.Fatalf("unexpected outcome fields: %+v", final.Result)
	}
}

func TestRunnerRecordsStageFailure(t *testing.T) {
	runner, store, _ := newRunnerFixture(t, true)
	ctx := context.Background()

	if err := store.Create(ctx, &Run{ID: "r1", URL: "https://youtube.com/watch?v=abc123", VideoID: "abc123", Status: StatusPending}); err != nil {
		t.Fatalf("create run: %v", err)
	}
	if err := runner.Handler()(ctx, "r1"); err != nil {
		t.Fatalf("process run: %v", err)
	}

	final, err := store.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if final.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.Stage != event.StageDownload {
		t.Fatalf("expected download stage, got %q", final.Stage)
	}
	if final.ErrorCode != "DOWNLOAD_FAILED" {
		t.Fatalf("unexpected error code %q", final.ErrorCode)
	}
}

func TestRunnerFailsWhenNoProviderMatches(t *testing.T) {
	runner, store, _ := newRunnerFixture(t, false)
	ctx := context.Background()

	if err := store.Create(ctx, &Run{ID: "r1", URL: "https://example.com/clip", Status: StatusPending}); err != nil {
		t.Fatalf("create run: %v", err)
	}
	if err := runner.Handler()(ctx, "r1"); err != nil {
		t.Fatalf("process run: %v", err)
	}

	final, err := store.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if final.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.ErrorCode != "NO_PROVIDER" {
		t.Fatalf("unexpected error code %q", final.ErrorCode)
	}
}

func TestTrackerFirstFailureWins(t *testing.T) {
	quiet := slog.New(slog.DiscardHandler)
	bus := event.NewBus(event.WithLogger(quiet))
	tracker := NewTracker(bus)
	ctx := context.Background()

	bus.Publish(ctx, event.NewVideoProcessingError("vid", "https://youtube.com/watch?v=vid", "DOWNLOAD_FAILED", "first"))
	bus.Publish(ctx, event.NewSummaryProcessingError("vid", "SUMMARY_FAILED", "second"))

	outcome, ok := tracker.Outcome("vid")
	if !ok {
		t.Fatalf("expected recorded outcome")
	}
	if outcome.Succeeded {
		t.Fatalf("expected failure outcome")
	}
	if outcome.Code != "DOWNLOAD_FAILED" {
		t.Fatalf("expected first failure to win, got %s", outcome.Code)
	}

	tracker.Reset("vid")
	if _, ok := tracker.Outcome("vid"); ok {
		t.Fatalf("expected outcome cleared after reset")
	}
}

func TestServiceSubmitAllReports(t *testing.T) {
	runner, store, _ := newRunnerFixture(t, false)
	queue := NewMemoryQueue(8)
	t.Cleanup(func() { _ = queue.Close() })

	svc := NewService(store, queue)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = queue.Consume(ctx, 1, runner.Handler()) }()

	report, err := svc.SubmitAll(ctx, []string{
		"https://youtube.com/watch?v=abc123",
		"https://example.com/unsupported",
	}, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("submit all: %v", err)
	}
	if report.Total != 2 || report.Succeeded != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report.FailedURLs) != 1 || report.FailedURLs[0] != "https://example.com/unsupported" {
		t.Fatalf("unexpected failed urls: %v", report.FailedURLs)
	}
}
