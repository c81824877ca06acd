package plugins

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"TubeDigest/internal/event"
	"TubeDigest/pkg/plugin"
)

func TestBuiltinEntryPointsRegistered(t *testing.T) {
	expected := []string{
		sentimentEntryPoint,
		youtubeEntryPoint,
		vimeoEntryPoint,
		webhookEntryPoint,
	}
	registered := make(map[string]bool)
	for _, entryPoint := range EntryPoints() {
		registered[entryPoint] = true
	}
	for _, entryPoint := range expected {
		if !registered[entryPoint] {
			t.Fatalf("entry point %s not registered", entryPoint)
		}
	}
}

func TestSentimentAnalyze(t *testing.T) {
	raw, ok := plugin.DefaultRegistry().Lookup(sentimentEntryPoint)
	if !ok {
		t.Fatalf("sentiment factory not registered")
	}
	instance, err := raw(nil, map[string]any{})
	if err != nil {
		t.Fatalf("build sentiment processor: %v", err)
	}
	processor := instance.(*SentimentProcessor)

	if err := processor.Handle(context.Background(), event.NewTranscriptGenerated(
		"vid1", "this talk is great, excellent pacing and a wonderful speaker", "en", 1, nil, "whisper",
		event.VideoInfo{}, 0,
	)); err != nil {
		t.Fatalf("handle transcript: %v", err)
	}

	result, ok := processor.Result("vid1")
	if !ok {
		t.Fatalf("expected recorded sentiment")
	}
	if result.Label != "positive" {
		t.Fatalf("expected positive label, got %s (%+v)", result.Label, result)
	}
	if result.Positive != 3 || result.Negative != 0 {
		t.Fatalf("unexpected keyword counts: %+v", result)
	}

	if err := processor.Handle(context.Background(), event.NewSummaryCreated(
		"vid2", "a terrible and boring talk, the worst", "markdown", "comprehensive", "short",
		0, "m", 0, "p", event.VideoInfo{}, 0,
	)); err != nil {
		t.Fatalf("handle summary: %v", err)
	}
	result, _ = processor.Result("vid2")
	if result.Label != "negative" {
		t.Fatalf("expected negative label, got %s", result.Label)
	}

	if err := processor.Handle(context.Background(), event.NewTranscriptGenerated(
		"vid3", "the weather report covers tomorrow", "en", 1, nil, "whisper",
		event.VideoInfo{}, 0,
	)); err != nil {
		t.Fatalf("handle neutral transcript: %v", err)
	}
	result, _ = processor.Result("vid3")
	if result.Label != "neutral" || result.Score != 0 {
		t.Fatalf("expected neutral result, got %+v", result)
	}
}

func TestSentimentCustomKeywords(t *testing.T) {
	raw, ok := plugin.DefaultRegistry().Lookup(sentimentEntryPoint)
	if !ok {
		t.Fatalf("sentiment factory not registered")
	}
	instance, err := raw(nil, map[string]any{
		"positive_words": []any{"bullish"},
		"negative_words": []any{"bearish"},
	})
	if err != nil {
		t.Fatalf("build sentiment processor: %v", err)
	}
	processor := instance.(*SentimentProcessor)

	if err := processor.Handle(context.Background(), event.NewTranscriptGenerated(
		"vid", "analysts stay bullish on the sector", "en", 1, nil, "whisper",
		event.VideoInfo{}, 0,
	)); err != nil {
		t.Fatalf("handle transcript: %v", err)
	}
	result, _ := processor.Result("vid")
	if result.Label != "positive" || result.Positive != 1 {
		t.Fatalf("custom keywords not applied: %+v", result)
	}
}

func TestWebhookPostsSummary(t *testing.T) {
	var received map[string]any
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	raw, ok := plugin.DefaultRegistry().Lookup(webhookEntryPoint)
	if !ok {
		t.Fatalf("webhook factory not registered")
	}
	instance, err := raw(nil, map[string]any{
		"url":         server.URL,
		"auth_header": "Bearer token123",
	})
	if err != nil {
		t.Fatalf("build webhook processor: %v", err)
	}
	processor := instance.(*WebhookProcessor)
	if err := processor.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	summary := event.NewSummaryCreated(
		"abc123", "the summary body", "markdown", "comprehensive", "short",
		3, "gpt-4o-mini", 42, "summaries/abc123.md",
		event.VideoInfo{Title: "Talk", Uploader: "chan"}, 0,
	)
	if err := processor.Handle(context.Background(), summary); err != nil {
		t.Fatalf("handle summary: %v", err)
	}

	if received["video_id"] != "abc123" {
		t.Fatalf("unexpected payload video_id: %v", received["video_id"])
	}
	if received["summary"] != "the summary body" {
		t.Fatalf("unexpected payload summary: %v", received["summary"])
	}
	if gotAuth != "Bearer token123" {
		t.Fatalf("auth header not forwarded, got %q", gotAuth)
	}
}

func TestWebhookRequiresURL(t *testing.T) {
	raw, ok := plugin.DefaultRegistry().Lookup(webhookEntryPoint)
	if !ok {
		t.Fatalf("webhook factory not registered")
	}
	instance, err := raw(nil, map[string]any{})
	if err != nil {
		t.Fatalf("build webhook processor: %v", err)
	}
	if err := instance.(*WebhookProcessor).Initialize(); err == nil {
		t.Fatalf("expected initialize failure without url")
	}
}

func TestWebhookRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	raw, ok := plugin.DefaultRegistry().Lookup(webhookEntryPoint)
	if !ok {
		t.Fatalf("webhook factory not registered")
	}
	instance, err := raw(nil, map[string]any{"url": server.URL})
	if err != nil {
		t.Fatalf("build webhook processor: %v", err)
	}
	processor := instance.(*WebhookProcessor)

	summary := event.NewSummaryCreated(
		"abc123", "body", "markdown", "comprehensive", "short",
		1, "m", 0, "p", event.VideoInfo{}, 0,
	)
	if err := processor.Handle(context.Background(), summary); err == nil {
		t.Fatalf("expected error on non-2xx response")
	}
}
