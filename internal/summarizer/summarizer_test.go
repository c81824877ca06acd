package summarizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTargetWords(t *testing.T) {
	cases := map[string]int{
		LengthShort:  150,
		LengthMedium: 300,
		LengthLong:   500,
	}
	for length, want := range cases {
		if got := TargetWords(length); got != want {
			t.Fatalf("TargetWords(%s) = %d, want %d", length, got, want)
		}
	}
}

func TestValidateTags(t *testing.T) {
	for _, style := range []string{StyleComprehensive, StyleBulletPoints, StyleKeyPoints, StyleStructured} {
		if err := ValidateStyle(style); err != nil {
			t.Fatalf("style %s should be valid: %v", style, err)
		}
	}
	if err := ValidateStyle("haiku"); err == nil {
		t.Fatalf("expected error for unknown style")
	}
	if err := ValidateLength("epic"); err == nil {
		t.Fatalf("expected error for unknown length")
	}
}

func TestSummarizeParsesResponse(t *testing.T) {
	var capturedPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) == 2 {
			capturedPrompt = req.Messages[1].Content
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "a compact three word summary here"}},
			},
			"usage": map[string]any{"total_tokens": 77},
		})
	}))
	defer server.Close()

	client, err := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	result, err := client.Summarize(context.Background(), "the transcript body", StyleKeyPoints, LengthShort)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if result.Text != "a compact three word summary here" {
		t.Fatalf("unexpected summary text %q", result.Text)
	}
	if result.WordCount != 6 {
		t.Fatalf("expected word count 6, got %d", result.WordCount)
	}
	if result.TokensUsed != 77 {
		t.Fatalf("expected tokens 77, got %d", result.TokensUsed)
	}
	if !strings.Contains(capturedPrompt, "150 words") {
		t.Fatalf("prompt should carry the target word count, got %q", capturedPrompt)
	}
	if !strings.Contains(capturedPrompt, "the transcript body") {
		t.Fatalf("prompt should carry the transcript, got %q", capturedPrompt)
	}
}

func TestSummarizeRejectsEmptyTranscript(t *testing.T) {
	client, err := NewClient(Config{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Summarize(context.Background(), "   ", StyleComprehensive, LengthMedium); err == nil {
		t.Fatalf("expected error for empty transcript")
	}
}
