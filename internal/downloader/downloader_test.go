package downloader

import "testing"

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://youtube.com/watch?v=abc123", "abc123"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/abc123", "abc123"},
		{"https://youtube.com/embed/xyz-987_", "xyz-987_"},
		{"https://vimeo.com/123456789", "123456789"},
	}
	for _, tc := range cases {
		if got := ExtractVideoID(tc.url); got != tc.want {
			t.Fatalf("ExtractVideoID(%s) = %s, want %s", tc.url, got, tc.want)
		}
	}
}

func TestExtractVideoIDFallsBackToHash(t *testing.T) {
	first := ExtractVideoID("https://example.org/media/clip.mp4")
	second := ExtractVideoID("https://example.org/media/clip.mp4")
	other := ExtractVideoID("https://example.org/media/other.mp4")

	if len(first) != 16 {
		t.Fatalf("expected 16-char hash id, got %q", first)
	}
	if first != second {
		t.Fatalf("hash id must be stable: %s != %s", first, second)
	}
	if first == other {
		t.Fatalf("distinct urls must not collide")
	}
}

func TestRegistryResolvesFirstMatch(t *testing.T) {
	runner := NewRunner()
	registry := NewRegistry(NewYouTube(runner), NewVimeo(runner))

	backend, ok := registry.Resolve("https://youtube.com/watch?v=abc123")
	if !ok || backend.Name() != "youtube" {
		t.Fatalf("expected youtube backend, got %v %v", backend, ok)
	}
	backend, ok = registry.Resolve("https://vimeo.com/123456789")
	if !ok || backend.Name() != "vimeo" {
		t.Fatalf("expected vimeo backend, got %v %v", backend, ok)
	}
	if _, ok := registry.Resolve("ftp://nowhere.example"); ok {
		t.Fatalf("expected no backend for unsupported url")
	}
}
