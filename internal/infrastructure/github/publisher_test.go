package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"BananaBot/internal/config"
	"BananaBot/internal/domain"
)

var objectPath = regexp.MustCompile(`^/repos/owner/art/contents/20250102-030405-[0-9a-f]{8}\.(png|mp3)$`)

func newTestPublisher(url string) *Publisher {
	p := NewPublisher(config.GitHubConfig{APIBase: url, Token: "t", Repo: "owner/art"})
	p.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return p
}

func TestPublishReturnsDownloadURL(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		if !objectPath.MatchString(r.URL.Path) {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "token t" {
			t.Errorf("missing token")
		}
		var body putRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		raw, _ := base64.StdEncoding.DecodeString(body.Content)
		if string(raw) != "bytes" || body.Branch != "main" {
			t.Errorf("unexpected body %+v", body)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"content":{"download_url":"https://raw.example/x.png","html_url":"https://gh.example/x.png"}}`))
	}))
	defer server.Close()

	url, err := newTestPublisher(server.URL).Publish(context.Background(), []byte("bytes"), "png")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if url != "https://raw.example/x.png" {
		t.Fatalf("unexpected url %s", url)
	}
}

func TestPublishFallsBackToHTMLURL(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":{"html_url":"https://gh.example/a.mp3"}}`))
	}))
	defer server.Close()

	url, err := newTestPublisher(server.URL).Publish(context.Background(), []byte("ID3"), ".MP3")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if url != "https://gh.example/a.mp3" {
		t.Fatalf("unexpected url %s", url)
	}
}

func TestPublishNon2xxIsPublishError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestPublisher(server.URL).Publish(context.Background(), []byte("x"), "png")
	var perr *domain.PublishError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PublishError, got %v", err)
	}
	if perr.Body != "bad credentials" {
		t.Fatalf("unexpected body %q", perr.Body)
	}
}

func TestObjectNameDetectsExtension(t *testing.T) {
	t.Parallel()

	p := newTestPublisher("http://unused")
	name := p.objectName([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), "")
	if !regexp.MustCompile(`^20250102-030405-[0-9a-f]{8}\.png$`).MatchString(name) {
		t.Fatalf("unexpected name %s", name)
	}
	if other := p.objectName([]byte("x"), "png"); other == name {
		t.Fatalf("expected unique names, got %s twice", name)
	}
}
