package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"BananaBot/internal/config"
	"BananaBot/internal/domain"
	"BananaBot/internal/ports"
)

// Publisher uploads artifacts through the GitHub contents API.
type Publisher struct {
	apiBase string
	token   string
	repo    string
	branch  string
	client  *http.Client
	now     func() time.Time
}

var _ ports.Publisher = (*Publisher)(nil)

// NewPublisher builds a publisher for cfg.Repo ("owner/name").
func NewPublisher(cfg config.GitHubConfig) *Publisher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}
	return &Publisher{
		apiBase: strings.TrimSuffix(cfg.APIBase, "/"),
		token:   cfg.Token,
		repo:    cfg.Repo,
		branch:  branch,
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
}

type putResponse struct {
	Content struct {
		DownloadURL string `json:"download_url"`
		HTMLURL     string `json:"html_url"`
	} `json:"content"`
}

// Publish stores data under a unique timestamped name and returns its public URL.
// ext is detected from the bytes when empty.
func (p *Publisher) Publish(ctx context.Context, data []byte, ext string) (string, error) {
	if p.token == "" || !strings.Contains(p.repo, "/") {
		return "", fmt.Errorf("github publisher misconfigured")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("nothing to publish")
	}

	name := p.objectName(data, ext)
	body, err := json.Marshal(putRequest{
		Message: "auto-upload " + name,
		Content: base64.StdEncoding.EncodeToString(data),
		Branch:  p.branch,
	})
	if err != nil {
		return "", fmt.Errorf("marshal upload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/repos/%s/contents/%s", p.apiBase, p.repo, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "token "+p.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &domain.PublishError{Status: resp.Status, Body: strings.TrimSpace(string(snippet))}
	}

	var decoded putResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if decoded.Content.DownloadURL != "" {
		return decoded.Content.DownloadURL, nil
	}
	if decoded.Content.HTMLURL != "" {
		return decoded.Content.HTMLURL, nil
	}
	return "", fmt.Errorf("upload %s returned no url", name)
}

func (p *Publisher) objectName(data []byte, ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		ext = strings.TrimPrefix(mimetype.Detect(data).Extension(), ".")
	}
	if ext == "" {
		ext = "bin"
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%s.%s", p.now().UTC().Format("20060102-150405"), id, ext)
}
