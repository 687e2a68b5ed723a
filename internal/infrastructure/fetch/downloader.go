package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"BananaBot/internal/domain"
	"BananaBot/internal/ports"
)

const (
	defaultMaxBytes = 5 * 1024 * 1024
	defaultTimeout  = 30 * time.Second
	maxPageBytes    = 1 << 20
)

var mimeByExtension = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// Options bounds what the downloader accepts.
type Options struct {
	MaxBytes          int64
	AllowedExtensions []string
	Timeout           time.Duration
	ResolvePages      bool
	UserAgent         string
	Client            *http.Client
}

// Downloader fetches event attachments under size and type limits.
type Downloader struct {
	client       *http.Client
	maxBytes     int64
	allowed      map[string]struct{}
	resolvePages bool
	userAgent    string
}

var _ ports.Fetcher = (*Downloader)(nil)

// NewDownloader wires an HTTP client; limits fall back to 5 MiB and jpg/jpeg/png.
func NewDownloader(opts Options) *Downloader {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	exts := opts.AllowedExtensions
	if len(exts) == 0 {
		exts = []string{"jpg", "jpeg", "png"}
	}
	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "BananaBot/1.0"
	}
	return &Downloader{
		client:       client,
		maxBytes:     maxBytes,
		allowed:      allowed,
		resolvePages: opts.ResolvePages,
		userAgent:    ua,
	}
}

// Fetch downloads rawURL. A page URL is resolved once through its og:image tag.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) (domain.Image, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return domain.Image{}, &domain.ValidationError{Reason: domain.ErrMissingAttachment}
	}

	target, err := url.Parse(rawURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
		return domain.Image{}, &domain.ValidationError{Reason: domain.ErrUnsupportedType, Detail: rawURL}
	}

	ext, ok := d.extensionOf(target)
	if !ok && d.resolvePages {
		resolved, err := d.resolveOpenGraph(ctx, target)
		if err != nil {
			return domain.Image{}, err
		}
		if resolved != nil {
			target = resolved
			ext, ok = d.extensionOf(target)
		}
	}
	if !ok {
		return domain.Image{}, &domain.ValidationError{Reason: domain.ErrUnsupportedType, Detail: rawURL}
	}

	data, err := d.download(ctx, target.String())
	if err != nil {
		return domain.Image{}, err
	}

	mime := mimeByExtension[ext]
	if detected := mimetype.Detect(data); strings.HasPrefix(detected.String(), "image/") {
		mime = detected.String()
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	return domain.Image{Data: data, MIME: mime}, nil
}

func (d *Downloader) extensionOf(u *url.URL) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	if ext == "" {
		return "", false
	}
	_, ok := d.allowed[ext]
	return ext, ok
}

func (d *Downloader) download(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := d.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.ContentLength > d.maxBytes {
		return nil, d.tooLarge(resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, d.tooLarge(int64(len(data)))
	}
	if len(data) == 0 {
		return nil, &domain.ValidationError{Reason: domain.ErrMissingAttachment, Detail: "empty body"}
	}
	return data, nil
}

// resolveOpenGraph returns the og:image URL of an HTML page, or nil when the page has none.
func (d *Downloader) resolveOpenGraph(ctx context.Context, page *url.URL) (*url.URL, error) {
	resp, err := d.get(ctx, page.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !strings.Contains(resp.Header.Get("Content-Type"), "html") {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	content, exists := doc.Find(`meta[property="og:image"]`).First().Attr("content")
	if !exists || strings.TrimSpace(content) == "" {
		return nil, nil
	}
	ref, err := url.Parse(strings.TrimSpace(content))
	if err != nil {
		return nil, nil
	}
	return page.ResolveReference(ref), nil
}

func (d *Downloader) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request attachment: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("attachment host returned %s", resp.Status)
	}
	return resp, nil
}

func (d *Downloader) tooLarge(size int64) error {
	return &domain.ValidationError{
		Reason: domain.ErrTooLarge,
		Detail: fmt.Sprintf("%s exceeds %s", humanize.IBytes(uint64(size)), humanize.IBytes(uint64(d.maxBytes))),
	}
}
