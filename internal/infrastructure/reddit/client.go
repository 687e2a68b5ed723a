package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"BananaBot/internal/config"
	"BananaBot/internal/domain"
)

const (
	pageSize    = 100
	seenMax     = 1000
	httpTimeout = 30 * time.Second
)

// Client is an authenticated Reddit API client. It implements both
// ports.FeedSource and ports.Replier.
type Client struct {
	apiBase string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient wires password-grant OAuth and a poll limiter from cfg.
// Tokens are requested lazily and re-requested once they expire.
func NewClient(cfg config.RedditConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	base := &userAgentTransport{agent: cfg.UserAgent, base: http.DefaultTransport}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{
		Transport: base,
		Timeout:   httpTimeout,
	})
	source := oauth2.ReuseTokenSource(nil, &passwordSource{
		ctx:      tokenCtx,
		conf:     oauthCfg,
		username: cfg.Username,
		password: cfg.Password,
	})

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &Client{
		apiBase: strings.TrimSuffix(cfg.APIBase, "/"),
		http: &http.Client{
			Transport: &oauth2.Transport{Source: source, Base: base},
			Timeout:   httpTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  logger,
	}
}

type passwordSource struct {
	ctx      context.Context
	conf     *oauth2.Config
	username string
	password string
}

func (p *passwordSource) Token() (*oauth2.Token, error) {
	tok, err := p.conf.PasswordCredentialsToken(p.ctx, p.username, p.password)
	if err != nil {
		return nil, fmt.Errorf("reddit auth: %w", err)
	}
	return tok, nil
}

type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.agent == "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(clone)
}

type listing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string  `json:"kind"`
			Data comment `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type comment struct {
	ID         string  `json:"id"`
	Body       string  `json:"body"`
	Author     string  `json:"author"`
	LinkURL    string  `json:"link_url"`
	CreatedUTC float64 `json:"created_utc"`
}

func (c comment) event() domain.Event {
	author := c.Author
	if author == "[deleted]" {
		author = ""
	}
	sec := int64(c.CreatedUTC)
	return domain.Event{
		ID:            c.ID,
		Body:          c.Body,
		Author:        author,
		AttachmentURL: c.LinkURL,
		CreatedAt:     time.Unix(sec, 0).UTC(),
	}
}

// listComments returns one page of the newest comments (newest first) and the pagination cursor.
func (c *Client) listComments(ctx context.Context, scope string, limit int, after string) ([]domain.Event, string, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("raw_json", "1")
	if after != "" {
		query.Set("after", after)
	}
	endpoint := fmt.Sprintf("%s/r/%s/comments?%s", c.apiBase, url.PathEscape(scope), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("list comments: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", fmt.Errorf("reddit returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var page listing
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, "", fmt.Errorf("decode listing: %w", err)
	}

	events := make([]domain.Event, 0, len(page.Data.Children))
	for _, child := range page.Data.Children {
		if child.Kind != "" && child.Kind != "t1" {
			continue
		}
		if child.Data.ID == "" {
			continue
		}
		events = append(events, child.Data.event())
	}
	return events, page.Data.After, nil
}
