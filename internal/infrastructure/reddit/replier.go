package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"BananaBot/internal/domain"
	"BananaBot/internal/ports"
)

var _ ports.Replier = (*Client)(nil)

type commentResponse struct {
	JSON struct {
		Errors [][]any `json:"errors"`
	} `json:"json"`
}

// Reply posts text as a child of the event's comment.
func (c *Client) Reply(ctx context.Context, event domain.Event, text string) error {
	if event.ID == "" {
		return fmt.Errorf("reply: event has no id")
	}
	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("thing_id", "t1_"+event.ID)
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/api/comment", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reddit reply error: %s", resp.Status)
	}

	var decoded commentResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode reply response: %w", err)
	}
	if len(decoded.JSON.Errors) > 0 {
		return fmt.Errorf("reddit rejected reply: %v", decoded.JSON.Errors[0])
	}
	return nil
}
