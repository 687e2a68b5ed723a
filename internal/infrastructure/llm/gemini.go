package llm

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

	"BananaBot/internal/config"
	"BananaBot/internal/domain"
	"BananaBot/internal/ports"
)

// GeminiClient implements ports.Transformer backed by the generateContent REST API.
type GeminiClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.Transformer = (*GeminiClient)(nil)

// NewGeminiClient builds a client from configuration.
func NewGeminiClient(cfg config.GeminiConfig) *GeminiClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiClient{
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Transform sends the image (and optional reference) with an edit prompt and
// returns the first inline image of the answer.
func (c *GeminiClient) Transform(ctx context.Context, req ports.TransformRequest) (domain.Image, error) {
	if c == nil {
		return domain.Image{}, fmt.Errorf("gemini client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return domain.Image{}, fmt.Errorf("gemini client misconfigured")
	}
	if req.Image.Empty() {
		return domain.Image{}, &domain.ValidationError{Reason: domain.ErrMissingAttachment}
	}

	parts := []part{{Text: buildPrompt(req.Instruction, req.Reference != nil)}, imagePart(req.Image)}
	if req.Reference != nil && !req.Reference.Empty() {
		parts = append(parts, imagePart(*req.Reference))
	}

	body, err := json.Marshal(generateRequest{Contents: []content{{Role: "user", Parts: parts}}})
	if err != nil {
		return domain.Image{}, fmt.Errorf("marshal gemini payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Image{}, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("x-goog-api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.Image{}, fmt.Errorf("generate content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Image{}, fmt.Errorf("gemini error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Image{}, fmt.Errorf("decode gemini response: %w", err)
	}

	for _, candidate := range decoded.Candidates {
		for _, p := range candidate.Content.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return domain.Image{}, fmt.Errorf("decode inline image: %w", err)
			}
			mime := p.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return domain.Image{Data: data, MIME: mime}, nil
		}
	}
	return domain.Image{}, domain.ErrNoResult
}

func imagePart(img domain.Image) part {
	return part{InlineData: &inlineData{
		MIMEType: img.MIME,
		Data:     base64.StdEncoding.EncodeToString(img.Data),
	}}
}

func buildPrompt(instruction domain.Instruction, blend bool) string {
	if blend {
		return fmt.Sprintf("Transform the base image according to this instruction: %s. "+
			"Use the second image as a style/texture/object reference to blend or fuse realistically. "+
			"Preserve lighting, perspective, and subject integrity. "+
			"Output only a PNG image; no text in the response; keep resolution similar to input.", instruction)
	}
	return fmt.Sprintf("Transform the provided image according to this instruction: %s. "+
		"Output only a PNG image; no text in the response; keep resolution similar to input; "+
		"keep composition unless explicitly requested to change it.", instruction)
}
