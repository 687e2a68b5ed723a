package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"BananaBot/internal/domain"
)

// LoadReference reads the blend reference image from path. An empty path
// means no reference.
func LoadReference(path string) (*domain.Image, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference image: %w", err)
	}
	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return nil, &domain.ValidationError{Reason: domain.ErrUnsupportedType, Detail: detected.String()}
	}
	return &domain.Image{Data: data, MIME: detected.String()}, nil
}
