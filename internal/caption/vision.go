package caption

import (
	"context"
	"strings"

	"pixelpost/internal/services/llm"
)

// VisionModel describes images through a vision-capable chat model.
type VisionModel struct {
	client *llm.Client
	prompt string
}

// NewVisionModel wraps client. prompt is sent with every image.
func NewVisionModel(client *llm.Client, prompt string) *VisionModel {
	return &VisionModel{client: client, prompt: strings.TrimSpace(prompt)}
}

// Describe implements Model.
func (m *VisionModel) Describe(ctx context.Context, mimeType string, image []byte) (string, error) {
	text, err := m.client.DescribeImage(ctx, m.prompt, mimeType, image)
	if err != nil {
		return "", err
	}
	return llm.StripCodeFence(text), nil
}
