package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/vietddude/pollster/internal/retry"
)

// AnthropicProvider implements Provider for Anthropic's Claude API
type AnthropicProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropicProvider creates a new Anthropic provider instance
func NewAnthropicProvider(apiKey, model string, maxTokens int) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	return &AnthropicProvider{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

func (p *AnthropicProvider) Name() string  { return "anthropic" }
func (p *AnthropicProvider) Model() string { return p.model }

// Complete runs one completion attempt and returns the text content.
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (string, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, 2*len(req.Images)+1)
	for _, img := range req.Images {
		if img.Label != "" {
			blocks = append(blocks, anthropic.NewTextBlock(img.Label+":"))
		}
		encoded := base64.StdEncoding.EncodeToString(img.Data)
		blocks = append(blocks, anthropic.NewImageBlockBase64(img.MediaType, encoded))
	}
	blocks = append(blocks, anthropic.NewTextBlock(req.Prompt))

	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", p.convertError(err)
	}

	// Collect the text blocks; a completion without any is unusable and
	// worth a fresh attempt.
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &retry.ParseError{Service: p.Name(), Reason: "no text content block in completion"}
	}
	return sb.String(), nil
}

// convertError maps SDK failures onto the canonical error types the
// classifier understands.
func (p *AnthropicProvider) convertError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		body := apierr.Error()
		if strings.Contains(strings.ToLower(body), "credit balance") {
			return retry.Terminal("anthropic account credits exhausted", err)
		}
		return &retry.HTTPError{Service: p.Name(), StatusCode: apierr.StatusCode, Body: body}
	}
	return fmt.Errorf("anthropic API error: %w", err)
}
