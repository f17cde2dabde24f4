package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/vietddude/pollster/internal/retry"
)

// OpenAIProvider implements Provider for OpenAI's API
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAIProvider creates a new OpenAI provider instance
func NewOpenAIProvider(apiKey, model string, maxTokens int) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	config := openai.DefaultConfig(apiKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAIProvider{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

func (p *OpenAIProvider) Name() string  { return "openai" }
func (p *OpenAIProvider) Model() string { return p.model }

// Complete runs one completion attempt and returns the text content.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	if len(req.Images) > 0 {
		parts := make([]openai.ChatMessagePart, 0, 2*len(req.Images)+1)
		for _, img := range req.Images {
			if img.Label != "" {
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeText,
					Text: img.Label + ":",
				})
			}
			dataURL := fmt.Sprintf("data:%s;base64,%s",
				img.MediaType, base64.StdEncoding.EncodeToString(img.Data))
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailAuto},
			})
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: req.Prompt,
		})
		messages = append(messages, openai.ChatCompletionMessage{
			Role:         openai.ChatMessageRoleUser,
			MultiContent: parts,
		})
	} else {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.Prompt,
		})
	}

	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     p.model,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", p.convertError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &retry.ParseError{Service: p.Name(), Reason: "no choices in completion"}
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", &retry.ParseError{Service: p.Name(), Reason: "empty completion content"}
	}
	return content, nil
}

// convertError maps SDK failures onto the canonical error types the
// classifier understands.
func (p *OpenAIProvider) convertError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		// Quota exhaustion arrives as a 429 but no amount of retrying
		// will refill the account.
		if apiErr.Type == "insufficient_quota" ||
			strings.Contains(strings.ToLower(apiErr.Message), "exceeded your current quota") {
			return retry.Terminal("openai account quota exhausted", err)
		}
		return &retry.HTTPError{Service: p.Name(), StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	return fmt.Errorf("openai API error: %w", err)
}
