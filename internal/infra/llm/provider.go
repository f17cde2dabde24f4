// Package llm wraps vendor completion APIs behind one provider interface
// and a retry-governed client.
package llm

import (
	"context"
	"fmt"
)

// Image is one attachment for an image-bearing completion. Label is baked
// into the prompt next to the image so the model can reference it without
// seeing the product's real identity.
type Image struct {
	MediaType string
	Data      []byte
	Label     string
}

// Request is one completion request.
type Request struct {
	System    string
	Prompt    string
	Images    []Image
	MaxTokens int
}

// Provider executes a single completion attempt against one vendor API.
// Implementations convert vendor failures into classifiable errors and
// never retry internally; the Client owns the retry loop.
type Provider interface {
	// Name identifies the vendor for logs and metrics
	Name() string

	// Model returns the configured model identifier
	Model() string

	// Complete runs one completion attempt and returns the text content
	Complete(ctx context.Context, req Request) (string, error)
}

// NewProvider creates the configured completion provider. maxTokens
// caps completion length for requests that do not set their own.
func NewProvider(providerType, apiKey, model string, maxTokens int) (Provider, error) {
	switch providerType {
	case "anthropic":
		return NewAnthropicProvider(apiKey, model, maxTokens)
	case "openai":
		return NewOpenAIProvider(apiKey, model, maxTokens)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", providerType)
	}
}
