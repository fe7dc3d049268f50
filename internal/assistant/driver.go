// Package assistant wraps the external completion service behind a small
// provider-agnostic interface. The relay treats it as a black box with
// unspecified latency and failure modes; all retries and notices on failure
// are the relay's concern, not this package's.
package assistant

import (
	"context"
	"fmt"
)

// Driver is the interface a completion provider implements.
type Driver interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *Request) (*Response, error)
	// Name returns the driver identifier (e.g. "openai").
	Name() string
}

// Message is one transcript entry sent to the provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-agnostic completion request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   *int
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a provider-agnostic completion response.
type Response struct {
	Text         string
	FinishReason string
	Usage        *Usage
}

// ProviderError reports a non-2xx answer from a completion provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}
