// Package driver defines the provider-neutral completion contract the model
// service calls, plus the NDJSON request tracer.
package driver

import (
	"context"
	"strings"

	"github.com/postly/postly/internal/ailink/content"
)

// Driver sends one chat completion to a provider.
type Driver interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	Name() string
	Capabilities() Capabilities
}

type Capabilities struct {
	SupportsImages    bool
	SupportsStreaming bool
}

// ResponseFormat is "text" or "json_object".
type ResponseFormat struct {
	Type string `json:"type"`
}

// Usage is token accounting as reported by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request is a provider-agnostic completion request. PromptSlug only labels
// trace entries.
type Request struct {
	Model          string
	Messages       []content.Message
	ResponseFormat *ResponseFormat
	Temperature    *float64
	MaxTokens      *int
	PromptSlug     string
}

type Response struct {
	Content      []content.ContentBlock
	FinishReason string
	Usage        *Usage
}

// Text joins the text blocks of the response.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, len(r.Content))
	for _, block := range r.Content {
		parts = append(parts, block.Text)
	}
	return strings.Join(parts, "\n")
}

// HasImages reports whether any message carries an image block.
func (r *Request) HasImages() bool {
	if r == nil {
		return false
	}
	for _, msg := range r.Messages {
		for _, block := range msg.Content {
			if block.Type.IsImage() {
				return true
			}
		}
	}
	return false
}
