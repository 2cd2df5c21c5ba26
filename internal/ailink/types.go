package ailink

import (
	"time"

	"github.com/postly/postly/internal/ailink/driver"
)

// Image is an inline image attached to a chat request.
type Image struct {
	Data      []byte
	MediaType string
}

// ChatRequest is the high-level request for a single prompt completion.
type ChatRequest struct {
	// Role selects the provider; defaults to PromptSlug.
	Role       string
	PromptSlug string
	Variables  map[string]string
	Image      *Image
	MaxTokens  int
	Model      string
	Timeout    time.Duration
}

// ChatResponse carries the raw model text for one completion.
type ChatResponse struct {
	Text         string
	ProviderID   string
	Model        string
	FinishReason string
	Usage        *driver.Usage
	Duration     time.Duration
}

// Error captures a provider failure with a stable code.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`

	Err error `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "ailink error"
	}
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
