package driver

import (
	"encoding/json"
	"fmt"
	"strings"
)

const maxProviderMessage = 512

// ProviderError is returned when a provider responds with a non-2xx status.
type ProviderError struct {
	Provider   string
	StatusCode int
	// Type is the provider's error type, e.g. "invalid_request_error".
	Type    string
	Message string
}

// NewProviderError builds a ProviderError from a response body. OpenAI-style
// {"error": {"message", "type"}} bodies are unpacked; anything else is kept
// as trimmed text.
func NewProviderError(provider string, status int, body []byte) *ProviderError {
	perr := &ProviderError{Provider: provider, StatusCode: status}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		perr.Message = envelope.Error.Message
		perr.Type = envelope.Error.Type
	} else {
		perr.Message = strings.TrimSpace(string(body))
	}

	if len(perr.Message) > maxProviderMessage {
		perr.Message = perr.Message[:maxProviderMessage] + "..."
	}
	return perr
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s request failed: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s request failed: %s", e.Provider, e.Message)
}
