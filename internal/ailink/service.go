package ailink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/postly/postly/internal/ailink/content"
	"github.com/postly/postly/internal/ailink/driver"
	"github.com/postly/postly/internal/ailink/prompt"
)

const (
	defaultTimeout = 60 * time.Second
	maxTimeout     = 5 * time.Minute
)

// Service coordinates prompt loading, provider selection, and driver execution.
type Service struct {
	Providers *Registry
	Registry  prompt.Registry
}

// NewService wires a provider registry and the prompt set for cfg.
func NewService(cfg Config) (*Service, error) {
	prompts, err := prompt.BuildRegistry(cfg.PromptsDir)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	return &Service{Providers: NewRegistry(cfg), Registry: prompts}, nil
}

// Chat renders the prompt, attaches the optional image, and returns the raw
// model text. Provider failures are returned as *Error.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if s == nil || s.Providers == nil {
		return nil, errors.New("ailink provider registry not configured")
	}
	if s.Registry == nil {
		return nil, errors.New("ailink prompt registry not configured")
	}

	slug := strings.TrimSpace(req.PromptSlug)
	if slug == "" {
		return nil, errors.New("prompt slug is required")
	}

	promptDef, err := s.Registry.Get(slug)
	if err != nil {
		return nil, err
	}

	systemPrompt, userPrompt, err := prompt.Render(promptDef, req.Variables)
	if err != nil {
		return nil, err
	}

	userBlocks := []content.ContentBlock{{Type: content.ContentTypeText, Text: userPrompt}}
	if req.Image != nil {
		mediaType := strings.TrimSpace(req.Image.MediaType)
		if mediaType == "" {
			mediaType = string(content.ContentTypeJPEG)
		}
		if !promptDef.AcceptsImageType(mediaType) {
			return nil, fmt.Errorf("prompt %q does not accept %s images", slug, mediaType)
		}
		if len(req.Image.Data) == 0 {
			return nil, errors.New("image data is empty")
		}
		userBlocks = append(userBlocks, content.ContentBlock{Type: content.ContentType(mediaType), Data: req.Image.Data})
	}

	messages := []content.Message{
		content.Text("system", systemPrompt),
		{Role: "user", Content: userBlocks},
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = slug
	}

	resolved, err := s.Providers.Resolve(role, promptDef, req.Model)
	if err != nil {
		return nil, err
	}
	if req.Image != nil && !resolved.Driver.Capabilities().SupportsImages {
		return nil, fmt.Errorf("provider %q does not support images", resolved.ProviderID)
	}

	driverReq := &driver.Request{
		Model:      resolved.Model,
		Messages:   messages,
		PromptSlug: promptDef.Config.Slug,
	}
	if format := promptDef.Config.ResponseFormat; format != "" && format != "text" {
		driverReq.ResponseFormat = &driver.ResponseFormat{Type: format}
	}
	driverReq.Temperature = promptDef.Config.Temperature
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = promptDef.Config.MaxTokens
	}
	if maxTokens > 0 {
		driverReq.MaxTokens = &maxTokens
	}

	duration := s.Providers.cfg.DefaultTimeout
	if duration <= 0 {
		duration = defaultTimeout
	}
	if req.Timeout > 0 {
		duration = req.Timeout
	}
	if duration > maxTimeout {
		duration = maxTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	start := time.Now()
	resp, err := resolved.Driver.Complete(ctx, driverReq)
	elapsed := time.Since(start)
	if err != nil {
		return nil, mapProviderError(err)
	}

	raw := resp.Text()
	if strings.TrimSpace(raw) == "" {
		return nil, &Error{Code: CodeEmptyResponse, Message: "empty response content"}
	}

	return &ChatResponse{
		Text:         raw,
		ProviderID:   resolved.ProviderID,
		Model:        resolved.Model,
		FinishReason: resp.FinishReason,
		Usage:        resp.Usage,
		Duration:     elapsed,
	}, nil
}

// Prompts lists the registered prompt definitions.
func (s *Service) Prompts() []*prompt.Prompt {
	if s == nil || s.Registry == nil {
		return nil
	}
	return s.Registry.List()
}
