package openai

import (
	"errors"
	"fmt"
	"strings"

	"github.com/postly/postly/internal/ailink/content"
	"github.com/postly/postly/internal/ailink/driver"
	"github.com/postly/postly/internal/ailink/encode"
)

// Chat completions request body.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []wireMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
}

// wireMessage content is a plain string for a lone text block and a part
// list otherwise.
type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type wirePart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type imageRef struct {
	URL string `json:"url"`
}

// Chat completions response body.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *driver.Usage `json:"usage,omitempty"`
}

func encodeRequest(req *driver.Request) (*chatRequest, error) {
	if req == nil {
		return nil, errors.New("request is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, errors.New("model is required")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages are required")
	}

	body := &chatRequest{
		Model:       req.Model,
		Messages:    make([]wireMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if rf := req.ResponseFormat; rf != nil && strings.TrimSpace(rf.Type) != "" {
		body.ResponseFormat = &responseFormat{Type: rf.Type}
	}
	for _, msg := range req.Messages {
		parts, err := encodeContent(msg.Content)
		if err != nil {
			return nil, err
		}
		body.Messages = append(body.Messages, wireMessage{Role: msg.Role, Content: parts})
	}
	return body, nil
}

func encodeContent(blocks []content.ContentBlock) (any, error) {
	switch {
	case len(blocks) == 0:
		return "", nil
	case len(blocks) == 1 && blocks[0].Type == content.ContentTypeText:
		return blocks[0].Text, nil
	}

	parts := make([]wirePart, 0, len(blocks))
	for _, block := range blocks {
		switch {
		case block.Type == content.ContentTypeText:
			parts = append(parts, wirePart{Type: "text", Text: block.Text})
		case block.Type.IsImage():
			url := block.DataURL
			if url == "" && len(block.Data) == 0 {
				return nil, fmt.Errorf("image block has no data")
			}
			if url == "" {
				url = encode.DataURL(string(block.Type), block.Data)
			}
			parts = append(parts, wirePart{Type: "image_url", ImageURL: &imageRef{URL: url}})
		default:
			return nil, fmt.Errorf("unsupported content type: %s", block.Type)
		}
	}
	return parts, nil
}

// decodeResponse takes the first choice. A refusal stands in for empty
// content so the caller sees what the model said instead of nothing.
func decodeResponse(resp *chatResponse) (*driver.Response, error) {
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty response choices")
	}
	first := resp.Choices[0]
	text := first.Message.Content
	if text == "" {
		text = first.Message.Refusal
	}
	return &driver.Response{
		Content:      []content.ContentBlock{{Type: content.ContentTypeText, Text: text}},
		FinishReason: first.FinishReason,
		Usage:        resp.Usage,
	}, nil
}
