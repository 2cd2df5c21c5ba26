package generate

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/postly/postly/internal/ailink"
)

type scriptedReply struct {
	text string
	err  error
}

// scriptedModel replies in order and records every request it receives.
type scriptedModel struct {
	mu       sync.Mutex
	replies  []scriptedReply
	requests []ailink.ChatRequest
}

func newScriptedModel(replies ...scriptedReply) *scriptedModel {
	return &scriptedModel{replies: replies}
}

func reply(text string) scriptedReply { return scriptedReply{text: text} }

func failure(msg string) scriptedReply { return scriptedReply{err: errors.New(msg)} }

func (m *scriptedModel) Chat(_ context.Context, req ailink.ChatRequest) (*ailink.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.replies) == 0 {
		return &ailink.ChatResponse{Text: `{"post":"ok"}`, Model: "mock"}, nil
	}
	next := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	if next.err != nil {
		return nil, next.err
	}
	return &ailink.ChatResponse{Text: next.text, Model: "mock"}, nil
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *scriptedModel) slugs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.requests))
	for _, req := range m.requests {
		out = append(out, req.PromptSlug)
	}
	return out
}

func newTestUpload(t *testing.T, data []byte) *Upload {
	t.Helper()
	upload, err := NewUpload(t.TempDir(), strings.NewReader(string(data)), 0, "image/jpeg")
	require.NoError(t, err)
	return upload
}

func requireReleased(t *testing.T, upload *Upload) {
	t.Helper()
	require.True(t, upload.Released())
	_, err := os.Stat(upload.Path())
	require.True(t, os.IsNotExist(err), "scratch file must be removed")
	_, err = upload.Read()
	require.ErrorIs(t, err, ErrUploadReleased)
}
