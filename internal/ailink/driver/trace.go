package driver

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// TraceEntry is one model call in the NDJSON trace. Request bodies are never
// recorded because they carry inline image data.
type TraceEntry struct {
	Timestamp  time.Time       `json:"timestamp"`
	Driver     string          `json:"driver"`
	Endpoint   string          `json:"endpoint"`
	Model      string          `json:"model,omitempty"`
	PromptSlug string          `json:"prompt,omitempty"`
	HasImages  bool            `json:"has_images,omitempty"`
	StatusCode int             `json:"status_code,omitempty"`
	Response   json.RawMessage `json:"response,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"duration_ms"`
}

// WithResponse sets Response from a raw body, quoting it when it is not JSON.
func (e TraceEntry) WithResponse(body []byte) TraceEntry {
	if len(body) == 0 {
		return e
	}
	if json.Valid(body) {
		e.Response = body
		return e
	}
	if quoted, err := json.Marshal(string(body)); err == nil {
		e.Response = quoted
	}
	return e
}

// Tracer writes trace entries as NDJSON.
type Tracer struct {
	mu  sync.Mutex
	out io.WriteCloser
	enc *json.Encoder
}

// NewTracer returns a tracer writing to out.
func NewTracer(out io.WriteCloser) *Tracer {
	return &Tracer{out: out, enc: json.NewEncoder(out)}
}

var globalTracer atomic.Pointer[Tracer]

// EnableTracing appends traces to path until the returned cleanup runs.
// A previously enabled trace file is closed.
func EnableTracing(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) // #nosec G304 -- path is an explicit CLI flag
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}

	t := NewTracer(f)
	if prev := globalTracer.Swap(t); prev != nil {
		_ = prev.Close()
	}
	return func() {
		if globalTracer.CompareAndSwap(t, nil) {
			_ = t.Close()
		}
	}, nil
}

// DisableTracing stops tracing and closes the trace file.
func DisableTracing() {
	if t := globalTracer.Swap(nil); t != nil {
		_ = t.Close()
	}
}

// IsTracingEnabled reports whether a trace file is open.
func IsTracingEnabled() bool {
	return globalTracer.Load() != nil
}

// Trace records entry if tracing is enabled.
func Trace(entry TraceEntry) {
	globalTracer.Load().Write(entry)
}

// Write records a trace entry.
func (t *Tracer) Write(entry TraceEntry) {
	if t == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enc != nil {
		_ = t.enc.Encode(entry)
	}
}

// Close closes the underlying writer. Later writes are dropped.
func (t *Tracer) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.out == nil {
		return nil
	}
	err := t.out.Close()
	t.out, t.enc = nil, nil
	return err
}
