package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/postly/postly/internal/errors"
	"github.com/postly/postly/internal/generate"
	"github.com/postly/postly/internal/observability"
	"github.com/postly/postly/internal/quota"
	"github.com/postly/postly/internal/sanitize"
	servermw "github.com/postly/postly/internal/server/middleware"
)

// RootBanner is the plain-text liveness banner served at GET /.
const RootBanner = "Postly backend alive"

// imageField is the multipart field carrying the upload.
const imageField = "image"

// maxImproveBody bounds the JSON body accepted by POST /improve.
const maxImproveBody = 64 << 10

// Generator runs the generation operations.
type Generator interface {
	Analyze(ctx context.Context, upload *generate.Upload, clientID string) (*sanitize.Post, error)
	AnalyzeVariants(ctx context.Context, upload *generate.Upload, clientID string) (*sanitize.Analysis, error)
	Improve(ctx context.Context, postText string, tone generate.Tone, clientID string) (*sanitize.Post, error)
}

// UsageReporter reports a client's quota usage.
type UsageReporter interface {
	Snapshot(ctx context.Context, clientID string) (quota.Usage, error)
}

// PostHandlers serves the post generation API.
type PostHandlers struct {
	Generator      Generator
	Usage          UsageReporter
	UploadDir      string
	MaxUploadBytes int64
}

// ImproveRequest is the POST /improve body.
type ImproveRequest struct {
	Post string `json:"post"`
	Tone string `json:"tone"`
}

// RootHandler answers GET / with the liveness banner.
func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, RootBanner)
}

// Analyze handles POST /analyze. The image arrives in the multipart field
// "image"; `?mode=variants` returns a description with several posts instead
// of a single refined post.
func (h *PostHandlers) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID := servermw.ClientID(r)

	upload, err := h.receiveUpload(w, r)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}

	if strings.EqualFold(r.URL.Query().Get("mode"), "variants") {
		result, err := h.Generator.AnalyzeVariants(ctx, upload, clientID)
		if err != nil {
			apperrors.RespondWithError(w, r, apperrors.FromGenerationError(ctx, err))
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	post, err := h.Generator.Analyze(ctx, upload, clientID)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.FromGenerationError(ctx, err))
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// Improve handles POST /improve with a JSON body {post, tone}.
func (h *PostHandlers) Improve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ImproveRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxImproveBody))
	if err := decoder.Decode(&req); err != nil {
		if stderrors.Is(err, io.EOF) {
			apperrors.RespondWithError(w, r, apperrors.NewNoInputError("request body is required"))
			return
		}
		apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(ctx, err, "request body must be JSON {post, tone}"))
		return
	}

	post, err := h.Generator.Improve(ctx, req.Post, generate.ParseTone(req.Tone), servermw.ClientID(r))
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.FromGenerationError(ctx, err))
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// Quota handles GET /quota with the caller's usage for today.
func (h *PostHandlers) Quota(w http.ResponseWriter, r *http.Request) {
	usage, err := h.Usage.Snapshot(r.Context(), servermw.ClientID(r))
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapInternal(r.Context(), err, "quota lookup failed"))
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

// receiveUpload streams the image part into a scratch file. A request without
// the part yields a nil upload so the generator reports NoInput.
func (h *PostHandlers) receiveUpload(w http.ResponseWriter, r *http.Request) (*generate.Upload, error) {
	maxBytes := h.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = generate.DefaultMaxUploadBytes
	}
	// Allow for multipart framing around the image itself.
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)

	reader, err := r.MultipartReader()
	if err != nil {
		return nil, nil
	}

	for {
		part, err := reader.NextPart()
		if stderrors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, uploadError(r.Context(), err)
		}
		if part.FormName() != imageField {
			_ = part.Close()
			continue
		}
		return h.storePart(r, part, maxBytes)
	}
}

func (h *PostHandlers) storePart(r *http.Request, part *multipart.Part, maxBytes int64) (*generate.Upload, error) {
	defer part.Close() // nolint:errcheck // body is drained by the server

	upload, err := generate.NewUpload(h.UploadDir, part, maxBytes, part.Header.Get("Content-Type"))
	switch {
	case err == nil:
		if logger := observability.ServerLogger; logger != nil {
			logger.Debug("upload received",
				zap.String("filename", part.FileName()),
				zap.Int64("bytes", upload.Size()),
				zap.String("request_id", servermw.GetRequestID(r.Context())))
		}
		return upload, nil
	case stderrors.Is(err, generate.ErrNoInput):
		return nil, nil
	case tooLarge(err):
		return nil, uploadError(r.Context(), err)
	default:
		return nil, apperrors.WrapInternal(r.Context(), err, "image could not be stored")
	}
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return stderrors.Is(err, generate.ErrUploadTooLarge) ||
		stderrors.Is(err, multipart.ErrMessageTooLarge) ||
		stderrors.As(err, &maxErr)
}

func uploadError(ctx context.Context, err error) error {
	if tooLarge(err) {
		return apperrors.WrapInvalidInput(ctx, err, "image exceeds the upload size limit")
	}
	return apperrors.WrapInvalidInput(ctx, err, "malformed multipart upload")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
