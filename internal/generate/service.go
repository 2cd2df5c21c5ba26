// Package generate turns images and post text into social post copy through
// one or two model calls, gated by the daily quota.
package generate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/postly/postly/internal/ailink"
	"github.com/postly/postly/internal/metrics"
	"github.com/postly/postly/internal/quota"
	"github.com/postly/postly/internal/sanitize"
)

// Prompt slugs.
const (
	promptDraft    = "post-draft"
	promptRefine   = "post-refine"
	promptImprove  = "post-improve"
	promptVariants = "post-variants"
)

// PromptSlugs lists every prompt the service calls.
var PromptSlugs = []string{promptDraft, promptRefine, promptImprove, promptVariants}

// Stage names used in errors and metrics.
const (
	stageDraft    = "draft"
	stageRefine   = "refine"
	stageImprove  = "improve"
	stageVariants = "variants"
)

// Operation names used in metrics.
const (
	OperationAnalyze         = "analyze"
	OperationAnalyzeVariants = "analyze_variants"
	OperationImprove         = "improve"
)

// Completer is the model collaborator.
type Completer interface {
	Chat(ctx context.Context, req ailink.ChatRequest) (*ailink.ChatResponse, error)
}

// Gate consumes one unit of a client's daily quota.
type Gate interface {
	Consume(ctx context.Context, clientID string, class quota.Class) error
}

// Service runs the generation operations.
type Service struct {
	Model  Completer
	Quota  Gate
	Image  ImageOptions
	Logger *logging.Logger
}

// Analyze writes a post for the uploaded image: a draft call followed by a
// refine call. The upload is released before Analyze returns.
func (s *Service) Analyze(ctx context.Context, upload *Upload, clientID string) (post *sanitize.Post, err error) {
	defer upload.Release() // nolint:errcheck // removal failures are not request failures
	defer s.finish(OperationAnalyze, time.Now(), &err)

	img, err := s.admitImage(ctx, upload, clientID)
	if err != nil {
		return nil, err
	}

	run := &analysis{svc: s, image: img}
	post, err = run.run(ctx)
	s.debug("analysis pipeline finished",
		zap.String("client_id", clientID),
		zap.Stringer("stage", run.stage),
		zap.Int("steps", len(run.visited)))
	return post, err
}

// AnalyzeVariants describes the uploaded image and writes several styled
// posts in a single model call. It spends one analyze unit.
func (s *Service) AnalyzeVariants(ctx context.Context, upload *Upload, clientID string) (result *sanitize.Analysis, err error) {
	defer upload.Release() // nolint:errcheck // removal failures are not request failures
	defer s.finish(OperationAnalyzeVariants, time.Now(), &err)

	img, err := s.admitImage(ctx, upload, clientID)
	if err != nil {
		return nil, err
	}

	raw, err := s.complete(ctx, stageVariants, ailink.ChatRequest{PromptSlug: promptVariants, Image: &img})
	if err != nil {
		return nil, upstream(stageVariants, err)
	}
	result, err = sanitize.ParseAnalysis(raw)
	if err != nil {
		return nil, malformed(stageVariants, err)
	}
	return result, nil
}

// Improve rewrites postText in the requested tone with a single model call.
// An unrecognized tone asks the model to return the post unchanged.
func (s *Service) Improve(ctx context.Context, postText string, tone Tone, clientID string) (post *sanitize.Post, err error) {
	defer s.finish(OperationImprove, time.Now(), &err)

	if strings.TrimSpace(postText) == "" {
		return nil, noInput("post text is required")
	}
	if err := s.consume(ctx, clientID, quota.ClassImprove); err != nil {
		return nil, err
	}

	vars := map[string]string{"post": postText}
	if instruction := tone.Instruction(); instruction != "" {
		vars["instruction"] = instruction
	}

	raw, err := s.complete(ctx, stageImprove, ailink.ChatRequest{PromptSlug: promptImprove, Variables: vars})
	if err != nil {
		return nil, upstream(stageImprove, err)
	}
	post, err = sanitize.ParsePost(raw)
	if err != nil {
		return nil, malformed(stageImprove, err)
	}
	return post, nil
}

// admitImage loads the upload, spends an analyze unit, and prepares the
// image. Unreadable input is rejected before any quota is spent.
func (s *Service) admitImage(ctx context.Context, upload *Upload, clientID string) (ailink.Image, error) {
	if upload == nil {
		return ailink.Image{}, noInput("image is required")
	}
	data, err := upload.Read()
	if err != nil {
		return ailink.Image{}, &Error{Kind: KindNoInput, Reason: "image could not be read", Err: err}
	}
	if err := s.consume(ctx, clientID, quota.ClassAnalyze); err != nil {
		return ailink.Image{}, err
	}
	img := PrepareImage(data, s.Image)
	s.debug("image prepared",
		zap.Int("original_bytes", len(data)),
		zap.Int("prepared_bytes", len(img.Data)))
	return img, nil
}

func (s *Service) consume(ctx context.Context, clientID string, class quota.Class) error {
	if s.Quota == nil {
		return nil
	}
	err := s.Quota.Consume(ctx, clientID, class)
	if err == nil {
		return nil
	}
	var exceeded *quota.ExceededError
	if errors.As(err, &exceeded) {
		metrics.RecordQuotaRejection(string(class))
		s.info("quota exceeded",
			zap.String("client_id", clientID),
			zap.String("class", string(class)),
			zap.Int("limit", exceeded.Limit))
		return &Error{Kind: KindQuotaExceeded, Reason: exceeded.Error(), Err: exceeded}
	}
	return err
}

// complete performs one model call and returns its raw text.
func (s *Service) complete(ctx context.Context, stage string, req ailink.ChatRequest) (string, error) {
	if s.Model == nil {
		return "", errors.New("model not configured")
	}
	start := time.Now()
	resp, err := s.Model.Chat(ctx, req)
	elapsed := time.Since(start)
	metrics.RecordModelCall(stage, err == nil, elapsed)
	if err != nil {
		s.warn("model call failed",
			zap.String("stage", stage),
			zap.Duration("duration", elapsed),
			zap.Error(err))
		return "", err
	}
	if resp == nil {
		return "", errors.New("model returned no response")
	}
	s.debug("model call completed",
		zap.String("stage", stage),
		zap.String("model", resp.Model),
		zap.Duration("duration", elapsed))
	return resp.Text, nil
}

func (s *Service) finish(operation string, start time.Time, errp *error) {
	status := "success"
	if errp != nil && *errp != nil {
		status = string(KindOf(*errp))
		if status == "" {
			status = "error"
		}
	}
	metrics.RecordGeneration(operation, status)
	s.debug("generation finished",
		zap.String("operation", operation),
		zap.String("status", status),
		zap.Duration("duration", time.Since(start)))
}

func (s *Service) debug(msg string, fields ...zap.Field) {
	if s.Logger != nil {
		s.Logger.Debug(msg, fields...)
	}
}

func (s *Service) info(msg string, fields ...zap.Field) {
	if s.Logger != nil {
		s.Logger.Info(msg, fields...)
	}
}

func (s *Service) warn(msg string, fields ...zap.Field) {
	if s.Logger != nil {
		s.Logger.Warn(msg, fields...)
	}
}
