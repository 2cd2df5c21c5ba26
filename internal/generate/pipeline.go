package generate

import (
	"context"
	"errors"
	"strings"

	"github.com/postly/postly/internal/ailink"
	"github.com/postly/postly/internal/sanitize"
)

// Stage is a state of the draft/refine analysis pipeline.
type Stage int

const (
	StageStart Stage = iota
	StageDraftRequested
	StageDraftParsed
	StageRefineRequested
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageDraftRequested:
		return "draft_requested"
	case StageDraftParsed:
		return "draft_parsed"
	case StageRefineRequested:
		return "refine_requested"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is Done or Failed.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// Outcome is the result of the work done in a stage.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeCallFailed
	OutcomeInvalidOutput
)

// Transition returns the stage that follows from after outcome o.
// Any failure is absorbing: there is no fallback to the unrefined draft.
func Transition(from Stage, o Outcome) Stage {
	if from.Terminal() {
		return from
	}
	if o != OutcomeOK {
		return StageFailed
	}
	switch from {
	case StageStart:
		return StageDraftRequested
	case StageDraftRequested:
		return StageDraftParsed
	case StageDraftParsed:
		return StageRefineRequested
	case StageRefineRequested:
		return StageDone
	default:
		return StageFailed
	}
}

// analysis is one run of the draft/refine pipeline.
type analysis struct {
	svc   *Service
	image ailink.Image

	stage   Stage
	visited []Stage
	draft   *sanitize.Post
	result  *sanitize.Post
	err     *Error
}

func (a *analysis) run(ctx context.Context) (*sanitize.Post, error) {
	a.visited = append(a.visited, a.stage)
	for !a.stage.Terminal() {
		a.stage = Transition(a.stage, a.step(ctx))
		a.visited = append(a.visited, a.stage)
	}
	if a.stage == StageFailed {
		if a.err == nil {
			a.err = &Error{Kind: KindUpstreamFailure, Reason: "pipeline failed"}
		}
		return nil, a.err
	}
	return a.result, nil
}

// step performs the work of the current stage.
func (a *analysis) step(ctx context.Context) Outcome {
	switch a.stage {
	case StageStart:
		if len(a.image.Data) == 0 {
			a.err = noInput("image is empty")
			return OutcomeInvalidOutput
		}
		return OutcomeOK

	case StageDraftRequested:
		raw, err := a.svc.complete(ctx, stageDraft, ailink.ChatRequest{
			PromptSlug: promptDraft,
			Image:      &a.image,
		})
		if err != nil {
			a.err = upstream(stageDraft, err)
			return OutcomeCallFailed
		}
		post, err := sanitize.ParsePost(raw)
		if err != nil {
			a.err = malformed(stageDraft, err)
			return OutcomeInvalidOutput
		}
		a.draft = post
		return OutcomeOK

	case StageDraftParsed:
		if a.draft == nil || strings.TrimSpace(a.draft.Text) == "" {
			a.err = malformed(stageDraft, errors.New("draft post is empty"))
			return OutcomeInvalidOutput
		}
		return OutcomeOK

	case StageRefineRequested:
		raw, err := a.svc.complete(ctx, stageRefine, ailink.ChatRequest{
			PromptSlug: promptRefine,
			Variables:  map[string]string{"draft": a.draft.Text},
		})
		if err != nil {
			a.err = upstream(stageRefine, err)
			return OutcomeCallFailed
		}
		post, err := sanitize.ParsePost(raw)
		if err != nil {
			a.err = malformed(stageRefine, err)
			return OutcomeInvalidOutput
		}
		a.result = post
		return OutcomeOK

	default:
		return OutcomeOK
	}
}
