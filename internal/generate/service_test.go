package generate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postly/postly/internal/ailink"
	"github.com/postly/postly/internal/quota"
	"github.com/postly/postly/internal/sanitize"
)

var jpegBytes = []byte{0xff, 0xd8, 0xff, 0xe0, 'n', 'o', 't', 'r', 'e', 'a', 'l'}

func TestAnalyzeReturnsRefinedPost(t *testing.T) {
	model := newScriptedModel(
		reply("```json\n{\"post\":\"draft copy\"}\n```"),
		reply(`{"post":"refined copy","hashtags":["#sun"]}`),
	)
	svc := &Service{Model: model}
	upload := newTestUpload(t, jpegBytes)

	post, err := svc.Analyze(context.Background(), upload, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "refined copy", post.Text)
	assert.Contains(t, post.Extra, "hashtags")

	require.Equal(t, []string{promptDraft, promptRefine}, model.slugs())
	draftReq := model.requests[0]
	require.NotNil(t, draftReq.Image)
	assert.Equal(t, jpegBytes, draftReq.Image.Data, "undecodable bytes pass through")
	assert.Equal(t, "image/jpeg", draftReq.Image.MediaType)
	refineReq := model.requests[1]
	assert.Nil(t, refineReq.Image)
	assert.Equal(t, "draft copy", refineReq.Variables["draft"])

	requireReleased(t, upload)
}

func TestAnalyzeDraftFailureSkipsRefine(t *testing.T) {
	model := newScriptedModel(failure("status 500"))
	svc := &Service{Model: model}
	upload := newTestUpload(t, jpegBytes)

	_, err := svc.Analyze(context.Background(), upload, "1.2.3.4")
	require.Error(t, err)
	assert.Equal(t, 1, model.calls(), "refine must never be invoked")

	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindUpstreamFailure, gerr.Kind)
	assert.Equal(t, stageDraft, gerr.Stage)
	requireReleased(t, upload)
}

func TestAnalyzeInvalidDraftJSON(t *testing.T) {
	model := newScriptedModel(reply("Here is a lovely post about coffee!"))
	svc := &Service{Model: model}
	upload := newTestUpload(t, jpegBytes)

	_, err := svc.Analyze(context.Background(), upload, "1.2.3.4")
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindMalformedOutput, gerr.Kind)
	assert.Equal(t, stageDraft, gerr.Stage)
	assert.Contains(t, err.Error(), "invalid draft JSON")

	var perr *sanitize.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, sanitize.KindMalformedJSON, perr.Kind)
	assert.Equal(t, 1, model.calls())
	requireReleased(t, upload)
}

func TestAnalyzeDraftWithoutPostFails(t *testing.T) {
	for name, raw := range map[string]string{
		"missing": `{"caption":"x"}`,
		"empty":   `{"post":"   "}`,
	} {
		t.Run(name, func(t *testing.T) {
			model := newScriptedModel(reply(raw))
			svc := &Service{Model: model}

			_, err := svc.Analyze(context.Background(), newTestUpload(t, jpegBytes), "1.2.3.4")
			assert.Equal(t, KindMalformedOutput, KindOf(err))
			assert.Equal(t, 1, model.calls())
		})
	}
}

func TestAnalyzeRefineFailureDoesNotFallBackToDraft(t *testing.T) {
	cases := map[string]struct {
		second scriptedReply
		kind   Kind
	}{
		"upstream": {failure("timeout"), KindUpstreamFailure},
		"invalid":  {reply(`{"text":"no post"}`), KindMalformedOutput},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			model := newScriptedModel(reply(`{"post":"draft"}`), tc.second)
			svc := &Service{Model: model}
			upload := newTestUpload(t, jpegBytes)

			post, err := svc.Analyze(context.Background(), upload, "1.2.3.4")
			require.Nil(t, post)
			var gerr *Error
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, tc.kind, gerr.Kind)
			assert.Equal(t, stageRefine, gerr.Stage)
			assert.Equal(t, 2, model.calls())
			requireReleased(t, upload)
		})
	}
}

func TestAnalyzeWithoutUpload(t *testing.T) {
	model := newScriptedModel()
	tracker := quota.NewTracker(nil, 3, 10)
	svc := &Service{Model: model, Quota: tracker}

	_, err := svc.Analyze(context.Background(), nil, "1.2.3.4")
	require.ErrorIs(t, err, ErrNoInput)
	assert.Equal(t, KindNoInput, KindOf(err))
	assert.Equal(t, 0, model.calls())

	usage, err := tracker.Snapshot(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, 0, usage.Classes[quota.ClassAnalyze].Used, "no input must not spend quota")
}

func TestAnalyzeUnreadableUploadSpendsNoQuota(t *testing.T) {
	model := newScriptedModel()
	tracker := quota.NewTracker(nil, 3, 10)
	svc := &Service{Model: model, Quota: tracker}

	upload := newTestUpload(t, jpegBytes)
	require.NoError(t, upload.Release())

	_, err := svc.Analyze(context.Background(), upload, "1.2.3.4")
	require.ErrorIs(t, err, ErrUploadReleased)
	assert.Equal(t, KindNoInput, KindOf(err))
	assert.Equal(t, 0, model.calls())

	usage, err := tracker.Snapshot(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, 0, usage.Classes[quota.ClassAnalyze].Used)
}

func TestAnalyzeQuotaScenario(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	tracker := quota.NewTracker(nil, 3, 10)
	tracker.Clock = func() time.Time { return now }
	tracker.Location = time.UTC

	model := newScriptedModel()
	svc := &Service{Model: model, Quota: tracker}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		post, err := svc.Analyze(ctx, newTestUpload(t, jpegBytes), "1.2.3.4")
		require.NoError(t, err, "submission %d", i+1)
		assert.Equal(t, "ok", post.Text)
	}

	upload := newTestUpload(t, jpegBytes)
	_, err := svc.Analyze(ctx, upload, "1.2.3.4")
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindQuotaExceeded, gerr.Kind)
	var exceeded *quota.ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 3, exceeded.Limit)
	assert.Equal(t, quota.ClassAnalyze, exceeded.Class)
	assert.Equal(t, 6, model.calls(), "rejected submission must not reach the model")
	requireReleased(t, upload)

	now = now.Add(24 * time.Hour)
	post, err := svc.Analyze(ctx, newTestUpload(t, jpegBytes), "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "ok", post.Text)
}

func TestImproveLuxuryScenario(t *testing.T) {
	model := newScriptedModel(reply("```json\n{\"post\":\"Hello, World.\"}\n```"))
	svc := &Service{Model: model, Quota: quota.NewTracker(nil, 3, 10)}

	post, err := svc.Improve(context.Background(), "hello world", ToneLuxury, "5.6.7.8")
	require.NoError(t, err)
	assert.Equal(t, "Hello, World.", post.Text)

	require.Equal(t, 1, model.calls())
	req := model.requests[0]
	assert.Equal(t, promptImprove, req.PromptSlug)
	assert.Equal(t, "hello world", req.Variables["post"])
	assert.Equal(t, "more polished and premium", req.Variables["instruction"])
	assert.Nil(t, req.Image)
}

func TestImproveUnknownToneSendsNoInstruction(t *testing.T) {
	model := newScriptedModel(reply(`{"post":"hello world"}`))
	svc := &Service{Model: model}

	post, err := svc.Improve(context.Background(), "hello world", ParseTone("pirate"), "5.6.7.8")
	require.NoError(t, err)
	assert.Equal(t, "hello world", post.Text)
	_, hasInstruction := model.requests[0].Variables["instruction"]
	assert.False(t, hasInstruction)
}

func TestImproveQuotaExhaustedNeverCallsModel(t *testing.T) {
	model := newScriptedModel()
	svc := &Service{Model: model, Quota: quota.NewTracker(nil, 3, 1)}
	ctx := context.Background()

	_, err := svc.Improve(ctx, "first", ToneCasual, "5.6.7.8")
	require.NoError(t, err)

	_, err = svc.Improve(ctx, "second", ToneCasual, "5.6.7.8")
	assert.Equal(t, KindQuotaExceeded, KindOf(err))
	assert.Equal(t, 1, model.calls())

	// The analyze class is untouched.
	_, err = svc.Analyze(ctx, newTestUpload(t, jpegBytes), "5.6.7.8")
	require.NoError(t, err)
}

func TestImproveErrors(t *testing.T) {
	svc := &Service{Model: newScriptedModel(failure("boom"))}

	_, err := svc.Improve(context.Background(), "  ", ToneCasual, "1.1.1.1")
	require.ErrorIs(t, err, ErrNoInput)

	_, err = svc.Improve(context.Background(), "text", ToneCasual, "1.1.1.1")
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindUpstreamFailure, gerr.Kind)
	assert.Equal(t, stageImprove, gerr.Stage)

	svc = &Service{Model: newScriptedModel(reply(`["post"]`))}
	_, err = svc.Improve(context.Background(), "text", ToneCasual, "1.1.1.1")
	assert.Equal(t, KindMalformedOutput, KindOf(err))

	svc = &Service{}
	_, err = svc.Improve(context.Background(), "text", ToneCasual, "1.1.1.1")
	assert.Equal(t, KindUpstreamFailure, KindOf(err))
}

func TestAnalyzeVariants(t *testing.T) {
	model := newScriptedModel(reply(`{"description":"A beach at sunset","posts":[{"type":"short","text":"Golden hour 🌅"},{"type":"story","text":"We stayed until the sky went pink."}]}`))
	tracker := quota.NewTracker(nil, 1, 10)
	svc := &Service{Model: model, Quota: tracker}
	upload := newTestUpload(t, jpegBytes)

	result, err := svc.AnalyzeVariants(context.Background(), upload, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "A beach at sunset", result.Description)
	require.Len(t, result.Posts, 2)
	assert.Equal(t, []string{promptVariants}, model.slugs())
	requireReleased(t, upload)

	_, err = svc.AnalyzeVariants(context.Background(), newTestUpload(t, jpegBytes), "1.2.3.4")
	assert.Equal(t, KindQuotaExceeded, KindOf(err), "variants spend the analyze class")
}

func TestAnalyzeVariantsRejectsEmptyPosts(t *testing.T) {
	model := newScriptedModel(reply(`{"description":"d","posts":[]}`))
	svc := &Service{Model: model}

	_, err := svc.AnalyzeVariants(context.Background(), newTestUpload(t, jpegBytes), "1.2.3.4")
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindMalformedOutput, gerr.Kind)
	assert.Equal(t, stageVariants, gerr.Stage)
}

type panickingModel struct{}

func (panickingModel) Chat(context.Context, ailink.ChatRequest) (*ailink.ChatResponse, error) {
	panic("model exploded")
}

func TestAnalyzeReleasesUploadOnPanic(t *testing.T) {
	svc := &Service{Model: panickingModel{}}
	upload := newTestUpload(t, jpegBytes)

	require.Panics(t, func() {
		_, _ = svc.Analyze(context.Background(), upload, "1.2.3.4")
	})
	requireReleased(t, upload)
}

type errGate struct{ err error }

func (g errGate) Consume(context.Context, string, quota.Class) error { return g.err }

func TestQuotaStoreErrorsPassThrough(t *testing.T) {
	svc := &Service{Model: newScriptedModel(), Quota: errGate{err: errors.New("store down")}}
	_, err := svc.Improve(context.Background(), "text", ToneCasual, "1.1.1.1")
	require.ErrorContains(t, err, "store down")
	assert.Equal(t, Kind(""), KindOf(err))
}
