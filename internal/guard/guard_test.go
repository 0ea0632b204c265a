package guard_test

import (
	"context"
	"errors"
	"testing"

	"garment-lab/internal/gateway"
	"garment-lab/internal/gateway/gatewaytest"
	"garment-lab/internal/guard"
	"garment-lab/internal/prompts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCleanPromptPassesThrough(t *testing.T) {
	text := gatewaytest.New()
	g := guard.New(guard.DefaultPolicy(), text)

	prompt := "a long camel wool coat with a notched lapel"
	v, err := g.Check(context.Background(), prompt)
	require.NoError(t, err)

	assert.Equal(t, guard.OutcomeClean, v.Outcome)
	assert.Equal(t, prompt, v.Prompt)
	assert.Empty(t, v.Matches)
	assert.Nil(t, v.Err)
	assert.Empty(t, text.Calls())
}

func TestCheckRewritesOnce(t *testing.T) {
	text := gatewaytest.New().On(gateway.KindText, gatewaytest.Text("  a long camel wool coat  \n"))
	g := guard.New(guard.DefaultPolicy(), text)

	prompt := "a long camel wool coat worn with a leather bag"
	v, err := g.Check(context.Background(), prompt)
	require.NoError(t, err)

	assert.Equal(t, guard.OutcomeRewritten, v.Outcome)
	assert.Equal(t, "a long camel wool coat", v.Prompt)
	assert.Equal(t, []string{"bag"}, guard.Terms(v.Matches))

	calls := text.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, gateway.KindText, calls[0].Kind)
	assert.Equal(t, prompts.StepRewrite, calls[0].Stage)
	assert.Equal(t, prompts.Rewrite(prompt).Text, calls[0].Prompt)
}

func TestCheckRejectsWhenTermsPersist(t *testing.T) {
	text := gatewaytest.New().On(gateway.KindText, gatewaytest.Text("a coat with a delicate necklace"))
	g := guard.New(guard.DefaultPolicy(), text)

	v, err := g.Check(context.Background(), "a coat with a necklace")
	require.ErrorIs(t, err, guard.ErrPolicyViolation)
	assert.ErrorContains(t, err, "necklace")

	assert.Equal(t, guard.OutcomeRejected, v.Outcome)
	assert.Empty(t, v.Prompt)
	require.NotNil(t, v.Err)
	assert.Equal(t, gateway.CodeValidationFailed, v.Err.Code)
	assert.Equal(t, []string{"necklace"}, guard.Terms(v.Matches))

	// single retry, never a second rewrite
	assert.Len(t, text.Calls(), 1)
}

func TestCheckRewriteFailure(t *testing.T) {
	text := gatewaytest.New().On(gateway.KindText, gatewaytest.Fail("503", "provider overloaded"))
	g := guard.New(guard.DefaultPolicy(), text)

	v, err := g.Check(context.Background(), "a coat and sunglasses")
	require.ErrorIs(t, err, guard.ErrRewriteFailed)
	assert.False(t, errors.Is(err, guard.ErrPolicyViolation))

	assert.Equal(t, guard.OutcomeRejected, v.Outcome)
	require.NotNil(t, v.Err)
	assert.Equal(t, gateway.CodeRewriteFailed, v.Err.Code)
	assert.Len(t, text.Calls(), 1)
}

func TestRenderRejectedPromptNeverReachesImageGateway(t *testing.T) {
	text := gatewaytest.New().On(gateway.KindText, gatewaytest.Text("coat with necklace"))
	images := gatewaytest.New().On(gateway.KindImage, gatewaytest.Image([]byte{1}, "image/png"))
	r := guard.NewRenderer(guard.New(guard.DefaultPolicy(), text), images)

	rendering, err := r.Render(context.Background(), "coat with necklace")
	require.ErrorIs(t, err, guard.ErrPolicyViolation)
	assert.Equal(t, guard.OutcomeRejected, rendering.Validation.Outcome)
	assert.Empty(t, images.Calls())
}

func TestRenderSendsValidatedPrompt(t *testing.T) {
	text := gatewaytest.New().On(gateway.KindText, gatewaytest.Text("a cropped boxy jacket"))
	images := gatewaytest.New().On(gateway.KindImage, gatewaytest.Image([]byte{0x89, 0x50}, "image/png"))
	r := guard.NewRenderer(guard.New(guard.DefaultPolicy(), text), images)

	rendering, err := r.Render(context.Background(), "a cropped boxy jacket over leggings")
	require.NoError(t, err)

	assert.Equal(t, guard.OutcomeRewritten, rendering.Validation.Outcome)
	assert.True(t, rendering.Result.OK())
	assert.Equal(t, "data:image/png;base64,iVA=", rendering.Result.Image.DataURI())

	calls := images.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, gateway.KindImage, calls[0].Kind)
	assert.Equal(t, prompts.StepExecutor, calls[0].Stage)
	assert.Equal(t, "a cropped boxy jacket", calls[0].Prompt)
}

func TestRenderCleanPromptIsUnmodified(t *testing.T) {
	text := gatewaytest.New()
	images := gatewaytest.New().On(gateway.KindImage, gatewaytest.Image([]byte{1}, "image/webp"))
	r := guard.NewRenderer(guard.New(guard.DefaultPolicy(), text), images)

	prompt := prompts.Executor("- Garment Type: trench coat").Text
	_, err := r.Render(context.Background(), prompt)
	require.NoError(t, err)

	assert.Empty(t, text.Calls())
	require.Len(t, images.Calls(), 1)
	assert.Equal(t, prompt, images.Calls()[0].Prompt)
}

func TestRenderImageFailure(t *testing.T) {
	images := gatewaytest.New().On(gateway.KindImage, gatewaytest.Fail(gateway.CodeMalformedResponse, "no image data"))
	r := guard.NewRenderer(guard.New(guard.DefaultPolicy(), gatewaytest.New()), images)

	rendering, err := r.Render(context.Background(), "a trench coat")
	require.Error(t, err)

	var gwErr *gateway.Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, gateway.CodeMalformedResponse, gwErr.Code)
	assert.Equal(t, guard.OutcomeClean, rendering.Validation.Outcome)
	assert.False(t, rendering.Result.OK())
}

func failedWithoutError(context.Context, gateway.Call) gateway.Result {
	return gateway.Result{Status: gateway.StatusFailure}
}

func TestFailureWithoutErrorIsUnknown(t *testing.T) {
	text := gatewaytest.New().On(gateway.KindText, failedWithoutError)
	images := gatewaytest.New().On(gateway.KindImage, failedWithoutError)
	r := guard.NewRenderer(guard.New(guard.DefaultPolicy(), text), images)

	v, err := r.Render(context.Background(), "a coat with a bag")
	require.ErrorIs(t, err, guard.ErrRewriteFailed)
	assert.Equal(t, guard.OutcomeRejected, v.Validation.Outcome)

	_, err = r.Render(context.Background(), "a trench coat")
	var gwErr *gateway.Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, gateway.CodeUnknown, gwErr.Code)
}
