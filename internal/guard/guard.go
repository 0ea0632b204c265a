package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"garment-lab/internal/gateway"
	"garment-lab/internal/prompts"
)

var (
	ErrPolicyViolation = errors.New("forbidden content persists after rewrite")
	ErrRewriteFailed   = errors.New("validation rewrite failed")
)

type Outcome string

const (
	OutcomeClean     Outcome = "clean"
	OutcomeRewritten Outcome = "rewritten"
	OutcomeRejected  Outcome = "rejected"
)

// Validation is the result of checking one execution prompt. Prompt is the
// text to send downstream and is empty when the outcome is rejected.
type Validation struct {
	Outcome Outcome
	Prompt  string
	Matches []Match
	Err     *gateway.Error
}

// Guard checks execution prompts against a Policy and performs at most one
// rewrite through the gateway before failing closed.
type Guard struct {
	policy *Policy
	text   gateway.Invoker
}

func New(policy *Policy, text gateway.Invoker) *Guard {
	return &Guard{policy: policy, text: text}
}

func (g *Guard) Policy() *Policy {
	return g.policy
}

func (g *Guard) Check(ctx context.Context, prompt string) (Validation, error) {
	matches := g.policy.Match(prompt)
	if len(matches) == 0 {
		return Validation{Outcome: OutcomeClean, Prompt: prompt}, nil
	}

	slog.Info("forbidden terms detected in image prompt, triggering rewrite", "terms", Terms(matches))

	rewrite := prompts.Rewrite(prompt)
	res := g.text.Invoke(ctx, gateway.Call{Kind: gateway.KindText, Stage: rewrite.Step, Prompt: rewrite.Text})
	if !res.OK() {
		cause := res.Failure()
		slog.Error("validation rewrite failed", "request_id", res.RequestID, "error", cause)
		return g.reject(matches, gateway.CodeRewriteFailed, fmt.Errorf("%w: %s", ErrRewriteFailed, cause.Message))
	}

	candidate := strings.TrimSpace(res.Text)
	if remaining := g.policy.Match(candidate); len(remaining) > 0 {
		return g.reject(remaining, gateway.CodeValidationFailed,
			fmt.Errorf("%w: %s", ErrPolicyViolation, strings.Join(Terms(remaining), ", ")))
	}

	slog.Info("image prompt rewritten", "request_id", res.RequestID, "removed_terms", Terms(matches))
	return Validation{Outcome: OutcomeRewritten, Prompt: candidate, Matches: matches}, nil
}

func (g *Guard) reject(matches []Match, code string, err error) (Validation, error) {
	slog.Warn("image prompt rejected", "step", prompts.StepRewrite, "error_code", code, "terms", Terms(matches))
	return Validation{
		Outcome: OutcomeRejected,
		Matches: matches,
		Err:     &gateway.Error{Code: code, Message: err.Error()},
	}, err
}

// Rendering is the outcome of the execution stage: the guard's decision and,
// unless the prompt was rejected, the image gateway result.
type Rendering struct {
	Validation Validation
	Result     gateway.Result
}

// Renderer runs the guard in front of the image gateway.
type Renderer struct {
	guard  *Guard
	images gateway.Invoker
}

func NewRenderer(guard *Guard, images gateway.Invoker) *Renderer {
	return &Renderer{guard: guard, images: images}
}

func (r *Renderer) Render(ctx context.Context, prompt string) (Rendering, error) {
	validation, err := r.guard.Check(ctx, prompt)
	if err != nil {
		return Rendering{Validation: validation}, err
	}

	res := r.images.Invoke(ctx, gateway.Call{Kind: gateway.KindImage, Stage: prompts.StepExecutor, Prompt: validation.Prompt})
	rendering := Rendering{Validation: validation, Result: res}
	if !res.OK() {
		return rendering, res.Failure()
	}
	return rendering, nil
}
