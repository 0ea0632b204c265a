package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"garment-lab/internal/gateway"
	"garment-lab/internal/guard"
	"garment-lab/internal/prompts"

	"github.com/google/uuid"
)

var (
	ErrEmptyInput = errors.New("input must not be empty")
	// ErrSuperseded is returned by Submit when the run was reset or replaced
	// by a newer one before it finished. Its remaining results are discarded.
	ErrSuperseded = errors.New("pipeline run superseded")
	ErrRunFailed  = errors.New("pipeline run failed")
)

// Renderer performs the execution stage: guard check then image generation.
type Renderer interface {
	Render(ctx context.Context, prompt string) (guard.Rendering, error)
}

type Option func(*Orchestrator)

func WithComposers(composers prompts.Composers) Option {
	return func(o *Orchestrator) {
		o.composers = composers
	}
}

// WithObserver registers a callback invoked after every state transition of
// the current run, in order.
func WithObserver(observer func(Run)) Option {
	return func(o *Orchestrator) {
		o.observer = observer
	}
}

// Orchestrator sequences describer, interpreter and executor for one logical
// run at a time. The gateway and composers it uses are stateless and may be
// shared between orchestrators.
type Orchestrator struct {
	text      gateway.Invoker
	render    Renderer
	composers prompts.Composers
	observer  func(Run)

	mu    sync.Mutex
	runID string
	state State

	// held while notifying the observer so events never interleave across runs
	notifyMu sync.Mutex
}

func New(text gateway.Invoker, render Renderer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		text:      text,
		render:    render,
		composers: prompts.Default(),
		state:     Idle{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Snapshot() Run {
	o.mu.Lock()
	defer o.mu.Unlock()
	return view(o.runID, o.state)
}

// Reset returns to idle. Results still in flight for the previous run are
// discarded when they arrive.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.runID = ""
	o.state = Idle{}
	o.mu.Unlock()
}

// Submit starts a new run, replacing any previous one, and drives it to a
// terminal state. The returned Run is the terminal snapshot; a failed run also
// returns an error wrapping ErrRunFailed.
func (o *Orchestrator) Submit(ctx context.Context, input string) (Run, error) {
	if strings.TrimSpace(input) == "" {
		return Run{}, ErrEmptyInput
	}

	runID := uuid.New().String()
	describing := start(input)
	if err := o.transition(runID, "", describing); err != nil {
		return Run{}, err
	}
	slog.Info("pipeline run started", "run_id", runID)

	description, reason := o.generateText(ctx, runID, o.composers.Describer(input), StageDescribing)
	if reason != nil {
		return o.finish(runID, describing.fail(*reason))
	}
	interpreting := describing.described(description)
	if err := o.transition(runID, runID, interpreting); err != nil {
		return Run{}, err
	}

	specification, reason := o.generateText(ctx, runID, o.composers.Interpreter(description), StageInterpreting)
	if reason != nil {
		return o.finish(runID, interpreting.fail(*reason))
	}
	executing := interpreting.interpreted(specification)
	if err := o.transition(runID, runID, executing); err != nil {
		return Run{}, err
	}

	rendering, err := o.render.Render(ctx, o.composers.Executor(specification).Text)
	if err != nil {
		return o.finish(runID, executing.fail(executionFailure(err)))
	}
	if rendering.Result.Image == nil {
		return o.finish(runID, executing.fail(Failure{
			Stage:   StageExecuting,
			Code:    gateway.CodeMalformedResponse,
			Message: "Image generation failed: no image data in response",
		}))
	}
	return o.finish(runID, executing.rendered(*rendering.Result.Image, rendering.Validation.Outcome))
}

func (o *Orchestrator) generateText(ctx context.Context, runID string, prompt prompts.Prompt, stage Stage) (string, *Failure) {
	res := o.text.Invoke(ctx, gateway.Call{
		Kind:              gateway.KindText,
		Stage:             prompt.Step,
		Prompt:            prompt.Text,
		SystemInstruction: prompt.SystemInstruction,
	})
	if !res.OK() {
		cause := res.Failure()
		slog.Warn("pipeline stage failed", "run_id", runID, "stage", stage, "request_id", res.RequestID, "error", cause)
		return "", &Failure{Stage: stage, Code: cause.Code, Message: fmt.Sprintf("%s stage failed: %s", stageLabel(stage), cause.Message)}
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", &Failure{Stage: stage, Code: gateway.CodeEmptyResponse, Message: fmt.Sprintf("%s stage failed: empty response", stageLabel(stage))}
	}
	return text, nil
}

func executionFailure(err error) Failure {
	failure := Failure{Stage: StageExecuting}
	switch {
	case errors.Is(err, guard.ErrPolicyViolation):
		failure.Code = gateway.CodeValidationFailed
		failure.Message = "Validation Failed: " + err.Error()
	case errors.Is(err, guard.ErrRewriteFailed):
		failure.Code = gateway.CodeRewriteFailed
		failure.Message = "Validation rewrite failed."
	default:
		failure.Code = gateway.ErrorCode(err)
		failure.Message = "Image generation failed: " + err.Error()
	}
	return failure
}

func stageLabel(stage Stage) string {
	switch stage {
	case StageDescribing:
		return "Describer"
	case StageInterpreting:
		return "Interpreter"
	default:
		return "Executor"
	}
}

func (o *Orchestrator) finish(runID string, state State) (Run, error) {
	if err := o.transition(runID, runID, state); err != nil {
		return Run{}, err
	}
	run := view(runID, state)
	if failed, ok := state.(Failed); ok {
		slog.Warn("pipeline run failed", "run_id", runID, "stage", failed.At, "error_code", failed.Reason.Code)
		return run, fmt.Errorf("%w: %s", ErrRunFailed, failed.Reason.Message)
	}
	slog.Info("pipeline run complete", "run_id", runID, "validation", run.Validation)
	return run, nil
}

// transition applies next if the current run is still expected. A fresh run
// passes expected == "" and always replaces whatever was there.
func (o *Orchestrator) transition(runID, expected string, next State) error {
	o.mu.Lock()
	if expected != "" && o.runID != expected {
		o.mu.Unlock()
		slog.Info("discarding result for superseded pipeline run", "run_id", runID, "stage", next.Stage())
		return ErrSuperseded
	}
	o.runID = runID
	o.state = next
	o.mu.Unlock()

	o.notify(runID, next)
	return nil
}

// notify delivers state to the observer unless a newer run or a Reset has
// replaced runID in the meantime.
func (o *Orchestrator) notify(runID string, state State) {
	if o.observer == nil {
		return
	}
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	o.mu.Lock()
	current := o.runID == runID
	o.mu.Unlock()
	if !current {
		return
	}
	o.observer(view(runID, state))
}
