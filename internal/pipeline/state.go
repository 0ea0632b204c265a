package pipeline

import (
	"garment-lab/internal/gateway"
	"garment-lab/internal/guard"
)

type Stage string

const (
	StageIdle         Stage = "idle"
	StageDescribing   Stage = "describing"
	StageInterpreting Stage = "interpreting"
	StageExecuting    Stage = "executing"
	StageComplete     Stage = "complete"
	StageFailed       Stage = "failed"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// State is the state of one run. Each case only carries the outputs that
// exist at that point, and only the preceding case can build the next one, so
// a run cannot reach executing without an interpreter specification.
type State interface {
	Stage() Stage
	isState()
}

type Idle struct{}

type Describing struct {
	Input string
}

type Interpreting struct {
	Input       string
	Description string
}

type Executing struct {
	Input         string
	Description   string
	Specification string
}

type Complete struct {
	Input         string
	Description   string
	Specification string
	Image         gateway.Image
	Validation    guard.Outcome
}

// Failed is absorbing. At is the stage that failed; outputs produced before
// the failure are kept for display.
type Failed struct {
	Input         string
	Description   string
	Specification string
	At            Stage
	Reason        Failure
}

// Failure is the stage-attributed cause of a failed run.
type Failure struct {
	Stage   Stage  `json:"stage"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PolicyViolation reports whether the run was stopped by the content guard
// rather than by a generation error.
func (f Failure) PolicyViolation() bool {
	return f.Code == gateway.CodeValidationFailed || f.Code == gateway.CodeRewriteFailed
}

func (Idle) Stage() Stage         { return StageIdle }
func (Describing) Stage() Stage   { return StageDescribing }
func (Interpreting) Stage() Stage { return StageInterpreting }
func (Executing) Stage() Stage    { return StageExecuting }
func (Complete) Stage() Stage     { return StageComplete }
func (Failed) Stage() Stage       { return StageFailed }

func (Idle) isState()         {}
func (Describing) isState()   {}
func (Interpreting) isState() {}
func (Executing) isState()    {}
func (Complete) isState()     {}
func (Failed) isState()       {}

func start(input string) Describing {
	return Describing{Input: input}
}

func (s Describing) described(description string) Interpreting {
	return Interpreting{Input: s.Input, Description: description}
}

func (s Describing) fail(reason Failure) Failed {
	return Failed{Input: s.Input, At: StageDescribing, Reason: reason}
}

func (s Interpreting) interpreted(specification string) Executing {
	return Executing{Input: s.Input, Description: s.Description, Specification: specification}
}

func (s Interpreting) fail(reason Failure) Failed {
	return Failed{Input: s.Input, Description: s.Description, At: StageInterpreting, Reason: reason}
}

func (s Executing) rendered(image gateway.Image, outcome guard.Outcome) Complete {
	return Complete{
		Input:         s.Input,
		Description:   s.Description,
		Specification: s.Specification,
		Image:         image,
		Validation:    outcome,
	}
}

func (s Executing) fail(reason Failure) Failed {
	return Failed{
		Input:         s.Input,
		Description:   s.Description,
		Specification: s.Specification,
		At:            StageExecuting,
		Reason:        reason,
	}
}

// Run is a flattened, read-only view of a run for callers.
type Run struct {
	ID            string
	Input         string
	Stage         Stage
	Status        Status
	Description   string
	Specification string
	ImageURL      string
	Validation    guard.Outcome
	Failure       *Failure
}

func view(id string, state State) Run {
	run := Run{ID: id, Stage: state.Stage(), Status: StatusPending}
	switch s := state.(type) {
	case Idle:
	case Describing:
		run.Input = s.Input
	case Interpreting:
		run.Input, run.Description = s.Input, s.Description
	case Executing:
		run.Input, run.Description, run.Specification = s.Input, s.Description, s.Specification
	case Complete:
		run.Input, run.Description, run.Specification = s.Input, s.Description, s.Specification
		run.ImageURL = s.Image.DataURI()
		run.Validation = s.Validation
		run.Status = StatusSucceeded
	case Failed:
		run.Input, run.Description, run.Specification = s.Input, s.Description, s.Specification
		reason := s.Reason
		run.Failure = &reason
		run.Status = StatusFailed
	}
	return run
}
