package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"garment-lab/internal/gateway"
	"garment-lab/internal/guard"
	"garment-lab/internal/pipeline"
	"garment-lab/internal/prompts"
	"garment-lab/pkg/api"

	"github.com/go-chi/chi/v5"
)

// GenerationService exposes the gateway, the guarded image renderer and the
// full pipeline over HTTP.
type GenerationService struct {
	invoker  gateway.Invoker
	guard    *guard.Guard
	renderer *guard.Renderer
	models   gateway.Models
}

func NewGenerationService(invoker gateway.Invoker, policy *guard.Policy, models gateway.Models) *GenerationService {
	g := guard.New(policy, invoker)
	return &GenerationService{
		invoker:  invoker,
		guard:    g,
		renderer: guard.NewRenderer(g, invoker),
		models:   models,
	}
}

func (s *GenerationService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(s.Health))
	r.Route("/api", func(r chi.Router) {
		r.Post("/text", RestHandler(s.GenerateText))
		r.Post("/image", RestHandler(s.GenerateImage))
		r.Get("/validate", RestHandler(s.ValidatePrompt))
		r.Post("/pipeline", RestStreamHandler(s.RunPipeline))
	})
}

func (s *GenerationService) Health(r *http.Request) (any, error) {
	return api.HealthResponse{
		Status:      "ok",
		TextModel:   s.models.Text,
		ImageModel:  s.models.Image,
		PolicyTerms: s.guard.Policy().Len(),
	}, nil
}

func (s *GenerationService) GenerateText(r *http.Request) (any, error) {
	req, err := ParseRequest[api.TextRequest](r)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Prompt) == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "prompt is required")
	}

	prompt := req.Prompt
	if req.Step == prompts.StepDescriber {
		prompt = prompts.WithDescriberPrefix(prompt)
	}

	res := s.invoker.Invoke(r.Context(), gateway.Call{
		Kind:              gateway.KindText,
		Stage:             req.Step,
		Prompt:            prompt,
		SystemInstruction: req.SystemInstruction,
	})
	if !res.OK() {
		cause := res.Failure()
		return nil, DetailedError(http.StatusInternalServerError, cause.Code, cause.Message, errors.New("Failed to generate text"))
	}

	return api.TextResponse{Text: res.Text}, nil
}

func (s *GenerationService) GenerateImage(r *http.Request) (any, error) {
	req, err := ParseRequest[api.ImageRequest](r)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Prompt) == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "prompt is required")
	}

	rendering, err := s.renderer.Render(r.Context(), req.Prompt)
	if err != nil {
		return nil, renderError(err)
	}

	if rendering.Result.Image == nil {
		return nil, DetailedError(http.StatusInternalServerError, gateway.CodeMalformedResponse,
			"response contained no image data", errors.New("Failed to generate image"))
	}

	return api.ImageResponse{
		ImageURL:   rendering.Result.Image.DataURI(),
		Validation: string(rendering.Validation.Outcome),
	}, nil
}

func renderError(err error) error {
	switch {
	case errors.Is(err, guard.ErrPolicyViolation):
		return DetailedError(http.StatusBadRequest, gateway.CodeValidationFailed, "", errors.New("Validation Failed: "+err.Error()))
	case errors.Is(err, guard.ErrRewriteFailed):
		return DetailedError(http.StatusInternalServerError, gateway.CodeRewriteFailed, err.Error(), errors.New("Validation rewrite failed."))
	default:
		details := err.Error()
		var gwErr *gateway.Error
		if errors.As(err, &gwErr) {
			details = gwErr.Message
		}
		return DetailedError(http.StatusInternalServerError, gateway.ErrorCode(err), details, errors.New("Failed to generate image"))
	}
}

func (s *GenerationService) ValidatePrompt(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ValidateRequest](r)
	if err != nil {
		return nil, err
	}

	matches := s.guard.Policy().Match(params.Prompt)
	terms := guard.Terms(matches)

	return api.ValidateResponse{
		Clean:   len(matches) == 0,
		Terms:   terms,
		Matches: convertMatches(matches),
	}, nil
}

// maxRunEvents bounds the transitions of one run: describing, interpreting,
// executing and a terminal state.
const maxRunEvents = 4

func (s *GenerationService) RunPipeline(r *http.Request) (StreamResponse, error) {
	req, err := ParseRequest[api.PipelineRequest](r)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Input) == "" {
		return nil, CodedError(http.StatusBadRequest, pipeline.ErrEmptyInput)
	}

	ctx := r.Context()

	return func(yield func(any, error) bool) {
		events := make(chan pipeline.Run, maxRunEvents)
		orchestrator := pipeline.New(s.invoker, s.renderer, pipeline.WithObserver(func(run pipeline.Run) {
			events <- run
		}))

		go func() {
			defer close(events)
			if _, err := orchestrator.Submit(ctx, req.Input); err != nil && !errors.Is(err, pipeline.ErrRunFailed) {
				slog.Error("pipeline run ended unexpectedly", "error", err)
			}
		}()

		for run := range events {
			if !yield(convertRun(run), nil) {
				drain(ctx, events)
				return
			}
		}
	}, nil
}

// drain discards the remaining events of a run whose client went away.
func drain(ctx context.Context, events <-chan pipeline.Run) {
	go func() {
		for range events {
		}
		slog.Info("pipeline stream closed before run finished", "error", ctx.Err())
	}()
}
