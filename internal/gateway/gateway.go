package gateway

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Invoker is the narrow capability the guard and the orchestrator depend on.
type Invoker interface {
	Invoke(ctx context.Context, call Call) Result
}

type Models struct {
	Text  string
	Image string
}

type invokeFunc func(ctx context.Context, req Request) Result

// Gateway is a stateless adapter in front of a Provider. Every call makes
// exactly one provider request and emits exactly one log record; it never
// retries.
type Gateway struct {
	provider Provider
	models   Models
	invoke   invokeFunc
}

type Option func(*options)

type options struct {
	logger *slog.Logger
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func New(provider Provider, models Models, opts ...Option) *Gateway {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	g := &Gateway{provider: provider, models: models}
	g.invoke = withRequestLog(o.logger, g.dispatch)
	return g
}

func (g *Gateway) Models() Models {
	return g.models
}

func (g *Gateway) Invoke(ctx context.Context, call Call) Result {
	req := Request{
		ID:          newRequestID(),
		Kind:        call.Kind,
		Stage:       call.Stage,
		Model:       g.modelFor(call.Kind),
		Prompt:      call.Prompt,
		SubmittedAt: time.Now(),
	}
	if req.Stage == "" {
		req.Stage = string(call.Kind)
	}
	if call.Kind == KindText {
		req.SystemInstruction = call.SystemInstruction
	}
	return g.invoke(ctx, req)
}

func (g *Gateway) modelFor(kind Kind) string {
	if kind == KindImage {
		return g.models.Image
	}
	return g.models.Text
}

func (g *Gateway) dispatch(ctx context.Context, req Request) Result {
	if strings.TrimSpace(req.Prompt) == "" {
		return failure(CodeInvalidRequest, "prompt must not be empty")
	}

	switch req.Kind {
	case KindText:
		text, err := g.provider.GenerateText(ctx, req.Model, req.Prompt, req.SystemInstruction)
		if err != nil {
			return failure(ErrorCode(err), "%s", err.Error())
		}
		if strings.TrimSpace(text) == "" {
			return failure(CodeEmptyResponse, "no text in response")
		}
		return Result{Status: StatusSuccess, Text: text}

	case KindImage:
		img, err := g.provider.GenerateImage(ctx, req.Model, req.Prompt)
		if err != nil {
			return failure(ErrorCode(err), "%s", err.Error())
		}
		if img == nil || len(img.Data) == 0 || img.MediaType == "" {
			return failure(CodeMalformedResponse, "no image data in response")
		}
		return Result{Status: StatusSuccess, Image: img}

	default:
		return failure(CodeInvalidRequest, "unsupported generation kind %q", req.Kind)
	}
}

func newRequestID() string {
	return "req_" + uuid.NewString()
}

// withRequestLog stamps correlation fields and latency onto the result and
// writes the per-request log record.
func withRequestLog(logger *slog.Logger, next invokeFunc) invokeFunc {
	return func(ctx context.Context, req Request) Result {
		res := next(ctx, req)
		res.RequestID = req.ID
		res.Kind = req.Kind
		res.Model = req.Model
		res.Elapsed = time.Since(req.SubmittedAt)

		attrs := []any{
			"request_id", req.ID,
			"step", req.Stage,
			"model", req.Model,
			"kind", string(req.Kind),
			"latency_ms", res.Elapsed.Milliseconds(),
			"status", string(res.Status),
		}
		level := slog.LevelInfo
		if res.Err != nil {
			attrs = append(attrs, "error_code", res.Err.Code)
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "generation request", attrs...)
		return res
	}
}
