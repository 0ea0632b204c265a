// Package client talks to a running garment-lab server. It implements the
// same capabilities the pipeline consumes, so an Orchestrator can run against
// a remote server exactly as it runs in process.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"garment-lab/internal/gateway"
	"garment-lab/internal/guard"
	"garment-lab/pkg/api"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const defaultTimeout = 3 * time.Minute

type Client struct {
	client *resty.Client
}

func New(baseURL string) *Client {
	return &Client{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(defaultTimeout).
			SetHeader("Accept", "application/json"),
	}
}

func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var health api.HealthResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetResult(&health).
		Get("/health")
	if err != nil {
		return api.HealthResponse{}, fmt.Errorf("error reaching server: %w", err)
	}
	if !res.IsSuccess() {
		return api.HealthResponse{}, fmt.Errorf("server returned status %d: %s", res.StatusCode(), res.String())
	}
	return health, nil
}

// Invoke sends text calls to /api/text and image calls to /api/image. Image
// calls are guarded by the server.
func (c *Client) Invoke(ctx context.Context, call gateway.Call) gateway.Result {
	start := time.Now()
	var res gateway.Result
	switch call.Kind {
	case gateway.KindText:
		res = c.generateText(ctx, call)
	case gateway.KindImage:
		rendering, err := c.Render(ctx, call.Prompt)
		res = rendering.Result
		if err != nil {
			res = failure(gateway.ErrorCode(err), err.Error())
		}
	default:
		res = failure(gateway.CodeInvalidRequest, fmt.Sprintf("unsupported request kind %q", call.Kind))
	}
	res.RequestID = "req_" + uuid.New().String()
	res.Kind = call.Kind
	res.Elapsed = time.Since(start)
	return res
}

func (c *Client) generateText(ctx context.Context, call gateway.Call) gateway.Result {
	var out api.TextResponse
	var apiErr api.ErrorResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(api.TextRequest{Prompt: call.Prompt, SystemInstruction: call.SystemInstruction, Step: call.Stage}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/api/text")
	if err != nil {
		return failure(gateway.ErrorCode(err), err.Error())
	}
	if !res.IsSuccess() {
		return failure(errorCode(res, apiErr), errorMessage(apiErr))
	}
	if out.Text == "" {
		return failure(gateway.CodeEmptyResponse, "server returned no text")
	}
	return gateway.Result{Status: gateway.StatusSuccess, Text: out.Text}
}

// Render asks the server to guard and render prompt. Guard rejections are
// reported with the same sentinel errors guard.Renderer uses.
func (c *Client) Render(ctx context.Context, prompt string) (guard.Rendering, error) {
	var out api.ImageResponse
	var apiErr api.ErrorResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(api.ImageRequest{Prompt: prompt}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/api/image")
	if err != nil {
		result := failure(gateway.ErrorCode(err), err.Error())
		return guard.Rendering{Result: result}, result.Err
	}

	if !res.IsSuccess() {
		code := errorCode(res, apiErr)
		gwErr := &gateway.Error{Code: code, Message: errorMessage(apiErr)}
		switch code {
		case gateway.CodeValidationFailed:
			return rejected(gwErr), &remoteError{sentinel: guard.ErrPolicyViolation, code: code, message: strings.TrimPrefix(apiErr.Error, "Validation Failed: ")}
		case gateway.CodeRewriteFailed:
			return rejected(gwErr), &remoteError{sentinel: guard.ErrRewriteFailed, code: code, message: errorMessage(apiErr)}
		}
		return guard.Rendering{Result: gateway.Result{Status: gateway.StatusFailure, Err: gwErr}}, gwErr
	}

	image, err := gateway.ParseDataURI(out.ImageURL)
	if err != nil {
		result := failure(gateway.CodeMalformedResponse, fmt.Sprintf("invalid image url: %v", err))
		return guard.Rendering{Result: result}, result.Err
	}

	outcome := guard.Outcome(out.Validation)
	if outcome == "" {
		outcome = guard.OutcomeClean
	}
	return guard.Rendering{
		Validation: guard.Validation{Outcome: outcome, Prompt: prompt},
		Result:     gateway.Result{Status: gateway.StatusSuccess, Kind: gateway.KindImage, Image: &image},
	}, nil
}

// RunPipeline runs the whole pipeline on the server and calls onEvent for
// every streamed state. It returns the last state received.
func (c *Client) RunPipeline(ctx context.Context, input string, onEvent func(api.PipelineRun)) (api.PipelineRun, error) {
	var apiErr api.ErrorResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(api.PipelineRequest{Input: input}).
		SetError(&apiErr).
		SetDoNotParseResponse(true).
		Post("/api/pipeline")
	if err != nil {
		return api.PipelineRun{}, fmt.Errorf("error reaching server: %w", err)
	}
	body := res.RawBody()
	defer body.Close()

	if !res.IsSuccess() {
		if err := json.NewDecoder(body).Decode(&apiErr); err != nil {
			return api.PipelineRun{}, fmt.Errorf("server returned status %d", res.StatusCode())
		}
		return api.PipelineRun{}, fmt.Errorf("server returned status %d: %s", res.StatusCode(), apiErr.Error)
	}

	var last api.PipelineRun
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		var msg api.PipelineMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			return last, fmt.Errorf("error parsing pipeline stream: %w", err)
		}
		if msg.Error != "" {
			return last, fmt.Errorf("pipeline stream error (%d): %s", msg.Code, msg.Error)
		}
		if msg.Data == nil {
			continue
		}
		last = *msg.Data
		if onEvent != nil {
			onEvent(last)
		}
	}
	if err := scanner.Err(); err != nil {
		return last, fmt.Errorf("error reading pipeline stream: %w", err)
	}
	if last.Id == "" {
		return last, errors.New("pipeline stream ended without any state")
	}
	return last, nil
}

// remoteError carries the server's message and matches a guard sentinel.
type remoteError struct {
	sentinel error
	code     string
	message  string
}

func (e *remoteError) Error() string {
	return e.message
}

func (e *remoteError) ErrorCode() string {
	return e.code
}

func (e *remoteError) Unwrap() error {
	return e.sentinel
}

func rejected(err *gateway.Error) guard.Rendering {
	return guard.Rendering{Validation: guard.Validation{Outcome: guard.OutcomeRejected, Err: err}}
}

func failure(code, message string) gateway.Result {
	return gateway.Result{Status: gateway.StatusFailure, Err: &gateway.Error{Code: code, Message: message}}
}

func errorCode(res *resty.Response, body api.ErrorResponse) string {
	if body.Code != "" {
		return body.Code
	}
	if res.StatusCode() == http.StatusBadRequest {
		return gateway.CodeInvalidRequest
	}
	slog.Warn("server error without failure code", "status_code", res.StatusCode())
	return strconv.Itoa(res.StatusCode())
}

func errorMessage(body api.ErrorResponse) string {
	if body.Details != "" {
		return body.Details
	}
	return body.Error
}
