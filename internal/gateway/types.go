package gateway

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Normalized failure codes. Provider failures carry the provider's own code
// (an HTTP status or a status string) and fall back to CodeUnknown.
const (
	CodeUnknown           = "unknown"
	CodeEmptyResponse     = "EMPTY_RESPONSE"
	CodeMalformedResponse = "MALFORMED_RESPONSE"
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeCanceled          = "CANCELED"
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeRewriteFailed     = "REWRITE_FAILED"
)

// Call is what a caller asks the gateway to do. Stage is a label used for
// logging only.
type Call struct {
	Kind              Kind
	Stage             string
	Prompt            string
	SystemInstruction string
}

// Request is one call to the model provider. It is built by the gateway and
// never modified afterwards.
type Request struct {
	ID                string
	Kind              Kind
	Stage             string
	Model             string
	Prompt            string
	SystemInstruction string
	SubmittedAt       time.Time
}

// Image is a generated image payload with its declared media type.
type Image struct {
	Data      []byte
	MediaType string
}

func (img Image) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", img.MediaType, base64.StdEncoding.EncodeToString(img.Data))
}

// ParseDataURI decodes a "data:<mediaType>;base64,<payload>" string.
func ParseDataURI(uri string) (Image, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return Image{}, fmt.Errorf("not a data uri")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Image{}, fmt.Errorf("data uri has no payload")
	}
	mediaType, ok := strings.CutSuffix(header, ";base64")
	if !ok || mediaType == "" {
		return Image{}, fmt.Errorf("data uri must declare a media type and base64 encoding")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("error decoding data uri payload: %w", err)
	}
	return Image{Data: data, MediaType: mediaType}, nil
}

// Error is the normalized failure of a single generation request.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) ErrorCode() string {
	return e.Code
}

// Result is the outcome of a Request. Exactly one of Text, Image and Err is
// set, consistent with Status and the request kind.
type Result struct {
	RequestID string
	Kind      Kind
	Model     string
	Status    Status
	Elapsed   time.Duration
	Text      string
	Image     *Image
	Err       *Error
}

func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// Failure is the error of a failed result. A failure reported without an
// Error is treated as CodeUnknown.
func (r Result) Failure() *Error {
	if r.Err != nil {
		return r.Err
	}
	return &Error{Code: CodeUnknown, Message: fmt.Sprintf("generation failed with status %q", r.Status)}
}

func failure(code, format string, args ...any) Result {
	return Result{Status: StatusFailure, Err: &Error{Code: code, Message: fmt.Sprintf(format, args...)}}
}
