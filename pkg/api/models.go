package api

type TextRequest struct {
	Prompt            string `json:"prompt"`
	SystemInstruction string `json:"systemInstruction,omitempty"`
	Step              string `json:"step,omitempty"`
}

type TextResponse struct {
	Text string `json:"text"`
}

type ImageRequest struct {
	Prompt string `json:"prompt"`
}

type ImageResponse struct {
	ImageURL   string `json:"imageUrl"`
	Validation string `json:"validation,omitempty"`
}

// ErrorResponse is the body of every non 2xx response. Code is the
// normalized failure code, e.g. VALIDATION_FAILED or a provider status.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code,omitempty"`
}

type ValidateRequest struct {
	Prompt string `schema:"prompt,required"`
}

type PolicyMatch struct {
	Term  string `json:"term"`
	Group string `json:"group"`
}

type ValidateResponse struct {
	Clean   bool          `json:"clean"`
	Terms   []string      `json:"terms"`
	Matches []PolicyMatch `json:"matches,omitempty"`
}

type PipelineRequest struct {
	Input string `json:"input"`
}

type PipelineFailure struct {
	Stage   string `json:"stage"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PipelineRun struct {
	Id            string           `json:"id"`
	Input         string           `json:"input"`
	Stage         string           `json:"stage"`
	Status        string           `json:"status"`
	Description   string           `json:"description,omitempty"`
	Specification string           `json:"specification,omitempty"`
	ImageURL      string           `json:"imageUrl,omitempty"`
	Validation    string           `json:"validation,omitempty"`
	Failure       *PipelineFailure `json:"failure,omitempty"`
}

// PipelineMessage is one NDJSON line of the /api/pipeline stream.
type PipelineMessage struct {
	Data  *PipelineRun
	Error string
	Code  int
}

type HealthResponse struct {
	Status      string `json:"status"`
	TextModel   string `json:"textModel"`
	ImageModel  string `json:"imageModel"`
	PolicyTerms int    `json:"policyTerms"`
}
