package openai

// responsesRequest is the body of POST /responses.
type responsesRequest struct {
	Model             string         `json:"model"`
	Input             []inputMessage `json:"input"`
	Temperature       *float64       `json:"temperature,omitempty"`
	MaxOutputTokens   *int           `json:"max_output_tokens,omitempty"`
	ParallelToolCalls *bool          `json:"parallel_tool_calls,omitempty"`
}

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// responsesResponse is the subset of the Responses API reply kit reads.
type responsesResponse struct {
	Model      string       `json:"model"`
	OutputText string       `json:"output_text,omitempty"`
	Output     []outputItem `json:"output,omitempty"`
	Usage      *usage       `json:"usage,omitempty"`

	// Error is set on a 200 reply when the response itself failed.
	Error *apiError `json:"error,omitempty"`
}

type outputItem struct {
	Type    string       `json:"type"`
	Role    string       `json:"role,omitempty"`
	Content []outputPart `json:"content,omitempty"`
}

type outputPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// errorEnvelope wraps error bodies on non-2xx responses.
type errorEnvelope struct {
	Error *apiError `json:"error"`
}
