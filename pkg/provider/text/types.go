package text

// ResponseFormat hints the desired shape of the model's output.
type ResponseFormat string

const (
	// FormatText requests free-form prose. The zero value of a Request's
	// ResponseFormat field is treated as FormatText.
	FormatText ResponseFormat = "text"

	// FormatJSON requests a single JSON document with no surrounding prose.
	FormatJSON ResponseFormat = "json"
)

// Request carries everything a text backend needs to produce a response.
// A zero-value request is invalid; at minimum Prompt must be non-empty.
type Request struct {
	// Prompt is the user-facing instruction driving the response.
	Prompt string

	// SystemPrompt is an optional high-priority instruction injected before
	// the prompt. Backends without native system-prompt support should
	// prepend it to the prompt text.
	SystemPrompt string

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means the provider default.
	MaxTokens int

	// Temperature controls output randomness in [0.0, 2.0]. Zero requests
	// greedy decoding.
	Temperature float64

	// TopP is the nucleus-sampling cutoff in (0.0, 1.0]. Zero means the
	// provider default.
	TopP float64

	// StopSequences halt generation when emitted. Optional.
	StopSequences []string

	// ResponseFormat selects free-form text or strict JSON output.
	ResponseFormat ResponseFormat
}

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit and may differ between providers for the same
// textual content.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the result of a single text generation.
type Response struct {
	// Text is the full model output.
	Text string

	// Usage contains token accounting for this request/response pair.
	Usage Usage

	// Model is the backend model identifier that produced the response.
	Model string

	// Provider is the identifier of the backend that served the request.
	// Implementations must always populate it.
	Provider string

	// CostEstimate is the advisory cost of this response in USD.
	CostEstimate float64
}

// Role identifies the author of a chat [Message].
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a chat conversation.
type Message struct {
	Role    Role
	Content string
}

// Options tunes a [Chat] call. The zero value uses provider defaults.
type Options struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}
