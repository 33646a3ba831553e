// Package llm defines the Provider interface for text-generation backends.
//
// An LLM provider wraps a remote or local model API (e.g., OpenAI, OpenRouter,
// Anthropic via any-llm, or a local Ollama instance) and exposes a uniform
// interface for the summarization passes to perform completions, estimate
// token counts, and inspect model limits without coupling to any specific SDK.
//
// Implementations must be safe for concurrent use.
package llm

import "context"

// Provider is the abstraction over any text-generation backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled before the
	// completion arrives.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates the token footprint of the given messages in the
	// model's context window. The estimate is used to preflight prompts
	// against [ModelLimits.ContextWindow] before sending; it need not be
	// exact but should not undercount.
	CountTokens(messages []Message) (int, error)

	// Limits returns static metadata about the underlying model's context
	// window and output budget. Assumed constant for the Provider's lifetime.
	Limits() ModelLimits
}
