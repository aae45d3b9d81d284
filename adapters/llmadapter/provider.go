// Package llmadapter is the C1 external-adapter client for LLM chat
// completion and embedding generation. It is a thin wrapper: no retries,
// no business logic, just typed requests/responses over a configured
// endpoint, following the uniform adapter contract from §4.1.
package llmadapter

import (
	"context"
	"fmt"
	"time"
)

// Message is one turn in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions carries the tunable generation parameters the spec's
// /chat endpoint exposes.
type ChatOptions struct {
	Temperature float64
	TopP        float64
	TopK        int
	NumPredict  int
	Stop        []string
}

// CompleteResponse is a full (non-streaming) chat completion.
type CompleteResponse struct {
	Content          string
	Model            string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// StreamToken is one token emitted on the streaming path.
type StreamToken struct {
	Content string
	Done    bool
}

// StreamMetadata is the final record emitted after the last token.
type StreamMetadata struct {
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Duration         time.Duration
}

// TokenStream is a lazy, finite, cancellable sequence of tokens.
// Closing it must cancel the upstream call (§4.1).
type TokenStream interface {
	// Next blocks until the next token is available, the stream ends
	// (ok=false, err=nil), or an error occurs.
	Next(ctx context.Context) (StreamToken, bool, error)
	// Metadata is valid only after Next has returned ok=false, err=nil.
	Metadata() StreamMetadata
	// Close cancels the upstream call if still in flight.
	Close() error
}

// ChatDriver is the LLM Driver adapter contract.
type ChatDriver interface {
	Chat(ctx context.Context, messages []Message, model string, opts ChatOptions) (*CompleteResponse, error)
	ChatStream(ctx context.Context, messages []Message, model string, opts ChatOptions) (TokenStream, error)
	ListModels(ctx context.Context) ([]string, error)
	HealthCheck(ctx context.Context) (Status, *time.Duration, *string)
}

// Embedder is the Embedding Service adapter contract.
type Embedder interface {
	Embed(ctx context.Context, text string, model string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string, model string) ([][]float32, error)
	HealthCheck(ctx context.Context) (Status, *time.Duration, *string)
}

// Status is the uniform health-check result shape shared by every C1
// adapter.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// Config configures one OpenAI-compatible endpoint (OpenAI itself,
// or any local server exposing the same wire protocol, e.g. Ollama's
// OpenAI-compat route, vLLM, LM Studio).
type Config struct {
	Provider string // "openai", "compat" (generic OpenAI-compatible base URL)
	BaseURL  string
	APIKey   string
}

// NewChatDriver builds a ChatDriver from configuration, following
// llm/provider.go's NewProvider factory switch.
func NewChatDriver(cfg Config) (ChatDriver, error) {
	switch cfg.Provider {
	case "", "openai", "compat", "ollama":
		return newOpenAICompatDriver(cfg), nil
	default:
		return nil, fmt.Errorf("llmadapter: unknown chat provider %q", cfg.Provider)
	}
}

// NewEmbedder builds an Embedder from configuration.
func NewEmbedder(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "", "openai", "compat", "ollama":
		return newOpenAICompatDriver(cfg), nil
	default:
		return nil, fmt.Errorf("llmadapter: unknown embedding provider %q", cfg.Provider)
	}
}
