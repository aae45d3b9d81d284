// Package llmdriver is the C6 LLM call layer: batch and cancellable
// streaming generation over adapters/llmadapter's ChatDriver contract.
// It is grounded on llm/provider.go's Provider interface, widened from
// a single Chat method into a StreamSession that models the response
// as a lazy finite token sequence plus a terminal metadata record,
// with an explicit cancel hook the transport wires to client
// disconnect.
package llmdriver

import (
	"context"
	"strings"

	"github.com/PeterKuehne/vexora-sub003/adapters/llmadapter"
)

// Driver generates chat completions against a configured ChatDriver,
// falling back to DefaultModel when the caller does not pin a model.
type Driver struct {
	Chat         llmadapter.ChatDriver
	DefaultModel string
}

// New builds a Driver.
func New(chat llmadapter.ChatDriver, defaultModel string) *Driver {
	return &Driver{Chat: chat, DefaultModel: defaultModel}
}

func (d *Driver) resolveModel(model string) string {
	if model != "" {
		return model
	}
	return d.DefaultModel
}

// Generate runs a batch (non-streaming) completion.
func (d *Driver) Generate(ctx context.Context, messages []llmadapter.Message, model string, opts llmadapter.ChatOptions) (*llmadapter.CompleteResponse, error) {
	return d.Chat.Chat(ctx, messages, d.resolveModel(model), opts)
}

// GenerateStream opens a streaming completion and returns a
// StreamSession wrapping it.
func (d *Driver) GenerateStream(ctx context.Context, messages []llmadapter.Message, model string, opts llmadapter.ChatOptions) (*StreamSession, error) {
	stream, err := d.Chat.ChatStream(ctx, messages, d.resolveModel(model), opts)
	if err != nil {
		return nil, err
	}
	return &StreamSession{stream: stream}, nil
}

// StreamSession is a lazy, finite, cancellable sequence of tokens plus
// a final metadata record (tokens in/out, duration), matching §4.6's
// streaming contract.
type StreamSession struct {
	stream llmadapter.TokenStream
}

// Next blocks until the next token, the stream ends (ok=false, err=nil),
// or an error occurs.
func (s *StreamSession) Next(ctx context.Context) (string, bool, error) {
	tok, ok, err := s.stream.Next(ctx)
	if err != nil || !ok {
		return "", ok, err
	}
	return tok.Content, true, nil
}

// Metadata is valid once Next has returned ok=false, err=nil.
func (s *StreamSession) Metadata() llmadapter.StreamMetadata {
	return s.stream.Metadata()
}

// Cancel aborts the in-flight call. The transport wires this to client
// disconnect; the caller is responsible for closing the trace span with
// success=false afterward.
func (s *StreamSession) Cancel() error {
	return s.stream.Close()
}

// Collect drains the stream into a single string, honoring ctx
// cancellation mid-stream. Callers that need the full answer before
// acting on it (e.g. to run output guardrails ahead of a non-streaming
// response) should prefer this over manual Next polling.
func (s *StreamSession) Collect(ctx context.Context) (string, llmadapter.StreamMetadata, error) {
	var b strings.Builder
	for {
		select {
		case <-ctx.Done():
			s.stream.Close()
			return b.String(), s.stream.Metadata(), ctx.Err()
		default:
		}

		tok, ok, err := s.stream.Next(ctx)
		if err != nil {
			return b.String(), s.stream.Metadata(), err
		}
		if !ok {
			return b.String(), s.stream.Metadata(), nil
		}
		b.WriteString(tok.Content)
	}
}
