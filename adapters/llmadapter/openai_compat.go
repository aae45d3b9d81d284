package llmadapter

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/ssestream"
)

type openaiChatStream = ssestream.Stream[openai.ChatCompletionChunk]

// openAICompatDriver talks to any server implementing the OpenAI chat +
// embeddings wire protocol, grounded on llm/openai_compat.go's
// openAICompatClient but built on the real openai-go SDK instead of
// a hand-rolled HTTP client.
type openAICompatDriver struct {
	client openai.Client
}

func newOpenAICompatDriver(cfg Config) *openAICompatDriver {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &openAICompatDriver{client: openai.NewClient(opts...)}
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func buildParams(messages []Message, model string, opts ChatOptions) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages: toOpenAIMessages(messages),
		Model:    openai.ChatModel(model),
	}
	if opts.Temperature != 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.TopP != 0 {
		params.TopP = openai.Float(opts.TopP)
	}
	if opts.NumPredict != 0 {
		params.MaxTokens = openai.Int(int64(opts.NumPredict))
	}
	if len(opts.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: opts.Stop}
	}
	return params
}

func (d *openAICompatDriver) Chat(ctx context.Context, messages []Message, model string, opts ChatOptions) (*CompleteResponse, error) {
	params := buildParams(messages, model, opts)

	resp, err := d.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("llmadapter: empty choices in chat response")
	}

	choice := resp.Choices[0]
	return &CompleteResponse{
		Content:          choice.Message.Content,
		Model:            resp.Model,
		FinishReason:     string(choice.FinishReason),
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}, nil
}

func (d *openAICompatDriver) ChatStream(ctx context.Context, messages []Message, model string, opts ChatOptions) (TokenStream, error) {
	params := buildParams(messages, model, opts)

	streamCtx, cancel := context.WithCancel(ctx)
	stream := d.client.Chat.Completions.NewStreaming(streamCtx, params)

	return &openAIStream{stream: stream, cancel: cancel, model: model, started: time.Now()}, nil
}

func (d *openAICompatDriver) Embed(ctx context.Context, text string, model string) ([]float32, error) {
	vecs, err := d.EmbedBatch(ctx, []string{text}, model)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, errors.New("llmadapter: empty embedding batch")
	}
	return vecs[0], nil
}

func (d *openAICompatDriver) EmbedBatch(ctx context.Context, texts []string, model string) ([][]float32, error) {
	resp, err := d.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, err
	}

	// The API preserves input order via the Index field; sort defensively
	// in case a downstream proxy reorders the payload.
	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if int(d.Index) >= len(out) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}

func (d *openAICompatDriver) ListModels(ctx context.Context) ([]string, error) {
	page, err := d.client.Models.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range page.Data {
		out = append(out, m.ID)
	}
	return out, nil
}

func (d *openAICompatDriver) HealthCheck(ctx context.Context) (Status, *time.Duration, *string) {
	start := time.Now()
	_, err := d.client.Models.List(ctx)
	elapsed := time.Since(start)
	if err != nil {
		msg := err.Error()
		return StatusDown, &elapsed, &msg
	}
	return StatusOK, &elapsed, nil
}

// openAIStream adapts the SDK's server-sent-event stream to TokenStream.
type openAIStream struct {
	stream  *openaiChatStream
	cancel  context.CancelFunc
	model   string
	started time.Time

	promptTokens     int
	completionTokens int
}

func (s *openAIStream) Next(ctx context.Context) (StreamToken, bool, error) {
	if !s.stream.Next() {
		if err := s.stream.Err(); err != nil {
			return StreamToken{}, false, err
		}
		return StreamToken{Done: true}, false, nil
	}

	chunk := s.stream.Current()
	if chunk.Usage.TotalTokens > 0 {
		s.promptTokens = int(chunk.Usage.PromptTokens)
		s.completionTokens = int(chunk.Usage.CompletionTokens)
	}
	if len(chunk.Choices) == 0 {
		return StreamToken{}, true, nil
	}
	return StreamToken{Content: chunk.Choices[0].Delta.Content}, true, nil
}

func (s *openAIStream) Metadata() StreamMetadata {
	return StreamMetadata{
		Model:            s.model,
		PromptTokens:     s.promptTokens,
		CompletionTokens: s.completionTokens,
		TotalTokens:      s.promptTokens + s.completionTokens,
		Duration:         time.Since(s.started),
	}
}

func (s *openAIStream) Close() error {
	s.cancel()
	return s.stream.Close()
}
