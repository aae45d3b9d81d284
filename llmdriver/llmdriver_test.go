package llmdriver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PeterKuehne/vexora-sub003/adapters/llmadapter"
)

type fakeChatDriver struct {
	gotModel  string
	tokens    []string
	streamErr error
}

func (f *fakeChatDriver) Chat(ctx context.Context, messages []llmadapter.Message, model string, opts llmadapter.ChatOptions) (*llmadapter.CompleteResponse, error) {
	f.gotModel = model
	return &llmadapter.CompleteResponse{Content: "hello", Model: model, TotalTokens: 5}, nil
}

func (f *fakeChatDriver) ChatStream(ctx context.Context, messages []llmadapter.Message, model string, opts llmadapter.ChatOptions) (llmadapter.TokenStream, error) {
	f.gotModel = model
	return &fakeTokenStream{tokens: f.tokens, err: f.streamErr}, nil
}

func (f *fakeChatDriver) ListModels(ctx context.Context) ([]string, error) {
	return []string{"fake-model"}, nil
}

func (f *fakeChatDriver) HealthCheck(ctx context.Context) (llmadapter.Status, *time.Duration, *string) {
	return llmadapter.StatusOK, nil, nil
}

type fakeTokenStream struct {
	tokens []string
	idx    int
	err    error
	closed bool
}

func (s *fakeTokenStream) Next(ctx context.Context) (llmadapter.StreamToken, bool, error) {
	if s.err != nil {
		return llmadapter.StreamToken{}, false, s.err
	}
	if s.idx >= len(s.tokens) {
		return llmadapter.StreamToken{Done: true}, false, nil
	}
	tok := s.tokens[s.idx]
	s.idx++
	return llmadapter.StreamToken{Content: tok}, true, nil
}

func (s *fakeTokenStream) Metadata() llmadapter.StreamMetadata {
	return llmadapter.StreamMetadata{Model: "test-model", CompletionTokens: len(s.tokens)}
}

func (s *fakeTokenStream) Close() error {
	s.closed = true
	return nil
}

func TestDriver_GenerateFallsBackToDefaultModel(t *testing.T) {
	chat := &fakeChatDriver{}
	d := New(chat, "default-model")

	resp, err := d.Generate(context.Background(), nil, "", llmadapter.ChatOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chat.gotModel != "default-model" {
		t.Errorf("expected fallback to default model, got %q", chat.gotModel)
	}
	if resp.Content != "hello" {
		t.Errorf("expected response content passed through, got %q", resp.Content)
	}
}

func TestDriver_GeneratePinnedModelOverridesDefault(t *testing.T) {
	chat := &fakeChatDriver{}
	d := New(chat, "default-model")

	_, err := d.Generate(context.Background(), nil, "gpt-pinned", llmadapter.ChatOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chat.gotModel != "gpt-pinned" {
		t.Errorf("expected pinned model to override default, got %q", chat.gotModel)
	}
}

func TestStreamSession_CollectJoinsTokensAndReturnsMetadata(t *testing.T) {
	chat := &fakeChatDriver{tokens: []string{"Hel", "lo", " world"}}
	d := New(chat, "m")

	session, err := d.GenerateStream(context.Background(), nil, "", llmadapter.ChatOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	content, meta, err := session.Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content != "Hello world" {
		t.Errorf("expected joined tokens %q, got %q", "Hello world", content)
	}
	if meta.CompletionTokens != 3 {
		t.Errorf("expected metadata token count 3, got %d", meta.CompletionTokens)
	}
}

func TestStreamSession_CollectCancelsOnContextDone(t *testing.T) {
	chat := &fakeChatDriver{tokens: []string{"a", "b", "c"}}
	d := New(chat, "m")

	session, err := d.GenerateStream(context.Background(), nil, "", llmadapter.ChatOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = session.Collect(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if !session.stream.(*fakeTokenStream).closed {
		t.Error("expected stream to be closed on cancellation")
	}
}

func TestStreamSession_NextPropagatesStreamError(t *testing.T) {
	streamErr := errors.New("upstream disconnected")
	chat := &fakeChatDriver{streamErr: streamErr}
	d := New(chat, "m")

	session, err := d.GenerateStream(context.Background(), nil, "", llmadapter.ChatOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, _, err = session.Next(context.Background())
	if !errors.Is(err, streamErr) {
		t.Errorf("expected streamErr to propagate, got %v", err)
	}
}
