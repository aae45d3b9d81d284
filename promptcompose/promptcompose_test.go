package promptcompose

import (
	"strings"
	"testing"

	"github.com/PeterKuehne/vexora-sub003/adapters/llmadapter"
)

func TestBuildContextBlock_NumbersSourcesInOrder(t *testing.T) {
	hits := []Hit{
		{DocumentDisplayName: "policy.pdf", Content: "Remote work requires manager approval."},
		{DocumentDisplayName: "handbook.pdf", Content: "Expenses are reimbursed within 30 days."},
	}

	block := BuildContextBlock(hits)

	if !strings.Contains(block, "[Source 1: policy.pdf] Remote work requires manager approval.") {
		t.Errorf("expected first hit numbered as Source 1, got: %q", block)
	}
	if !strings.Contains(block, "[Source 2: handbook.pdf] Expenses are reimbursed within 30 days.") {
		t.Errorf("expected second hit numbered as Source 2, got: %q", block)
	}
}

func TestCompose_OrdersSystemHistoryThenCurrentTurn(t *testing.T) {
	req := Request{
		Query: "Who approves remote work requests?",
		Hits: []Hit{
			{DocumentDisplayName: "policy.pdf", Content: "Remote work requires manager approval."},
		},
		History: []Turn{
			{Role: "user", Content: "What is the remote work policy?"},
			{Role: "assistant", Content: "Remote work requires manager approval. [Source 1: policy.pdf]"},
		},
	}

	messages := Compose(req)

	if len(messages) != 4 {
		t.Fatalf("expected 4 messages (system + 2 history + current turn), got %d", len(messages))
	}
	if messages[0].Role != "system" {
		t.Errorf("expected first message to be system, got %q", messages[0].Role)
	}
	if !strings.Contains(messages[0].Content, "[Source 1: policy.pdf] Remote work requires manager approval.") {
		t.Errorf("expected system prompt to embed the context block, got: %q", messages[0].Content)
	}
	want := llmadapter.Message{Role: "user", Content: "What is the remote work policy?"}
	if messages[1] != want {
		t.Errorf("expected first history turn preserved verbatim, got: %+v", messages[1])
	}
	if messages[3].Role != "user" || messages[3].Content != req.Query {
		t.Errorf("expected last message to be the current user turn, got: %+v", messages[3])
	}
}

func TestCompose_AppendsGraphContextSection(t *testing.T) {
	req := Request{
		Query:        "How is Acme GmbH related to the Phoenix project?",
		GraphContext: "Acme GmbH MANAGES Phoenix Project.",
	}

	messages := Compose(req)

	if !strings.Contains(messages[0].Content, "Wissensgraph-Kontext:\nAcme GmbH MANAGES Phoenix Project.") {
		t.Errorf("expected graph context section appended to system prompt, got: %q", messages[0].Content)
	}
}

func TestCompose_OmitsGraphSectionWhenAbsent(t *testing.T) {
	messages := Compose(Request{Query: "test"})

	if strings.Contains(messages[0].Content, "Wissensgraph-Kontext") {
		t.Errorf("expected no graph context section when GraphContext is empty, got: %q", messages[0].Content)
	}
}
