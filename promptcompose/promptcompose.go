// Package promptcompose builds the message list sent to the LLM Driver
// (C6): a numbered, citable context block, a German-default system
// prompt instructing strict grounding, and an optional graph-context
// section. It is grounded on reasoning/reasoning.go's Reason prompt half
// (buildContext/buildAnswerPrompt/systemPrompt),
// generalized from a fixed three-round legal/engineering prompt into a
// single-turn, conversation-aware one matching a general-purpose
// permission-aware assistant.
package promptcompose

import (
	"fmt"
	"strings"

	"github.com/PeterKuehne/vexora-sub003/adapters/llmadapter"
)

// Hit is the narrow slice of retrieval.Hit the composer needs, kept
// local so this package does not depend on the retrieval package.
type Hit struct {
	DocumentDisplayName string
	Content             string
}

// Turn is one prior message in the conversation.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// Request carries one prompt-composition call's inputs.
type Request struct {
	Query        string
	Hits         []Hit
	GraphContext string
	History      []Turn
}

// defaultSystemPrompt is German by default: answer strictly from
// context, cite inline, admit insufficiency, never speculate, and use
// graph context to explain relationships when present.
const defaultSystemPrompt = `Du bist ein präziser Assistent, der Fragen ausschließlich auf Grundlage der bereitgestellten Quellen beantwortet.

Regeln:
1. Beantworte die Frage ausschließlich anhand des Kontexts unten. Spekuliere nicht und erfinde keine Fakten.
2. Belege jede Aussage mit einem Inline-Zitat im Format [Source i: ...], wobei i die Nummer der jeweiligen Quelle ist.
3. Wenn der Kontext nicht ausreicht, um die Frage zu beantworten, sage das explizit.
4. Wenn ein Wissensgraph-Abschnitt bereitgestellt wird, nutze ihn, um Beziehungen zwischen Entitäten zu erklären, die im Text vorkommen.
5. Antworte präzise und in der Sprache der Frage.`

// BuildContextBlock renders hits as a numbered, citable context block:
// "[Source i: <documentDisplayName>] <chunk text>\n", one per hit,
// joined by blank lines, in the order the caller supplies (retrieval
// has already applied rerank/expansion ordering by this point).
func BuildContextBlock(hits []Hit) string {
	var b strings.Builder
	for i, h := range hits {
		fmt.Fprintf(&b, "[Source %d: %s] %s\n", i+1, h.DocumentDisplayName, h.Content)
		if i < len(hits)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Compose builds the final message list: [system prompt] + history +
// current user turn. The system prompt carries the context block and,
// when present, a labeled graph-context section appended before the
// instructions.
func Compose(req Request) []llmadapter.Message {
	var sys strings.Builder
	if req.GraphContext != "" {
		sys.WriteString("Wissensgraph-Kontext:\n")
		sys.WriteString(req.GraphContext)
		sys.WriteString("\n\n")
	}
	sys.WriteString(defaultSystemPrompt)
	sys.WriteString("\n\nKontext:\n")
	sys.WriteString(BuildContextBlock(req.Hits))

	messages := make([]llmadapter.Message, 0, len(req.History)+2)
	messages = append(messages, llmadapter.Message{Role: "system", Content: sys.String()})
	for _, t := range req.History {
		messages = append(messages, llmadapter.Message{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, llmadapter.Message{Role: "user", Content: req.Query})
	return messages
}
