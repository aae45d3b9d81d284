package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	vexora "github.com/PeterKuehne/vexora-sub003"
	"github.com/PeterKuehne/vexora-sub003/adapters/llmadapter"
	"github.com/PeterKuehne/vexora-sub003/promptcompose"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRAGOverrides struct {
	SearchLimit     int     `json:"searchLimit"`
	SearchThreshold float64 `json:"searchThreshold"`
	HybridAlpha     float64 `json:"hybridAlpha"`
	Rerank          *bool   `json:"rerank"`
	UseGraph        *bool   `json:"useGraph"`
}

type chatOptions struct {
	Temperature float64  `json:"temperature"`
	TopP        float64  `json:"topP"`
	TopK        int      `json:"topK"`
	NumPredict  int      `json:"numPredict"`
	Stop        []string `json:"stop"`
}

type chatRequest struct {
	Model    string            `json:"model"`
	Messages []chatMessage     `json:"messages"`
	Stream   *bool             `json:"stream"`
	Options  chatOptions       `json:"options"`
	RAG      *chatRAGOverrides `json:"rag"`
}

// POST /chat
func (s *server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, vexora.KindValidation, "invalid JSON: "+err.Error(), nil)
		return
	}
	if len(req.Messages) == 0 {
		writeError(c, vexora.KindValidation, "messages is required", nil)
		return
	}

	query, history := splitChatMessages(req.Messages)
	if query == "" {
		writeError(c, vexora.KindValidation, "at least one user message is required", nil)
		return
	}

	answerReq := vexora.AnswerRequest{
		Query:       query,
		UserContext: userContextFromHeaders(c),
		SessionID:   c.GetHeader("X-Session-Id"),
		Model:       req.Model,
		History:     history,
		Options: llmadapter.ChatOptions{
			Temperature: req.Options.Temperature,
			TopP:        req.Options.TopP,
			TopK:        req.Options.TopK,
			NumPredict:  req.Options.NumPredict,
			Stop:        req.Options.Stop,
		},
		RAGOverrides: ragOverridesFrom(req.RAG),
	}

	stream := req.Stream == nil || *req.Stream
	if stream {
		s.handleChatStream(c, answerReq)
		return
	}
	s.handleChatComplete(c, answerReq)
}

func splitChatMessages(messages []chatMessage) (query string, history []promptcompose.Turn) {
	for i, m := range messages {
		if i == len(messages)-1 && m.Role == "user" {
			query = m.Content
			continue
		}
		history = append(history, promptcompose.Turn{Role: m.Role, Content: m.Content})
	}
	return query, history
}

func ragOverridesFrom(rag *chatRAGOverrides) vexora.RAGOverrides {
	if rag == nil {
		return vexora.RAGOverrides{}
	}
	return vexora.RAGOverrides{
		SearchLimit:     rag.SearchLimit,
		SearchThreshold: rag.SearchThreshold,
		HybridAlpha:     rag.HybridAlpha,
		Rerank:          rag.Rerank,
		UseGraph:        rag.UseGraph,
	}
}

func (s *server) handleChatComplete(c *gin.Context, req vexora.AnswerRequest) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	res, err := s.engine.Answer(ctx, req)
	if err != nil {
		log.Error().Err(err).Msg("chat answer failed")
		writeCoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": gin.H{"role": "assistant", "content": res.Content},
		"done":    true,
		"metadata": gin.H{
			"model":            res.Metadata.Model,
			"promptTokens":     res.Metadata.PromptTokens,
			"completionTokens": res.Metadata.CompletionTokens,
			"totalTokens":      res.Metadata.TotalTokens,
			"traceId":          res.TraceID,
			"groundedness":     res.Guardrail.Groundedness,
			"confidence":       res.Guardrail.Confidence,
			"citations":        res.Guardrail.Citations,
			"warnings":         res.Guardrail.Warnings,
		},
	})
}

// handleChatStream drains the engine's streaming answer over
// Server-Sent Events. Client disconnect cancels the request context,
// which the LLM driver's streaming call observes and aborts.
func (s *server) handleChatStream(c *gin.Context, req vexora.AnswerRequest) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	result, err := s.engine.AnswerStream(ctx, req)
	if err != nil {
		log.Error().Err(err).Msg("chat stream open failed")
		writeCoreError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	if result.Session == nil {
		c.Stream(func(w io.Writer) bool {
			fmt.Fprintf(w, "data: %s\n\n", mustJSON(gin.H{
				"message": gin.H{"content": result.DeniedMessage},
				"done":    true,
				"metadata": gin.H{
					"traceId": result.TraceID,
				},
			}))
			fmt.Fprint(w, "data: [DONE]\n\n")
			return false
		})
		return
	}

	var full string
	success := true
	c.Stream(func(w io.Writer) bool {
		token, ok, err := result.Session.Next(ctx)
		if err != nil {
			success = false
			fmt.Fprintf(w, "data: %s\n\n", mustJSON(gin.H{"error": err.Error(), "done": true}))
			return false
		}
		if !ok {
			res := result.Finish(context.Background(), full, success)
			fmt.Fprintf(w, "data: %s\n\n", mustJSON(gin.H{
				"done": true,
				"metadata": gin.H{
					"traceId":      result.TraceID,
					"groundedness": res.Groundedness,
					"confidence":   res.Confidence,
					"citations":    res.Citations,
					"warnings":     res.Warnings,
				},
			}))
			fmt.Fprint(w, "data: [DONE]\n\n")
			return false
		}
		full += token
		fmt.Fprintf(w, "data: %s\n\n", mustJSON(gin.H{
			"message": gin.H{"content": token},
			"done":    false,
		}))
		return true
	})
}

func mustJSON(v gin.H) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{}`
	}
	return string(b)
}
