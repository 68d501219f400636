// Package sse renders normalized llmevent.Events into OpenAI-compatible
// streaming and non-streaming chat completion JSON, field for field,
// including its quirks (see the FinishReason quirk in the Chunk doc
// comment below).
package sse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
)

// streamFingerprint and nonStreamFingerprint are the literal fingerprint
// values stamped into every chunk.
const (
	streamFingerprint    = "fp_d576307f90"
	nonStreamFingerprint = "fp_a7d06e42a7"
)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewChatID generates a "chatcmpl-<29 chars>" id, seeded from timestamp so
// that repeated calls within one request (which all pass the same
// timestamp) are reproducible for testing.
func NewChatID(timestamp int64) string {
	r := rand.New(rand.NewSource(timestamp))
	b := make([]byte, 29)
	for i := range b {
		b[i] = idAlphabet[r.Intn(len(idAlphabet))]
	}
	return "chatcmpl-" + string(b)
}

// Delta is the OpenAI-compatible streaming delta payload.
type Delta struct {
	Role      string     `json:"role,omitempty"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is one tool-call entry within a streaming delta.
type ToolCall struct {
	Index    int          `json:"index"`
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function ToolCallFunc `json:"function"`
}

// ToolCallFunc is the function payload of a streamed ToolCall.
type ToolCallFunc struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

// Choice is one streaming choice entry.
type Choice struct {
	Index        int       `json:"index"`
	Delta        Delta     `json:"delta"`
	Logprobs     *struct{} `json:"logprobs"`
	FinishReason *string   `json:"finish_reason"`
}

// Usage is the token-usage block, recomputed as prompt+completion rather
// than trusting any externally supplied total.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Chunk is one OpenAI-compatible streaming chat-completion-chunk object.
//
// FinishReason quirk: finish_reason is set to "stop" whenever content is
// empty at construction time, and never reset when it later overwrites
// delta for a role/tool-call frame. That means a role-announce or
// tool-call chunk can carry finish_reason: "stop" even though more
// content follows. Preserved verbatim; clients have always received it
// this way. A usage frame replaces choices with an empty list, so it
// carries no finish_reason at all.
type Chunk struct {
	ID                string   `json:"id"`
	Object            string   `json:"object"`
	Created           int64    `json:"created"`
	Model             string   `json:"model"`
	SystemFingerprint string   `json:"system_fingerprint"`
	Choices           []Choice `json:"choices"`
	Usage             *Usage   `json:"usage"`
}

var stopReason = "stop"

// RenderStreamParams carries everything needed to render one streaming
// chunk, mirroring generate_sse_response's keyword arguments.
type RenderStreamParams struct {
	Timestamp        int64
	Model            string
	Content          string
	ToolCallID       string
	FunctionCallName string
	FunctionCallArgs string
	Role             string
	HasUsage         bool
	PromptTokens     int
	CompletionTokens int
}

// RenderStream builds one SSE "data: ..." line (including the trailing
// blank line) for a streaming chat completion chunk.
func RenderStream(p RenderStreamParams) (string, error) {
	finishReason := &stopReason
	if p.Content != "" {
		finishReason = nil
	}

	chunk := Chunk{
		ID:                NewChatID(p.Timestamp),
		Object:            "chat.completion.chunk",
		Created:           p.Timestamp,
		Model:             p.Model,
		SystemFingerprint: streamFingerprint,
		Choices: []Choice{{
			Index:        0,
			Delta:        Delta{Content: p.Content},
			FinishReason: finishReason,
		}},
	}

	switch {
	case p.FunctionCallArgs != "":
		chunk.Choices[0].Delta = Delta{
			ToolCalls: []ToolCall{{
				Index:    0,
				Function: ToolCallFunc{Arguments: p.FunctionCallArgs},
			}},
		}
	case p.ToolCallID != "" && p.FunctionCallName != "":
		chunk.Choices[0].Delta = Delta{
			ToolCalls: []ToolCall{{
				Index: 0,
				ID:    p.ToolCallID,
				Type:  "function",
				Function: ToolCallFunc{
					Name:      p.FunctionCallName,
					Arguments: "",
				},
			}},
		}
	case p.Role != "":
		chunk.Choices[0].Delta = Delta{Role: p.Role}
	case p.HasUsage:
		total := p.PromptTokens + p.CompletionTokens
		chunk.Choices = []Choice{}
		chunk.Usage = &Usage{
			PromptTokens:     p.PromptTokens,
			CompletionTokens: p.CompletionTokens,
			TotalTokens:      total,
		}
	}

	body, err := marshalNonASCII(chunk)
	if err != nil {
		return "", err
	}
	return "data: " + body + "\n\n", nil
}

// Done is the literal terminal SSE line.
const Done = "data: [DONE]\n\n"

// Message is the non-streaming response's message object.
type Message struct {
	Role    string  `json:"role"`
	Content string  `json:"content"`
	Refusal *string `json:"refusal"`
}

// NonStreamChoice is the non-streaming response's single choice entry.
type NonStreamChoice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// NonStreamResponse is the full non-streaming chat completion object.
type NonStreamResponse struct {
	ID                string            `json:"id"`
	Object            string            `json:"object"`
	Created           int64             `json:"created"`
	Model             string            `json:"model"`
	SystemFingerprint string            `json:"system_fingerprint"`
	Choices           []NonStreamChoice `json:"choices"`
	Usage             *Usage            `json:"usage,omitempty"`
}

// RenderNonStreamParams carries everything needed to render one
// non-streaming response, mirroring generate_no_stream_response.
type RenderNonStreamParams struct {
	Timestamp        int64
	Model            string
	Content          string
	Role             string
	HasUsage         bool
	PromptTokens     int
	CompletionTokens int
}

// RenderNonStream builds the full non-streaming chat completion JSON body.
func RenderNonStream(p RenderNonStreamParams) (string, error) {
	role := p.Role
	if role == "" {
		role = "assistant"
	}

	resp := NonStreamResponse{
		ID:                NewChatID(p.Timestamp),
		Object:            "chat.completion",
		Created:           p.Timestamp,
		Model:             p.Model,
		SystemFingerprint: nonStreamFingerprint,
		Choices: []NonStreamChoice{{
			Index: 0,
			Message: Message{
				Role:    role,
				Content: p.Content,
				Refusal: nil,
			},
			FinishReason: "stop",
		}},
	}

	if p.HasUsage {
		total := p.PromptTokens + p.CompletionTokens
		resp.Usage = &Usage{
			PromptTokens:     p.PromptTokens,
			CompletionTokens: p.CompletionTokens,
			TotalTokens:      total,
		}
	}

	return marshalNonASCII(resp)
}

// marshalNonASCII marshals v to JSON without escaping non-ASCII runes or
// HTML metacharacters, matching json.dumps(..., ensure_ascii=False).
func marshalNonASCII(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("sse: marshal: %w", err)
	}
	// Encoder.Encode appends a trailing newline; strip it to match
	// json.dumps, which does not.
	s := buf.String()
	if len(s) > 0 && s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
	}
	return s, nil
}
