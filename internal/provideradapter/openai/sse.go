// Package openai parses the streaming response of any OpenAI-compatible
// upstream (OpenAI itself, and any provider whose wire format matches:
// plain "data: {...}" lines carrying an already-OpenAI-shaped chat
// completion chunk), normalizing it into llmevent.Events.
//
// Pure "data: " line framing terminated by a literal "[DONE]" line, with
// per-line content taken from choices[0].delta.
package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/fangyuan99/uni-api/internal/llmevent"
	"github.com/fangyuan99/uni-api/internal/timedreader"
)

// IdleTimeout bounds how long the parser waits for the next SSE line
// before giving up on a stalled upstream connection.
const IdleTimeout = 100 * time.Second

type streamDelta struct {
	Role      string `json:"role,omitempty"`
	Content   string `json:"content,omitempty"`
	ToolCalls []struct {
		Index    int    `json:"index"`
		ID       string `json:"id,omitempty"`
		Function struct {
			Name      string `json:"name,omitempty"`
			Arguments string `json:"arguments,omitempty"`
		} `json:"function"`
	} `json:"tool_calls,omitempty"`
}

type streamChoice struct {
	Delta        streamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

type streamChunk struct {
	Choices []streamChoice `json:"choices"`
	Usage   *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// ParseStream reads an OpenAI-compatible SSE body and emits normalized
// events to out. out is closed when parsing finishes, whether normally or
// due to an error; a read error is also sent as a final llmevent.Error
// event before the channel closes, while cancellation of ctx returns
// ctx.Err() without one.
func ParseStream(ctx context.Context, body io.Reader, out chan<- llmevent.Event) error {
	defer close(out)

	reader := timedreader.New(body, IdleTimeout)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			out <- llmevent.Event{Kind: llmevent.Done}
			return nil
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}

		if chunk.Usage != nil {
			out <- llmevent.Event{
				Kind:             llmevent.Usage,
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
			}
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		if delta.Role != "" {
			out <- llmevent.Event{Kind: llmevent.RoleAnnounce, Role: delta.Role}
		}
		if delta.Content != "" {
			out <- llmevent.Event{Kind: llmevent.TextDelta, Text: delta.Content}
		}
		for _, tc := range delta.ToolCalls {
			if tc.ID != "" && tc.Function.Name != "" {
				out <- llmevent.Event{
					Kind:         llmevent.ToolCallOpen,
					ToolCallID:   tc.ID,
					FunctionName: tc.Function.Name,
				}
			}
			if tc.Function.Arguments != "" {
				out <- llmevent.Event{
					Kind:           llmevent.ToolCallArguments,
					ArgumentsDelta: tc.Function.Arguments,
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		out <- llmevent.Event{Kind: llmevent.Error, Err: err}
		return err
	}
	return nil
}
