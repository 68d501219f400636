// Package claude parses the direct Anthropic Messages API streaming
// response. Upstream sends no "event:" line — every frame is a bare
// "data: {...}" JSON object, and the frame's shape alone determines what
// it carries, dispatching purely on JSON field presence.
package claude

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

// IdleTimeout bounds how long the parser waits for the next SSE line.
const IdleTimeout = 100 * time.Second

type messageFrame struct {
	Role  string `json:"role"`
	Usage *struct {
		InputTokens int `json:"input_tokens"`
	} `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

type delta struct {
	Text        string `json:"text"`
	PartialJSON string `json:"partial_json"`
}

type frame struct {
	Message      *messageFrame `json:"message"`
	ContentBlock *contentBlock `json:"content_block"`
	Delta        *delta        `json:"delta"`
	Usage        *struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// ParseStream reads a direct Anthropic Messages API SSE body and emits
// normalized events to out, closing it on return. Anthropic has no single
// terminal marker line; the stream simply ends when the body closes, so
// callers treat EOF as the done signal and ParseStream emits a final Done
// event itself.
func ParseStream(ctx context.Context, body io.Reader, out chan<- llmevent.Event) error {
	defer close(out)

	reader := timedreader.New(body, IdleTimeout)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var promptTokens int

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var f frame
		if err := json.Unmarshal([]byte(payload), &f); err != nil {
			continue
		}

		if f.Message != nil {
			if f.Message.Role != "" {
				out <- llmevent.Event{Kind: llmevent.RoleAnnounce, Role: f.Message.Role}
			}
			if f.Message.Usage != nil {
				promptTokens = f.Message.Usage.InputTokens
			}
		}

		if f.ContentBlock != nil && f.ContentBlock.Type == "tool_use" {
			out <- llmevent.Event{
				Kind:         llmevent.ToolCallOpen,
				ToolCallID:   f.ContentBlock.ID,
				FunctionName: f.ContentBlock.Name,
			}
		}

		if f.Delta != nil {
			if f.Delta.Text != "" {
				out <- llmevent.Event{Kind: llmevent.TextDelta, Text: f.Delta.Text}
			}
			if f.Delta.PartialJSON != "" {
				out <- llmevent.Event{Kind: llmevent.ToolCallArguments, ArgumentsDelta: f.Delta.PartialJSON}
			}
		}

		if f.Usage != nil {
			out <- llmevent.Event{
				Kind:             llmevent.Usage,
				PromptTokens:     promptTokens,
				CompletionTokens: f.Usage.OutputTokens,
			}
		}
	}

	if err := scanner.Err(); err != nil {
		out <- llmevent.Event{Kind: llmevent.Error, Err: err}
		return err
	}

	out <- llmevent.Event{Kind: llmevent.Done}
	return nil
}
