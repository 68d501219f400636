// Package vertexclaude parses Claude-on-Vertex-AI's streaming response.
// Vertex does not emit compact one-object-per-line JSON; it streams a
// pretty-printed JSON array, one key (or punctuation token) per line. This
// parser never treats the body as a JSON document at all -- it scans raw
// lines for trigger substrings and recovers each field's value by
// wrapping the single line in braces and decoding just that fragment.
// This is brittle (a value containing a literal `]` would break
// accumulation) but is preserved verbatim, since any "proper" streaming
// JSON parser would have to assume a schema Vertex does not document as
// stable.
package vertexclaude

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

// IdleTimeout bounds how long the parser waits for the next line.
const IdleTimeout = 100 * time.Second

// ParseStream reads a Vertex Claude pretty-printed streaming body and
// emits normalized events to out, closing it on return.
func ParseStream(ctx context.Context, body io.Reader, out chan<- llmevent.Event) error {
	defer close(out)

	reader := timedreader.New(body, IdleTimeout)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var accumulating bool
	var accum strings.Builder

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if accumulating {
			accum.WriteString(line)
			accum.WriteByte('\n')
			if strings.Contains(line, "]") {
				accumulating = false
				emitToolUse(accum.String(), out)
				accum.Reset()
			}
			continue
		}

		if strings.Contains(trimmed, `"type": "tool_use"`) {
			accumulating = true
			accum.WriteString(line)
			accum.WriteByte('\n')
			continue
		}

		if strings.Contains(trimmed, `"text": "`) {
			if text, ok := extractStringField(trimmed, "text"); ok {
				out <- llmevent.Event{Kind: llmevent.TextDelta, Text: text}
			}
			continue
		}

		if strings.Contains(trimmed, `"finishReason"`) {
			out <- llmevent.Event{Kind: llmevent.Done}
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		out <- llmevent.Event{Kind: llmevent.Error, Err: err}
		return err
	}

	out <- llmevent.Event{Kind: llmevent.Done}
	return nil
}

// extractStringField recovers the value of "key": "..." from a single
// pretty-printed JSON line by wrapping it in braces and decoding just
// that fragment.
func extractStringField(line, key string) (string, bool) {
	fragment := strings.TrimSuffix(strings.TrimSpace(line), ",")
	var m map[string]interface{}
	if err := json.Unmarshal([]byte("{"+fragment+"}"), &m); err != nil {
		return "", false
	}
	v, ok := m[key].(string)
	return v, ok
}

// emitToolUse attempts to recover id/name/input from an accumulated
// tool_use block by wrapping the whole buffer (minus its trailing "]") in
// braces, emitting a tool-call-open followed by its arguments.
func emitToolUse(buf string, out chan<- llmevent.Event) {
	fragment := strings.TrimSpace(buf)
	fragment = strings.TrimSuffix(fragment, "]")
	fragment = strings.TrimRight(fragment, ", \n\t")

	var m map[string]interface{}
	if err := json.Unmarshal([]byte("{"+fragment+"}"), &m); err != nil {
		return
	}

	id, _ := m["id"].(string)
	name, _ := m["name"].(string)
	if id == "" && name == "" {
		return
	}
	out <- llmevent.Event{Kind: llmevent.ToolCallOpen, ToolCallID: id, FunctionName: name}

	if input, ok := m["input"]; ok {
		if b, err := json.Marshal(input); err == nil {
			out <- llmevent.Event{Kind: llmevent.ToolCallArguments, ArgumentsDelta: string(b)}
		}
	}
}
