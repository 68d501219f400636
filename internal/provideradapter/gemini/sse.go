// Package gemini parses the direct Google Gemini API's pretty-printed
// streaming response using the same line-by-line substring-trigger scan as
// vertexclaude, since Gemini's streaming JSON is pretty-printed the same
// way.
package gemini

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

// syntheticToolCallID is the hardcoded tool-call id fabricated for Gemini
// function calls, which carry no id of their own on the wire.
const syntheticToolCallID = "chatcmpl-9inWv0yEtgn873CxMBzHeCeiHctTV"

// ParseStream reads a Gemini pretty-printed streaming body and emits
// normalized events to out, closing it on return.
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
				emitFunctionCall(accum.String(), out)
				accum.Reset()
			}
			continue
		}

		if strings.Contains(trimmed, `"functionCall": {`) {
			accumulating = true
			accum.WriteString(line)
			accum.WriteByte('\n')
			continue
		}

		if strings.Contains(trimmed, `"text": "`) {
			if text, ok := extractStringField(trimmed, "text"); ok {
				text = strings.ReplaceAll(text, `\n`, "\n")
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

func extractStringField(line, key string) (string, bool) {
	fragment := strings.TrimSuffix(strings.TrimSpace(line), ",")
	var m map[string]interface{}
	if err := json.Unmarshal([]byte("{"+fragment+"}"), &m); err != nil {
		return "", false
	}
	v, ok := m[key].(string)
	return v, ok
}

// emitFunctionCall recovers the function name from an accumulated
// functionCall block and emits a tool call open plus its arguments,
// tagging it with the hardcoded synthetic id since Gemini never sends
// one of its own.
func emitFunctionCall(buf string, out chan<- llmevent.Event) {
	fragment := strings.TrimSpace(buf)
	fragment = strings.TrimSuffix(fragment, "]")
	fragment = strings.TrimRight(fragment, ", \n\t")

	var wrapper map[string]interface{}
	if err := json.Unmarshal([]byte("{"+fragment+"}"), &wrapper); err != nil {
		return
	}

	m, ok := wrapper["functionCall"].(map[string]interface{})
	if !ok {
		return
	}

	name, _ := m["name"].(string)
	if name == "" {
		return
	}
	out <- llmevent.Event{Kind: llmevent.ToolCallOpen, ToolCallID: syntheticToolCallID, FunctionName: name}

	if args, ok := m["args"]; ok {
		if b, err := json.Marshal(args); err == nil {
			out <- llmevent.Event{Kind: llmevent.ToolCallArguments, ArgumentsDelta: string(b)}
		}
	}
}
