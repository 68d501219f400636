// Package cloudflare parses Cloudflare Workers AI's streaming response:
// plain "data: {...}" line framing, with each chunk's text delta carried
// in a top-level "response" field.
package cloudflare

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

type frame struct {
	Response string `json:"response"`
}

// ParseStream reads a Cloudflare Workers AI SSE body and emits normalized
// events to out, closing it on return.
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
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			out <- llmevent.Event{Kind: llmevent.Done}
			return nil
		}

		var f frame
		if err := json.Unmarshal([]byte(payload), &f); err != nil {
			continue
		}
		if f.Response != "" {
			out <- llmevent.Event{Kind: llmevent.TextDelta, Text: f.Response}
		}
	}

	if err := scanner.Err(); err != nil {
		out <- llmevent.Event{Kind: llmevent.Error, Err: err}
		return err
	}

	out <- llmevent.Event{Kind: llmevent.Done}
	return nil
}
