// Package cohere parses Cohere's streaming response: unlike the
// SSE-framed adapters, each line is a standalone JSON object with no
// "data:" prefix.
package cohere

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

type frame struct {
	EventType  string `json:"event_type"`
	Text       string `json:"text"`
	IsFinished bool   `json:"is_finished"`
}

// ParseStream reads a Cohere streaming body and emits normalized events to
// out, closing it on return.
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

		var f frame
		if err := json.Unmarshal([]byte(line), &f); err != nil {
			continue
		}

		if f.EventType == "text-generation" && f.Text != "" {
			out <- llmevent.Event{Kind: llmevent.TextDelta, Text: f.Text}
		}

		if f.IsFinished {
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
