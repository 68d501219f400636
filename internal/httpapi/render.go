package httpapi

import (
	"context"

	"github.com/fangyuan99/uni-api/internal/llmevent"
	"github.com/fangyuan99/uni-api/internal/sse"
	"github.com/fangyuan99/uni-api/internal/streaming"
)

// renderEvents converts a provider adapter's normalized event stream into
// rendered SSE frames, bridging internal/provideradapter's output to
// internal/streaming's Frame-based heartbeat/first-chunk stages.
func renderEvents(ctx context.Context, events <-chan llmevent.Event, model string, timestamp int64) <-chan streaming.Frame {
	out := make(chan streaming.Frame)

	go func() {
		defer close(out)

		send := func(f streaming.Frame) bool {
			select {
			case out <- f:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for ev := range events {
			var params sse.RenderStreamParams
			params.Timestamp = timestamp
			params.Model = model

			switch ev.Kind {
			case llmevent.RoleAnnounce:
				params.Role = ev.Role
			case llmevent.TextDelta:
				params.Content = ev.Text
			case llmevent.ToolCallOpen:
				params.ToolCallID = ev.ToolCallID
				params.FunctionCallName = ev.FunctionName
			case llmevent.ToolCallArguments:
				params.FunctionCallArgs = ev.ArgumentsDelta
			case llmevent.Usage:
				params.HasUsage = true
				params.PromptTokens = ev.PromptTokens
				params.CompletionTokens = ev.CompletionTokens
			case llmevent.Audio:
				if !send(streaming.Frame{Audio: ev.Audio}) {
					return
				}
				continue
			case llmevent.Done:
				send(streaming.Frame{Line: sse.Done})
				return
			case llmevent.Error:
				// A mid-stream upstream error after data has already been
				// sent is logged by the caller and ends the stream; only
				// the first substantive frame gets HTTP-error treatment.
				return
			default:
				continue
			}

			line, err := sse.RenderStream(params)
			if err != nil {
				return
			}
			if !send(streaming.Frame{Line: line}) {
				return
			}
		}
	}()

	return out
}
