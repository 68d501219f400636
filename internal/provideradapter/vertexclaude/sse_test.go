package vertexclaude

import (
	"context"
	"strings"
	"testing"

	"github.com/fangyuan99/uni-api/internal/llmevent"
)

func TestParseStreamTextAndToolUse(t *testing.T) {
	body := strings.Join([]string{
		`  "text": "hello"`,
		`  "type": "tool_use",`,
		`  "id": "toolu_1",`,
		`  "name": "get_weather",`,
		`  "input": {"city": "NYC"}`,
		`]`,
		`  "finishReason": "STOP"`,
	}, "\n")

	out := make(chan llmevent.Event, 16)
	if err := ParseStream(context.Background(), strings.NewReader(body), out); err != nil {
		t.Fatalf("ParseStream: %v", err)
	}

	var events []llmevent.Event
	for ev := range out {
		events = append(events, ev)
	}

	if len(events) != 4 {
		t.Fatalf("got %d events, want 4: %+v", len(events), events)
	}
	if events[0].Kind != llmevent.TextDelta || events[0].Text != "hello" {
		t.Fatalf("event[0] = %+v", events[0])
	}
	if events[1].Kind != llmevent.ToolCallOpen || events[1].ToolCallID != "toolu_1" || events[1].FunctionName != "get_weather" {
		t.Fatalf("event[1] = %+v", events[1])
	}
	if events[2].Kind != llmevent.ToolCallArguments || events[2].ArgumentsDelta != `{"city":"NYC"}` {
		t.Fatalf("event[2] = %+v", events[2])
	}
	if events[3].Kind != llmevent.Done {
		t.Fatalf("event[3] = %+v", events[3])
	}
}

func TestParseStreamNoFinishReasonStillEndsAtEOF(t *testing.T) {
	body := `  "text": "hi"` + "\n"
	out := make(chan llmevent.Event, 16)
	if err := ParseStream(context.Background(), strings.NewReader(body), out); err != nil {
		t.Fatalf("ParseStream: %v", err)
	}
	var events []llmevent.Event
	for ev := range out {
		events = append(events, ev)
	}
	if len(events) != 2 || events[1].Kind != llmevent.Done {
		t.Fatalf("events = %+v", events)
	}
}
