package claude

import (
	"context"
	"strings"
	"testing"

	"github.com/fangyuan99/uni-api/internal/llmevent"
)

func collect(t *testing.T, body string) []llmevent.Event {
	t.Helper()
	out := make(chan llmevent.Event, 32)
	if err := ParseStream(context.Background(), strings.NewReader(body), out); err != nil {
		t.Fatalf("ParseStream: %v", err)
	}
	var events []llmevent.Event
	for ev := range out {
		events = append(events, ev)
	}
	return events
}

func TestParseStreamFullSequence(t *testing.T) {
	body := strings.Join([]string{
		`data: {"message":{"role":"assistant","usage":{"input_tokens":12}}}`,
		`data: {"content_block":{"type":"tool_use","id":"toolu_1","name":"get_weather"}}`,
		`data: {"delta":{"partial_json":"{\"city\":\"NYC\"}"}}`,
		`data: {"delta":{"text":"hello"}}`,
		`data: {"usage":{"output_tokens":5}}`,
		"",
	}, "\n\n")

	events := collect(t, body)
	if len(events) != 6 {
		t.Fatalf("got %d events, want 6: %+v", len(events), events)
	}
	if events[0].Kind != llmevent.RoleAnnounce || events[0].Role != "assistant" {
		t.Fatalf("event[0] = %+v", events[0])
	}
	if events[1].Kind != llmevent.ToolCallOpen || events[1].ToolCallID != "toolu_1" || events[1].FunctionName != "get_weather" {
		t.Fatalf("event[1] = %+v", events[1])
	}
	if events[2].Kind != llmevent.ToolCallArguments {
		t.Fatalf("event[2] = %+v", events[2])
	}
	if events[3].Kind != llmevent.TextDelta || events[3].Text != "hello" {
		t.Fatalf("event[3] = %+v", events[3])
	}
	if events[4].Kind != llmevent.Usage || events[4].PromptTokens != 12 || events[4].CompletionTokens != 5 {
		t.Fatalf("event[4] = %+v", events[4])
	}
	if events[5].Kind != llmevent.Done {
		t.Fatalf("event[5] = %+v", events[5])
	}
}

func TestParseStreamNoMessageEmitsNoRole(t *testing.T) {
	body := `data: {"delta":{"text":"x"}}` + "\n\n"
	events := collect(t, body)
	if len(events) != 2 || events[0].Kind != llmevent.TextDelta || events[1].Kind != llmevent.Done {
		t.Fatalf("events = %+v", events)
	}
}
