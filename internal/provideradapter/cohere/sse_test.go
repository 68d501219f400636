package cohere

import (
	"context"
	"strings"
	"testing"

	"github.com/fangyuan99/uni-api/internal/llmevent"
)

func TestParseStream(t *testing.T) {
	body := strings.Join([]string{
		`{"event_type":"stream-start"}`,
		`{"event_type":"text-generation","text":"hi"}`,
		`{"event_type":"stream-end","is_finished":true}`,
	}, "\n")

	out := make(chan llmevent.Event, 8)
	if err := ParseStream(context.Background(), strings.NewReader(body), out); err != nil {
		t.Fatalf("ParseStream: %v", err)
	}
	var events []llmevent.Event
	for ev := range out {
		events = append(events, ev)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(events), events)
	}
	if events[0].Kind != llmevent.TextDelta || events[0].Text != "hi" {
		t.Fatalf("event[0] = %+v", events[0])
	}
	if events[1].Kind != llmevent.Done {
		t.Fatalf("event[1] = %+v", events[1])
	}
}
