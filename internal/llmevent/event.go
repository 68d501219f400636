// Package llmevent defines the normalized event stream that every provider
// stream adapter emits, decoupling the per-provider incremental parsers
// (internal/provideradapter/...) from the SSE/JSON emitter (internal/sse)
// and the heartbeat/first-chunk wrapping stages (internal/streaming).
package llmevent

// Kind enumerates the normalized event types a provider adapter can emit.
type Kind int

const (
	// TextDelta carries an incremental content delta.
	TextDelta Kind = iota
	// RoleAnnounce carries the assistant role announcement, normally the
	// first event of a stream.
	RoleAnnounce
	// ToolCallOpen announces a new tool call with its id and function name.
	ToolCallOpen
	// ToolCallArguments carries an incremental tool-call arguments delta.
	ToolCallArguments
	// Usage carries prompt/completion token counts, normally the last
	// content-bearing event of a stream.
	Usage
	// Done signals normal end of stream (upstream sent [DONE] or the
	// equivalent terminal marker).
	Done
	// Audio carries raw audio bytes (TTS passthrough), bypassing SSE
	// rendering entirely.
	Audio
	// Error carries an upstream-reported error to surface to the caller.
	Error
)

// Event is one normalized unit of provider stream output.
type Event struct {
	Kind Kind

	Text string // TextDelta

	Role string // RoleAnnounce

	ToolCallID     string // ToolCallOpen
	FunctionName   string // ToolCallOpen
	ArgumentsDelta string // ToolCallArguments

	PromptTokens     int // Usage
	CompletionTokens int // Usage

	Audio []byte // Audio

	Err error // Error
}
