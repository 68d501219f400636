package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fangyuan99/uni-api/internal/audio"
)

// ErrNoData is returned when inspection of the first substantive frame
// finds it unusable (audio bytes of no recognized format, a premature
// [DONE], an error-trigger match, invalid JSON, or an empty message body
// for a non-special engine in non-stream mode).
var ErrNoData = errors.New("streaming: no data returned")

// UpstreamError is returned when the first frame's JSON body itself
// carries a populated "error" field, with status_code/details pulled from
// that body.
type UpstreamError struct {
	StatusCode int
	Detail     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("streaming: upstream error (status %d): %s", e.StatusCode, e.Detail)
}

// specialEngines are exempt from the empty-message-content check, matching
// engines whose non-streaming shape doesn't carry choices[].message.content.
var specialEngines = map[string]bool{
	"tts": true, "embedding": true, "dalle": true, "moderation": true, "whisper": true,
}

// WrapFirstChunk inspects frames from src, holding back any leading
// heartbeat frames, then validating the first substantive frame before
// returning the still-open remainder of the stream (the held heartbeats
// first, untouched). If that inspection fails, an already-closed channel
// and a non-nil error are returned; the caller should respond with an
// HTTP error rather than starting to stream.
func WrapFirstChunk(ctx context.Context, src <-chan Frame, engine string, stream bool, errorTriggers []string) (<-chan Frame, error) {
	out := make(chan Frame)
	var leading []Frame

	for {
		select {
		case <-ctx.Done():
			close(out)
			return out, ctx.Err()
		case frame, ok := <-src:
			if !ok {
				close(out)
				return out, ErrNoData
			}
			if frame.IsHeartbeat() {
				leading = append(leading, frame)
				continue
			}

			isAudio, err := checkFrame(frame, engine, stream, errorTriggers)
			if err != nil {
				close(out)
				return out, err
			}

			go forwardRemainder(ctx, out, leading, frame, src, isAudio)
			return out, nil
		}
	}
}

// forwardRemainder replays any buffered leading heartbeats, the
// already-inspected first frame, then forwards everything else from src
// without further inspection -- first-chunk wrapping only ever inspects
// the first substantive frame.
func forwardRemainder(ctx context.Context, out chan<- Frame, leading []Frame, first Frame, src <-chan Frame, audioMode bool) {
	defer close(out)

	send := func(f Frame) bool {
		select {
		case out <- f:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for _, f := range leading {
		if !send(f) {
			return
		}
	}
	if !send(first) {
		return
	}
	if audioMode {
		// Audio passthrough forwards raw bytes without further inspection.
	}

	for {
		select {
		case frame, ok := <-src:
			if !ok {
				return
			}
			if !send(frame) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func checkFrame(f Frame, engine string, stream bool, errorTriggers []string) (isAudio bool, err error) {
	if f.IsAudio() {
		// Only bytes of a recognized audio format pass through raw.
		if audio.Identify(f.Audio) == audio.Unknown {
			return false, ErrNoData
		}
		return true, nil
	}

	content := strings.TrimSpace(f.Line)
	content = strings.TrimPrefix(content, "data:")
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "[DONE]") {
		return false, ErrNoData
	}

	scanTarget := tryUnicodeUnescape(content)
	for _, trig := range errorTriggers {
		if trig != "" && strings.Contains(scanTarget, trig) {
			return false, ErrNoData
		}
	}

	var parsed map[string]interface{}
	if jsonErr := json.Unmarshal([]byte(content), &parsed); jsonErr != nil {
		if !strings.Contains(content, "uni-api-heartbeat") {
			return false, ErrNoData
		}
		return false, nil
	}

	if errVal, ok := parsed["error"]; ok && isPopulatedError(errVal) {
		statusCode, detail := extractErrorDetail(parsed, errVal)
		if len(detail) > 300 {
			detail = detail[:300]
		}
		return false, &UpstreamError{StatusCode: statusCode, Detail: detail}
	}

	if !specialEngines[engine] && !stream {
		for _, trig := range errorTriggers {
			if trig != "" && strings.Contains(content, trig) {
				return false, ErrNoData
			}
		}
		if messageContentEmpty(parsed) {
			return false, ErrNoData
		}
	}

	return false, nil
}

// isPopulatedError treats an error object that is exactly
// {"message":"","type":"","param":"","code":null} as absent, not a real
// error.
func isPopulatedError(errVal interface{}) bool {
	m, ok := errVal.(map[string]interface{})
	if !ok {
		return errVal != nil
	}
	sentinel := map[string]interface{}{
		"message": "", "type": "", "param": "", "code": nil,
	}
	if len(m) != len(sentinel) {
		return true
	}
	for k, v := range sentinel {
		mv, present := m[k]
		if !present {
			return true
		}
		if v == nil {
			if mv != nil {
				return true
			}
			continue
		}
		if mv != v {
			return true
		}
	}
	return false
}

func extractErrorDetail(content map[string]interface{}, errVal interface{}) (int, string) {
	statusCode := 500
	if sc, ok := content["status_code"]; ok {
		switch v := sc.(type) {
		case float64:
			statusCode = int(v)
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				statusCode = n
			}
		}
	}

	if details, ok := content["details"]; ok {
		if s, ok := details.(string); ok {
			return statusCode, s
		}
		if b, err := json.Marshal(details); err == nil {
			return statusCode, string(b)
		}
	}

	b, _ := json.Marshal(errVal)
	return statusCode, string(b)
}

// messageContentEmpty checks choices[0].message.content, mirroring
// safe_get(content, "choices", 0, "message", "content").
func messageContentEmpty(content map[string]interface{}) bool {
	choices, ok := content["choices"].([]interface{})
	if !ok || len(choices) == 0 {
		return false
	}
	choice, ok := choices[0].(map[string]interface{})
	if !ok {
		return false
	}
	message, ok := choice["message"].(map[string]interface{})
	if !ok {
		return false
	}
	c, present := message["content"]
	if !present || c == nil {
		return true
	}
	s, ok := c.(string)
	return ok && s == ""
}

// tryUnicodeUnescape interprets \uXXXX escapes in s for trigger matching;
// falls back to s unchanged if s contains no such escapes or they don't
// parse.
func tryUnicodeUnescape(s string) string {
	if !strings.Contains(s, `\u`) {
		return s
	}
	var quoted string
	if err := json.Unmarshal([]byte(`"`+strings.ReplaceAll(s, `"`, `\"`)+`"`), &quoted); err == nil {
		return quoted
	}
	return s
}
