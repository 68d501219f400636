// Package aggregate implements the non-streaming response path: given a
// full (non-SSE) upstream response body, produce the single payload (or
// raw audio bytes) the caller returns, preserving each engine's
// response-shape quirks. Only Gemini's result is reshaped, and not into a
// chat.completion object (see Gemini).
package aggregate

import (
	"encoding/json"
	"fmt"
)

// Result is either a JSON body (Text) or raw bytes (Audio, for TTS).
type Result struct {
	Audio []byte
	Text  string
}

// Gemini aggregates a Gemini non-streaming response, which upstream
// returns as a JSON array of partial candidates rather than one object:
// concatenate candidates[0].content.parts[0].text across every element,
// and take usageMetadata from the last element that carries one. The
// result is a flat JSON object with "role" (always "assistant"; the
// upstream role is not read), "content", and "usageMetadata" when
// present; it is not wrapped in a chat.completion object.
func Gemini(body []byte) (Result, error) {
	var items []map[string]interface{}
	if err := json.Unmarshal(body, &items); err != nil {
		// Some deployments return a single object instead of an array;
		// retry as a single-element array.
		var single map[string]interface{}
		if err2 := json.Unmarshal(body, &single); err2 != nil {
			return Result{}, fmt.Errorf("aggregate: gemini: %w", err)
		}
		items = []map[string]interface{}{single}
	}

	var text string
	var usage map[string]interface{}

	for _, item := range items {
		candidates, _ := item["candidates"].([]interface{})
		if len(candidates) == 0 {
			continue
		}
		candidate, _ := candidates[0].(map[string]interface{})
		content, _ := candidate["content"].(map[string]interface{})
		parts, _ := content["parts"].([]interface{})
		if len(parts) > 0 {
			if part, ok := parts[0].(map[string]interface{}); ok {
				if t, ok := part["text"].(string); ok {
					text += t
				}
			}
		}
		if u, ok := item["usageMetadata"].(map[string]interface{}); ok {
			usage = u
		}
	}

	// Gemini's role is always "model"; anything else is unexpected but we
	// still normalize to "assistant" rather than fail the request.
	resp := map[string]interface{}{
		"role": "assistant",
	}
	if usage != nil {
		resp["usageMetadata"] = usage
	}
	resp["content"] = text

	out, err := json.Marshal(resp)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: string(out)}, nil
}

// Azure strips content_filter_results from each choice and
// prompt_filter_results from the root object before passthrough.
func Azure(body []byte) (Result, error) {
	var content map[string]interface{}
	if err := json.Unmarshal(body, &content); err != nil {
		return Result{}, fmt.Errorf("aggregate: azure: %w", err)
	}

	delete(content, "prompt_filter_results")
	if choices, ok := content["choices"].([]interface{}); ok {
		for _, c := range choices {
			if choice, ok := c.(map[string]interface{}); ok {
				delete(choice, "content_filter_results")
			}
		}
	}

	out, err := json.Marshal(content)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: string(out)}, nil
}

// TTS passes raw audio bytes through unmodified.
func TTS(body []byte) Result {
	return Result{Audio: body}
}

// Passthrough returns body unmodified, for every engine with no special
// non-streaming aggregation rule.
func Passthrough(body []byte) Result {
	return Result{Text: string(body)}
}
