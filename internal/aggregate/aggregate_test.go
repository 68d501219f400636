package aggregate

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestGeminiConcatenatesAcrossArray(t *testing.T) {
	body := `[
		{"candidates":[{"content":{"role":"model","parts":[{"text":"Hel"}]}}]},
		{"candidates":[{"content":{"role":"model","parts":[{"text":"lo"}]}}],"usageMetadata":{"totalTokenCount":5}}
	]`
	res, err := Gemini([]byte(body))
	if err != nil {
		t.Fatalf("Gemini: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(res.Text), &decoded); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if decoded["content"] != "Hello" {
		t.Fatalf("content = %v, want %q", decoded["content"], "Hello")
	}
	if decoded["role"] != "assistant" {
		t.Fatalf("role = %v, want assistant", decoded["role"])
	}
	if _, ok := decoded["usageMetadata"]; !ok {
		t.Fatal("expected usageMetadata from the last item to be preserved")
	}
}

func TestGeminiSingleObjectFallback(t *testing.T) {
	body := `{"candidates":[{"content":{"role":"model","parts":[{"text":"hi"}]}}]}`
	res, err := Gemini([]byte(body))
	if err != nil {
		t.Fatalf("Gemini: %v", err)
	}
	if !strings.Contains(res.Text, "hi") {
		t.Fatalf("result = %q", res.Text)
	}
}

func TestAzureStripsFilterResults(t *testing.T) {
	body := `{"prompt_filter_results":[1,2],"choices":[{"content_filter_results":{"x":1},"message":{"content":"ok"}}]}`
	res, err := Azure([]byte(body))
	if err != nil {
		t.Fatalf("Azure: %v", err)
	}
	if strings.Contains(res.Text, "prompt_filter_results") || strings.Contains(res.Text, "content_filter_results") {
		t.Fatalf("result still contains filter results: %q", res.Text)
	}
	if !strings.Contains(res.Text, `"content":"ok"`) {
		t.Fatalf("result dropped message content: %q", res.Text)
	}
}

func TestTTSPassesRawBytes(t *testing.T) {
	data := []byte{0xFF, 0xFB, 0x00}
	res := TTS(data)
	if string(res.Audio) != string(data) {
		t.Fatalf("audio = %v, want %v", res.Audio, data)
	}
}

func TestPassthroughLeavesBodyUnchanged(t *testing.T) {
	body := `{"anything":"goes"}`
	res := Passthrough([]byte(body))
	if res.Text != body {
		t.Fatalf("Text = %q, want %q", res.Text, body)
	}
}
