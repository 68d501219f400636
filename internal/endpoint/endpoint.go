// Package endpoint derives the full set of provider endpoint URLs from a
// single configured base API URL: split the path on "chat/completions" to
// recover whatever prefix precedes the OpenAI-compatible v1 surface, then
// re-append each well-known suffix.
package endpoint

import "net/url"

// Bundle is the set of endpoint URLs derived from one base API URL.
type Bundle struct {
	BaseURL               string
	V1URL                 string
	Models                string
	ChatCompletions        string
	ImagesGenerations      string
	AudioTranscriptions    string
	AudioSpeech            string
	Moderations            string
	Embeddings             string
}

// Derive parses apiURL and builds a Bundle. A malformed apiURL is returned
// as an error; derivation otherwise never fails.
func Derive(apiURL string) (Bundle, error) {
	parsed, err := url.Parse(apiURL)
	if err != nil {
		return Bundle{}, err
	}

	beforeV1 := ""
	if parsed.Path != "" && parsed.Path != "/" {
		beforeV1 = splitBeforeChatCompletions(parsed.Path)
	}

	build := func(suffix string) string {
		u := *parsed
		u.Path = beforeV1 + suffix
		u.RawQuery = ""
		u.Fragment = ""
		return u.String()
	}

	return Bundle{
		BaseURL:             build(""),
		V1URL:               build(""),
		Models:              build("models"),
		ChatCompletions:     build("chat/completions"),
		ImagesGenerations:   build("images/generations"),
		AudioTranscriptions: build("audio/transcriptions"),
		AudioSpeech:         build("audio/speech"),
		Moderations:         build("moderations"),
		Embeddings:          build("embeddings"),
	}, nil
}

// splitBeforeChatCompletions returns the portion of path before a
// "chat/completions" segment, matching Python's
// path.split("chat/completions")[0].
func splitBeforeChatCompletions(path string) string {
	const marker = "chat/completions"
	for i := 0; i+len(marker) <= len(path); i++ {
		if path[i:i+len(marker)] == marker {
			return path[:i]
		}
	}
	return path
}
