// Package vertexregion holds the hardcoded Vertex AI region rotation pools
// for each supported Claude/Gemini model family. A region string is just
// as opaque a credential to the pool as an API key, so these reuse
// internal/credential.Pool directly.
package vertexregion

import "github.com/fangyuan99/uni-api/internal/credential"

// Pools exposes the six hardcoded region rotation pools by model family.
var Pools = map[string]*credential.Pool[string]{
	"claude-3-5-sonnet": newPool([]string{
		"us-east5", "europe-west1",
	}),
	"claude-3-sonnet": newPool([]string{
		"us-east5", "us-central1", "asia-southeast1",
	}),
	"claude-3-opus": newPool([]string{
		"us-east5",
	}),
	"claude-3-haiku": newPool([]string{
		"us-east5", "us-central1", "europe-west1", "europe-west4",
	}),
	"gemini-1": newPool([]string{
		"us-central1", "us-east4", "us-west1", "us-west4", "europe-west1", "europe-west2",
	}),
	"gemini-2": newPool([]string{
		"us-central1",
	}),
}

// aliases maps the short family names (c35s, c3s, c3o, c3h, gemini1,
// gemini2) to the descriptive keys above.
var aliases = map[string]string{
	"c35s":    "claude-3-5-sonnet",
	"c3s":     "claude-3-sonnet",
	"c3o":     "claude-3-opus",
	"c3h":     "claude-3-haiku",
	"gemini1": "gemini-1",
	"gemini2": "gemini-2",
}

// Lookup resolves either a descriptive key or one of the short aliases to
// its region pool.
func Lookup(key string) (*credential.Pool[string], bool) {
	if p, ok := Pools[key]; ok {
		return p, true
	}
	if canonical, ok := aliases[key]; ok {
		p, ok := Pools[canonical]
		return p, ok
	}
	return nil, false
}

func newPool(regions []string) *credential.Pool[string] {
	return credential.New(regions, credential.RoundRobin, nil)
}
