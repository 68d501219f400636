package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fangyuan99/uni-api/internal/config"
	"github.com/fangyuan99/uni-api/internal/credential"
	"github.com/fangyuan99/uni-api/internal/endpoint"
	"github.com/fangyuan99/uni-api/internal/llmevent"
	"github.com/fangyuan99/uni-api/internal/provideradapter/azure"
	"github.com/fangyuan99/uni-api/internal/provideradapter/claude"
	"github.com/fangyuan99/uni-api/internal/provideradapter/cloudflare"
	"github.com/fangyuan99/uni-api/internal/provideradapter/cohere"
	"github.com/fangyuan99/uni-api/internal/provideradapter/gemini"
	openaiadapter "github.com/fangyuan99/uni-api/internal/provideradapter/openai"
	"github.com/fangyuan99/uni-api/internal/provideradapter/vertexclaude"
	"github.com/fangyuan99/uni-api/internal/ratelimit"
	"github.com/fangyuan99/uni-api/internal/vertexregion"
)

// parseFunc is the signature every provideradapter package exposes.
type parseFunc func(ctx context.Context, body io.Reader, out chan<- llmevent.Event) error

// parsersByEngine covers the closed set of supported provider variants:
// {gpt, openrouter, azure, gemini, vertex-gemini, claude, vertex-claude,
// cloudflare, cohere, tts}. gpt/openrouter/tts all speak the plain
// OpenAI-compatible SSE shape; vertex-gemini reuses the same lexical
// scanner as gemini (identical framing); only vertex-claude's tool-call
// trigger differs, hence its own package.
var parsersByEngine = map[string]parseFunc{
	"openai":        openaiadapter.ParseStream,
	"gpt":           openaiadapter.ParseStream,
	"openrouter":    openaiadapter.ParseStream,
	"tts":           openaiadapter.ParseStream,
	"azure":         azure.ParseStream,
	"claude":        claude.ParseStream,
	"vertexclaude":  vertexclaude.ParseStream,
	"vertex-claude": vertexclaude.ParseStream,
	"gemini":        gemini.ParseStream,
	"vertex-gemini": gemini.ParseStream,
	"cloudflare":    cloudflare.ParseStream,
	"cohere":        cohere.ParseStream,
}

// vertexEngines identifies which engine strings dispatch against Vertex
// AI and therefore need a region picked from internal/vertexregion.
var vertexEngines = map[string]bool{
	"vertexclaude":  true,
	"vertex-claude": true,
	"vertex-gemini": true,
}

// vertexRegionPool resolves the region rotation pool for a Vertex
// provider from its first configured model name (one provider entry
// serves one model family in practice), falling back to the
// Claude-3-Sonnet/Gemini-2 region lists when no model is configured.
func vertexRegionPool(engine string, models []string) *credential.Pool[string] {
	if !vertexEngines[engine] {
		return nil
	}

	model := ""
	if len(models) > 0 {
		model = models[0]
	}

	family := "claude-3-sonnet"
	switch {
	case engine == "vertex-gemini":
		family = "gemini-2"
		if containsFold(model, "gemini-1") {
			family = "gemini-1"
		}
	case containsFold(model, "haiku"):
		family = "claude-3-haiku"
	case containsFold(model, "opus"):
		family = "claude-3-opus"
	case containsFold(model, "3-5-sonnet"), containsFold(model, "3.5-sonnet"):
		family = "claude-3-5-sonnet"
	}

	p, _ := vertexregion.Lookup(family)
	return p
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Runtime is one configured upstream provider, ready to serve requests.
type Runtime struct {
	Name      string
	Engine    string
	Endpoints endpoint.Bundle
	Keys      *credential.Pool[string]
	Models    map[string]bool
	Tools     bool
	Parse     parseFunc
	ProjectID string

	// Regions is non-nil only for engines that dispatch against Vertex
	// AI, where the upstream URL embeds a region rotated the same way a
	// credential would be.
	Regions *credential.Pool[string]
}

// BuildRuntimes turns loaded provider configs into ready Runtimes, one per
// configured provider entry.
func BuildRuntimes(cfg *config.Config) ([]*Runtime, error) {
	var runtimes []*Runtime

	for _, p := range cfg.Providers {
		parse, ok := parsersByEngine[p.Provider]
		if !ok {
			return nil, fmt.Errorf("httpapi: unknown provider engine %q", p.Provider)
		}

		bundle, err := endpoint.Derive(p.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("httpapi: provider %q: %w", p.Provider, err)
		}

		rateLimits := credential.RateLimits{}
		for key, limitString := range p.RateLimitStrings() {
			windows, err := ratelimit.Parse(limitString)
			if err != nil {
				return nil, fmt.Errorf("httpapi: provider %q: %w", p.Provider, err)
			}
			rateLimits[key] = windows
		}

		models := make(map[string]bool, len(p.Models))
		for _, m := range p.Models {
			models[m] = true
		}

		runtimes = append(runtimes, &Runtime{
			Name:      p.Provider,
			Engine:    p.Provider,
			Endpoints: bundle,
			Keys:      credential.New(p.APIKeys, credential.Algorithm(p.ScheduleAlgorithm()), rateLimits),
			Models:    models,
			Tools:     p.ToolsEnabled(),
			Parse:     parse,
			ProjectID: p.ProjectID,
			Regions:   vertexRegionPool(p.Provider, p.Models),
		})
	}

	return runtimes, nil
}

// SupportsModel reports whether this runtime serves model, or serves every
// model when no explicit list was configured.
func (r *Runtime) SupportsModel(model string) bool {
	if len(r.Models) == 0 {
		return true
	}
	return r.Models[model]
}

// Dispatch opens the upstream streaming request for model using the next
// available credential (and, for Vertex engines, the next rotated
// region) and returns the raw response body for the caller to hand to
// r.Parse.
func (r *Runtime) Dispatch(ctx context.Context, client *http.Client, model string, payload io.Reader) (*http.Response, error) {
	key, err := r.Keys.Next(model)
	if err != nil {
		return nil, err
	}

	url := r.Endpoints.ChatCompletions
	if r.Regions != nil {
		region, err := r.Regions.Next(model)
		if err != nil {
			return nil, fmt.Errorf("httpapi: no vertex region available for %s: %w", r.Name, err)
		}
		url = r.vertexURL(region, model)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, payload)
	if err != nil {
		return nil, fmt.Errorf("httpapi: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpapi: dispatch to %s: %w", r.Name, err)
	}
	return resp, nil
}

// vertexURL builds the regional Vertex AI publisher-model endpoint,
// matching the shape Google documents for both the Claude and Gemini
// partner models: a region-prefixed host, the project under
// /v1/projects/{project}/locations/{region}, and a streaming verb.
func (r *Runtime) vertexURL(region, model string) string {
	publisher := "google"
	verb := "streamGenerateContent"
	if strings.Contains(r.Engine, "claude") {
		publisher = "anthropic"
		verb = "streamRawPredict"
	}
	return fmt.Sprintf(
		"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/%s/models/%s:%s",
		region, r.ProjectID, region, publisher, model, verb,
	)
}
