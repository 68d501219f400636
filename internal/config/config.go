// Package config loads the provider/credential YAML configuration,
// optionally fetching it from CONFIG_URL over HTTP/2 when no local file is
// present. Scope is intentionally narrow: parse the schema and apply the
// handful of documented defaults/overrides; live reload, model-discovery
// probing, and YAML rewriting are out of scope and stay with whatever
// external collaborator owns configuration management.
package config

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/net/http2"
)

// Preferences holds the per-provider credential pool tuning knobs nested
// under providers[].preferences in the YAML schema.
type Preferences struct {
	// APIKeyRateLimit is either a plain rate-limit string applied under
	// the "default" key, or a map of model (or "default") to rate-limit
	// string.
	APIKeyRateLimit interface{} `yaml:"api_key_rate_limit,omitempty" mapstructure:"api_key_rate_limit"`
	// APIKeyScheduleAlgorithm selects round_robin, random, or
	// fixed_priority; defaults to round_robin when empty.
	APIKeyScheduleAlgorithm string `yaml:"api_key_schedule_algorithm,omitempty" mapstructure:"api_key_schedule_algorithm"`
}

// ProviderConfig is one entry in the top-level "providers" list.
type ProviderConfig struct {
	Provider    string      `yaml:"provider" mapstructure:"provider"`
	BaseURL     string      `yaml:"base_url" mapstructure:"base_url"`
	APIKeys     []string    `yaml:"api" mapstructure:"api"`
	Models      []string    `yaml:"model" mapstructure:"model"`
	Tools       *bool       `yaml:"tools" mapstructure:"tools"`
	ProjectID   string      `yaml:"project_id,omitempty" mapstructure:"project_id"`
	CFAccountID string      `yaml:"cf_account_id,omitempty" mapstructure:"cf_account_id"`
	Preferences Preferences `yaml:"preferences,omitempty" mapstructure:"preferences"`
}

// RateLimitStrings normalizes Preferences.APIKeyRateLimit — which may be
// a bare string (applied to "default") or a map of key to rate-limit
// string — into a plain map, defaulting to {"default": "999999/min"}
// when unset.
func (p ProviderConfig) RateLimitStrings() map[string]string {
	switch v := p.Preferences.APIKeyRateLimit.(type) {
	case string:
		return map[string]string{"default": v}
	case map[string]interface{}:
		out := make(map[string]string, len(v))
		for k, raw := range v {
			if s, ok := raw.(string); ok {
				out[k] = s
			}
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]string, len(v))
		for k, raw := range v {
			ks, kok := k.(string)
			vs, vok := raw.(string)
			if kok && vok {
				out[ks] = vs
			}
		}
		return out
	default:
		return map[string]string{"default": "999999/min"}
	}
}

// ScheduleAlgorithm returns the configured pool rotation algorithm,
// defaulting to round_robin.
func (p ProviderConfig) ScheduleAlgorithm() string {
	if p.Preferences.APIKeyScheduleAlgorithm == "" {
		return "round_robin"
	}
	return p.Preferences.APIKeyScheduleAlgorithm
}

// APIKeyConfig is one entry in the top-level "api_keys" list: an inbound
// key accepted by this gateway and the models it's allowed to reach.
type APIKeyConfig struct {
	API    string   `yaml:"api" mapstructure:"api"`
	Models []string `yaml:"model" mapstructure:"model"`
	Role   string   `yaml:"role,omitempty" mapstructure:"role"`
}

// Config is the full loaded configuration.
type Config struct {
	Providers []ProviderConfig `yaml:"providers" mapstructure:"providers"`
	APIKeys   []APIKeyConfig   `yaml:"api_keys" mapstructure:"api_keys"`
}

// ToolsEnabled reports whether tool calling is enabled for this provider,
// defaulting to true when unset.
func (p ProviderConfig) ToolsEnabled() bool {
	if p.Tools == nil {
		return true
	}
	return *p.Tools
}

const configURLEnv = "CONFIG_URL"

// Load reads config from path if it exists, otherwise falls back to
// fetching CONFIG_URL (if set) over HTTP/2. Parsing goes through viper
// rather than a direct yaml.Unmarshal so provider entries benefit from
// mapstructure-based decoding; unlike a long-running config layer this
// loader reads once at startup and does not watch for changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		url := os.Getenv(configURLEnv)
		if url == "" {
			return nil, fmt.Errorf("config: %s not found and %s is not set", path, configURLEnv)
		}
		data, err = fetchConfigURL(url)
		if err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	for i := range cfg.Providers {
		applyBaseURLOverrides(&cfg.Providers[i])
	}

	return &cfg, nil
}

// applyBaseURLOverrides: a configured project_id forces the Vertex AI
// base URL regardless of what base_url says, and a configured
// cf_account_id forces the Cloudflare base URL.
func applyBaseURLOverrides(p *ProviderConfig) {
	if p.ProjectID != "" {
		p.BaseURL = "https://aiplatform.googleapis.com/"
	}
	if p.CFAccountID != "" {
		p.BaseURL = "https://api.cloudflare.com/"
	}
}

// fetchConfigURL downloads the config file over HTTP/2: one overall 100s
// request timeout (no separate connect timeout), TLS verification on,
// redirects followed, and a curl-compatible User-Agent.
func fetchConfigURL(url string) ([]byte, error) {
	transport := &http2.Transport{
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}
	client := &http.Client{
		Transport: transport,
		Timeout:   100 * time.Second,
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("config: build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "curl/7.68.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("config: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("config: fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("config: read body from %s: %w", url, err)
	}
	return body, nil
}
