// Package llm is the analysis-backend abstraction: a minimal chat interface
// and a registry of provider factories. Provider packages register
// themselves from init; import them for side effects.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Generate option keys.
const (
	OptModel       = "model"
	OptTemperature = "temperature"
	OptMaxTokens   = "max_tokens"
)

// Factory config keys.
const (
	CfgAPIKey     = "api_key"
	CfgModel      = "model"
	CfgBaseURL    = "base_url"
	CfgHTTPClient = "http_client"
)

// Message represents a chat message with a role and content.
type Message struct {
	Role    string
	Content string
}

// GenerateResult contains the model's text output and token usage if available.
type GenerateResult struct {
	Text         string
	PromptTokens int
	OutputTokens int
	TotalTokens  int
	Model        string
}

// LLM defines a minimal chat/text generation interface.
type LLM interface {
	// Name returns provider name (e.g., "openai").
	Name() string
	// Generate sends messages and returns a single textual reply. Providers
	// must not retry internally; callers own the retry policy.
	Generate(ctx context.Context, messages []Message, opts map[string]any) (GenerateResult, error)
}

// Factory constructs an LLM from provider-specific config.
type Factory func(ctx context.Context, cfg map[string]any) (LLM, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers an LLM factory under a provider name.
func Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("llm: empty provider name")
	}
	if f == nil {
		return fmt.Errorf("llm: nil factory for %q", name)
	}
	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := factories[name]; exists {
		return fmt.Errorf("llm: provider %q already registered", name)
	}
	factories[name] = f
	return nil
}

// Resolve gets a registered factory by name.
func Resolve(name string) (Factory, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// Names lists registered providers in sorted order.
func Names() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for n := range factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// New resolves provider and builds it with cfg.
func New(ctx context.Context, provider string, cfg map[string]any) (LLM, error) {
	f, ok := Resolve(provider)
	if !ok {
		return nil, fmt.Errorf("llm: unknown provider %q (registered: %v)", provider, Names())
	}
	return f(ctx, cfg)
}

// String returns cfg[key] when it is a non-empty string.
func String(cfg map[string]any, key string) (string, bool) {
	v, ok := cfg[key].(string)
	return v, ok && v != ""
}

// Float returns opts[key] as a float64 for any numeric value.
func Float(opts map[string]any, key string) (float64, bool) {
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Int returns opts[key] as an int for any integral value.
func Int(opts map[string]any, key string) (int, bool) {
	switch v := opts[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// HTTPClient returns cfg[CfgHTTPClient] or a client whose transport is
// instrumented with OpenTelemetry.
func HTTPClient(cfg map[string]any) *http.Client {
	if c, ok := cfg[CfgHTTPClient].(*http.Client); ok && c != nil {
		return c
	}
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}
