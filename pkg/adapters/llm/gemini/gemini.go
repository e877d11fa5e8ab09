package gemini

import (
	"context"
	"fmt"
	"os"
	"strings"

	genai "google.golang.org/genai"

	"github.com/wilhg/toolspec/pkg/adapters/llm"
)

const (
	defaultModel = "gemini-2.5-flash-lite"
	// EnvAPIKey supplies the credential when cfg has none.
	EnvAPIKey = "GOOGLE_API_KEY"
)

type clientWrapper struct {
	client *genai.Client
	model  string
}

func (c *clientWrapper) Name() string { return "gemini" }

func (c *clientWrapper) Generate(ctx context.Context, messages []llm.Message, opts map[string]any) (llm.GenerateResult, error) {
	model := c.model
	if v, ok := llm.String(opts, llm.OptModel); ok {
		model = v
	}

	// System messages become the system instruction; the rest are turns.
	cfg := &genai.GenerateContentConfig{}
	var system []string
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, m.Content)
		case llm.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n"), genai.RoleUser)
	}
	if v, ok := llm.Float(opts, llm.OptTemperature); ok {
		cfg.Temperature = genai.Ptr(float32(v))
	}
	if v, ok := llm.Int(opts, llm.OptMaxTokens); ok && v > 0 {
		cfg.MaxOutputTokens = int32(v)
	}

	res, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return llm.GenerateResult{}, err
	}
	out := llm.GenerateResult{Text: res.Text(), Model: model}
	if u := res.UsageMetadata; u != nil {
		out.PromptTokens = int(u.PromptTokenCount)
		out.OutputTokens = int(u.CandidatesTokenCount)
		out.TotalTokens = int(u.TotalTokenCount)
	}
	return out, nil
}

// Factory creates a Gemini LLM client using GOOGLE_API_KEY by default.
// cfg keys: api_key, model, base_url, http_client.
func Factory(ctx context.Context, cfg map[string]any) (llm.LLM, error) { // nolint: revive
	apiKey := os.Getenv(EnvAPIKey)
	if v, ok := llm.String(cfg, llm.CfgAPIKey); ok {
		apiKey = v
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: missing API key; set %s or cfg.api_key", EnvAPIKey)
	}
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: llm.HTTPClient(cfg),
	}
	if v, ok := llm.String(cfg, llm.CfgBaseURL); ok {
		cc.HTTPOptions.BaseURL = v
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	model := defaultModel
	if v, ok := llm.String(cfg, llm.CfgModel); ok {
		model = v
	}
	return &clientWrapper{client: client, model: model}, nil
}

func init() {
	_ = llm.Register("gemini", Factory)
}
