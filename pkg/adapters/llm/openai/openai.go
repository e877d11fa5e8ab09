package openai

import (
	"context"
	"fmt"
	"os"

	oa "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/wilhg/toolspec/pkg/adapters/llm"
)

const (
	defaultModel = "gpt-4o-mini"
	// EnvAPIKey supplies the credential when cfg has none.
	EnvAPIKey = "OPENAI_API_KEY"
)

type clientWrapper struct {
	client oa.Client
	model  string
}

func (c *clientWrapper) Name() string { return "openai" }

func (c *clientWrapper) Generate(ctx context.Context, messages []llm.Message, opts map[string]any) (llm.GenerateResult, error) {
	model := c.model
	if v, ok := llm.String(opts, llm.OptModel); ok {
		model = v
	}

	// Map our messages to SDK union type
	mm := make([]oa.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			mm = append(mm, oa.SystemMessage(m.Content))
		case llm.RoleAssistant:
			mm = append(mm, oa.AssistantMessage(m.Content))
		default:
			mm = append(mm, oa.UserMessage(m.Content))
		}
	}

	params := oa.ChatCompletionNewParams{
		Model:    oa.ChatModel(model),
		Messages: mm,
	}
	if v, ok := llm.Float(opts, llm.OptTemperature); ok {
		params.Temperature = oa.Float(v)
	}
	if v, ok := llm.Int(opts, llm.OptMaxTokens); ok && v > 0 {
		params.MaxCompletionTokens = oa.Int(int64(v))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.GenerateResult{}, err
	}
	var out string
	if len(resp.Choices) > 0 {
		out = resp.Choices[0].Message.Content
	}
	usage := resp.Usage
	return llm.GenerateResult{
		Text:         out,
		PromptTokens: int(usage.PromptTokens),
		OutputTokens: int(usage.CompletionTokens),
		TotalTokens:  int(usage.TotalTokens),
		Model:        model,
	}, nil
}

// Factory builds the OpenAI provider. cfg keys: api_key, model, base_url,
// http_client. SDK-level retries are disabled.
func Factory(ctx context.Context, cfg map[string]any) (llm.LLM, error) { // nolint: revive
	_ = ctx
	apiKey := os.Getenv(EnvAPIKey)
	if v, ok := llm.String(cfg, llm.CfgAPIKey); ok {
		apiKey = v
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai: missing API key; set %s or cfg.api_key", EnvAPIKey)
	}
	model := defaultModel
	if v, ok := llm.String(cfg, llm.CfgModel); ok {
		model = v
	}

	ropts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(llm.HTTPClient(cfg)),
	}
	if v, ok := llm.String(cfg, llm.CfgBaseURL); ok {
		ropts = append(ropts, option.WithBaseURL(v))
	}
	c := oa.NewClient(ropts...)
	return &clientWrapper{client: c, model: model}, nil
}

func init() {
	_ = llm.Register("openai", Factory)
}
