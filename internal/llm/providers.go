package llm

import (
	"context"
	"os"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"

	"github.com/lumatrade/council/internal/config"
)

// chatClient adapts an eino chat model to the Client contract and maps
// its failures onto the backend error taxonomy.
type chatClient struct {
	provider string
	model    string
	cm       model.ToolCallingChatModel
	window   int
}

func (c *chatClient) Model() string { return c.model }

func (c *chatClient) Complete(ctx context.Context, req Request) (*schema.Message, error) {
	if c.window > 0 && EstimateTokens(req.Messages) > c.window {
		return nil, Overflow(c.provider, c.model, errors.Errorf("prompt ~%d tokens exceeds window %d", EstimateTokens(req.Messages), c.window))
	}

	cm := c.cm
	if len(req.Tools) > 0 {
		bound, err := c.cm.WithTools(req.Tools)
		if err != nil {
			return nil, Malformed(c.provider, c.model, errors.Wrap(err, "bind tools"))
		}
		cm = bound
	}

	msg, err := cm.Generate(ctx, req.Messages)
	if err != nil {
		// Timeouts and transport errors are one kind: retryable.
		return nil, Unavailable(c.provider, c.model, err)
	}
	if msg == nil || (msg.Content == "" && len(msg.ToolCalls) == 0) {
		return nil, Malformed(c.provider, c.model, errors.New("empty completion"))
	}
	return msg, nil
}

// NewBinding builds the quick and deep tier clients from configuration.
// API keys come from the environment, never from config files. The
// llama.cpp provider speaks the OpenAI-compatible API of a local
// server; its batch/GPU tuning lives server-side and is carried in the
// config opaquely, only the context window is enforced client-side.
func NewBinding(ctx context.Context, cfg *config.Config) (*Binding, error) {
	quick, err := newProviderClient(ctx, cfg, cfg.QuickThinkLLM)
	if err != nil {
		return nil, errors.Wrap(err, "quick tier")
	}
	deep, err := newProviderClient(ctx, cfg, cfg.DeepThinkLLM)
	if err != nil {
		return nil, errors.Wrap(err, "deep tier")
	}
	return &Binding{Quick: quick, Deep: deep}, nil
}

func newProviderClient(ctx context.Context, cfg *config.Config, modelID string) (Client, error) {
	maxTokens := cfg.MaxTokensPerCall

	var (
		cm  model.ToolCallingChatModel
		err error
	)
	switch cfg.LLMProvider {
	case config.ProviderDeepSeek:
		cm, err = deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:    os.Getenv("DEEPSEEK_API_KEY"),
			BaseURL:   cfg.BackendURL,
			Model:     modelID,
			MaxTokens: maxTokens,
		})
	case config.ProviderLlamaCpp:
		// llama.cpp servers accept any key.
		cm, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   cfg.BackendURL,
			APIKey:    "local",
			Model:     modelID,
			MaxTokens: &maxTokens,
		})
	default:
		cm, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   cfg.BackendURL,
			APIKey:    os.Getenv("OPENAI_API_KEY"),
			Model:     modelID,
			MaxTokens: &maxTokens,
		})
	}
	if err != nil {
		return nil, errors.Wrapf(err, "create %s chat model %s", cfg.LLMProvider, modelID)
	}

	return &chatClient{
		provider: cfg.LLMProvider,
		model:    modelID,
		cm:       cm,
		window:   cfg.ContextWindow,
	}, nil
}
