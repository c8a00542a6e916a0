package assistant

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/standardbeagle/livedit/internal/editor"
)

// LLM regenerates markup through any langchaingo model.
type LLM struct {
	model llms.Model
}

// NewLLM wraps a langchaingo model.
func NewLLM(model llms.Model) *LLM {
	return &LLM{model: model}
}

// NewOpenAI returns a regenerator for an OpenAI-compatible endpoint.
func NewOpenAI(apiKey, model, baseURL string) (*LLM, error) {
	if model == "" {
		model = DefaultOpenAIModel
	}
	opts := []openai.Option{openai.WithToken(apiKey), openai.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return NewLLM(m), nil
}

// Regenerate implements editor.Regenerator.
func (l *LLM) Regenerate(ctx context.Context, req editor.RegenerateRequest) (string, error) {
	resp, err := l.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, Prompt(req)),
	}, llms.WithTemperature(0.4))
	if err != nil {
		return "", fmt.Errorf("llm: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return Clean(resp.Choices[0].Content)
}
