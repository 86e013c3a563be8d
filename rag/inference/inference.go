// Package inference adapts a langchaingo llms.Model to rag.InferenceProvider.
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/sentinel-zero/sentinel/rag"
)

// Provider sends chat completions to an llms.Model.
type Provider struct {
	model       llms.Model
	temperature float64
	maxTokens   int
}

var _ rag.InferenceProvider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithTemperature sets the sampling temperature for every call.
func WithTemperature(t float64) Option {
	return func(p *Provider) { p.temperature = t }
}

// WithMaxTokens caps the completion length. Zero leaves the provider default.
func WithMaxTokens(n int) Option {
	return func(p *Provider) { p.maxTokens = n }
}

// New wraps model.
func New(model llms.Model, opts ...Option) *Provider {
	p := &Provider{model: model}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OpenAICompatible builds a Provider for any OpenAI-compatible chat endpoint,
// Groq included.
func OpenAICompatible(baseURL, token, model string, opts ...Option) (*Provider, error) {
	clientOpts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(model),
	}
	if baseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create chat client for %s: %w", model, err)
	}
	return New(llm, opts...), nil
}

// Complete returns the text of the first choice.
func (p *Provider) Complete(ctx context.Context, system string, userTurns []string) (string, error) {
	return p.generate(ctx, buildMessages(system, userTurns), p.callOptions()...)
}

// CompleteJSON requests JSON output. The schema is appended to the system
// instruction since JSON mode alone does not constrain the shape.
func (p *Provider) CompleteJSON(ctx context.Context, system string, userTurns []string, schema map[string]any) (string, error) {
	if schema != nil {
		raw, err := json.Marshal(schema)
		if err != nil {
			return "", fmt.Errorf("encode response schema: %w", err)
		}
		system = strings.TrimSpace(system) +
			"\n\nRespond with a single JSON object that validates against this JSON Schema:\n" + string(raw)
	}
	opts := append(p.callOptions(), llms.WithJSONMode())
	return p.generate(ctx, buildMessages(system, userTurns), opts...)
}

func (p *Provider) callOptions() []llms.CallOption {
	opts := []llms.CallOption{llms.WithTemperature(p.temperature)}
	if p.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(p.maxTokens))
	}
	return opts
}

func (p *Provider) generate(ctx context.Context, messages []llms.MessageContent, opts ...llms.CallOption) (string, error) {
	resp, err := p.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", rag.ErrEmptyCompletion
	}
	content := resp.Choices[0].Content
	if strings.TrimSpace(content) == "" {
		return "", rag.ErrEmptyCompletion
	}
	return content, nil
}

func buildMessages(system string, userTurns []string) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(userTurns)+1)
	if system != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	for _, turn := range userTurns {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, turn))
	}
	return messages
}
