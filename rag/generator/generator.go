// Package generator renders the answer or critique prompt for a mode and
// sends it to the inference provider.
package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github.com/sentinel-zero/sentinel/log"
	"github.com/sentinel-zero/sentinel/rag"
)

// Generator produces the final answer for one invocation.
type Generator struct {
	model  rag.InferenceProvider
	logger log.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger used for rendered prompts at debug level.
func WithLogger(l log.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// New creates a Generator over model.
func New(model rag.InferenceProvider, opts ...Option) *Generator {
	g := &Generator{model: model, logger: &log.NoOpLogger{}}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the provider's reply unmodified. In evaluate mode the reply
// is expected to end with an X/10 score, which is not parsed here.
func (g *Generator) Generate(ctx context.Context, mode rag.Mode, query, retrieved string) (string, error) {
	const op = "generator.generate"

	system, user, err := Prompt(mode, query, retrieved)
	if err != nil {
		return "", rag.NewInferenceError(op, err)
	}
	g.logger.Debug("%s prompt: %d chars of context", mode, len(retrieved))

	answer, err := g.model.Complete(ctx, system, []string{user})
	if err != nil {
		return "", rag.NewInferenceError(op, err)
	}
	if strings.TrimSpace(answer) == "" {
		return "", rag.NewInferenceError(op, rag.ErrEmptyCompletion)
	}
	return answer, nil
}

// Prompt renders the system instruction and user turn for mode.
func Prompt(mode rag.Mode, query, retrieved string) (system, user string, err error) {
	var tmpl prompts.PromptTemplate
	switch mode {
	case rag.ModeQuery:
		system, tmpl = querySystem, queryPrompt
	case rag.ModeEvaluate:
		system, tmpl = evaluateSystem, evaluatePrompt
	default:
		return "", "", fmt.Errorf("%w: %q", rag.ErrInvalidMode, mode)
	}

	user, err = tmpl.Format(map[string]any{
		"context": retrieved,
		"query":   query,
	})
	if err != nil {
		return "", "", fmt.Errorf("render %s prompt: %w", mode, err)
	}
	return system, user, nil
}
