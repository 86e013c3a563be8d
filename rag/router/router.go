// Package router classifies a query into a rag.Intent and extracts the UPSC
// entities it mentions.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sentinel-zero/sentinel/log"
	"github.com/sentinel-zero/sentinel/rag"
)

// SystemPrompt is the fixed routing instruction.
const SystemPrompt = `You are an expert UPSC Evaluation Engine routing mechanism.
Your strictly limited job is to analyze the user's input, determine their analytical intent, and extract exact entities for a knowledge graph vector search.

Classify the intent as exactly one of:
- concept_explanation: the user wants a concept, provision or doctrine explained
- pyq_analysis: the user asks about or quotes a past year UPSC question
- general_search: anything else

List the specific UPSC entities in the input (Articles, judgments, committees, terms). Use an empty list when there are none.`

// Schema is the JSON Schema of a rag.RouteDecision.
var Schema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"intent": map[string]any{
			"type": "string",
			"enum": []string{
				string(rag.IntentConceptExplanation),
				string(rag.IntentPYQAnalysis),
				string(rag.IntentGeneralSearch),
			},
			"description": "Must be exactly one of: 'concept_explanation', 'pyq_analysis', or 'general_search'",
		},
		"entities": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Specific UPSC entities (Articles, Judgments, terms) extracted from the query for graph lookup",
		},
	},
	"required":             []string{"intent", "entities"},
	"additionalProperties": false,
}

// Router asks an inference provider for a RouteDecision.
type Router struct {
	model  rag.InferenceProvider
	logger log.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger used for raw provider output at debug level.
func WithLogger(l log.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New creates a Router over model.
func New(model rag.InferenceProvider, opts ...Option) *Router {
	r := &Router{model: model, logger: &log.NoOpLogger{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route classifies query. Every failure, including output that does not fit
// the closed intent set, is a rag.KindInferenceProvider error.
func (r *Router) Route(ctx context.Context, query string) (rag.RouteDecision, error) {
	const op = "router.route"

	if strings.TrimSpace(query) == "" {
		return rag.RouteDecision{}, rag.NewInferenceError(op, rag.ErrEmptyQuery)
	}

	raw, err := r.model.CompleteJSON(ctx, SystemPrompt, []string{"User Query: " + query}, Schema)
	if err != nil {
		return rag.RouteDecision{}, rag.NewInferenceError(op, err)
	}
	r.logger.Debug("router output: %s", raw)

	decision, err := Parse(raw)
	if err != nil {
		return rag.RouteDecision{}, rag.NewInferenceError(op, err)
	}
	return decision, nil
}

// Parse decodes and validates a provider reply, tolerating a Markdown code
// fence around the JSON. A missing or null entities list becomes empty.
func Parse(raw string) (rag.RouteDecision, error) {
	var decoded struct {
		Intent   *string  `json:"intent"`
		Entities []string `json:"entities"`
	}
	if err := json.Unmarshal([]byte(stripFence(raw)), &decoded); err != nil {
		return rag.RouteDecision{}, fmt.Errorf("%w: %v", rag.ErrInvalidRoute, err)
	}
	if decoded.Intent == nil {
		return rag.RouteDecision{}, fmt.Errorf("%w: missing intent", rag.ErrInvalidRoute)
	}

	intent := rag.Intent(strings.TrimSpace(*decoded.Intent))
	if !intent.Valid() {
		return rag.RouteDecision{}, fmt.Errorf("%w: unknown intent %q", rag.ErrInvalidRoute, *decoded.Intent)
	}

	entities := make([]string, 0, len(decoded.Entities))
	for _, e := range decoded.Entities {
		if e = strings.TrimSpace(e); e != "" {
			entities = append(entities, e)
		}
	}
	return rag.RouteDecision{Intent: intent, Entities: entities}, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}
