package rag

import (
	"fmt"
	"strings"
)

// Mode selects between answering a question and critiquing an essay.
type Mode string

const (
	ModeQuery    Mode = "query"
	ModeEvaluate Mode = "evaluate"
)

// ParseMode accepts "query" or "evaluate", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeQuery, ModeEvaluate:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Valid reports whether m is one of the two declared modes.
func (m Mode) Valid() bool {
	return m == ModeQuery || m == ModeEvaluate
}

// Intent is the router's classification of a query.
type Intent string

const (
	IntentConceptExplanation Intent = "concept_explanation"
	IntentPYQAnalysis        Intent = "pyq_analysis"
	IntentGeneralSearch      Intent = "general_search"
)

// Intents lists every valid intent in declaration order.
var Intents = []Intent{IntentConceptExplanation, IntentPYQAnalysis, IntentGeneralSearch}

// Valid reports whether i is one of the declared intents.
func (i Intent) Valid() bool {
	switch i {
	case IntentConceptExplanation, IntentPYQAnalysis, IntentGeneralSearch:
		return true
	}
	return false
}

// RouteDecision is the router's structured output. Entities is never nil once
// produced by the router.
type RouteDecision struct {
	Intent   Intent   `json:"intent"`
	Entities []string `json:"entities"`
}

// Passage is one match returned by a VectorStore. Score is in [0,1], higher
// meaning more similar.
type Passage struct {
	Text          string  `json:"text"`
	Score         float64 `json:"score"`
	DocumentTitle string  `json:"document"`
	TopicName     string  `json:"topic"`
}

// NoContextSentinel is the retrieval context when the store has no match.
const NoContextSentinel = "No relevant constitutional context found in the database."

// Request is a caller's question or essay.
type Request struct {
	Query string `json:"query"`
	Mode  Mode   `json:"mode"`
}

// Response is what callers get back from a successful invocation. Context is
// the retrieval telemetry shown next to the answer.
type Response struct {
	FinalAnswer string   `json:"final_answer"`
	Context     string   `json:"context"`
	Intent      Intent   `json:"intent"`
	Entities    []string `json:"entities"`
}
