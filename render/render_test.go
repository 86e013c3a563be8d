package render

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sentinel-zero/sentinel/rag"
)

func TestScore(t *testing.T) {
	cases := []struct {
		in    string
		score int
		ok    bool
	}{
		{"1. Factual Accuracy...\n\n7/10", 7, true},
		{"critique\n**6/10**", 6, true},
		{"critique\nScore: 10 / 10\n", 10, true},
		{"critique\n0/10", 0, true},
		{"no score here", 0, false},
		{"17/10", 0, false},
		{"ends with 7/10 then more\ntext", 0, false},
	}
	for _, c := range cases {
		score, ok := Score(c.in)
		assert.Equal(t, c.ok, ok, c.in)
		assert.Equal(t, c.score, score, c.in)
	}
}

func TestTerminal_Response(t *testing.T) {
	resp := rag.Response{
		FinalAnswer: "Article 21 protects life and personal liberty.",
		Context:     "[Source: Constitution of India | Topic: Fundamental Rights | Relevance: 0.91]",
		Intent:      rag.IntentConceptExplanation,
		Entities:    []string{"Article 21"},
	}

	out := Terminal{}.Response(rag.ModeQuery, resp)
	assert.Contains(t, out, "Sentinel Zero")
	assert.Contains(t, out, "Intent: concept_explanation | Entities: Article 21")
	assert.Contains(t, out, resp.FinalAnswer)
	assert.NotContains(t, out, "Engine telemetry")
	assert.NotContains(t, out, "Score:")

	out = Terminal{ShowTelemetry: true}.Response(rag.ModeQuery, resp)
	assert.Contains(t, out, "Engine telemetry")
	assert.Contains(t, out, resp.Context)
}

func TestTerminal_Evaluation(t *testing.T) {
	resp := rag.Response{FinalAnswer: "1. Factual Accuracy: fine\n8/10", Intent: rag.IntentGeneralSearch}

	out := Terminal{}.Response(rag.ModeEvaluate, resp)
	assert.Contains(t, out, "essay evaluation")
	assert.Contains(t, out, "Score: 8/10")
	assert.NotContains(t, out, "Entities:")
}

func TestTerminal_Error(t *testing.T) {
	out := Terminal{}.Error(rag.NewRetrievalError("retriever.retrieve", errors.New("store down")))
	assert.True(t, strings.Contains(out, "retrieval error"), out)
	assert.Contains(t, out, "store down")

	assert.Contains(t, Terminal{}.Error(errors.New("plain")), "plain")
}

func TestMarkdown(t *testing.T) {
	out := string(Markdown("## Verdict\n\n**Strong** answer <script>alert(1)</script> [link](https://example.com)"))

	assert.Contains(t, out, "<h2")
	assert.Contains(t, out, "Verdict")
	assert.Contains(t, out, "<strong>Strong</strong>")
	assert.Contains(t, out, `href="https://example.com"`)
	assert.NotContains(t, out, "<script>")
}
