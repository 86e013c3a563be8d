package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-zero/sentinel/rag"
)

type stubProvider struct {
	reply string
	err   error

	calls  int
	system string
	turns  []string
	schema map[string]any
}

func (s *stubProvider) Complete(ctx context.Context, system string, userTurns []string) (string, error) {
	return "", errors.New("router must use CompleteJSON")
}

func (s *stubProvider) CompleteJSON(ctx context.Context, system string, userTurns []string, schema map[string]any) (string, error) {
	s.calls++
	s.system = system
	s.turns = userTurns
	s.schema = schema
	return s.reply, s.err
}

func TestRoute_ConceptExplanation(t *testing.T) {
	p := &stubProvider{reply: `{"intent":"concept_explanation","entities":["Basic Structure Doctrine","Kesavananda Bharati"]}`}
	r := New(p)

	d, err := r.Route(context.Background(), "Critically analyze the Basic Structure Doctrine established in the Kesavananda Bharati case.")
	require.NoError(t, err)

	assert.Equal(t, rag.IntentConceptExplanation, d.Intent)
	assert.Equal(t, []string{"Basic Structure Doctrine", "Kesavananda Bharati"}, d.Entities)
	assert.Equal(t, SystemPrompt, p.system)
	assert.Equal(t, []string{"User Query: Critically analyze the Basic Structure Doctrine established in the Kesavananda Bharati case."}, p.turns)
	assert.Equal(t, Schema, p.schema)
}

func TestRoute_EmptyEntitiesIsNotNil(t *testing.T) {
	for _, reply := range []string{
		`{"intent":"general_search","entities":[]}`,
		`{"intent":"general_search","entities":null}`,
		`{"intent":"general_search"}`,
	} {
		t.Run(reply, func(t *testing.T) {
			d, err := New(&stubProvider{reply: reply}).Route(context.Background(), "what is new")
			require.NoError(t, err)
			assert.NotNil(t, d.Entities)
			assert.Empty(t, d.Entities)
		})
	}
}

func TestRoute_InvalidOutputIsRejected(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"unknown intent", `{"intent":"essay_writing","entities":[]}`},
		{"missing intent", `{"entities":["Article 14"]}`},
		{"entities not a list", `{"intent":"pyq_analysis","entities":"Article 14"}`},
		{"entities not strings", `{"intent":"pyq_analysis","entities":[14]}`},
		{"not json", `I think this is a concept question.`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(&stubProvider{reply: tt.reply}).Route(context.Background(), "q")
			require.Error(t, err)
			assert.True(t, errors.Is(err, rag.ErrInferenceProvider))
			assert.True(t, errors.Is(err, rag.ErrInvalidRoute))
		})
	}
}

func TestRoute_ProviderFailure(t *testing.T) {
	boom := errors.New("groq: 401 unauthorized")
	_, err := New(&stubProvider{err: boom}).Route(context.Background(), "q")

	assert.True(t, errors.Is(err, rag.ErrInferenceProvider))
	assert.True(t, errors.Is(err, boom))
}

func TestRoute_EmptyQuery(t *testing.T) {
	p := &stubProvider{}
	_, err := New(p).Route(context.Background(), "   ")

	assert.True(t, errors.Is(err, rag.ErrInferenceProvider))
	assert.True(t, errors.Is(err, rag.ErrEmptyQuery))
	assert.Zero(t, p.calls)
}

func TestParse_Fences(t *testing.T) {
	for _, raw := range []string{
		"```json\n{\"intent\":\"pyq_analysis\",\"entities\":[\"Article 356\"]}\n```",
		"```\n{\"intent\":\"pyq_analysis\",\"entities\":[\"Article 356\"]}\n```",
		"  {\"intent\":\"pyq_analysis\",\"entities\":[\" Article 356 \", \"\"]}  ",
	} {
		d, err := Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, rag.RouteDecision{Intent: rag.IntentPYQAnalysis, Entities: []string{"Article 356"}}, d)
	}
}
