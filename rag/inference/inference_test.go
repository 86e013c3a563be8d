package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/sentinel-zero/sentinel/rag"
)

// mockLLM records the last call and replies with a fixed response
type mockLLM struct {
	response *llms.ContentResponse
	err      error

	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (m *mockLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	m.opts = llms.CallOptions{}
	for _, o := range options {
		o(&m.opts)
	}
	return m.response, m.err
}

func (m *mockLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func reply(text string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}
}

func textOf(t *testing.T, m llms.MessageContent) string {
	t.Helper()
	require.Len(t, m.Parts, 1)
	part, ok := m.Parts[0].(llms.TextContent)
	require.True(t, ok)
	return part.Text
}

func TestComplete(t *testing.T) {
	llm := &mockLLM{response: reply("Article 21 guarantees life and liberty.")}
	p := New(llm, WithTemperature(0.1), WithMaxTokens(512))

	out, err := p.Complete(context.Background(), "You are an examiner.", []string{"What is Article 21?"})
	require.NoError(t, err)
	assert.Equal(t, "Article 21 guarantees life and liberty.", out)

	require.Len(t, llm.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, llm.messages[0].Role)
	assert.Equal(t, "You are an examiner.", textOf(t, llm.messages[0]))
	assert.Equal(t, llms.ChatMessageTypeHuman, llm.messages[1].Role)
	assert.Equal(t, "What is Article 21?", textOf(t, llm.messages[1]))

	assert.InDelta(t, 0.1, llm.opts.Temperature, 1e-9)
	assert.Equal(t, 512, llm.opts.MaxTokens)
	assert.False(t, llm.opts.JSONMode)
}

func TestCompleteJSON(t *testing.T) {
	llm := &mockLLM{response: reply(`{"intent":"general_search","entities":[]}`)}
	p := New(llm)

	schema := map[string]any{"type": "object"}
	out, err := p.CompleteJSON(context.Background(), "Route the query.", []string{"User Query: x"}, schema)
	require.NoError(t, err)
	assert.JSONEq(t, `{"intent":"general_search","entities":[]}`, out)

	assert.True(t, llm.opts.JSONMode)
	sys := textOf(t, llm.messages[0])
	assert.Contains(t, sys, "Route the query.")
	assert.Contains(t, sys, `{"type":"object"}`)
}

func TestComplete_Failures(t *testing.T) {
	t.Run("provider error", func(t *testing.T) {
		boom := errors.New("503 service unavailable")
		_, err := New(&mockLLM{err: boom}).Complete(context.Background(), "s", []string{"u"})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("no choices", func(t *testing.T) {
		_, err := New(&mockLLM{response: &llms.ContentResponse{}}).Complete(context.Background(), "s", []string{"u"})
		assert.ErrorIs(t, err, rag.ErrEmptyCompletion)
	})

	t.Run("blank content", func(t *testing.T) {
		_, err := New(&mockLLM{response: reply("  \n")}).Complete(context.Background(), "s", []string{"u"})
		assert.ErrorIs(t, err, rag.ErrEmptyCompletion)
	})
}

func TestBuildMessages_NoSystem(t *testing.T) {
	msgs := buildMessages("", []string{"a", "b"})
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[0].Role)
}
