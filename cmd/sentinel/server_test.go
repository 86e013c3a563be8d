package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-zero/sentinel/rag"
	"github.com/sentinel-zero/sentinel/store"
	"github.com/sentinel-zero/sentinel/store/memory"
)

type stubRunner struct {
	mu   sync.Mutex
	resp rag.Response
	err  error
	reqs []rag.Request
}

func (s *stubRunner) Run(ctx context.Context, req rag.Request) (rag.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return rag.Response{}, s.err
	}
	return s.resp, nil
}

func newTestServer(t *testing.T, runner *stubRunner) (*httptest.Server, store.HistoryStore) {
	t.Helper()
	history := memory.NewMemoryHistoryStore()
	ts := httptest.NewServer(NewServer(runner, history, nil).Handler())
	t.Cleanup(ts.Close)
	return ts, history
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

var article21 = rag.Response{
	FinalAnswer: "**Article 21** protects life and personal liberty.",
	Context:     "[Source: Constitution of India | Topic: Fundamental Rights | Relevance: 0.91]\nNo person shall...",
	Intent:      rag.IntentConceptExplanation,
	Entities:    []string{"Article 21"},
}

func TestServer_Health(t *testing.T) {
	ts, _ := newTestServer(t, &stubRunner{})

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_Ask(t *testing.T) {
	runner := &stubRunner{resp: article21}
	ts, history := newTestServer(t, runner)

	resp := postJSON(t, ts.URL+"/api/ask", `{"query":"What is Article 21?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out AskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, article21.FinalAnswer, out.FinalAnswer)
	assert.Equal(t, article21.Context, out.Context)
	assert.Equal(t, rag.IntentConceptExplanation, out.Intent)
	assert.Contains(t, string(out.HTML), "<strong>Article 21</strong>")
	assert.Nil(t, out.Score)
	require.NotEmpty(t, out.SessionID)

	assert.Equal(t, []rag.Request{{Query: "What is Article 21?", Mode: rag.ModeQuery}}, runner.reqs)

	turns, err := history.List(context.Background(), out.SessionID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, article21.Context, turns[0].Context)

	// Same session, second turn.
	resp = postJSON(t, ts.URL+"/api/ask", `{"query":"And Article 14?","session_id":"`+out.SessionID+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	hresp, err := http.Get(ts.URL + "/api/sessions/" + out.SessionID)
	require.NoError(t, err)
	defer hresp.Body.Close()
	var listed []store.Turn
	require.NoError(t, json.NewDecoder(hresp.Body).Decode(&listed))
	assert.Len(t, listed, 2)
	assert.Equal(t, "And Article 14?", listed[1].Query)
}

func TestServer_AskEvaluateScore(t *testing.T) {
	runner := &stubRunner{resp: rag.Response{FinalAnswer: "1. Factual Accuracy: sound\n6/10", Intent: rag.IntentGeneralSearch}}
	ts, _ := newTestServer(t, runner)

	resp := postJSON(t, ts.URL+"/api/ask", `{"query":"essay text","mode":"evaluate"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out AskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotNil(t, out.Score)
	assert.Equal(t, 6, *out.Score)
	assert.Equal(t, rag.ModeEvaluate, runner.reqs[0].Mode)
}

func TestServer_AskErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		kind   rag.ErrorKind
	}{
		{"bad json", `{`, nil, http.StatusBadRequest, ""},
		{"bad mode", `{"query":"q","mode":"summarize"}`, nil, http.StatusBadRequest, rag.KindConfiguration},
		{"empty query", `{"query":""}`, rag.NewInferenceError("router.route", rag.ErrEmptyQuery), http.StatusBadRequest, rag.KindInferenceProvider},
		{"retrieval", `{"query":"q"}`, rag.NewRetrievalError("retriever", errors.New("down")), http.StatusServiceUnavailable, rag.KindRetrieval},
		{"inference", `{"query":"q"}`, rag.NewInferenceError("generator", errors.New("429")), http.StatusBadGateway, rag.KindInferenceProvider},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ts, _ := newTestServer(t, &stubRunner{err: c.err})

			resp := postJSON(t, ts.URL+"/api/ask", c.body)
			assert.Equal(t, c.status, resp.StatusCode)

			var out ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			assert.NotEmpty(t, out.Error)
			assert.Equal(t, string(c.kind), out.Kind)
		})
	}
}

func TestServer_AskBodyTooLarge(t *testing.T) {
	runner := &stubRunner{resp: article21}
	h := NewServer(runner, memory.NewMemoryHistoryStore(), nil).Handler()
	essay := strings.Repeat("The Preamble declares India a sovereign republic. ", maxBodyBytes/40)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"query":"`+essay+`","mode":"evaluate"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var out ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, "request body too large", out.Error)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(url.Values{"query": {essay}, "mode": {"evaluate"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	assert.Empty(t, runner.reqs)
}

func TestServer_FailedAskIsNotRecorded(t *testing.T) {
	ts, history := newTestServer(t, &stubRunner{err: rag.NewRetrievalError("r", errors.New("down"))})

	postJSON(t, ts.URL+"/api/ask", `{"query":"q","session_id":"s1"}`)
	turns, err := history.List(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestServer_ClearSession(t *testing.T) {
	ts, history := newTestServer(t, &stubRunner{resp: article21})
	postJSON(t, ts.URL+"/api/ask", `{"query":"q","session_id":"s1"}`)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/s1", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	turns, _ := history.List(context.Background(), "s1")
	assert.Empty(t, turns)
}

func TestServer_Page(t *testing.T) {
	runner := &stubRunner{resp: article21}
	ts, _ := newTestServer(t, runner)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	form, err := http.PostForm(ts.URL+"/", url.Values{"query": {"What is Article 21?"}, "mode": {"query"}})
	require.NoError(t, err)
	defer form.Body.Close()
	require.Equal(t, http.StatusOK, form.StatusCode)

	data, err := io.ReadAll(form.Body)
	require.NoError(t, err)
	body := string(data)
	assert.Contains(t, body, "<strong>Article 21</strong>")
	assert.Contains(t, body, "Engine telemetry")
	assert.Contains(t, body, "Relevance: 0.91")

	bad, err := http.PostForm(ts.URL+"/", url.Values{"query": {"q"}, "mode": {"other"}})
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	nf, err := http.Get(ts.URL + "/missing")
	require.NoError(t, err)
	nf.Body.Close()
	assert.Equal(t, http.StatusNotFound, nf.StatusCode)
}
