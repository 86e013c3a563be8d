package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/sentinel-zero/sentinel/log"
	"github.com/sentinel-zero/sentinel/rag"
	"github.com/sentinel-zero/sentinel/render"
	"github.com/sentinel-zero/sentinel/store"
)

// maxBodyBytes caps request bodies on the ask and form routes.
const maxBodyBytes = 1 << 20

// AskRequest is the body of POST /api/ask. An empty SessionID starts a new
// session.
type AskRequest struct {
	Query     string `json:"query"`
	Mode      string `json:"mode"`
	SessionID string `json:"session_id"`
}

// AskResponse is returned by POST /api/ask.
type AskResponse struct {
	rag.Response
	SessionID string        `json:"session_id"`
	HTML      template.HTML `json:"html"`
	Score     *int          `json:"score,omitempty"`
}

// ErrorResponse carries the failing stage kind.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Server is the HTTP face of the pipeline.
type Server struct {
	runner  Runner
	history store.HistoryStore
	logger  log.Logger
	page    *template.Template
}

// NewServer serves runner and records every successful turn in history.
func NewServer(runner Runner, history store.HistoryStore, logger log.Logger) *Server {
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	return &Server{
		runner:  runner,
		history: history,
		logger:  logger,
		page:    template.Must(template.New("page").Parse(pageTemplate)),
	}
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleHistory)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleClear)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /{$}", s.handleForm)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
			return
		}
		sendJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Mode == "" {
		req.Mode = string(rag.ModeQuery)
	}
	mode, err := rag.ParseMode(req.Mode)
	if err != nil {
		s.sendError(w, rag.NewConfigurationError("server.ask", err))
		return
	}
	if req.SessionID == "" {
		req.SessionID = store.NewSessionID()
	}

	ragReq := rag.Request{Query: req.Query, Mode: mode}
	resp, err := s.runner.Run(r.Context(), ragReq)
	if err != nil {
		s.sendError(w, err)
		return
	}

	if err := s.history.Append(r.Context(), store.NewTurn(req.SessionID, ragReq, resp)); err != nil {
		s.logger.Warn("failed to record turn for session %s: %v", req.SessionID, err)
	}

	out := AskResponse{Response: resp, SessionID: req.SessionID, HTML: render.Markdown(resp.FinalAnswer)}
	if mode == rag.ModeEvaluate {
		if score, ok := render.Score(resp.FinalAnswer); ok {
			out.Score = &score
		}
	}
	sendJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	turns, err := s.history.List(r.Context(), r.PathValue("id"))
	if err != nil {
		s.logger.Error("list session: %v", err)
		sendJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to load history"})
		return
	}
	sendJSON(w, http.StatusOK, turns)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.history.Clear(r.Context(), r.PathValue("id")); err != nil {
		s.logger.Error("clear session: %v", err)
		sendJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to clear history"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pageData struct {
	Query     string
	Mode      string
	Answer    template.HTML
	Telemetry string
	Score     string
	Error     string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, pageData{Mode: string(rag.ModeQuery)})
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.renderPage(w, status, pageData{Mode: string(rag.ModeQuery), Error: "invalid form submission"})
		return
	}
	data := pageData{
		Query: strings.TrimSpace(r.FormValue("query")),
		Mode:  r.FormValue("mode"),
	}
	mode, err := rag.ParseMode(data.Mode)
	if err != nil {
		data.Error = err.Error()
		s.renderPage(w, http.StatusBadRequest, data)
		return
	}

	resp, err := s.runner.Run(r.Context(), rag.Request{Query: data.Query, Mode: mode})
	if err != nil {
		data.Error = err.Error()
		s.renderPage(w, statusFor(err), data)
		return
	}

	data.Answer = render.Markdown(resp.FinalAnswer)
	data.Telemetry = resp.Context
	if score, ok := render.Score(resp.FinalAnswer); ok && mode == rag.ModeEvaluate {
		data.Score = fmt.Sprintf("%d/10", score)
	}
	s.renderPage(w, http.StatusOK, data)
}

func (s *Server) renderPage(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.page.Execute(w, data); err != nil {
		s.logger.Error("render page: %v", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed: %v", err)
	}
	sendJSON(w, status, ErrorResponse{Error: err.Error(), Kind: string(rag.KindOf(err))})
}

// statusFor maps failure kinds to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, rag.ErrEmptyQuery), errors.Is(err, rag.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, rag.ErrRetrieval):
		return http.StatusServiceUnavailable
	case errors.Is(err, rag.ErrInferenceProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Sentinel Zero</title></head>
<body>
<h1>Sentinel Zero</h1>
<form method="post" action="/">
<textarea name="query" rows="8" cols="80">{{.Query}}</textarea><br>
<label><input type="radio" name="mode" value="query"{{if ne .Mode "evaluate"}} checked{{end}}> Ask</label>
<label><input type="radio" name="mode" value="evaluate"{{if eq .Mode "evaluate"}} checked{{end}}> Evaluate essay</label>
<button type="submit">Submit</button>
</form>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{if .Answer}}<section class="answer">{{.Answer}}</section>{{end}}
{{if .Score}}<p class="score">{{.Score}}</p>{{end}}
{{if .Telemetry}}<details><summary>Engine telemetry</summary><pre>{{.Telemetry}}</pre></details>{{end}}
</body>
</html>
`
