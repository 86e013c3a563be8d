package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/sentinel-zero/sentinel/rag"
)

// ErrInvalidTurn is returned by Append for a turn without a session.
var ErrInvalidTurn = errors.New("invalid turn")

// Turn is one exchange of a chat session. Context is the retrieval
// telemetry the answer was grounded on.
type Turn struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id"`
	Mode      rag.Mode   `json:"mode"`
	Query     string     `json:"query"`
	Answer    string     `json:"answer"`
	Context   string     `json:"context"`
	Intent    rag.Intent `json:"intent"`
	Entities  []string   `json:"entities"`
	Timestamp time.Time  `json:"timestamp"`
}

// HistoryStore persists chat turns per session. List returns turns in the
// order they were appended and an empty slice for an unknown session.
type HistoryStore interface {
	// Append stores a turn at the end of its session
	Append(ctx context.Context, turn *Turn) error

	// List returns every turn of a session
	List(ctx context.Context, sessionID string) ([]*Turn, error)

	// Clear removes a session and all of its turns
	Clear(ctx context.Context, sessionID string) error

	Close() error
}

// NewSessionID returns a random session id.
func NewSessionID() string {
	return uuid.NewString()
}

// NewTurn records a successful pipeline response.
func NewTurn(sessionID string, req rag.Request, resp rag.Response) *Turn {
	return &Turn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Mode:      req.Mode,
		Query:     req.Query,
		Answer:    resp.FinalAnswer,
		Context:   resp.Context,
		Intent:    resp.Intent,
		Entities:  slices.Clone(resp.Entities),
		Timestamp: time.Now().UTC(),
	}
}

// Prepare validates a turn before it is stored, assigning an id and a
// timestamp when they are missing.
func Prepare(turn *Turn) error {
	if turn == nil {
		return fmt.Errorf("%w: nil", ErrInvalidTurn)
	}
	if turn.SessionID == "" {
		return fmt.Errorf("%w: missing session id", ErrInvalidTurn)
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	if turn.Entities == nil {
		turn.Entities = []string{}
	}
	return nil
}
