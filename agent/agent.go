// Package agent runs the Sentinel pipeline: route, retrieve, generate.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sentinel-zero/sentinel/graph"
	"github.com/sentinel-zero/sentinel/log"
	"github.com/sentinel-zero/sentinel/rag"
)

// Node names.
const (
	NodeRoute    = "route"
	NodeRetrieve = "retrieve"
	NodeGenerate = "generate"
)

// Router classifies a query. Its output is advisory.
type Router interface {
	Route(ctx context.Context, query string) (rag.RouteDecision, error)
}

// Retriever returns the formatted context for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// Generator produces the final answer.
type Generator interface {
	Generate(ctx context.Context, mode rag.Mode, query, retrieved string) (string, error)
}

// Agent owns a compiled pipeline graph. It is safe for concurrent use;
// each invocation gets its own state.
type Agent struct {
	runnable *graph.StateRunnable[rag.PipelineState]
	logger   log.Logger
}

type options struct {
	logger    log.Logger
	listeners []graph.NodeListener[rag.PipelineState]
}

// Option configures an Agent.
type Option func(*options)

// WithLogger logs every invocation and node at the logger's level.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithListener adds a node listener to every invocation.
func WithListener(l graph.NodeListener[rag.PipelineState]) Option {
	return func(o *options) { o.listeners = append(o.listeners, l) }
}

// New builds the route -> retrieve -> generate graph.
func New(router Router, retriever Retriever, generator Generator, opts ...Option) (*Agent, error) {
	if router == nil || retriever == nil || generator == nil {
		return nil, rag.NewConfigurationError("agent.new", errors.New("router, retriever and generator are required"))
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	g := graph.NewStateGraph[rag.PipelineState]()
	g.SetSchema(rag.StateSchema{})

	g.AddNode(NodeRoute, "Classify intent and extract entities", func(ctx context.Context, st rag.PipelineState) (rag.PipelineState, error) {
		decision, err := router.Route(ctx, st.Query)
		if err != nil {
			return st, err
		}
		st.Intent = decision.Intent
		st.Entities = decision.Entities
		if st.Entities == nil {
			st.Entities = []string{}
		}
		st.Stage = rag.StageRouting
		return st, nil
	})

	// In evaluate mode the essay itself is the search query.
	g.AddNode(NodeRetrieve, "Vector search over the knowledge graph", func(ctx context.Context, st rag.PipelineState) (rag.PipelineState, error) {
		retrieved, err := retriever.Retrieve(ctx, st.Query)
		if err != nil {
			return st, err
		}
		st.Context = retrieved
		st.Stage = rag.StageRetrieval
		return st, nil
	})

	g.AddNode(NodeGenerate, "Answer or critique from the retrieved context", func(ctx context.Context, st rag.PipelineState) (rag.PipelineState, error) {
		answer, err := generator.Generate(ctx, st.Mode, st.Query, st.Context)
		if err != nil {
			return st, err
		}
		if strings.TrimSpace(answer) == "" {
			return st, rag.NewInferenceError("agent.generate", rag.ErrEmptyCompletion)
		}
		st.FinalAnswer = answer
		st.Stage = rag.StageGeneration
		return st, nil
	})

	g.SetEntryPoint(NodeRoute)
	g.AddEdge(NodeRoute, NodeRetrieve)
	g.AddEdge(NodeRetrieve, NodeGenerate)
	g.AddEdge(NodeGenerate, graph.END)

	logger := o.logger
	if logger == nil {
		logger = &log.NoOpLogger{}
	} else {
		g.AddListener(graph.NewLoggingListener[rag.PipelineState](logger))
	}
	for _, l := range o.listeners {
		g.AddListener(l)
	}

	runnable, err := g.Compile()
	if err != nil {
		return nil, rag.NewConfigurationError("agent.compile", err)
	}
	return &Agent{runnable: runnable, logger: logger}, nil
}

// Invoke runs one query or essay through the pipeline.
//
// On success the returned state has Stage DONE and a non-empty FinalAnswer.
// On failure it is the zero state with Stage FAILED, and the error is a
// *rag.Error whose kind names the failing stage.
func (a *Agent) Invoke(ctx context.Context, query string, mode rag.Mode) (rag.PipelineState, error) {
	failed := rag.PipelineState{Stage: rag.StageFailed}

	if !mode.Valid() {
		return failed, rag.NewConfigurationError("agent.invoke", fmt.Errorf("%w: %q", rag.ErrInvalidMode, mode))
	}

	tracker := &stageTracker{}
	start := time.Now()
	a.logger.Info("invocation started: mode=%s, %d chars", mode, len(query))

	final, err := a.runnable.Invoke(ctx, rag.PipelineState{Query: query, Mode: mode}, tracker)
	if err != nil {
		typed := classify(err, tracker.current())
		a.logger.Error("invocation failed after %s: %v", time.Since(start).Round(time.Millisecond), typed)
		return failed, typed
	}

	final.Stage = rag.StageDone
	a.logger.Info("invocation done in %s: intent=%s", time.Since(start).Round(time.Millisecond), final.Intent)
	return final, nil
}

// Run is the caller-facing form of Invoke.
func (a *Agent) Run(ctx context.Context, req rag.Request) (rag.Response, error) {
	st, err := a.Invoke(ctx, req.Query, req.Mode)
	if err != nil {
		return rag.Response{}, err
	}
	return rag.Response{
		FinalAnswer: st.FinalAnswer,
		Context:     st.Context,
		Intent:      st.Intent,
		Entities:    st.Entities,
	}, nil
}

// classify returns the *rag.Error in err's chain, or wraps err with the kind
// belonging to the node that was running.
func classify(err error, node string) *rag.Error {
	var typed *rag.Error
	if errors.As(err, &typed) {
		return typed
	}
	if node == NodeRetrieve {
		return rag.NewRetrievalError("agent."+node, err)
	}
	if node == "" {
		node = NodeRoute
	}
	return rag.NewInferenceError("agent."+node, err)
}

var nextNode = map[string]string{
	NodeRoute:    NodeRetrieve,
	NodeRetrieve: NodeGenerate,
}

// stageTracker remembers which node of one invocation is running or due next.
type stageTracker struct {
	mu   sync.Mutex
	node string
}

func (t *stageTracker) OnNodeEvent(_ context.Context, event graph.NodeEvent, nodeName string, _ rag.PipelineState, _ error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch event {
	case graph.NodeEventStart:
		t.node = nodeName
	case graph.NodeEventComplete:
		t.node = nextNode[nodeName]
	}
}

func (t *stageTracker) current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.node
}
