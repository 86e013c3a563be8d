package graph

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultRecursionLimit bounds the number of node executions in one invocation.
const DefaultRecursionLimit = 25

// ErrRecursionLimit is returned when an invocation runs more nodes than the
// configured limit, which only happens when edges form a cycle.
var ErrRecursionLimit = errors.New("recursion limit reached")

// StateGraph represents a generic state-based graph with compile-time type safety.
// The type parameter S represents the state type, which is typically a struct.
//
// Each node has at most one outgoing edge, so execution is a single path from
// the entry point to END.
//
//	g := graph.NewStateGraph[MyState]()
//	g.AddNode("increment", "Increment counter", func(ctx context.Context, state MyState) (MyState, error) {
//	    state.Count++
//	    return state, nil
//	})
//	g.SetEntryPoint("increment")
//	g.AddEdge("increment", graph.END)
type StateGraph[S any] struct {
	nodes      map[string]Node[S]
	edges      []Edge
	entryPoint string
	schema     StateSchema[S]
	listeners  []NodeListener[S]
	limit      int
}

// Node represents a typed node in the graph.
type Node[S any] struct {
	Name        string
	Description string
	Function    func(ctx context.Context, state S) (S, error)
}

// NewStateGraph creates a new instance of StateGraph with type safety.
func NewStateGraph[S any]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes: make(map[string]Node[S]),
		limit: DefaultRecursionLimit,
	}
}

// AddNode adds a new node to the state graph with the given name, description and function.
func (g *StateGraph[S]) AddNode(name string, description string, fn func(ctx context.Context, state S) (S, error)) {
	g.nodes[name] = Node[S]{
		Name:        name,
		Description: description,
		Function:    fn,
	}
}

// AddEdge adds a new edge to the state graph between the "from" and "to" nodes.
func (g *StateGraph[S]) AddEdge(from, to string) {
	g.edges = append(g.edges, Edge{From: from, To: to})
}

// SetEntryPoint sets the entry point node name for the state graph.
func (g *StateGraph[S]) SetEntryPoint(name string) {
	g.entryPoint = name
}

// SetSchema sets the state schema for the graph.
func (g *StateGraph[S]) SetSchema(schema StateSchema[S]) {
	g.schema = schema
}

// SetRecursionLimit overrides DefaultRecursionLimit.
func (g *StateGraph[S]) SetRecursionLimit(n int) {
	g.limit = n
}

// AddListener registers a listener notified for every node of every invocation.
func (g *StateGraph[S]) AddListener(l NodeListener[S]) {
	g.listeners = append(g.listeners, l)
}

// StateRunnable represents a compiled state graph that can be invoked with type safety.
// It is immutable and safe for concurrent use as long as its nodes are.
type StateRunnable[S any] struct {
	nodes      map[string]Node[S]
	next       map[string]string
	entryPoint string
	schema     StateSchema[S]
	listeners  []NodeListener[S]
	limit      int
}

// Compile validates the graph and returns a StateRunnable instance.
// Later changes to the StateGraph do not affect the runnable.
func (g *StateGraph[S]) Compile() (*StateRunnable[S], error) {
	if g.entryPoint == "" {
		return nil, ErrEntryPointNotSet
	}
	if _, ok := g.nodes[g.entryPoint]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, g.entryPoint)
	}

	next := make(map[string]string, len(g.edges))
	for _, e := range g.edges {
		if _, ok := g.nodes[e.From]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, e.From)
		}
		if _, ok := g.nodes[e.To]; !ok && e.To != END {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, e.To)
		}
		if _, dup := next[e.From]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEdge, e.From)
		}
		next[e.From] = e.To
	}

	nodes := make(map[string]Node[S], len(g.nodes))
	for k, v := range g.nodes {
		nodes[k] = v
	}

	var schema StateSchema[S] = OverwriteSchema[S]{}
	if g.schema != nil {
		schema = g.schema
	}

	limit := g.limit
	if limit <= 0 {
		limit = DefaultRecursionLimit
	}

	return &StateRunnable[S]{
		nodes:      nodes,
		next:       next,
		entryPoint: g.entryPoint,
		schema:     schema,
		listeners:  append([]NodeListener[S](nil), g.listeners...),
		limit:      limit,
	}, nil
}

// Invoke executes the compiled state graph with the given input state.
//
// On any failure the zero value of S is returned together with the error;
// partially merged state never escapes.
func (r *StateRunnable[S]) Invoke(ctx context.Context, initialState S, listeners ...NodeListener[S]) (S, error) {
	var zero S

	state, err := r.schema.Init(initialState)
	if err != nil {
		return zero, fmt.Errorf("failed to initialize state with schema: %w", err)
	}

	all := r.listeners
	if len(listeners) > 0 {
		all = append(append([]NodeListener[S](nil), r.listeners...), listeners...)
	}

	current := r.entryPoint
	for steps := 0; current != END; steps++ {
		if steps >= r.limit {
			return zero, fmt.Errorf("%w: %d steps", ErrRecursionLimit, r.limit)
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		node, ok := r.nodes[current]
		if !ok {
			return zero, fmt.Errorf("%w: %s", ErrNodeNotFound, current)
		}

		state, err = r.runNode(ctx, node, state, all)
		if err != nil {
			return zero, err
		}

		to, ok := r.next[current]
		if !ok {
			return zero, fmt.Errorf("%w: %s", ErrNoOutgoingEdge, current)
		}
		current = to
	}

	return state, nil
}

func (r *StateRunnable[S]) runNode(ctx context.Context, node Node[S], state S, listeners []NodeListener[S]) (S, error) {
	var zero S

	evCtx := withNodeStart(ctx, time.Now())
	notify(evCtx, listeners, NodeEventStart, node.Name, state, nil)

	out, err := node.Function(ctx, state)
	if err != nil {
		notify(evCtx, listeners, NodeEventError, node.Name, state, err)
		return zero, fmt.Errorf("error in node %s: %w", node.Name, err)
	}

	merged, err := r.schema.Update(state, out)
	if err != nil {
		notify(evCtx, listeners, NodeEventError, node.Name, state, err)
		return zero, fmt.Errorf("failed to merge state from node %s: %w", node.Name, err)
	}

	notify(evCtx, listeners, NodeEventComplete, node.Name, merged, nil)
	return merged, nil
}

func notify[S any](ctx context.Context, listeners []NodeListener[S], event NodeEvent, name string, state S, err error) {
	for _, l := range listeners {
		l.OnNodeEvent(ctx, event, name, state, err)
	}
}
