package graph

import (
	"context"
	"time"

	"github.com/sentinel-zero/sentinel/log"
)

// NodeEvent represents different types of node events
type NodeEvent string

const (
	// NodeEventStart indicates a node has started execution
	NodeEventStart NodeEvent = "start"

	// NodeEventComplete indicates a node has completed successfully
	NodeEventComplete NodeEvent = "complete"

	// NodeEventError indicates a node encountered an error
	NodeEventError NodeEvent = "error"
)

// NodeListener defines the interface for typed node event listeners.
//
// For NodeEventStart the state is the one handed to the node, for
// NodeEventComplete it is the merged state, and for NodeEventError it is the
// state the node was given.
type NodeListener[S any] interface {
	OnNodeEvent(ctx context.Context, event NodeEvent, nodeName string, state S, err error)
}

// NodeListenerFunc is a function adapter for NodeListener
type NodeListenerFunc[S any] func(ctx context.Context, event NodeEvent, nodeName string, state S, err error)

// OnNodeEvent implements the NodeListener interface
func (f NodeListenerFunc[S]) OnNodeEvent(ctx context.Context, event NodeEvent, nodeName string, state S, err error) {
	f(ctx, event, nodeName, state, err)
}

type nodeStartKey struct{}

func withNodeStart(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, nodeStartKey{}, t)
}

// NodeStartTime returns when the node named in the current event started.
// It is set on the context handed to listeners by the runner.
func NodeStartTime(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(nodeStartKey{}).(time.Time)
	return t, ok
}

// LoggingListener logs node lifecycle events with their durations.
type LoggingListener[S any] struct {
	logger log.Logger
}

// NewLoggingListener creates a listener writing to logger. A nil logger
// discards everything.
func NewLoggingListener[S any](logger log.Logger) *LoggingListener[S] {
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	return &LoggingListener[S]{logger: logger}
}

// OnNodeEvent implements NodeListener.
func (l *LoggingListener[S]) OnNodeEvent(ctx context.Context, event NodeEvent, nodeName string, _ S, err error) {
	switch event {
	case NodeEventStart:
		l.logger.Debug("node %s started", nodeName)
	case NodeEventComplete:
		l.logger.Info("node %s completed in %s", nodeName, elapsed(ctx))
	case NodeEventError:
		l.logger.Error("node %s failed after %s: %v", nodeName, elapsed(ctx), err)
	}
}

func elapsed(ctx context.Context) time.Duration {
	start, ok := NodeStartTime(ctx)
	if !ok {
		return 0
	}
	return time.Since(start).Round(time.Millisecond)
}
