package graph

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sentinel-zero/sentinel/log"
)

type recordedEvent struct {
	event NodeEvent
	node  string
	count int
	err   error
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) OnNodeEvent(ctx context.Context, event NodeEvent, nodeName string, state TestState, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{event: event, node: nodeName, count: state.Count, err: err})
}

func TestListeners_EventOrder(t *testing.T) {
	rec := &recorder{}

	g := NewStateGraph[TestState]()
	g.AddNode("a", "", func(ctx context.Context, s TestState) (TestState, error) {
		s.Count++
		return s, nil
	})
	g.AddNode("b", "", func(ctx context.Context, s TestState) (TestState, error) {
		s.Count++
		return s, nil
	})
	g.SetEntryPoint("a")
	g.AddEdge("a", "b")
	g.AddEdge("b", END)
	g.AddListener(rec)

	runnable, err := g.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := runnable.Invoke(context.Background(), TestState{}); err != nil {
		t.Fatalf("invoke: %v", err)
	}

	want := []recordedEvent{
		{NodeEventStart, "a", 0, nil},
		{NodeEventComplete, "a", 1, nil},
		{NodeEventStart, "b", 1, nil},
		{NodeEventComplete, "b", 2, nil},
	}
	if len(rec.events) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(rec.events), rec.events)
	}
	for i, w := range want {
		if rec.events[i] != w {
			t.Errorf("event %d: expected %+v, got %+v", i, w, rec.events[i])
		}
	}
}

func TestListeners_PerInvocationAndError(t *testing.T) {
	boom := errors.New("boom")
	rec := &recorder{}

	g := NewStateGraph[TestState]()
	g.AddNode("fail", "", func(ctx context.Context, s TestState) (TestState, error) {
		return s, boom
	})
	g.SetEntryPoint("fail")
	g.AddEdge("fail", END)

	runnable, err := g.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := runnable.Invoke(context.Background(), TestState{}, rec); err == nil {
		t.Fatal("expected error")
	}

	if len(rec.events) != 2 {
		t.Fatalf("expected start and error events, got %+v", rec.events)
	}
	if rec.events[1].event != NodeEventError || !errors.Is(rec.events[1].err, boom) {
		t.Errorf("unexpected error event %+v", rec.events[1])
	}
}

func TestNodeListenerFunc(t *testing.T) {
	called := false
	var l NodeListener[TestState] = NodeListenerFunc[TestState](func(ctx context.Context, event NodeEvent, nodeName string, state TestState, err error) {
		called = true
		if _, ok := NodeStartTime(ctx); ok {
			t.Error("no start time expected on a bare context")
		}
	})
	l.OnNodeEvent(context.Background(), NodeEventStart, "x", TestState{}, nil)
	if !called {
		t.Error("function was not called")
	}
}

func TestLoggingListener(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewCustomLogger(&buf, log.LogLevelDebug)

	g := NewStateGraph[TestState]()
	g.AddNode("ok", "", func(ctx context.Context, s TestState) (TestState, error) { return s, nil })
	g.AddNode("bad", "", func(ctx context.Context, s TestState) (TestState, error) {
		return s, errors.New("store offline")
	})
	g.SetEntryPoint("ok")
	g.AddEdge("ok", "bad")
	g.AddEdge("bad", END)
	g.AddListener(NewLoggingListener[TestState](logger))

	runnable, err := g.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	_, _ = runnable.Invoke(context.Background(), TestState{})

	out := buf.String()
	for _, want := range []string{"node ok started", "node ok completed in", "node bad failed after", "store offline"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log to contain %q, got:\n%s", want, out)
		}
	}
}
