// Package graph is a small typed state-graph engine.
//
// A StateGraph[S] holds named nodes, each a function from S to S, and at most
// one outgoing edge per node. Compile validates the wiring and returns an
// immutable StateRunnable that walks from the entry point to END, merging each
// node's output into the running state through a StateSchema and reporting
// start, complete and error events to NodeListeners.
//
//	g := graph.NewStateGraph[State]()
//	g.AddNode("route", "classify the query", route)
//	g.AddNode("retrieve", "fetch context", retrieve)
//	g.SetEntryPoint("route")
//	g.AddEdge("route", "retrieve")
//	g.AddEdge("retrieve", graph.END)
//
//	runnable, err := g.Compile()
//	if err != nil {
//		return err
//	}
//	final, err := runnable.Invoke(ctx, State{Query: q})
package graph
