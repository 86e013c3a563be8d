package graph

// StateSchema controls how a node's returned state is merged into the
// running state.
//
// Init seeds the state before the entry node runs. Update receives the
// current state and the node's output and returns the merged state; an error
// aborts the invocation.
type StateSchema[S any] interface {
	Init(input S) (S, error)
	Update(current, update S) (S, error)
}

// OverwriteSchema replaces the running state with whatever the node returned.
// It is the behaviour used when no schema is set.
type OverwriteSchema[S any] struct{}

// Init returns the input unchanged.
func (OverwriteSchema[S]) Init(input S) (S, error) { return input, nil }

// Update returns the node output.
func (OverwriteSchema[S]) Update(_, update S) (S, error) { return update, nil }

// SchemaFuncs adapts plain functions to StateSchema. A nil field falls back
// to overwrite semantics.
type SchemaFuncs[S any] struct {
	InitFunc   func(input S) (S, error)
	UpdateFunc func(current, update S) (S, error)
}

// Init implements StateSchema.
func (s SchemaFuncs[S]) Init(input S) (S, error) {
	if s.InitFunc == nil {
		return input, nil
	}
	return s.InitFunc(input)
}

// Update implements StateSchema.
func (s SchemaFuncs[S]) Update(current, update S) (S, error) {
	if s.UpdateFunc == nil {
		return update, nil
	}
	return s.UpdateFunc(current, update)
}
