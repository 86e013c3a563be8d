package rag

import (
	"fmt"
	"slices"
)

// Stage marks the progress of a single invocation.
type Stage string

const (
	StageStart      Stage = "START"
	StageRouting    Stage = "ROUTING"
	StageRetrieval  Stage = "RETRIEVAL"
	StageGeneration Stage = "GENERATION"
	StageDone       Stage = "DONE"
	StageFailed     Stage = "FAILED"
)

// PipelineState is the record carried through one invocation.
//
// Query and Mode are inputs fixed at start. Intent and Entities are written by
// routing, Context by retrieval and FinalAnswer by generation. FinalAnswer is
// non-empty exactly when Stage is StageDone.
type PipelineState struct {
	Query       string   `json:"query"`
	Mode        Mode     `json:"mode"`
	Intent      Intent   `json:"intent,omitempty"`
	Entities    []string `json:"entities,omitempty"`
	Context     string   `json:"context,omitempty"`
	FinalAnswer string   `json:"final_answer,omitempty"`
	Stage       Stage    `json:"stage"`
}

// StateSchema merges stage outputs into a PipelineState. Inputs are immutable
// and every output field may be written once; anything else fails with
// ErrFieldOverwrite. It satisfies graph.StateSchema[PipelineState].
type StateSchema struct{}

// Init validates the inputs and resets every output field.
func (StateSchema) Init(input PipelineState) (PipelineState, error) {
	if !input.Mode.Valid() {
		return PipelineState{}, fmt.Errorf("%w: %q", ErrInvalidMode, input.Mode)
	}
	return PipelineState{
		Query: input.Query,
		Mode:  input.Mode,
		Stage: StageStart,
	}, nil
}

// Update applies the fields a stage changed. Stage is advanced by the stages
// themselves and is always taken from the update.
func (StateSchema) Update(current, update PipelineState) (PipelineState, error) {
	if update.Query != current.Query {
		return PipelineState{}, fmt.Errorf("%w: query is an input", ErrFieldOverwrite)
	}
	if update.Mode != current.Mode {
		return PipelineState{}, fmt.Errorf("%w: mode is an input", ErrFieldOverwrite)
	}

	next := current
	var err error
	if next.Intent, err = writeOnce("intent", current.Intent, update.Intent); err != nil {
		return PipelineState{}, err
	}
	if next.Context, err = writeOnce("context", current.Context, update.Context); err != nil {
		return PipelineState{}, err
	}
	if next.FinalAnswer, err = writeOnce("final_answer", current.FinalAnswer, update.FinalAnswer); err != nil {
		return PipelineState{}, err
	}

	switch {
	case current.Entities == nil:
		next.Entities = slices.Clone(update.Entities)
	case !slices.Equal(current.Entities, update.Entities):
		return PipelineState{}, fmt.Errorf("%w: entities already written", ErrFieldOverwrite)
	}

	if update.Stage != "" {
		next.Stage = update.Stage
	}
	return next, nil
}

func writeOnce[T comparable](field string, current, update T) (T, error) {
	var zero T
	if current == zero || current == update {
		return update, nil
	}
	return current, fmt.Errorf("%w: %s already written", ErrFieldOverwrite, field)
}
