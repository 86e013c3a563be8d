package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/sentinel-zero/sentinel/rag"
	"github.com/sentinel-zero/sentinel/store"
)

func TestMemoryHistoryStore_Interface(t *testing.T) {
	t.Parallel()

	var _ store.HistoryStore = NewMemoryHistoryStore()
}

func TestMemoryHistoryStore_BasicOperations(t *testing.T) {
	t.Parallel()

	t.Run("append and list", func(t *testing.T) {
		t.Parallel()

		ms := NewMemoryHistoryStore()
		ctx := context.Background()
		sid := store.NewSessionID()

		first := store.NewTurn(sid, rag.Request{Query: "What is Article 21?", Mode: rag.ModeQuery}, rag.Response{
			FinalAnswer: "Protection of life and personal liberty.",
			Context:     "[Source: Constitution of India | Topic: Fundamental Rights | Relevance: 0.91]\nNo person shall...",
			Entities:    []string{"Article 21"},
		})
		second := &store.Turn{SessionID: sid, Mode: rag.ModeEvaluate, Query: "essay", Answer: "6/10"}

		if err := ms.Append(ctx, first); err != nil {
			t.Fatalf("Failed to append: %v", err)
		}
		if err := ms.Append(ctx, second); err != nil {
			t.Fatalf("Failed to append: %v", err)
		}

		turns, err := ms.List(ctx, sid)
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(turns) != 2 {
			t.Fatalf("Expected 2 turns, got %d", len(turns))
		}
		if turns[0].ID != first.ID || turns[1].Answer != "6/10" {
			t.Errorf("Turns out of order: %+v", turns)
		}
		if turns[0].Context != first.Context {
			t.Errorf("Telemetry not kept: %q", turns[0].Context)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		t.Parallel()

		turns, err := NewMemoryHistoryStore().List(context.Background(), "missing")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if turns == nil || len(turns) != 0 {
			t.Errorf("Expected empty non-nil slice, got %v", turns)
		}
	})

	t.Run("clear", func(t *testing.T) {
		t.Parallel()

		ms := NewMemoryHistoryStore()
		ctx := context.Background()
		_ = ms.Append(ctx, &store.Turn{SessionID: "a"})
		_ = ms.Append(ctx, &store.Turn{SessionID: "b"})

		if err := ms.Clear(ctx, "a"); err != nil {
			t.Fatalf("Failed to clear: %v", err)
		}
		if turns, _ := ms.List(ctx, "a"); len(turns) != 0 {
			t.Errorf("Session a should be empty, got %d turns", len(turns))
		}
		if turns, _ := ms.List(ctx, "b"); len(turns) != 1 {
			t.Errorf("Session b should be untouched, got %d turns", len(turns))
		}
	})

	t.Run("rejects turn without session", func(t *testing.T) {
		t.Parallel()

		if err := NewMemoryHistoryStore().Append(context.Background(), &store.Turn{}); err == nil {
			t.Error("Expected error for missing session id")
		}
	})

	t.Run("returns copies", func(t *testing.T) {
		t.Parallel()

		ms := NewMemoryHistoryStore()
		ctx := context.Background()
		_ = ms.Append(ctx, &store.Turn{SessionID: "s", Entities: []string{"Article 14"}})

		turns, _ := ms.List(ctx, "s")
		turns[0].Entities[0] = "mutated"

		again, _ := ms.List(ctx, "s")
		if again[0].Entities[0] != "Article 14" {
			t.Errorf("Stored turn was mutated: %v", again[0].Entities)
		}
	})
}

func TestMemoryHistoryStore_Concurrent(t *testing.T) {
	t.Parallel()

	ms := NewMemoryHistoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = ms.Append(ctx, &store.Turn{SessionID: fmt.Sprintf("s-%d", i%4), Query: fmt.Sprintf("q%d", i)})
		}(i)
	}
	wg.Wait()

	total := 0
	for i := 0; i < 4; i++ {
		turns, _ := ms.List(ctx, fmt.Sprintf("s-%d", i))
		total += len(turns)
	}
	if total != 20 {
		t.Errorf("Expected 20 turns, got %d", total)
	}
}
