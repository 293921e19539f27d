package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/michaelbrown/crucible/internal/history"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	store.Close()
}

func TestSaveAndGetExecution(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := &history.Record{
		ID:           "aaaa1111-0000-0000-0000-000000000000",
		Code:         "print('hi')",
		Stdout:       "hi",
		ErrorKind:    "ValueError",
		ErrorMessage: "boom",
		FileCount:    2,
		Duration:     1500 * time.Millisecond,
	}
	if err := store.SaveExecution(ctx, rec); err != nil {
		t.Fatalf("SaveExecution: %v", err)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("SaveExecution should stamp CreatedAt")
	}

	got, err := store.GetExecution(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if got.Code != rec.Code || got.Stdout != rec.Stdout {
		t.Errorf("got %+v", got)
	}
	if got.ErrorKind != "ValueError" || !got.Failed() {
		t.Errorf("error fields lost: %+v", got)
	}
	if got.FileCount != 2 {
		t.Errorf("file count = %d", got.FileCount)
	}
	if got.Duration != 1500*time.Millisecond {
		t.Errorf("duration = %v", got.Duration)
	}
}

func TestGetExecutionByPrefix(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{
		"abc11111-0000-0000-0000-000000000000",
		"def22222-0000-0000-0000-000000000000",
	} {
		if err := store.SaveExecution(ctx, &history.Record{ID: id, Code: "x = 1"}); err != nil {
			t.Fatalf("SaveExecution: %v", err)
		}
	}

	got, err := store.GetExecution(ctx, "abc")
	if err != nil {
		t.Fatalf("GetExecution by prefix: %v", err)
	}
	if !strings.HasPrefix(got.ID, "abc") {
		t.Errorf("got wrong record: %s", got.ID)
	}
}

func TestGetExecutionAmbiguousPrefix(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{
		"abc11111-0000-0000-0000-000000000000",
		"abc22222-0000-0000-0000-000000000000",
	} {
		if err := store.SaveExecution(ctx, &history.Record{ID: id}); err != nil {
			t.Fatalf("SaveExecution: %v", err)
		}
	}

	if _, err := store.GetExecution(ctx, "abc"); err == nil {
		t.Fatal("ambiguous prefix should be an error")
	}
}

func TestGetExecutionNotFound(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.GetExecution(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown id")
	}
}

func TestListExecutions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := range 5 {
		rec := &history.Record{
			ID:   fmt.Sprintf("%d0000000-0000-0000-0000-000000000000", i),
			Code: fmt.Sprintf("x = %d", i),
		}
		if err := store.SaveExecution(ctx, rec); err != nil {
			t.Fatalf("SaveExecution: %v", err)
		}
	}

	records, err := store.ListExecutions(ctx, history.ListOptions{Limit: 10})
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("got %d records, want 5", len(records))
	}

	limited, err := store.ListExecutions(ctx, history.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limit ignored: got %d records", len(limited))
	}

	offset, err := store.ListExecutions(ctx, history.ListOptions{Limit: 10, Offset: 3})
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(offset) != 2 {
		t.Errorf("offset ignored: got %d records", len(offset))
	}
}

func TestPrune(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := range 5 {
		rec := &history.Record{
			ID: fmt.Sprintf("%d0000000-0000-0000-0000-000000000000", i),
		}
		if err := store.SaveExecution(ctx, rec); err != nil {
			t.Fatalf("SaveExecution: %v", err)
		}
	}

	if err := store.Prune(ctx, 2); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	records, err := store.ListExecutions(ctx, history.ListOptions{Limit: 10})
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records after prune, want 2", len(records))
	}
}

func TestPruneEmptyStore(t *testing.T) {
	store := openTestStore(t)

	if err := store.Prune(context.Background(), 10); err != nil {
		t.Fatalf("Prune on empty store: %v", err)
	}
}
