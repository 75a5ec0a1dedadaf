package cache

import (
	"context"
	"sort"
	"testing"
)

func TestPendingTracker_MarkListUnmarkCount(t *testing.T) {
	_, rdb := newTestRedis(t)
	tr := NewPendingTracker(rdb)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := tr.Mark(ctx, id); err != nil {
			t.Fatalf("Mark(%s): %v", id, err)
		}
	}
	// marking twice is a set add, not an error
	if err := tr.Mark(ctx, "a"); err != nil {
		t.Fatalf("re-Mark: %v", err)
	}

	n, err := tr.Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("Count = %d, %v; want 3", n, err)
	}

	ids, err := tr.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	sort.Strings(ids)
	if len(ids) != 3 || ids[0] != "a" || ids[2] != "c" {
		t.Fatalf("List = %v", ids)
	}

	if err := tr.Unmark(ctx, "a", "c", "never-marked"); err != nil {
		t.Fatalf("Unmark: %v", err)
	}
	n, _ = tr.Count(ctx)
	if n != 1 {
		t.Fatalf("Count after Unmark = %d; want 1", n)
	}

	// empty unmark is a no-op, not a Redis error
	if err := tr.Unmark(ctx); err != nil {
		t.Fatalf("Unmark(): %v", err)
	}
}
