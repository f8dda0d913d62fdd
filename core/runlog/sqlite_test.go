package runlog

import (
	"context"
	"testing"
	"time"
)

func TestSQLiteStore_PersistQuery(t *testing.T) {
	store, err := NewSQLiteStore("file:runs_test.db?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()

	base := time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC)
	recs := []Record{
		{ID: "a", StartedAt: base, FinishedAt: base.Add(time.Minute), Outcome: "started", Attempts: 1},
		{ID: "b", StartedAt: base.AddDate(0, 0, 1), Outcome: "unconfirmed", Attempts: 3},
	}
	for _, r := range recs {
		if err := store.Append(context.Background(), r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	out, err := store.Query(context.Background(), Query{Outcome: "unconfirmed"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 1 || out[0].ID != "b" || out[0].Attempts != 3 {
		t.Fatalf("expected record b, got %+v", out)
	}

	all, err := store.Query(context.Background(), Query{Start: base, End: base.AddDate(0, 0, 2)})
	if err != nil {
		t.Fatalf("query range: %v", err)
	}
	if len(all) != 2 || all[0].ID != "a" {
		t.Fatalf("expected both records oldest first, got %+v", all)
	}
}
