package plugins

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/homecharge/homecharge/core/factory"
	"github.com/homecharge/homecharge/core/runlog"
)

func TestBuiltinRunLogBackends(t *testing.T) {
	dir := t.TempDir()
	cases := []factory.ModuleConfig{
		{Type: "jsonl", Conf: map[string]any{"path": filepath.Join(dir, "a.jsonl")}},
		{Type: "rotating", Conf: map[string]any{"path": filepath.Join(dir, "b.jsonl"), "max_size_mb": 1}},
		{Type: "sqlite", Conf: map[string]any{"path": filepath.Join(dir, "c.db")}},
	}
	for _, mc := range cases {
		t.Run(mc.Type, func(t *testing.T) {
			st, err := runlog.NewStore(mc)
			if err != nil {
				t.Fatalf("create %s store: %v", mc.Type, err)
			}
			rec := runlog.Record{ID: "r1", StartedAt: time.Now(), Outcome: "started"}
			if err := st.Append(context.Background(), rec); err != nil {
				t.Fatalf("append: %v", err)
			}
			got, err := st.Query(context.Background(), runlog.Query{})
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(got) != 1 || got[0].ID != "r1" {
				t.Fatalf("unexpected records: %+v", got)
			}
			if err := st.Close(); err != nil {
				t.Errorf("close: %v", err)
			}
		})
	}
}

func TestUnknownRunLogBackend(t *testing.T) {
	if _, err := runlog.NewStore(factory.ModuleConfig{Type: "csv"}); err == nil {
		t.Fatal("expected unknown backend error")
	}
}
