package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report := json.RawMessage(`{"module":"pkg"}`)

	for i, id := range []string{"r1", "r2", "r3"} {
		mod := "pkg"
		if id == "r2" {
			mod = "other"
		}
		if err := m.SaveRun(ctx, RunRecord{ID: id, Module: mod, CreatedAt: base.Add(time.Duration(i) * time.Minute), Tools: i, Report: report}); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.SaveRun(ctx, RunRecord{ID: "r1"}); err == nil {
		t.Fatal("duplicate id accepted")
	}

	got, err := m.GetRun(ctx, "r3")
	if err != nil {
		t.Fatal(err)
	}
	if got.Tools != 2 || string(got.Report) != `{"module":"pkg"}` {
		t.Fatalf("unexpected record: %+v", got)
	}
	report[2] = 'X'
	if got, _ := m.GetRun(ctx, "r1"); string(got.Report) != `{"module":"pkg"}` {
		t.Fatalf("stored report aliases caller buffer: %s", got.Report)
	}

	if _, err := m.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}

	runs, err := m.ListRuns(ctx, "pkg", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "r3" || runs[1].ID != "r1" {
		t.Fatalf("list order wrong: %+v", runs)
	}
	all, _ := m.ListRuns(ctx, "", 2)
	if len(all) != 2 || all[0].ID != "r3" || all[1].ID != "r2" {
		t.Fatalf("limit/all wrong: %+v", all)
	}
}
