package store

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/me/ossched/pkg/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleRun(id string, started time.Time) *model.Run {
	return &model.Run{
		ID:          id,
		Policy:      model.PolicyMLQ,
		MaxPriority: 3,
		CPUs:        2,
		TimeSlice:   2,
		Processes:   3,
		StartedAt:   started,
	}
}

// --- Migration tests ---

func TestMigrate_Idempotent(t *testing.T) {
	st := testStore(t)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

// --- Run tests ---

func TestBeginAndGetRun(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	run := sampleRun("run_test-1", now)

	if err := st.BeginRun(ctx, run); err != nil {
		t.Fatalf("begin: %v", err)
	}

	got, err := st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("got nil run")
	}
	if got.Policy != model.PolicyMLQ {
		t.Errorf("policy = %q, want %q", got.Policy, model.PolicyMLQ)
	}
	if got.CPUs != 2 || got.TimeSlice != 2 || got.MaxPriority != 3 {
		t.Errorf("sizes = %d/%d/%d, want 2/2/3", got.CPUs, got.TimeSlice, got.MaxPriority)
	}
	if !got.StartedAt.Equal(now) {
		t.Errorf("started_at = %v, want %v", got.StartedAt, now)
	}
	if got.CompletedAt != nil {
		t.Errorf("completed_at = %v, want nil", got.CompletedAt)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	st := testStore(t)
	got, err := st.GetRun(context.Background(), "run_nonexistent")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestFinishRun(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	run := sampleRun("run_test-1", time.Now().UTC())
	if err := st.BeginRun(ctx, run); err != nil {
		t.Fatalf("begin: %v", err)
	}

	done := time.Now().UTC().Truncate(time.Millisecond)
	run.CompletedAt = &done
	run.Clock = 12
	run.Dispatches = 7
	run.Replenishments = 2
	run.MeanWait = 2.5
	run.StdDevWait = 0.5
	if err := st.FinishRun(ctx, run); err != nil {
		t.Fatalf("finish: %v", err)
	}

	got, err := st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Clock != 12 || got.Dispatches != 7 || got.Replenishments != 2 {
		t.Errorf("counters = %d/%d/%d, want 12/7/2", got.Clock, got.Dispatches, got.Replenishments)
	}
	if got.MeanWait != 2.5 || got.StdDevWait != 0.5 {
		t.Errorf("wait = %v±%v, want 2.5±0.5", got.MeanWait, got.StdDevWait)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Errorf("completed_at = %v, want %v", got.CompletedAt, done)
	}
}

func TestFinishRun_NotFound(t *testing.T) {
	st := testStore(t)
	err := st.FinishRun(context.Background(), sampleRun("run_missing", time.Now()))
	if err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestListRuns_Pagination(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		run := sampleRun(fmt.Sprintf("run_%d", i), base.Add(time.Duration(i)*time.Second))
		if i%2 == 1 {
			run.Policy = model.PolicyFIFO
		}
		if err := st.BeginRun(ctx, run); err != nil {
			t.Fatalf("begin %d: %v", i, err)
		}
	}

	runs, total, err := st.ListRuns(ctx, model.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(runs) != 2 {
		t.Fatalf("len = %d, want 2", len(runs))
	}
	if runs[0].ID != "run_4" {
		t.Errorf("first = %q, want newest run_4", runs[0].ID)
	}

	runs, _, err = st.ListRuns(ctx, model.ListOptions{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("list offset: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run_0" {
		t.Errorf("offset page = %v, want [run_0]", runs)
	}

	runs, total, err = st.ListRuns(ctx, model.ListOptions{Policy: "fifo"})
	if err != nil {
		t.Fatalf("list fifo: %v", err)
	}
	if total != 2 || len(runs) != 2 {
		t.Errorf("fifo runs = %d (total %d), want 2", len(runs), total)
	}
}

func TestListRuns_Empty(t *testing.T) {
	st := testStore(t)
	runs, total, err := st.ListRuns(context.Background(), model.DefaultListOptions())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 0 || len(runs) != 0 {
		t.Errorf("got %d runs (total %d), want none", len(runs), total)
	}
}

// --- Dispatch tests ---

func TestRecordAndListDispatches(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	run := sampleRun("run_test-1", time.Now().UTC())
	if err := st.BeginRun(ctx, run); err != nil {
		t.Fatalf("begin: %v", err)
	}

	// Written out of order, as concurrent CPUs would.
	want := []model.Dispatch{
		{Seq: 1, CPU: 0, PID: 4, Priority: 0, Start: 0, Ran: 2},
		{Seq: 2, CPU: 1, PID: 5, Priority: 1, Start: 2, Ran: 1, Finished: true},
		{Seq: 3, CPU: 0, PID: 4, Priority: 0, Start: 3, Ran: 1, Finished: true},
	}
	for _, i := range []int{2, 0, 1} {
		if err := st.RecordDispatch(ctx, run.ID, want[i]); err != nil {
			t.Fatalf("record %d: %v", want[i].Seq, err)
		}
	}

	got, err := st.ListDispatches(ctx, run.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dispatch %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRecordDispatch_UnknownRun(t *testing.T) {
	st := testStore(t)
	err := st.RecordDispatch(context.Background(), "run_missing", model.Dispatch{Seq: 1, PID: 1, Ran: 1})
	if err == nil {
		t.Fatal("expected foreign key error")
	}
}

func TestRecordDispatch_Concurrent(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	run := sampleRun("run_test-1", time.Now().UTC())
	if err := st.BeginRun(ctx, run); err != nil {
		t.Fatalf("begin: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for cpu := 0; cpu < 4; cpu++ {
		cpu := cpu
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				seq := int64(cpu*10 + i + 1)
				if err := st.RecordDispatch(ctx, run.ID, model.Dispatch{Seq: seq, CPU: cpu, PID: uint32(seq), Ran: 1}); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("record: %v", err)
	}

	got, err := st.ListDispatches(ctx, run.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 40 {
		t.Errorf("len = %d, want 40", len(got))
	}
}

func TestDeleteRun_CascadesDispatches(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	run := sampleRun("run_test-1", time.Now().UTC())
	if err := st.BeginRun(ctx, run); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := st.RecordDispatch(ctx, run.ID, model.Dispatch{Seq: 1, PID: 1, Ran: 1}); err != nil {
		t.Fatalf("record: %v", err)
	}

	if err := st.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("run still present after delete")
	}
	ds, err := st.ListDispatches(ctx, run.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ds) != 0 {
		t.Errorf("dispatches = %d, want 0", len(ds))
	}
}

func TestDeleteRun_NotFound(t *testing.T) {
	st := testStore(t)
	if err := st.DeleteRun(context.Background(), "run_missing"); err == nil {
		t.Fatal("expected error")
	}
}
