package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/me/ossched/internal/metrics"
	"github.com/me/ossched/internal/scheduler"
	"github.com/me/ossched/internal/store"
	"github.com/me/ossched/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	sched, err := scheduler.NewMLQ(scheduler.Config{MaxPriority: 3, QueueCapacity: 2})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return New(sched, testLogger(), opts...)
}

// envelope is used to decode the standard response envelope.
type envelope struct {
	Status     string            `json:"status"`
	RequestID  string            `json:"request_id"`
	Timestamp  string            `json:"timestamp"`
	Data       json.RawMessage   `json:"data"`
	Pagination *model.Pagination `json:"pagination"`
	Error      *model.APIError   `json:"error"`
}

func do(t *testing.T, srv *Server, method, path, body string, wantStatus int) envelope {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != wantStatus {
		t.Fatalf("%s %s: status=%d, want %d, body=%s", method, path, w.Code, wantStatus, w.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid JSON: %v", method, path, err)
	}
	return env
}

func admitBody(pid uint32, prio int) string {
	b, _ := json.Marshal(model.AdmitRequest{PID: pid, Priority: prio})
	return string(b)
}

func next(t *testing.T, srv *Server) model.DispatchResponse {
	t.Helper()
	env := do(t, srv, "POST", "/api/v1/procs/next", "", http.StatusOK)
	var resp model.DispatchResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode dispatch: %v", err)
	}
	return resp
}

func TestDiscovery(t *testing.T) {
	srv := testServer(t)
	env := do(t, srv, "GET", "/api/v1/", "", http.StatusOK)
	if env.Status != "ok" {
		t.Errorf("status = %q, want ok", env.Status)
	}
	if !strings.HasPrefix(env.RequestID, "req_") {
		t.Errorf("request_id = %q, want req_ prefix", env.RequestID)
	}

	var data discoveryResponse
	json.Unmarshal(env.Data, &data)
	if data.Name != "ossched API" {
		t.Errorf("name = %q, want ossched API", data.Name)
	}
	if len(data.Endpoints) < 8 {
		t.Errorf("endpoints count = %d, want >= 8", len(data.Endpoints))
	}
}

func TestHealth(t *testing.T) {
	srv := testServer(t)
	env := do(t, srv, "GET", "/api/v1/health", "", http.StatusOK)

	var data healthResponse
	json.Unmarshal(env.Data, &data)
	if data.Status != "healthy" {
		t.Errorf("health status = %q, want healthy", data.Status)
	}
	if data.Policy != "mlq" {
		t.Errorf("policy = %q, want mlq", data.Policy)
	}
	if data.Store != "unavailable" {
		t.Errorf("store = %q, want unavailable", data.Store)
	}
}

func TestAdmitAndDispatch(t *testing.T) {
	srv := testServer(t)

	env := do(t, srv, "POST", "/api/v1/procs", admitBody(10, 2), http.StatusCreated)
	var pcb model.PCB
	json.Unmarshal(env.Data, &pcb)
	if pcb.PID != 10 || pcb.State != model.ProcStateReady {
		t.Errorf("admitted = %+v, want pid 10 READY", pcb)
	}
	do(t, srv, "POST", "/api/v1/procs", admitBody(11, 0), http.StatusCreated)
	do(t, srv, "POST", "/api/v1/procs", admitBody(12, 1), http.StatusCreated)

	for _, want := range []uint32{11, 12, 10} {
		resp := next(t, srv)
		if !resp.Dispatched || resp.PCB == nil {
			t.Fatalf("expected dispatch of %d, got none", want)
		}
		if resp.PCB.PID != want {
			t.Errorf("dispatched %d, want %d", resp.PCB.PID, want)
		}
		if resp.PCB.State != model.ProcStateRunning {
			t.Errorf("state = %s, want RUNNING", resp.PCB.State)
		}
	}

	resp := next(t, srv)
	if resp.Dispatched || resp.PCB != nil {
		t.Errorf("expected no dispatch on empty scheduler, got %+v", resp)
	}
}

func TestReturnProc(t *testing.T) {
	srv := testServer(t)
	do(t, srv, "POST", "/api/v1/procs/return", admitBody(7, 1), http.StatusOK)
	resp := next(t, srv)
	if !resp.Dispatched || resp.PCB.PID != 7 {
		t.Errorf("dispatch = %+v, want pid 7", resp)
	}
}

func TestAdmit_Errors(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   model.ErrorCode
	}{
		{"invalid json", "not json", http.StatusBadRequest, model.ErrValidation},
		{"priority too high", admitBody(1, 3), http.StatusBadRequest, model.ErrValidation},
		{"negative priority", `{"pid":1,"priority":-1}`, http.StatusBadRequest, model.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := do(t, srv, "POST", "/api/v1/procs", tt.body, tt.status)
			if env.Status != "error" {
				t.Errorf("status = %q, want error", env.Status)
			}
			if env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("error = %v, want %s", env.Error, tt.code)
			}
		})
	}
}

func TestAdmit_Duplicate(t *testing.T) {
	srv := testServer(t)
	do(t, srv, "POST", "/api/v1/procs", admitBody(1, 0), http.StatusCreated)
	env := do(t, srv, "POST", "/api/v1/procs", admitBody(1, 0), http.StatusBadRequest)
	if env.Error == nil || len(env.Error.Details) != 1 || env.Error.Details[0].Field != "pid" {
		t.Errorf("error = %+v, want pid field error", env.Error)
	}
}

func TestAdmit_CapacityExceeded(t *testing.T) {
	srv := testServer(t)
	do(t, srv, "POST", "/api/v1/procs", admitBody(1, 0), http.StatusCreated)
	do(t, srv, "POST", "/api/v1/procs", admitBody(2, 0), http.StatusCreated)

	env := do(t, srv, "POST", "/api/v1/procs", admitBody(3, 0), http.StatusConflict)
	if env.Error == nil || env.Error.Code != model.ErrCapacityExceeded {
		t.Errorf("error = %v, want CAPACITY_EXCEEDED", env.Error)
	}

	// Other levels are unaffected.
	do(t, srv, "POST", "/api/v1/procs", admitBody(3, 1), http.StatusCreated)
}

func TestSchedulerStatsAndReset(t *testing.T) {
	srv := testServer(t)
	do(t, srv, "POST", "/api/v1/procs", admitBody(1, 0), http.StatusCreated)
	do(t, srv, "POST", "/api/v1/procs", admitBody(2, 2), http.StatusCreated)

	env := do(t, srv, "GET", "/api/v1/scheduler", "", http.StatusOK)
	var stats scheduler.Stats
	json.Unmarshal(env.Data, &stats)
	if stats.Idle {
		t.Error("idle = true with queued processes")
	}
	if got := stats.Waiting(); got != 2 {
		t.Errorf("waiting = %d, want 2", got)
	}
	if len(stats.Ledger) != 3 || stats.Ledger[0] != 3 {
		t.Errorf("ledger = %v, want [3 2 1]", stats.Ledger)
	}

	env = do(t, srv, "POST", "/api/v1/scheduler/reset", "", http.StatusOK)
	json.Unmarshal(env.Data, &stats)
	if !stats.Idle || stats.Waiting() != 0 {
		t.Errorf("after reset: idle=%v waiting=%d, want idle and empty", stats.Idle, stats.Waiting())
	}
	if resp := next(t, srv); resp.Dispatched {
		t.Errorf("dispatched %v after reset", resp.PCB)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	sched, err := scheduler.NewMLQ(scheduler.Config{MaxPriority: 3, QueueCapacity: 2}, scheduler.WithMetrics(m))
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	srv := New(sched, testLogger(), WithGatherer(reg))
	do(t, srv, "POST", "/api/v1/procs", admitBody(1, 0), http.StatusCreated)
	next(t, srv)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, name := range []string{"ossched_admitted_total", "ossched_dispatched_total", "ossched_queue_depth"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status=%d, want 404", w.Code)
	}
}

func testStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:", testLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRuns(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	run := &model.Run{ID: "run_abc", Policy: model.PolicyMLQ, MaxPriority: 3, CPUs: 1, TimeSlice: 2, StartedAt: time.Now().UTC()}
	if err := st.BeginRun(ctx, run); err != nil {
		t.Fatalf("begin: %v", err)
	}
	for i := int64(1); i <= 3; i++ {
		if err := st.RecordDispatch(ctx, run.ID, model.Dispatch{Seq: i, PID: uint32(i), Ran: 1, Finished: true}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	srv := testServer(t, WithStore(st))

	env := do(t, srv, "GET", "/api/v1/runs", "", http.StatusOK)
	if env.Pagination == nil || env.Pagination.Total != 1 {
		t.Fatalf("pagination = %+v, want total 1", env.Pagination)
	}
	var runs []model.Run
	json.Unmarshal(env.Data, &runs)
	if len(runs) != 1 || runs[0].ID != "run_abc" {
		t.Errorf("runs = %+v, want [run_abc]", runs)
	}

	env = do(t, srv, "GET", "/api/v1/runs/run_abc", "", http.StatusOK)
	var got model.Run
	json.Unmarshal(env.Data, &got)
	if got.Policy != model.PolicyMLQ {
		t.Errorf("policy = %q, want mlq", got.Policy)
	}

	env = do(t, srv, "GET", "/api/v1/runs/run_abc/dispatches", "", http.StatusOK)
	var ds []model.Dispatch
	json.Unmarshal(env.Data, &ds)
	if len(ds) != 3 {
		t.Errorf("dispatches = %d, want 3", len(ds))
	}

	env = do(t, srv, "GET", "/api/v1/runs/run_missing", "", http.StatusNotFound)
	if env.Error == nil || env.Error.Code != model.ErrNotFound {
		t.Errorf("error = %v, want NOT_FOUND", env.Error)
	}
	do(t, srv, "GET", "/api/v1/runs?policy=rr", "", http.StatusBadRequest)

	do(t, srv, "DELETE", "/api/v1/runs/run_abc", "", http.StatusOK)
	do(t, srv, "GET", "/api/v1/runs/run_abc", "", http.StatusNotFound)
}

func TestRuns_NoStore(t *testing.T) {
	srv := testServer(t)
	env := do(t, srv, "GET", "/api/v1/runs", "", http.StatusNotFound)
	if env.Error == nil || env.Error.Code != model.ErrNotFound {
		t.Errorf("error = %v, want NOT_FOUND", env.Error)
	}
}
