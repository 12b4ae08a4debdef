package checkpoint

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/orchestrator-core/core"
)

func TestWebhookEmitCheckpointPostsJSON(t *testing.T) {
	var gotMethod string
	var gotSummary core.CheckpointSummary

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotSummary)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, srv.URL+"/%s", time.Millisecond)
	err := wh.EmitCheckpoint(context.Background(), core.CheckpointSummary{ID: "cp-1", Phase: core.PhaseTesting})
	if err != nil {
		t.Fatalf("EmitCheckpoint() error = %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if gotSummary.ID != "cp-1" {
		t.Errorf("posted summary ID = %q, want cp-1", gotSummary.ID)
	}
}

func TestWebhookWaitForApprovalPollsUntilDecided(t *testing.T) {
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		if n < 3 {
			_ = json.NewEncoder(w).Encode(pollResponse{Decided: false})
			return
		}
		_ = json.NewEncoder(w).Encode(pollResponse{Decided: true, Approved: true, Reason: "looks good"})
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, srv.URL+"/%s", 5*time.Millisecond)
	result, err := wh.WaitForApproval(context.Background(), "cp-1", 2000)
	if err != nil {
		t.Fatalf("WaitForApproval() error = %v", err)
	}
	if !result.Approved || result.Reason != "looks good" {
		t.Errorf("result = %+v, want approved with reason 'looks good'", result)
	}
	if atomic.LoadInt32(&calls) < 3 {
		t.Errorf("calls = %d, want at least 3 polls before deciding", calls)
	}
}

func TestWebhookWaitForApprovalTimesOutWhenNeverDecided(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(pollResponse{Decided: false})
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, srv.URL+"/%s", 5*time.Millisecond)
	result, err := wh.WaitForApproval(context.Background(), "cp-1", 30)
	if err != nil {
		t.Fatalf("WaitForApproval() error = %v", err)
	}
	if result.Approved || result.Reason != "timeout" {
		t.Errorf("result = %+v, want a timeout rejection", result)
	}
}
