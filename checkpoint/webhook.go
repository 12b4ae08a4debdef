package checkpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dshills/orchestrator-core/core"
	"github.com/dshills/orchestrator-core/interp"
)

// Webhook is a CheckpointAdapter that POSTs the checkpoint summary to an
// external URL and polls a status URL for the approver's decision.
// Grounded on the teacher's graph/tool.HTTPTool: a plain *http.Client with
// no retry or circuit-breaker wrapper, because the orchestrator already
// treats any adapter error as retryable at the command level (spec §7).
type Webhook struct {
	client    *http.Client
	emitURL   string
	pollURL   string // formatted with fmt.Sprintf(pollURL, checkpointID)
	pollEvery time.Duration
}

// NewWebhook builds a Webhook adapter. emitURL receives a POST with the
// checkpoint summary as its JSON body. pollURL is a format string taking
// the checkpoint id, polled at pollEvery until it reports a decision or
// WaitForApproval's timeout elapses.
func NewWebhook(emitURL, pollURL string, pollEvery time.Duration) *Webhook {
	if pollEvery <= 0 {
		pollEvery = 2 * time.Second
	}
	return &Webhook{
		client:    &http.Client{},
		emitURL:   emitURL,
		pollURL:   pollURL,
		pollEvery: pollEvery,
	}
}

// EmitCheckpoint POSTs summary as JSON to the configured emit URL.
func (w *Webhook) EmitCheckpoint(ctx context.Context, summary core.CheckpointSummary) error {
	body, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal checkpoint summary: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.emitURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build emit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("emit checkpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("emit checkpoint: unexpected status %d", resp.StatusCode)
	}
	return nil
}

type pollResponse struct {
	Decided  bool   `json:"decided"`
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

// WaitForApproval polls the status URL until it reports Decided=true, the
// context is cancelled, or timeoutMs elapses. Both cancellation and
// timeout resolve to a rejection with reason "timeout" (spec §4.6).
func (w *Webhook) WaitForApproval(ctx context.Context, checkpointID string, timeoutMs int) (interp.ApprovalResult, error) {
	waitCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	ticker := time.NewTicker(w.pollEvery)
	defer ticker.Stop()

	for {
		decision, err := w.poll(waitCtx, checkpointID)
		if err != nil {
			return interp.ApprovalResult{}, err
		}
		if decision.Decided {
			return interp.ApprovalResult{Approved: decision.Approved, Reason: decision.Reason}, nil
		}

		select {
		case <-ticker.C:
			continue
		case <-waitCtx.Done():
			return interp.ApprovalResult{Approved: false, Reason: "timeout"}, nil
		}
	}
}

func (w *Webhook) poll(ctx context.Context, checkpointID string) (pollResponse, error) {
	url := fmt.Sprintf(w.pollURL, checkpointID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return pollResponse{}, fmt.Errorf("build poll request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		// Treat network errors during polling as "not decided yet" rather
		// than failing the wait outright; a flaky poll endpoint shouldn't
		// abort an otherwise-healthy run before its timeout is reached.
		return pollResponse{}, nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return pollResponse{}, nil
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return pollResponse{}, fmt.Errorf("poll checkpoint: unexpected status %d: %s", resp.StatusCode, body)
	}

	var decision pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		return pollResponse{}, fmt.Errorf("decode poll response: %w", err)
	}
	return decision, nil
}
