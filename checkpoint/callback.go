// Package checkpoint implements the CheckpointAdapter side of the
// orchestrator's rendezvous protocol: make a checkpoint summary externally
// visible, then block until an approver responds or the wait times out.
package checkpoint

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dshills/orchestrator-core/core"
	"github.com/dshills/orchestrator-core/interp"
)

// Decision is what an approver returns for a pending checkpoint.
type Decision struct {
	Approved bool
	Reason   string
}

// ProgressFunc is invoked once per emitted checkpoint, letting an
// in-process caller (a CLI, a test harness) observe the summary and later
// call Callback.Resolve with the operator's decision.
type ProgressFunc func(summary core.CheckpointSummary)

// ErrUnknownCheckpoint is returned by Resolve when no WaitForApproval call
// is currently pending for the given id.
var ErrUnknownCheckpoint = errors.New("checkpoint: no pending approval for that id")

// Callback is an in-process CheckpointAdapter: EmitCheckpoint notifies a
// caller-supplied callback, and WaitForApproval blocks on a channel until
// Resolve is called with the matching id or the context is cancelled.
// This mirrors the teacher's node.go convention of exposing a narrow
// synchronous hook (NodeFunc) rather than a full pub/sub bus — there is
// exactly one approver per run, so a map of channels is enough.
type Callback struct {
	onCheckpoint ProgressFunc

	mu      sync.Mutex
	pending map[string]chan Decision
}

// NewCallback builds a Callback adapter. onCheckpoint may be nil, in which
// case EmitCheckpoint is a no-op beyond making the wait channel ready.
func NewCallback(onCheckpoint ProgressFunc) *Callback {
	return &Callback{
		onCheckpoint: onCheckpoint,
		pending:      make(map[string]chan Decision),
	}
}

// EmitCheckpoint registers a wait channel for summary.ID and invokes the
// progress callback, if any.
func (c *Callback) EmitCheckpoint(_ context.Context, summary core.CheckpointSummary) error {
	c.mu.Lock()
	c.pending[summary.ID] = make(chan Decision, 1)
	c.mu.Unlock()

	if c.onCheckpoint != nil {
		c.onCheckpoint(summary)
	}
	return nil
}

// WaitForApproval blocks until Resolve(checkpointID, ...) is called, the
// context is cancelled, or timeoutMs elapses — whichever comes first. A
// timeout or cancellation is treated as a rejection with reason "timeout",
// per spec §4.6.
func (c *Callback) WaitForApproval(ctx context.Context, checkpointID string, timeoutMs int) (interp.ApprovalResult, error) {
	c.mu.Lock()
	ch, ok := c.pending[checkpointID]
	if !ok {
		ch = make(chan Decision, 1)
		c.pending[checkpointID] = ch
	}
	c.mu.Unlock()

	timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
	defer timer.Stop()

	select {
	case d := <-ch:
		c.cleanup(checkpointID)
		return interp.ApprovalResult{Approved: d.Approved, Reason: d.Reason}, nil
	case <-timer.C:
		c.cleanup(checkpointID)
		return interp.ApprovalResult{Approved: false, Reason: "timeout"}, nil
	case <-ctx.Done():
		c.cleanup(checkpointID)
		return interp.ApprovalResult{Approved: false, Reason: "timeout"}, nil
	}
}

// Resolve delivers an operator's decision for a pending checkpoint. It
// returns ErrUnknownCheckpoint if neither EmitCheckpoint nor WaitForApproval
// has registered that id, or if it already timed out and was cleaned up.
func (c *Callback) Resolve(checkpointID string, decision Decision) error {
	c.mu.Lock()
	ch, ok := c.pending[checkpointID]
	c.mu.Unlock()
	if !ok {
		return ErrUnknownCheckpoint
	}

	select {
	case ch <- decision:
	default:
	}
	return nil
}

func (c *Callback) cleanup(checkpointID string) {
	c.mu.Lock()
	delete(c.pending, checkpointID)
	c.mu.Unlock()
}
