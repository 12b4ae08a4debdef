package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/orchestrator-core/core"
	"github.com/dshills/orchestrator-core/store"
)

// tryResume implements spec §4.5's resume protocol: fetch the latest
// snapshot; if none exists, start from core.NewInitialState(); otherwise
// start from the snapshot state and replay every event persisted after it.
// The returned index is the number of events already durable for runID —
// the expectedIndex the next AppendEvents call must pass.
func tryResume(ctx context.Context, s store.EventStore, runID string) (core.State, int64, error) {
	snap, err := s.LoadLatestSnapshot(ctx, runID)
	state := core.NewInitialState()
	afterIndex := int64(-1)

	switch {
	case err == nil:
		state = snap.State
		afterIndex = snap.AtIndex
	case errors.Is(err, store.ErrNotFound):
		// no snapshot yet: replay from the beginning
	default:
		return core.State{}, 0, fmt.Errorf("orchestrator: load latest snapshot: %w", err)
	}

	events, err := s.LoadEventsSince(ctx, runID, afterIndex)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return core.State{}, 0, fmt.Errorf("orchestrator: load events since %d: %w", afterIndex, err)
	}

	nextIndex := afterIndex + 1
	for _, se := range events {
		state = core.Evolve(state, se.Event)
		nextIndex = se.Index + 1
	}

	return state, nextIndex, nil
}

// shouldSnapshot implements the default snapshot policy (spec §4.5):
// every 100th event, or any PhaseStarted/PhaseCompleted/ConvergenceReached
// event, regardless of index.
func shouldSnapshot(index int64, kind core.EventKind) bool {
	if index%100 == 0 {
		return true
	}
	switch kind {
	case core.EvtPhaseStarted, core.EvtPhaseCompleted, core.EvtConvergenceReached:
		return true
	default:
		return false
	}
}
