package orchestrator

import (
	"time"

	"github.com/dshills/orchestrator-core/core"
	"github.com/dshills/orchestrator-core/interp"
)

// effectEvent derives the event, if any, a single (effect, result) pair
// produces against the state it was executed over (spec §8 table: only
// WriteFile, RunTests, CheckTypes, and EmitCheckpoint carry a direct
// effect -> event mapping; everything else is derived at the command
// level in command_events.go, since it needs context the effect result alone
// doesn't carry).
func effectEvent(eff core.Effect, res interp.Result, s core.State, now time.Time) (core.Event, bool) {
	switch eff.Kind {
	case core.EffWriteFile:
		return artifactEvent(eff, res, s, now), true

	case core.EffRunTests:
		if res.TestResult.Passed {
			return core.Event{
				Kind: core.EvtTestsPassed, Timestamp: now,
				HasCoverage: res.TestResult.HasCoverage, Coverage: res.TestResult.Coverage,
			}, true
		}
		return core.Event{
			Kind: core.EvtTestsFailed, Timestamp: now,
			HasCoverage: res.TestResult.HasCoverage, Coverage: res.TestResult.Coverage,
		}, true

	case core.EffCheckTypes:
		if res.TypeCheck.Passed {
			return core.Event{Kind: core.EvtTypeCheckPassed, Timestamp: now}, true
		}
		return core.Event{Kind: core.EvtTypeCheckFailed, Timestamp: now, TypeErrors: res.TypeCheck.Errors}, true

	case core.EffEmitCheckpoint:
		return core.Event{Kind: core.EvtCheckpointCreated, Timestamp: now, CheckpointSummary: eff.Summary}, true

	default:
		return core.Event{}, false
	}
}

func artifactEvent(eff core.Effect, res interp.Result, s core.State, now time.Time) core.Event {
	if idx := s.ArtifactByPath(res.Path); idx >= 0 {
		updated := s.Artifacts[idx]
		updated.Hash = res.Hash
		updated.UpdatedAt = now
		return core.Event{Kind: core.EvtArtifactUpdated, Timestamp: now, Artifact: updated}
	}
	return core.Event{
		Kind: core.EvtArtifactCreated, Timestamp: now,
		Artifact: core.Artifact{
			ID: newID(), Path: res.Path, Hash: res.Hash, Phase: s.Phase,
			CreatedAt: now, UpdatedAt: now,
		},
	}
}

// confidenceFollowUps appends a ConfidenceUpdated event, and a
// ConvergenceReached event if applying e flipped after.Converged from
// false to true, to the event stream produced for a turn. Both carry
// after's Confidence, matching evolve's ConfidenceUpdated/
// ConvergenceReached handling, which treats the event as a plain
// assignment (spec §4.3) — so this is idempotent to replay even though
// the fields it copies were already set by the preceding Tests*/
// TypeCheck* event.
func confidenceFollowUps(before, after core.State, now time.Time) []core.Event {
	var out []core.Event
	out = append(out, core.Event{Kind: core.EvtConfidenceUpdated, Timestamp: now, Confidence: after.Confidence})
	if !before.Converged && after.Converged {
		out = append(out, core.Event{Kind: core.EvtConvergenceReached, Timestamp: now, Confidence: after.Confidence})
	}
	return out
}

func isConfidenceTrigger(kind core.EventKind) bool {
	switch kind {
	case core.EvtTestsPassed, core.EvtTestsFailed, core.EvtTypeCheckPassed, core.EvtTypeCheckFailed:
		return true
	default:
		return false
	}
}
