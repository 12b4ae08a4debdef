// Package orchestrator implements the outermost control loop (spec §4.7):
// it cycles command -> effects -> results -> events -> persist, supervises
// turn budgets and the checkpoint rendezvous, and exposes the single
// run(options) entry point spec §6 calls for. Grounded on the teacher's
// graph.Engine.Run (graph/engine.go): the same validate-then-loop shape,
// the same ctx.Done()-checked-every-iteration cancellation discipline, and
// the same EngineError-style typed error for construction failures.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/orchestrator-core/core"
	"github.com/dshills/orchestrator-core/interp"
	"github.com/dshills/orchestrator-core/store"
)

// Deps bundles the interpreter and event store a Loop drives. The LLM,
// checkpoint, test runner, and telemetry adapters are already wired into
// Interp's own Deps (interp.New); the orchestrator never imports a vendor
// adapter package directly, only interp's and store's contracts.
type Deps struct {
	Interp *interp.Interpreter
	Store  store.EventStore
}

// Loop drives one run to convergence or exhaustion.
type Loop struct {
	interp *interp.Interpreter
	store  store.EventStore

	runID string

	eventsPersisted int64
	errorCount      int
	warnCount       int

	totalTokens  int
	totalCostUSD float64
	costByModel  map[string]float64
}

// New builds a Loop over deps.
func New(deps Deps) (*Loop, error) {
	if deps.Interp == nil {
		return nil, &Error{Message: "interpreter is required", Code: "MISSING_INTERP"}
	}
	if deps.Store == nil {
		return nil, &Error{Message: "event store is required", Code: "MISSING_STORE"}
	}
	return &Loop{interp: deps.Interp, store: deps.Store}, nil
}

// Run is the entry point spec §6 names: run(options) -> {final state,
// aggregated summary}. runID identifies the session within the event
// store; workDir/prompt and the functional options round out Options.
func (l *Loop) Run(ctx context.Context, runID, workDir, prompt string, opts ...Option) (core.State, Summary, error) {
	o, err := resolveOptions(workDir, prompt, opts...)
	if err != nil {
		return core.State{}, Summary{}, err
	}

	state, _, err := tryResume(ctx, l.store, runID)
	if err != nil {
		return core.State{}, Summary{}, fmt.Errorf("orchestrator: resume: %w", err)
	}

	l.runID = runID
	ctx = interp.WithRunID(ctx, runID)

	if state.Turn == 0 && !state.Initialized() {
		if err := l.process(ctx, core.Command{Kind: core.CmdInitialize, Prompt: o.Prompt}, &state, o); err != nil {
			return state, Summary{}, err
		}
	}

	reason := StopMaxTurns
	for !l.shouldStop(state, o.MaxTurns) {
		select {
		case <-ctx.Done():
			return state, l.summary(state, StopContextDone), nil
		default:
		}

		if err := l.process(ctx, core.Command{Kind: core.CmdStartTurn}, &state, o); err != nil {
			return state, Summary{}, err
		}

		if o.CheckpointEvery > 0 && state.Turn > 0 && state.Turn%o.CheckpointEvery == 0 {
			if err := l.process(ctx, core.Command{Kind: core.CmdRequestCheckpoint}, &state, o); err != nil {
				return state, Summary{}, err
			}
		}

		if len(state.PhaseItems(state.Phase)) > 0 && state.PhaseComplete(state.Phase) {
			if err := l.process(ctx, core.Command{Kind: core.CmdAdvancePhase}, &state, o); err != nil {
				return state, Summary{}, err
			}
		}
	}

	if core.HasConverged(state) {
		reason = StopConverged
	}
	return state, l.summary(state, reason), nil
}

func (l *Loop) shouldStop(s core.State, maxTurns int) bool {
	return core.HasConverged(s) || s.Turn >= maxTurns || s.Converged
}

func (l *Loop) summary(s core.State, reason StopReason) Summary {
	return buildSummary(s, reason, l.eventsPersisted, l.errorCount, l.warnCount, l.totalTokens, l.totalCostUSD, l.costByModel)
}

// process runs one command to completion, including every follow-up
// command it synthesizes (e.g. StartTurn's InvokeLLM response feeding a
// ProcessLLMResponse command), persisting events and snapshots as it
// goes, and finally invoking the progress callback with the last event
// observed. An adapter exception becomes a persisted
// ErrorOccurred{recoverable=true} event rather than propagating (spec
// §7). A failure to persist any event, or to write a snapshot, is
// returned as fatal, since at that point the log can no longer be
// trusted as the source of truth.
func (l *Loop) process(ctx context.Context, cmd core.Command, state *core.State, o Options) error {
	var latest core.Event
	queue := []core.Command{cmd}

	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]

		before := *state
		effects := core.Decide(c, before)
		results, execErr := l.interp.Execute(ctx, effects)

		if c.Kind == core.CmdProcessLLMResponse {
			l.tallyLLMUsage(c.LLMResponse)
		}
		if c.Kind == core.CmdInitialize {
			if res, ok := llmResult(effects, results); ok {
				l.tallyLLMUsage(core.LLMResponse{
					TokensUsed: res.TokensUsed, Model: res.Model,
					InputTokens: res.InputTokens, OutputTokens: res.OutputTokens,
				})
			}
		}

		events, followUps := deriveEvents(c, before, effects, results, time.Now().UTC())
		if execErr != nil {
			events = append(events, core.Event{
				Kind: core.EvtErrorOccurred, Timestamp: time.Now().UTC(),
				Message: execErr.Error(), Recoverable: true,
			})
		}

		for _, ev := range events {
			idx, err := l.persistEvent(ctx, ev)
			if err != nil {
				return fmt.Errorf("orchestrator: persist event: %w", err)
			}
			*state = core.Evolve(*state, ev)
			latest = ev
			l.tally(ev)

			if shouldSnapshot(idx, ev.Kind) {
				if _, err := l.interp.Execute(ctx, []core.Effect{{
					Kind: core.EffCreateSnapshot, State: *state, AtEventIndex: idx,
				}}); err != nil {
					return fmt.Errorf("orchestrator: create snapshot: %w", err)
				}
			}
		}

		if execErr == nil {
			queue = append(queue, followUps...)
		}
	}

	if o.OnProgress != nil {
		o.OnProgress(*state, latest)
	}
	return nil
}

// persistEvent executes the PersistEvent effect plus its companion
// events_persisted metric (spec §4.7: "emits a single events_persisted
// metric per event") and returns the index the store assigned. Once the
// metric is confirmed emitted, the event is marked off the store's
// transactional outbox (store.EventStore.MarkEventsEmitted): a crash
// between AppendEvents and the mark leaves the event in PendingEvents for
// DrainOutbox to retry, instead of silently losing the telemetry signal.
func (l *Loop) persistEvent(ctx context.Context, ev core.Event) (int64, error) {
	results, err := l.interp.Execute(ctx, []core.Effect{{Kind: core.EffPersistEvent, Event: ev}})
	if err != nil {
		return 0, err
	}
	idx := results[0].EventIndex

	if _, err := l.interp.Execute(ctx, []core.Effect{
		{Kind: core.EffRecordMetric, MetricName: "events_persisted", Value: 1, Tags: map[string]string{"kind": string(ev.Kind)}},
	}); err != nil {
		return idx, err
	}

	if err := l.store.MarkEventsEmitted(ctx, l.runID, []int64{idx}); err != nil {
		return idx, fmt.Errorf("mark event emitted: %w", err)
	}
	return idx, nil
}

// DrainOutbox retries telemetry delivery for events that were persisted
// but never confirmed emitted (store.EventStore.PendingEvents), e.g.
// after a crash between persistEvent's two Execute calls above. Intended
// to run once at process startup, before any Run resumes a session.
func (l *Loop) DrainOutbox(ctx context.Context, limit int) error {
	pending, err := l.store.PendingEvents(ctx, limit)
	if err != nil {
		return fmt.Errorf("orchestrator: load pending events: %w", err)
	}

	byRun := make(map[string][]int64)
	for _, se := range pending {
		if _, err := l.interp.Execute(ctx, []core.Effect{
			{Kind: core.EffRecordMetric, MetricName: "events_persisted", Value: 1, Tags: map[string]string{"kind": string(se.Event.Kind)}},
		}); err != nil {
			return fmt.Errorf("orchestrator: drain outbox: %w", err)
		}
		byRun[se.RunID] = append(byRun[se.RunID], se.Index)
	}
	for runID, indices := range byRun {
		if err := l.store.MarkEventsEmitted(ctx, runID, indices); err != nil {
			return fmt.Errorf("orchestrator: mark events emitted: %w", err)
		}
	}
	return nil
}

// tallyLLMUsage folds one LLM call's token/cost usage into the running
// totals surfaced in Summary. Grounded on the teacher's graph/cost.go
// CostTracker, adapted into a plain accumulator on Loop since core.State
// itself never carries derived, non-replayed bookkeeping like this.
func (l *Loop) tallyLLMUsage(resp core.LLMResponse) {
	l.totalTokens += resp.TokensUsed
	cost, known := core.CostForCall(resp.Model, resp.InputTokens, resp.OutputTokens)
	if !known {
		return
	}
	l.totalCostUSD += cost
	if l.costByModel == nil {
		l.costByModel = make(map[string]float64)
	}
	l.costByModel[resp.Model] += cost
}

func (l *Loop) tally(ev core.Event) {
	l.eventsPersisted++
	switch ev.Kind {
	case core.EvtErrorOccurred:
		l.errorCount++
	case core.EvtBudgetExhausted, core.EvtCheckpointRejected:
		l.warnCount++
	}
}
