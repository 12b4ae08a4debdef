package orchestrator

import (
	"github.com/dshills/orchestrator-core/core"
)

// DefaultMaxTurns is the loop's safety net when no WithMaxTurns option is
// given (spec §4.7); an explicit WithMaxTurns(0) runs no turns at all.
const DefaultMaxTurns = 20000

// DefaultCheckpointEvery is how often (in turns) the loop issues
// RequestCheckpoint (spec §4.7 step 2: "every 10 turns").
const DefaultCheckpointEvery = 10

// ProgressFunc is invoked once per processed command with the state the
// loop just reached and the last event derived from it, if any. latest is
// the zero Event (Kind == "") when a command produced no events, which
// happens for no-op/ignored commands.
type ProgressFunc func(state core.State, latest core.Event)

// Option configures a Run call. Grounded on the teacher's graph.Option
// functional-options pattern (graph/options.go): chainable, self
// documenting, and composable with a struct literal for callers that
// prefer one.
type Option func(*Options) error

// Options collects everything Run needs, mirroring spec §6's entry-point
// contract: {workDir, prompt, maxTurns?, dbPath?, checkpointCallback?,
// onProgress?}. WorkDir is only checked for presence here: file effects
// resolve against interp.Deps.WorkDir. The checkpoint adapter and the
// store (dbPath's Go analogue is the store.EventStore a caller opens) are
// supplied once, up front, to interp.Deps/Loop's constructor rather than
// threaded through Options (see DESIGN.md).
type Options struct {
	WorkDir string
	Prompt  string

	MaxTurns        int
	CheckpointEvery int

	OnProgress ProgressFunc
}

// WithMaxTurns overrides the default 20000-turn safety net.
func WithMaxTurns(n int) Option {
	return func(o *Options) error {
		o.MaxTurns = n
		return nil
	}
}

// WithCheckpointEvery overrides how many turns elapse between automatic
// RequestCheckpoint commands. Default 10.
func WithCheckpointEvery(n int) Option {
	return func(o *Options) error {
		o.CheckpointEvery = n
		return nil
	}
}

// WithOnProgress registers a callback invoked after every processed
// command (spec §4.7 step 4).
func WithOnProgress(fn ProgressFunc) Option {
	return func(o *Options) error {
		o.OnProgress = fn
		return nil
	}
}

func resolveOptions(workDir, prompt string, opts ...Option) (Options, error) {
	o := Options{
		WorkDir:         workDir,
		Prompt:          prompt,
		MaxTurns:        DefaultMaxTurns,
		CheckpointEvery: DefaultCheckpointEvery,
	}
	for _, apply := range opts {
		if err := apply(&o); err != nil {
			return Options{}, err
		}
	}
	if o.WorkDir == "" {
		return Options{}, &Error{Message: "workDir is required", Code: "MISSING_WORKDIR"}
	}
	if o.Prompt == "" {
		return Options{}, &Error{Message: "prompt is required", Code: "MISSING_PROMPT"}
	}
	return o, nil
}
