// Package mock provides a deterministic interp.LLMAdapter for tests,
// grounded on the teacher's graph/model.MockChatModel.
package mock

import (
	"context"
	"sync"

	"github.com/dshills/orchestrator-core/interp"
)

// Call records a single Invoke invocation, for assertions in tests that
// need to verify what the orchestrator sent the model.
type Call struct {
	Request interp.LLMRequest
}

// Adapter returns a configured sequence of responses, repeating the last
// one once exhausted. Safe for concurrent use, though the orchestrator
// never calls Invoke concurrently with itself (spec §5: one suspension
// point at a time).
type Adapter struct {
	// Responses is consumed in order; once exhausted, the last response
	// repeats for every subsequent call.
	Responses []interp.LLMResult

	// Err, if set, is returned instead of a response.
	Err error

	mu    sync.Mutex
	Calls []Call
	next  int
}

// New builds an Adapter that returns responses in order.
func New(responses ...interp.LLMResult) *Adapter {
	return &Adapter{Responses: responses}
}

// Invoke implements interp.LLMAdapter.
func (a *Adapter) Invoke(ctx context.Context, req interp.LLMRequest) (interp.LLMResult, error) {
	if ctx.Err() != nil {
		return interp.LLMResult{}, ctx.Err()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.Calls = append(a.Calls, Call{Request: req})

	if a.Err != nil {
		return interp.LLMResult{}, a.Err
	}
	if len(a.Responses) == 0 {
		return interp.LLMResult{}, nil
	}

	idx := a.next
	if idx >= len(a.Responses) {
		idx = len(a.Responses) - 1
	} else {
		a.next++
	}
	return a.Responses[idx], nil
}
