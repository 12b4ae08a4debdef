package testrunner

import (
	"context"

	"github.com/dshills/orchestrator-core/core"
	"github.com/dshills/orchestrator-core/interp"
)

// Stub is a deterministic interp.TestRunnerAdapter for tests, grounded on
// the same configurable-canned-result idiom as model/mock.Adapter and the
// teacher's graph/model.MockChatModel.
type Stub struct {
	TestResult   core.TestResult
	TypeCheck    interp.TypeCheckResult
	SchemaResult interp.SchemaValidationResult
	Err          error

	RunTestsCalls       int
	CheckTypesCalls     int
	ValidateSchemaCalls int
}

// RunTests implements interp.TestRunnerAdapter.
func (s *Stub) RunTests(context.Context, string, bool) (core.TestResult, error) {
	s.RunTestsCalls++
	if s.Err != nil {
		return core.TestResult{}, s.Err
	}
	return s.TestResult, nil
}

// CheckTypes implements interp.TestRunnerAdapter.
func (s *Stub) CheckTypes(context.Context) (interp.TypeCheckResult, error) {
	s.CheckTypesCalls++
	if s.Err != nil {
		return interp.TypeCheckResult{}, s.Err
	}
	return s.TypeCheck, nil
}

// ValidateSchema implements interp.TestRunnerAdapter.
func (s *Stub) ValidateSchema(context.Context, string, string) (interp.SchemaValidationResult, error) {
	s.ValidateSchemaCalls++
	if s.Err != nil {
		return interp.SchemaValidationResult{}, s.Err
	}
	return s.SchemaResult, nil
}
