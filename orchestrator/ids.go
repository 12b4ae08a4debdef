package orchestrator

import "github.com/google/uuid"

// newID generates identifiers for artifacts and checklist items. A package
// variable, mirroring core.NewCheckpointID, so tests can substitute a
// deterministic generator.
var newID = func() string { return uuid.New().String() }

// SetIDGeneratorForTest substitutes the package's id generator and returns a
// func restoring the previous one. For tests outside this package that need
// deterministic checklist item ids.
func SetIDGeneratorForTest(gen func() string) (restore func()) {
	prev := newID
	newID = gen
	return func() { newID = prev }
}
