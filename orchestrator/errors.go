package orchestrator

// Error represents an error from the orchestrator loop itself, distinct from
// errors folded into an ErrorOccurred event (spec §7: adapter errors are
// caught and recorded, never returned to the caller). An Error here means
// the run could not start: bad options, or a Loop built without an
// interpreter or store. Failures while resuming or persisting are returned
// as wrapped errors instead.
type Error struct {
	Message string
	Code    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
