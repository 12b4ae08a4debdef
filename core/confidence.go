package core

// MinConvergenceScore and MinConvergenceStreak are the two thresholds
// hasConverged requires simultaneously (spec §4.1): three consecutive
// green signals guards against declaring success from a single flaky
// pass.
const (
	MinConvergenceScore  = 0.9
	MinConvergenceStreak = 3
)

// OverallScore computes c.Score(). It is exported as a free function,
// mirroring the spec's `overallScore(confidence)` notation, so callers
// that only have a Confidence value (not a State) can compute it without
// reaching for the method.
func OverallScore(c Confidence) float64 {
	return c.Score()
}

// HasConverged reports whether s has reached convergence: overallScore
// >= MinConvergenceScore and convergenceStreak >= MinConvergenceStreak,
// evaluated together (spec §4.1, §8).
func HasConverged(s State) bool {
	return OverallScore(s.Confidence) >= MinConvergenceScore && s.ConvergenceStreak >= MinConvergenceStreak
}
