package service

// Governor tracks successful resolutions of a run against the daily ceiling.
// It is owned by the coordinating goroutine and is not safe for concurrent use.
type Governor struct {
	ceiling  int
	consumed int
}

// NewGovernor returns a governor allowing up to ceiling successful resolutions.
func NewGovernor(ceiling int) *Governor {
	return &Governor{ceiling: ceiling}
}

// Remaining returns how many more resolutions the run may record.
func (g *Governor) Remaining() int {
	return max(g.ceiling-g.consumed, 0)
}

// Clamp limits the next batch to the remaining allowance.
func (g *Governor) Clamp(batchSize int) int {
	return min(batchSize, g.Remaining())
}

// Consume records one successful resolution. It reports false, leaving the
// counter untouched, when the ceiling has already been reached.
func (g *Governor) Consume() bool {
	if g.Exhausted() {
		return false
	}
	g.consumed++
	return true
}

// Exhausted reports whether the ceiling has been reached.
func (g *Governor) Exhausted() bool {
	return g.consumed >= g.ceiling
}

// Consumed returns the number of resolutions recorded so far.
func (g *Governor) Consumed() int {
	return g.consumed
}

// Ceiling returns the configured daily ceiling.
func (g *Governor) Ceiling() int {
	return g.ceiling
}
