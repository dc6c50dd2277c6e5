package models

// OutcomeStatus tags the result of a single provider lookup.
type OutcomeStatus int

const (
	// OutcomeResolved means the provider returned a coordinate pair.
	OutcomeResolved OutcomeStatus = iota
	// OutcomeNotFound means the provider returned no candidate for the address.
	OutcomeNotFound
	// OutcomeRateLimited means the provider signaled throttling. It is run-fatal.
	OutcomeRateLimited
	// OutcomeTransientError covers network and response format failures.
	OutcomeTransientError
)

// String returns the label used in logs and metrics.
func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeResolved:
		return "resolved"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeTransientError:
		return "transient_error"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of geocoding one address.
// Coordinates is set only when Status is OutcomeResolved; Err is set otherwise.
type Outcome struct {
	Status      OutcomeStatus
	Coordinates Coordinates
	Err         error
}
