package models

import "time"

// Record represents a store row whose address has not been geocoded yet.
type Record struct {
	ID      int64  // ID is the unique, stable identifier of the store row.
	Address string // Address is the street address to be geocoded.
}

// GeocodeResult holds resolved coordinates for a single record.
// It only lives in memory between the provider response and the batch commit.
type GeocodeResult struct {
	RecordID    int64
	Coordinates Coordinates
	ResolvedAt  time.Time
}

// Failure describes a record the provider could not match.
type Failure struct {
	RecordID int64
	Reason   string
}

// RecordState is the derived coordinate state of a store row.
type RecordState string

const (
	StateUnresolved        RecordState = "unresolved"
	StateResolved          RecordState = "resolved"
	StatePermanentlyFailed RecordState = "permanently-failed"
)
