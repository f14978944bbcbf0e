package core

import "time"

// DatasetState is the lifecycle of the seeded data set.
type DatasetState string

const (
	StatePending DatasetState = "pending"
	StateSeeding DatasetState = "seeding"
	StateReady   DatasetState = "ready"
	StateFailed  DatasetState = "failed"
)

// Terminal reports whether seeding has finished, successfully or not.
func (s DatasetState) Terminal() bool {
	return s == StateReady || s == StateFailed
}

// DatasetStatus is a snapshot of the seeding lifecycle, published to
// websocket clients and the message broker.
type DatasetStatus struct {
	State     DatasetState `json:"status"`
	Records   int          `json:"records"`
	Attempt   int          `json:"attempt,omitempty"`
	Source    string       `json:"source,omitempty"`
	Error     string       `json:"error,omitempty"`
	UpdatedAt time.Time    `json:"updatedAt"`
}
