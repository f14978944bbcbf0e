package amqp

import (
	"encoding/json"
	"time"

	"txdash/internal/core"
)

// DatasetStatusMessage is published whenever the seeded data set changes state.
type DatasetStatusMessage struct {
	Status    core.DatasetState `json:"status"`
	Records   int               `json:"records"`
	Source    string            `json:"source,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewDatasetStatusMessage builds a message from a status snapshot
func NewDatasetStatusMessage(s core.DatasetStatus) *DatasetStatusMessage {
	ts := s.UpdatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &DatasetStatusMessage{
		Status:    s.State,
		Records:   s.Records,
		Source:    s.Source,
		Error:     s.Error,
		Timestamp: ts,
	}
}

// ToJSON converts the message to JSON bytes
func (m *DatasetStatusMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
