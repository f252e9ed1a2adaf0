package record

import (
	"encoding/json"
)

// Kind names the serialization pass that produced a batch.
type Kind string

const (
	KindInitialFullSnapshot    Kind = "initial_full_snapshot"
	KindSubsequentFullSnapshot Kind = "subsequent_full_snapshot"
	KindIncremental            Kind = "incremental"
)

// Metric aggregates the values reported under one name during a pass.
type Metric struct {
	Count int `json:"count"`
	Max   int `json:"max"`
	Sum   int `json:"sum"`
}

// Add folds v into the metric.
func (m Metric) Add(v int) Metric {
	if m.Count == 0 || v > m.Max {
		m.Max = v
	}
	m.Count++
	m.Sum += v
	return m
}

// Stats maps metric names (cssText, serializationDuration) to aggregates.
type Stats map[string]Metric

// Batch is the atomic unit delivered to sinks: every record of one
// serialization pass, in order, with the pass statistics.
type Batch struct {
	ID        string   `json:"id"`         // UUIDv7
	SessionID string   `json:"session_id"` // recording scope
	Seq       uint64   `json:"seq"`        // monotonically increasing per session (gap detection)
	Kind      Kind     `json:"kind"`
	Records   []Record `json:"records"`
	Stats     Stats    `json:"stats,omitempty"`
	Timestamp int64    `json:"timestamp"` // epoch milliseconds at emission
}

// MarshalBatch serialises a Batch to JSON.
func MarshalBatch(b *Batch) ([]byte, error) {
	return json.Marshal(b)
}

// UnmarshalBatch deserialises a Batch. Record data stays raw JSON.
func UnmarshalBatch(data []byte) (*Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
