package serialize

import (
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/domreplay/internal/scope"
	"github.com/hazyhaar/domreplay/record"
)

// ErrTransactionAborted is returned by Run when the serialization function
// panicked.
var ErrTransactionAborted = errors.New("serialize: transaction aborted")

// Metric names reported in batch stats.
const (
	MetricCSSText               = "cssText"
	MetricSerializationDuration = "serializationDuration" // microseconds
)

// Emitter receives the records and stats of a completed transaction.
type Emitter func(kind record.Kind, records []record.Record, stats record.Stats)

// Transaction buffers the output of one serialization pass.
type Transaction struct {
	Scope *scope.Scope
	Kind  record.Kind

	records []*record.Record
	stats   record.Stats
}

// Add buffers r. Its id is assigned when the transaction commits; a zero
// timestamp is set to the scope clock.
func (tx *Transaction) Add(r *record.Record) {
	if r.Timestamp == 0 {
		r.Timestamp = tx.Scope.Now()
	}
	tx.records = append(tx.records, r)
}

// AddMetric folds value into the named metric.
func (tx *Transaction) AddMetric(name string, value int) {
	if tx.stats == nil {
		tx.stats = make(record.Stats)
	}
	tx.stats[name] = tx.stats[name].Add(value)
}

// Len returns the number of buffered records.
func (tx *Transaction) Len() int { return len(tx.records) }

// Run executes fn inside a new transaction on s. When fn returns nil and
// buffered at least one record, the records are emitted once, in order,
// with the aggregated stats. Nothing is emitted when fn fails or panics.
func Run(s *scope.Scope, kind record.Kind, emit Emitter, fn func(*Transaction) error) (err error) {
	tx := &Transaction{Scope: s, Kind: kind}
	start := time.Now()

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrTransactionAborted, r)
			}
		}()
		err = fn(tx)
	}()
	if err != nil {
		return err
	}
	if len(tx.records) == 0 {
		return nil
	}

	tx.AddMetric(MetricSerializationDuration, int(time.Since(start).Microseconds()))
	out := make([]record.Record, len(tx.records))
	for i, r := range tx.records {
		r.ID, _ = s.Events.GetOrInsert(r)
		out[i] = *r
	}
	if emit != nil {
		emit(kind, out, tx.stats)
	}
	return nil
}
