// CLAUDE:SUMMARY In-process callback sink delivering batches via Go function calls with zero serialization.
package sink

import (
	"context"

	"github.com/hazyhaar/domreplay/record"
)

// BatchFunc is called for each batch (in-process, zero serialisation).
type BatchFunc func(ctx context.Context, batch record.Batch) error

// Callback delivers batches via Go function calls, for hosts embedding the
// recorder next to their own transport.
type Callback struct {
	onBatch BatchFunc
}

// NewCallback creates a Callback sink. fn may be nil.
func NewCallback(fn BatchFunc) *Callback {
	return &Callback{onBatch: fn}
}

func (c *Callback) Send(ctx context.Context, batch record.Batch) error {
	if c.onBatch != nil {
		return c.onBatch(ctx, batch)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
