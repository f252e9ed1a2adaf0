// Package sink defines output backends for recorded batches.
package sink

import (
	"context"

	"github.com/hazyhaar/domreplay/record"
)

// Sink is the output interface. Implementations deliver batches to
// different backends (stdout, SQLite, in-process callback, live replica).
// Batches of one session arrive in Seq order.
type Sink interface {
	Send(ctx context.Context, batch record.Batch) error
	Close() error
}
