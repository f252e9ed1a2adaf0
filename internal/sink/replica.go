// CLAUDE:SUMMARY Replica sink replaying delivered batches into a live reconstructed tree, as a player would.
package sink

import (
	"context"
	"fmt"
	"sync"

	"github.com/hazyhaar/domreplay/record"
)

// Replica rebuilds the recorded page from the batches it receives. A full
// snapshot batch starts over; incremental batches must belong to the
// session being replayed. Raw JSON records, as read back from a Store,
// are decoded first.
type Replica struct {
	mu      sync.Mutex
	rebuilt *record.Rebuilder
	decoder *record.Decoder
	session string
	meta    *record.Meta
	applied int
}

// NewReplica creates an empty replica.
func NewReplica() *Replica {
	return &Replica{rebuilt: record.NewRebuilder(), decoder: record.NewDecoder()}
}

func (r *Replica) Send(_ context.Context, b record.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b.Kind != record.KindIncremental {
		r.rebuilt.Reset()
		r.session = b.SessionID
		r.meta = nil
	} else if b.SessionID != r.session {
		return fmt.Errorf("sink: replica: batch %d of session %s, replaying %q", b.Seq, b.SessionID, r.session)
	}

	// Decode copies: the batch is shared with the other sinks.
	b.Records = append([]record.Record(nil), b.Records...)
	if err := r.decoder.DecodeBatch(&b); err != nil {
		return fmt.Errorf("sink: replica: %w", err)
	}
	for _, rec := range b.Records {
		var err error
		switch d := rec.Data.(type) {
		case *record.Meta:
			r.meta = d
		case *record.FullSnapshot:
			r.rebuilt.Load(d)
		case *record.Mutation:
			err = r.rebuilt.ApplyMutation(d)
		case record.Changes:
			err = r.rebuilt.Apply(d)
		}
		if err != nil {
			return fmt.Errorf("sink: replica: session %s batch %d record %d: %w", b.SessionID, b.Seq, rec.ID, err)
		}
		r.applied++
	}
	return nil
}

// Snapshot returns a copy of the reconstructed tree.
func (r *Replica) Snapshot() *record.FullSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	fs := r.rebuilt.Snapshot()
	return &record.FullSnapshot{Node: fs.Node.Clone(), InitialOffset: fs.InitialOffset}
}

// Meta returns the page description of the current session, nil before
// the first full snapshot.
func (r *Replica) Meta() *record.Meta {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.meta
}

// SessionID returns the session being replayed.
func (r *Replica) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Applied returns the number of records replayed so far.
func (r *Replica) Applied() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applied
}

func (r *Replica) Close() error { return nil }
