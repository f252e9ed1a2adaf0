// Package domreplay records a live, mutating document into a replayable,
// privacy-filtered stream of records.
//
// A Recorder takes a full snapshot of the document, then tracks its
// mutations and emits them as incremental batches. Every batch goes to a
// Sink (stdout, SQLite, in-process callback, live replica). Each full
// snapshot opens a new recording scope: node ids restart, and the batches
// that follow carry the new scope id as their session id.
//
// The Recorder and the document it records share one goroutine: the one
// draining the document scheduler (a dom.Queue or a dom.Loop).
package domreplay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/domreplay/dom"
	"github.com/hazyhaar/domreplay/internal/idgen"
	"github.com/hazyhaar/domreplay/internal/scope"
	"github.com/hazyhaar/domreplay/internal/serialize"
	"github.com/hazyhaar/domreplay/internal/tracker"
	"github.com/hazyhaar/domreplay/record"
)

// ErrNotStarted is returned by operations that need a running recording.
var ErrNotStarted = errors.New("domreplay: recorder not started")

// Recorder is the top-level orchestrator. It owns the current recording
// scope and its mutation tracker, and delivers every serialization pass as
// one record.Batch.
type Recorder struct {
	doc    *dom.Document
	cfg    scope.Config
	sink   Sink
	logger *slog.Logger
	clock  func() time.Time

	sessionIDs idgen.Generator
	batchIDs   idgen.Generator

	ctx     context.Context
	scope   *scope.Scope
	tracker *tracker.Tracker
	batches int
}

// Option customises New.
type Option func(*Recorder)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(r *Recorder) { r.logger = l } }

// WithClock sets the clock used for record and batch timestamps.
func WithClock(clock func() time.Time) Option { return func(r *Recorder) { r.clock = clock } }

// WithIDGenerator sets the generators of session (scope) ids and batch ids.
func WithIDGenerator(sessions, batches idgen.Generator) Option {
	return func(r *Recorder) {
		r.sessionIDs = sessions
		r.batchIDs = batches
	}
}

// New creates a recorder of doc delivering to s. Nothing is recorded until
// Start.
func New(doc *dom.Document, cfg ScopeConfig, s Sink, opts ...Option) *Recorder {
	r := &Recorder{doc: doc, cfg: cfg, sink: s}
	for _, o := range opts {
		o(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	if r.sessionIDs == nil {
		r.sessionIDs = idgen.Default
	}
	if r.batchIDs == nil {
		r.batchIDs = idgen.Default
	}
	if r.sink == nil {
		r.sink = NewCallbackSink(nil)
	}
	return r
}

// Start takes the initial full snapshot and starts tracking mutations.
// ctx is passed to the sink with every batch.
func (r *Recorder) Start(ctx context.Context) error {
	if r.tracker != nil {
		return fmt.Errorf("domreplay: start: already started")
	}
	r.ctx = ctx
	return r.snapshot(record.KindInitialFullSnapshot)
}

// TakeFullSnapshot flushes pending mutations into the current scope, then
// records the whole document again in a new scope.
func (r *Recorder) TakeFullSnapshot() error {
	if r.tracker == nil {
		return ErrNotStarted
	}
	return r.snapshot(record.KindSubsequentFullSnapshot)
}

// SwitchDocument moves the recording to doc, as after a navigation: pending
// mutations of the old document are flushed, then doc gets a full snapshot
// in a new scope.
func (r *Recorder) SwitchDocument(doc *dom.Document) error {
	if r.tracker == nil {
		return ErrNotStarted
	}
	r.doc = doc
	return r.snapshot(record.KindSubsequentFullSnapshot)
}

// Flush emits pending mutations now instead of on the next scheduler turn.
func (r *Recorder) Flush() error {
	if r.tracker == nil {
		return ErrNotStarted
	}
	r.tracker.Flush()
	return nil
}

// Stop stops tracking. Unflushed mutations are dropped; call Flush first
// to keep them.
func (r *Recorder) Stop() {
	if r.tracker == nil {
		return
	}
	r.tracker.Stop()
	r.tracker = nil
	r.logger.Info("domreplay: recording stopped", "session", r.scope.ID, "batches", r.batches)
}

// Running reports whether the recorder is tracking mutations.
func (r *Recorder) Running() bool { return r.tracker != nil }

// SessionID returns the id of the current recording scope, empty before
// Start.
func (r *Recorder) SessionID() string {
	if r.scope == nil {
		return ""
	}
	return r.scope.ID
}

// Batches returns the number of batches emitted since New, across scopes.
func (r *Recorder) Batches() int { return r.batches }

// Document returns the recorded document.
func (r *Recorder) Document() *dom.Document { return r.doc }

// snapshot retires the current scope and records the document in a new
// one. The tracker exists before the walk so that shadow roots discovered
// by the snapshot are observed. A failed snapshot leaves the recorder
// stopped.
func (r *Recorder) snapshot(kind record.Kind) error {
	if r.tracker != nil {
		r.tracker.Flush()
		r.tracker.Stop()
		r.tracker = nil
	}

	s := scope.New(r.cfg,
		scope.WithClock(r.clock),
		scope.WithIDGenerator(r.sessionIDs),
		scope.WithLogger(r.logger),
	)
	emit := r.emitter(s)
	t := tracker.New(r.doc, s, emit, tracker.WithLogger(r.logger))

	err := serialize.Run(s, kind, emit, func(tx *serialize.Transaction) error {
		serialize.SerializeFullSnapshot(tx, r.doc)
		return nil
	})
	if err != nil {
		r.logger.Warn("domreplay: full snapshot failed", "session", s.ID, "kind", kind, "error", err)
		return fmt.Errorf("domreplay: full snapshot: %w", err)
	}

	r.scope, r.tracker = s, t
	t.Start()
	r.logger.Debug("domreplay: scope started", "session", s.ID, "kind", kind, "nodes", s.Nodes.Len())
	return nil
}

// emitter turns the transactions of s into batches. Seq restarts with
// every scope.
func (r *Recorder) emitter(s *scope.Scope) serialize.Emitter {
	var seq uint64
	return func(kind record.Kind, records []record.Record, stats record.Stats) {
		seq++
		r.batches++
		b := record.Batch{
			ID:        r.batchIDs(),
			SessionID: s.ID,
			Seq:       seq,
			Kind:      kind,
			Records:   records,
			Stats:     stats,
			Timestamp: r.clock().UnixMilli(),
		}
		ctx := r.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		if err := r.sink.Send(ctx, b); err != nil {
			r.logger.Warn("domreplay: deliver batch", "session", b.SessionID, "seq", b.Seq, "kind", kind, "error", err)
		}
	}
}
