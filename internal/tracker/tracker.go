// Package tracker observes a live document and turns batches of mutation
// records into incremental records: a Mutation payload, or Change
// operations when the scope is configured for change records.
//
// Records are batched as the observer delivers them and resolved on a
// later turn of the document scheduler, or when Flush is called. Every
// check (connectivity, known ancestry, privacy) runs against the tree as it
// is at flush time.
package tracker

import (
	"log/slog"

	"github.com/hazyhaar/domreplay/dom"
	"github.com/hazyhaar/domreplay/internal/scope"
	"github.com/hazyhaar/domreplay/internal/serialize"
	"github.com/hazyhaar/domreplay/record"
)

// Tracker is the mutation tracker of one recording scope. It observes the
// document and every shadow root the scope discovers. Not safe for
// concurrent use: call it from the goroutine running the document
// scheduler.
type Tracker struct {
	doc    *dom.Document
	scope  *scope.Scope
	emit   serialize.Emitter
	logger *slog.Logger

	observer  *dom.Observer
	pending   []dom.MutationRecord
	scheduled bool
	running   bool
}

// Option customises New.
type Option func(*Tracker)

// WithLogger sets the tracker logger.
func WithLogger(l *slog.Logger) Option { return func(t *Tracker) { t.logger = l } }

// New creates a tracker on doc and installs it as the shadow root
// controller of s. It observes nothing until Start.
func New(doc *dom.Document, s *scope.Scope, emit serialize.Emitter, opts ...Option) *Tracker {
	t := &Tracker{doc: doc, scope: s, emit: emit}
	for _, o := range opts {
		o(t)
	}
	if t.logger == nil {
		t.logger = s.Logger
	}
	t.observer = dom.NewObserver(doc, t.onRecords)
	s.ShadowRoots = scope.ShadowRootCallbacks{
		Add:    t.AddShadowRoot,
		Remove: t.RemoveShadowRoot,
	}
	return t
}

// Start observes the document. Shadow roots added before Start stay
// observed.
func (t *Tracker) Start() {
	t.running = true
	t.observer.Observe(t.doc.Node())
}

// Stop disconnects the observer and drops every unflushed record.
func (t *Tracker) Stop() {
	t.running = false
	t.pending = nil
	t.observer.Disconnect()
}

// Running reports whether the tracker is started.
func (t *Tracker) Running() bool { return t.running }

// AddShadowRoot starts observing a shadow root discovered by a
// serialization pass.
func (t *Tracker) AddShadowRoot(root *dom.Node) {
	t.observer.Observe(root)
}

// RemoveShadowRoot stops observing a shadow root whose host was removed.
func (t *Tracker) RemoveShadowRoot(root *dom.Node) {
	t.observer.Unobserve(root)
}

// Observing reports whether root (the document or a shadow root) is
// observed.
func (t *Tracker) Observing(root *dom.Node) bool { return t.observer.Observing(root) }

func (t *Tracker) onRecords(records []dom.MutationRecord, _ *dom.Observer) {
	if !t.running {
		return
	}
	t.pending = append(t.pending, t.filterExcluded(records)...)
	if t.scheduled || len(t.pending) == 0 {
		return
	}
	t.scheduled = true
	t.doc.Scheduler().Schedule(t.scheduledFlush)
}

func (t *Tracker) scheduledFlush() {
	t.scheduled = false
	if t.running {
		t.Flush()
	}
}

// Flush resolves the pending batch, including records queued but not yet
// delivered, and emits the result in one transaction. An empty batch emits
// nothing.
func (t *Tracker) Flush() {
	if !t.running {
		return
	}
	records := append(t.pending, t.filterExcluded(t.observer.TakeRecords())...)
	t.pending = nil
	if len(records) == 0 {
		return
	}
	err := serialize.Run(t.scope, record.KindIncremental, t.emit, func(tx *serialize.Transaction) error {
		if r := t.process(tx, records); r != nil {
			tx.Add(r)
		}
		return nil
	})
	if err != nil {
		t.logger.Warn("tracker: flush dropped", "session", t.scope.ID, "records", len(records), "error", err)
	}
}

// filterExcluded drops records whose target sits in a subtree marked with
// the exclude attribute.
func (t *Tracker) filterExcluded(records []dom.MutationRecord) []dom.MutationRecord {
	name := t.scope.Config.ExcludeAttribute
	if name == "" {
		return records
	}
	out := records[:0:0]
	for _, r := range records {
		if !excluded(r.Target, name) {
			out = append(out, r)
		}
	}
	return out
}

func excluded(n *dom.Node, attr string) bool {
	for p := n; p != nil; p = p.ComposedParent() {
		if p.Type() == dom.ElementNode && p.HasAttr(attr) {
			return true
		}
	}
	return false
}
