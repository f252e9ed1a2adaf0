package scope

import (
	"log/slog"
	"time"

	"github.com/hazyhaar/domreplay/dom"
	"github.com/hazyhaar/domreplay/internal/idgen"
	"github.com/hazyhaar/domreplay/internal/privacy"
	"github.com/hazyhaar/domreplay/record"
)

// Config is the recording configuration shared by every pass of a scope.
type Config struct {
	DefaultPrivacyLevel privacy.Level
	ActionNameAttribute string
	ExcludeAttribute    string
	AllowlistedTexts    []string
	// ChangeRecords selects Change records instead of FullSnapshot and
	// Mutation payloads.
	ChangeRecords bool
}

// PrivacyOptions returns the masking options derived from the config.
func (c Config) PrivacyOptions() privacy.Options {
	return privacy.Options{
		ActionNameAttribute: c.ActionNameAttribute,
		AllowlistedTexts:    c.AllowlistedTexts,
	}
}

// ShadowRootCallbacks notify the controller when serialization discovers a
// shadow root or a removal tears one down.
type ShadowRootCallbacks struct {
	Add    func(root *dom.Node)
	Remove func(root *dom.Node)
}

// Scope is the state of one continuous recording stream. Ids from one
// scope are meaningless in another.
type Scope struct {
	ID     string
	Config Config

	Nodes       *WeakRegistry[dom.Node]
	StyleSheets *WeakRegistry[dom.StyleSheet]
	Events      *WeakRegistry[record.Record]
	Strings     *Registry[string]

	ShadowRoots ShadowRootCallbacks
	Logger      *slog.Logger

	clock func() time.Time
}

// Option customises New.
type Option func(*Scope)

// WithClock sets the clock used for record timestamps.
func WithClock(clock func() time.Time) Option { return func(s *Scope) { s.clock = clock } }

// WithIDGenerator sets the generator of the scope id.
func WithIDGenerator(gen idgen.Generator) Option { return func(s *Scope) { s.ID = gen() } }

// WithLogger sets the logger used by passes running on the scope.
func WithLogger(l *slog.Logger) Option { return func(s *Scope) { s.Logger = l } }

// WithShadowRootCallbacks sets the shadow root callbacks.
func WithShadowRootCallbacks(cb ShadowRootCallbacks) Option {
	return func(s *Scope) { s.ShadowRoots = cb }
}

// New creates a scope with empty registries.
func New(cfg Config, opts ...Option) *Scope {
	s := &Scope{
		Config:      cfg,
		Nodes:       NewWeakRegistry[dom.Node](),
		StyleSheets: NewWeakRegistry[dom.StyleSheet](),
		Events:      NewWeakRegistry[record.Record](),
		Strings:     NewRegistry[string](),
		clock:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.ID == "" {
		s.ID = idgen.New()
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	return s
}

// Now returns the current timestamp in epoch milliseconds.
func (s *Scope) Now() int64 { return s.clock().UnixMilli() }

// NodeID returns the id of n, if assigned.
func (s *Scope) NodeID(n *dom.Node) (int, bool) { return s.Nodes.Get(n) }

// KnownAncestry reports whether n and every composed ancestor up to the
// document already have ids.
func (s *Scope) KnownAncestry(n *dom.Node) bool {
	var last *dom.Node
	for p := n; p != nil; p = p.ComposedParent() {
		if !s.Nodes.Has(p) {
			return false
		}
		last = p
	}
	return last != nil && last.Type() == dom.DocumentNode
}

// Retire forgets the ids of n and of its subtree, shadow roots included.
// It follows an emitted removal: the consumer no longer has these nodes,
// so if they come back they are recorded as new ones.
func (s *Scope) Retire(n *dom.Node) {
	dom.Walk(n, func(c *dom.Node) bool {
		s.Nodes.Retire(c)
		return true
	})
}

// AddShadowRoot invokes the Add callback, if set.
func (s *Scope) AddShadowRoot(root *dom.Node) {
	if s.ShadowRoots.Add != nil {
		s.ShadowRoots.Add(root)
	}
}

// RemoveShadowRoot invokes the Remove callback, if set.
func (s *Scope) RemoveShadowRoot(root *dom.Node) {
	if s.ShadowRoots.Remove != nil {
		s.ShadowRoots.Remove(root)
	}
}

// Intern returns a reference to v in the change record string table,
// introducing it on first use.
func (s *Scope) Intern(v string) record.StringRef {
	id, inserted := s.Strings.GetOrInsert(v)
	if inserted {
		return record.Literal(v)
	}
	return record.Ref(id)
}
