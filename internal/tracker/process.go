package tracker

import (
	"slices"

	"github.com/hazyhaar/domreplay/dom"
	"github.com/hazyhaar/domreplay/internal/scope"
	"github.com/hazyhaar/domreplay/internal/serialize"
	"github.com/hazyhaar/domreplay/record"
)

// batch is the net effect of a list of mutation records.
type batch struct {
	added     []*dom.Node
	addedSet  map[*dom.Node]bool
	removed   []*dom.Node
	removedAt map[*dom.Node]*dom.Node // node -> parent at first removal
	known     map[*dom.Node]removal   // removed nodes known before the flush
	orphans   []*dom.Node             // removed from a subtree that left the tree
	texts     []dom.MutationRecord
	attrs     []dom.MutationRecord
	styles    []*dom.Node
}

func newBatch(records []dom.MutationRecord) *batch {
	b := &batch{
		addedSet:  make(map[*dom.Node]bool),
		removedAt: make(map[*dom.Node]*dom.Node),
	}
	styleSeen := make(map[*dom.Node]bool)
	addStyle := func(n *dom.Node) {
		if !styleSeen[n] {
			styleSeen[n] = true
			b.styles = append(b.styles, n)
		}
	}

	for _, r := range records {
		if r.Target == nil {
			continue
		}
		if !r.Target.IsConnected() {
			if r.Type == dom.ChildList {
				b.orphans = append(b.orphans, r.RemovedNodes...)
			}
			continue
		}
		switch r.Type {
		case dom.ChildList:
			if isStyle(r.Target) {
				addStyle(r.Target)
				continue
			}
			for _, n := range r.AddedNodes {
				if !b.addedSet[n] {
					b.addedSet[n] = true
					b.added = append(b.added, n)
				}
			}
			for _, n := range r.RemovedNodes {
				if b.addedSet[n] {
					// Added earlier in the batch: the removal cancels it.
					delete(b.addedSet, n)
					continue
				}
				if _, ok := b.removedAt[n]; !ok {
					b.removedAt[n] = r.Target
					b.removed = append(b.removed, n)
				}
			}
		case dom.CharacterData:
			if p := r.Target.ParentNode(); p != nil && isStyle(p) {
				addStyle(p)
				continue
			}
			b.texts = append(b.texts, r)
		case dom.Attributes:
			b.attrs = append(b.attrs, r)
		}
	}
	return b
}

// removal holds the ids of a removed node and of the parent it left.
type removal struct {
	id       int
	parentID int
}

// resolveRemovals looks up the removed nodes that already had ids, and
// their parents, before the flush assigns any new one.
func (b *batch) resolveRemovals(s *scope.Scope) {
	b.known = make(map[*dom.Node]removal, len(b.removed))
	for _, n := range b.removed {
		id, ok := s.Nodes.Get(n)
		if !ok {
			continue
		}
		parentID, ok := s.Nodes.Get(b.removedAt[n])
		if !ok {
			b.orphans = append(b.orphans, n)
			continue
		}
		b.known[n] = removal{id, parentID}
	}
}

func isStyle(n *dom.Node) bool {
	return n.Type() == dom.ElementNode && n.Namespace() == dom.NamespaceHTML && n.TagName() == "STYLE"
}

// sortedAdds returns the added nodes still connected, ancestors before
// descendants and siblings in reverse document order, so that the next
// sibling of each node is known by the time it is serialized.
func (b *batch) sortedAdds() []*dom.Node {
	var nodes []*dom.Node
	kept := make(map[*dom.Node]bool, len(b.added))
	for _, n := range b.added {
		if b.addedSet[n] && !kept[n] && n.IsConnected() {
			kept[n] = true
			nodes = append(nodes, n)
		}
	}
	slices.SortStableFunc(nodes, func(a, c *dom.Node) int {
		pos := a.ComparePosition(c)
		switch {
		case pos&dom.PositionContainedBy != 0:
			return -1
		case pos&dom.PositionContains != 0:
			return 1
		case pos&dom.PositionFollowing != 0:
			return 1
		case pos&dom.PositionPreceding != 0:
			return -1
		}
		return 0
	})
	return nodes
}

// output collects the operations of one flush in either encoding.
type output struct {
	change   bool
	changes  record.Changes
	mutation *record.Mutation
	attrs    map[int]int // node id -> index in mutation.Attributes
}

func newOutput(change bool) *output {
	return &output{
		change: change,
		mutation: &record.Mutation{
			Source:     record.SourceMutation,
			Adds:       []record.AddedNodeMutation{},
			Removes:    []record.RemovedNodeMutation{},
			Texts:      []record.TextMutation{},
			Attributes: []record.AttributeMutation{},
		},
		attrs: make(map[int]int),
	}
}

func (o *output) record() *record.Record {
	if o.change {
		if o.changes.Len() == 0 {
			return nil
		}
		return &record.Record{Type: record.TypeChange, Data: o.changes}
	}
	if o.mutation.Empty() {
		return nil
	}
	return &record.Record{Type: record.TypeIncrementalSnapshot, Data: o.mutation}
}

// process resolves records into a single record, nil when nothing is left
// to report.
func (t *Tracker) process(tx *serialize.Transaction, records []dom.MutationRecord) *record.Record {
	b := newBatch(records)
	b.resolveRemovals(t.scope)
	p := serialize.NewPass(tx)
	out := newOutput(t.scope.Config.ChangeRecords)

	t.processAdds(p, b, out)
	t.processRemoves(p, b, out)
	t.processTexts(p, b, out)
	t.processAttributes(p, b, out)
	return out.record()
}

func (t *Tracker) processAdds(p *serialize.Pass, b *batch, out *output) {
	s := t.scope
	for _, n := range b.sortedAdds() {
		if p.Seen(n) || p.Placed(n) {
			continue
		}
		parent := serialize.ParentOf(n)
		if parent == nil || isStyle(parent) || !s.KnownAncestry(parent) {
			continue
		}
		parentLevel := p.Level(parent)
		if parentLevel.Terminal() {
			continue
		}
		parentID, _ := s.Nodes.Get(parent)
		next := p.NextSiblingID(n)

		if out.change {
			if s.Nodes.Has(n) {
				p.Move(n, &out.changes)
				continue
			}
			p.NodeAsChange(serialize.NewChildCursor(s, parentID, next), n, parentLevel, &out.changes)
			continue
		}
		sn := p.Node(serialize.NewChildCursor(s, parentID, next), n, parentLevel)
		if sn == nil {
			continue
		}
		out.mutation.Adds = append(out.mutation.Adds, record.AddedNodeMutation{
			ParentID: parentID,
			NextID:   next,
			Node:     sn,
		})
	}
}

// processRemoves reports the removal of nodes the consumer knows. A node
// that is not back in the tree by the end of the flush is retired with its
// subtree, so that a later return records it anew. Nodes removed from a
// subtree that itself left the tree were dropped with it by the consumer:
// they are retired without a record.
func (t *Tracker) processRemoves(p *serialize.Pass, b *batch, out *output) {
	for _, n := range b.removed {
		if p.Placed(n) {
			continue
		}
		rm, ok := b.known[n]
		if !ok {
			continue
		}
		if out.change {
			out.changes.Add(record.RemoveNode{ID: rm.id})
		} else {
			out.mutation.Removes = append(out.mutation.Removes, record.RemovedNodeMutation{ParentID: rm.parentID, ID: rm.id})
		}
		if !p.Seen(n) {
			t.retire(n)
		}
	}
	for _, n := range b.orphans {
		if t.scope.Nodes.Has(n) && !p.Seen(n) && !p.Placed(n) {
			t.retire(n)
		}
	}
}

// retire stops observing the shadow roots under n and forgets the ids of
// its subtree.
func (t *Tracker) retire(n *dom.Node) {
	s := t.scope
	dom.Walk(n, func(c *dom.Node) bool {
		if c.IsShadowRoot() && s.Nodes.Has(c) {
			s.RemoveShadowRoot(c)
		}
		return true
	})
	s.Retire(n)
}

func (t *Tracker) processTexts(p *serialize.Pass, b *batch, out *output) {
	s := t.scope
	done := make(map[*dom.Node]bool)
	for _, r := range b.texts {
		n := r.Target
		if done[n] {
			continue
		}
		done[n] = true
		if n.Type() != dom.TextNode || p.Seen(n) {
			continue
		}
		if r.OldValue != nil && *r.OldValue == n.Data() {
			continue
		}
		if !s.KnownAncestry(n) {
			continue
		}
		value, ok := p.TextChange(n)
		if !ok {
			continue
		}
		id, _ := s.Nodes.Get(n)
		if out.change {
			out.changes.Add(record.Text{ID: id, Value: value})
		} else {
			out.mutation.Texts = append(out.mutation.Texts, record.TextMutation{ID: id, Value: &value})
		}
	}
}

type attrKey struct {
	node *dom.Node
	name string
}

func (t *Tracker) processAttributes(p *serialize.Pass, b *batch, out *output) {
	s := t.scope
	oldValues := make(map[attrKey]*string)
	var keys []attrKey
	for _, r := range b.attrs {
		k := attrKey{r.Target, r.AttributeName}
		if _, ok := oldValues[k]; ok {
			continue
		}
		oldValues[k] = r.OldValue
		keys = append(keys, k)
	}

	type update struct {
		name  string
		value *string
	}
	var order []int
	updates := make(map[int][]update)
	emit := func(id int, name string, value *string) {
		if out.change {
			if _, ok := updates[id]; !ok {
				order = append(order, id)
			}
			updates[id] = append(updates[id], update{name, value})
			return
		}
		i, ok := out.attrs[id]
		if !ok {
			i = len(out.mutation.Attributes)
			out.attrs[id] = i
			out.mutation.Attributes = append(out.mutation.Attributes, record.AttributeMutation{
				ID:         id,
				Attributes: make(map[string]*string),
			})
		}
		out.mutation.Attributes[i].Attributes[name] = value
	}

	for _, k := range keys {
		n := k.node
		if p.Seen(n) || !s.KnownAncestry(n) {
			continue
		}
		cur, present := n.Attr(k.name)
		old := oldValues[k]
		if (old == nil && !present) || (old != nil && present && *old == cur) {
			continue
		}
		value, ok := p.AttributeChange(n, k.name)
		if !ok {
			continue
		}
		id, _ := s.Nodes.Get(n)
		emit(id, k.name, value)
	}

	for _, style := range b.styles {
		if p.Seen(style) || !s.KnownAncestry(style) || p.Level(style).Terminal() {
			continue
		}
		id, _ := s.Nodes.Get(style)
		var value *string
		if css, ok := p.CSSText(style); ok {
			value = &css
		}
		emit(id, "_cssText", value)
	}

	// Names are interned in the order the consumer reads them.
	for _, id := range order {
		op := record.Attribute{ID: id}
		for _, u := range updates[id] {
			op.Attrs = append(op.Attrs, record.AttrUpdate{Name: s.Intern(u.name), Value: u.value})
		}
		out.changes.Add(op)
	}
}
