package serialize

import (
	"github.com/hazyhaar/domreplay/dom"
	"github.com/hazyhaar/domreplay/internal/privacy"
	"github.com/hazyhaar/domreplay/record"
)

// SerializeNodeAsChange appends to out the operations creating n and its
// subtree at cursor c.
func SerializeNodeAsChange(tx *Transaction, c *Cursor, n *dom.Node, parentLevel privacy.Level, out *record.Changes) {
	NewPass(tx).NodeAsChange(c, n, parentLevel, out)
}

// NodeAsChange appends to out one AddNode per recorded node of the subtree
// of n, in walk order, each followed by its side operations. Node ids are
// implicit: the consumer numbers AddNode operations in order, so known
// nodes met inside the subtree are not added again but moved into place
// once the subtree exists.
func (p *Pass) NodeAsChange(c *Cursor, n *dom.Node, parentLevel privacy.Level, out *record.Changes) {
	var known []*dom.Node
	p.change(c, n, parentLevel, out, &known)
	for i := len(known) - 1; i >= 0; i-- {
		p.Move(known[i], out)
	}
}

func (p *Pass) change(c *Cursor, n *dom.Node, parentLevel privacy.Level, out *record.Changes, known *[]*dom.Node) {
	s := p.tx.Scope
	if s.Nodes.Has(n) {
		*known = append(*known, n)
		return
	}
	d, ok := p.describe(n, parentLevel)
	if !ok {
		return
	}
	id, point := c.Advance(n)
	p.seen[n] = true

	op := record.AddNode{
		Point:    point,
		Type:     d.typ,
		Label:    s.Intern(d.label()),
		Text:     d.text,
		Name:     d.name,
		PublicID: d.publicID,
		SystemID: d.systemID,
	}
	for _, a := range d.attrs {
		op.Attrs = append(op.Attrs, record.Attr{Name: s.Intern(a.name), Value: a.value})
	}
	out.Add(op)

	if len(d.sheets) > 0 {
		ids := make([]int, 0, len(d.sheets))
		for _, sheet := range d.sheets {
			sid, inserted := s.StyleSheets.GetOrInsert(sheet)
			if inserted {
				r := sheetRecord(sheet)
				out.Add(record.AddStyleSheet{Rules: r.Rules, Media: r.Media, Disabled: r.Disabled})
			}
			ids = append(ids, sid)
		}
		out.Add(record.AttachedStyleSheets{ID: id, Sheets: ids})
	}
	if d.scrollLeft != 0 || d.scrollTop != 0 {
		out.Add(record.ScrollPosition{ID: id, Left: d.scrollLeft, Top: d.scrollTop})
	}
	if d.paused != nil {
		out.Add(record.MediaPlaybackState{ID: id, Paused: *d.paused})
	}
	if d.isShadowRoot {
		s.AddShadowRoot(n)
	}

	if d.walkChildren {
		c = c.Descend()
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			p.change(c, child, d.level, out, known)
		}
		if sr := n.ShadowRoot(); sr != nil {
			p.change(c, sr, d.level, out, known)
		}
		c.Ascend()
	}
}

// Move appends a MoveNode operation placing the known node n at its
// current position. It reports false when n or its parent has no id. A
// moved node is not serialized again: updates to it in the same batch
// still apply.
func (p *Pass) Move(n *dom.Node, out *record.Changes) bool {
	s := p.tx.Scope
	id, ok := s.Nodes.Get(n)
	if !ok {
		return false
	}
	parent := ParentOf(n)
	if parent == nil {
		return false
	}
	parentID, ok := s.Nodes.Get(parent)
	if !ok {
		return false
	}
	out.Add(record.MoveNode{ID: id, ParentID: parentID, NextID: p.NextSiblingID(n)})
	p.placed[n] = true
	return true
}
