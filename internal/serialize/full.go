package serialize

import (
	"github.com/hazyhaar/domreplay/dom"
	"github.com/hazyhaar/domreplay/internal/privacy"
	"github.com/hazyhaar/domreplay/record"
)

// SerializeNode serializes n and its subtree as a nested node, taking ids
// through c. It returns nil when n is not recorded.
func SerializeNode(tx *Transaction, c *Cursor, n *dom.Node, parentLevel privacy.Level) *record.SerializedNode {
	return NewPass(tx).Node(c, n, parentLevel)
}

// Node serializes n and its subtree as a nested node. Nodes that already
// have an id keep it.
func (p *Pass) Node(c *Cursor, n *dom.Node, parentLevel privacy.Level) *record.SerializedNode {
	d, ok := p.describe(n, parentLevel)
	if !ok {
		return nil
	}
	id, _ := c.Advance(n)
	p.seen[n] = true

	out := &record.SerializedNode{
		Type:         d.typ,
		ID:           id,
		IsShadowRoot: d.isShadowRoot,
		Name:         d.name,
		PublicID:     d.publicID,
		SystemID:     d.systemID,
		TextContent:  d.text,
	}
	if d.typ == record.NodeElement {
		out.TagName = d.tagName
		out.IsSVG = d.isSVG
		out.Attributes = make(map[string]any, len(d.attrs))
		for _, a := range d.attrs {
			out.Attributes[a.name] = a.value
		}
		if d.scrollLeft != 0 {
			out.Attributes["rr_scrollLeft"] = d.scrollLeft
		}
		if d.scrollTop != 0 {
			out.Attributes["rr_scrollTop"] = d.scrollTop
		}
		if d.paused != nil {
			out.Attributes["rr_mediaState"] = mediaState(*d.paused)
		}
	}
	for _, s := range d.sheets {
		out.AdoptedStyleSheets = append(out.AdoptedStyleSheets, sheetRecord(s))
	}
	if d.isShadowRoot {
		p.tx.Scope.AddShadowRoot(n)
	}

	if d.walkChildren {
		c = c.Descend()
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			if sc := p.Node(c, child, d.level); sc != nil {
				out.ChildNodes = append(out.ChildNodes, sc)
			}
		}
		if sr := n.ShadowRoot(); sr != nil {
			if sc := p.Node(c, sr, d.level); sc != nil {
				out.ChildNodes = append(out.ChildNodes, sc)
			}
		}
		c.Ascend()
	}
	return out
}

func mediaState(paused bool) string {
	if paused {
		return "paused"
	}
	return "played"
}

// SerializeFullSnapshot records the whole document: Meta and Focus, the
// tree as a FullSnapshot record (or a Change record when the scope is
// configured for change records), then the visual viewport.
func SerializeFullSnapshot(tx *Transaction, doc *dom.Document) {
	s := tx.Scope
	tx.Add(&record.Record{
		Type: record.TypeMeta,
		Data: &record.Meta{Href: doc.URL, Width: doc.Width, Height: doc.Height},
	})
	tx.Add(&record.Record{Type: record.TypeFocus, Data: &record.Focus{HasFocus: doc.Focused}})

	p := NewPass(tx)
	root := doc.Node()
	level := s.Config.DefaultPrivacyLevel
	if s.Config.ChangeRecords {
		var changes record.Changes
		p.NodeAsChange(NewRootCursor(s), root, level, &changes)
		tx.Add(&record.Record{Type: record.TypeChange, Data: changes})
	} else {
		left, top := doc.Scroll()
		tx.Add(&record.Record{
			Type: record.TypeFullSnapshot,
			Data: &record.FullSnapshot{
				Node:          p.Node(NewRootCursor(s), root, level),
				InitialOffset: record.Offset{Left: left, Top: top},
			},
		})
	}

	if vv := doc.Viewport; vv.Scale > 0 {
		tx.Add(&record.Record{
			Type: record.TypeVisualViewport,
			Data: &record.VisualViewport{
				Scale:      vv.Scale,
				OffsetLeft: vv.OffsetLeft,
				OffsetTop:  vv.OffsetTop,
				PageLeft:   vv.PageLeft,
				PageTop:    vv.PageTop,
				Width:      vv.Width,
				Height:     vv.Height,
			},
		})
	}
}
