// CLAUDE:SUMMARY Insertion cursor shared by the nested and change serializers: assigns ids in walk order and computes insertion points.
package serialize

import (
	"github.com/hazyhaar/domreplay/dom"
	"github.com/hazyhaar/domreplay/internal/scope"
)

// Cursor tracks a position in a depth first walk: the parent whose child
// list is being walked, the last node advanced at this level, and an
// optional known next sibling.
type Cursor struct {
	scope  *scope.Scope
	up     *Cursor
	parent *int
	prev   *int
	next   *int
}

// NewRootCursor returns a cursor positioned before the document root. The
// first node advanced gets a nil insertion point.
func NewRootCursor(s *scope.Scope) *Cursor {
	return &Cursor{scope: s}
}

// NewChildCursor returns a cursor positioned in the child list of a known
// parent, before the known sibling nextID, or at the end when nextID is nil.
func NewChildCursor(s *scope.Scope, parentID int, nextID *int) *Cursor {
	return &Cursor{scope: s, parent: &parentID, next: nextID}
}

// Advance assigns (or looks up) the id of n, computes its insertion point
// relative to the cursor and moves the cursor after n.
func (c *Cursor) Advance(n *dom.Node) (id int, point *int) {
	id, _ = c.scope.Nodes.GetOrInsert(n)
	point = c.point(id)
	c.prev = &id
	return id, point
}

func (c *Cursor) point(id int) *int {
	var p int
	switch {
	case c.prev != nil && *c.prev == id-1:
		p = 0
	case c.next != nil:
		p = *c.next - id
	case c.parent != nil:
		p = id - *c.parent
	default:
		return nil
	}
	return &p
}

// Descend returns a cursor over the child list of the last advanced node.
func (c *Cursor) Descend() *Cursor {
	return &Cursor{scope: c.scope, up: c, parent: c.prev}
}

// Ascend returns the cursor Descend was called on.
func (c *Cursor) Ascend() *Cursor {
	return c.up
}
