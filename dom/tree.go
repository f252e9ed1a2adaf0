package dom

import (
	"errors"
)

var (
	// ErrHierarchy is returned when an insertion would create an invalid tree.
	ErrHierarchy = errors.New("dom: hierarchy request error")
	// ErrNotFound is returned when a reference node is not a child.
	ErrNotFound = errors.New("dom: node not found")
	// ErrNotSupported is returned for operations invalid on the node type.
	ErrNotSupported = errors.New("dom: operation not supported")
)

// AppendChild appends child to n. A child already in a tree is moved.
func (n *Node) AppendChild(child *Node) error {
	return n.InsertBefore(child, nil)
}

// InsertBefore inserts child before ref, or at the end when ref is nil.
// Inserting a plain document fragment moves its children instead.
func (n *Node) InsertBefore(child, ref *Node) error {
	if err := n.checkInsert(child, ref); err != nil {
		return err
	}
	if child == ref {
		return nil
	}

	var nodes []*Node
	if child.typ == FragmentNode {
		nodes = child.ChildNodes()
		if len(nodes) == 0 {
			return nil
		}
		for _, c := range nodes {
			child.unlink(c)
		}
		child.queueChildList(nil, nodes, nil, nil)
	} else {
		if p := child.parent; p != nil {
			prev, next := child.prev, child.next
			p.unlink(child)
			p.queueChildList(nil, []*Node{child}, prev, next)
		}
		nodes = []*Node{child}
	}

	for _, c := range nodes {
		n.link(c, ref)
	}
	n.queueChildList(nodes, nil, nodes[0].prev, ref)
	return nil
}

// RemoveChild detaches child from n.
func (n *Node) RemoveChild(child *Node) error {
	if child == nil || child.parent != n {
		return ErrNotFound
	}
	prev, next := child.prev, child.next
	n.unlink(child)
	n.queueChildList(nil, []*Node{child}, prev, next)
	return nil
}

// Remove detaches n from its parent, if any.
func (n *Node) Remove() {
	if n.parent != nil {
		_ = n.parent.RemoveChild(n)
	}
}

// ReplaceChildren removes every child of n and appends nodes.
func (n *Node) ReplaceChildren(nodes ...*Node) error {
	for c := n.firstChild; c != nil; c = n.firstChild {
		if err := n.RemoveChild(c); err != nil {
			return err
		}
	}
	for _, c := range nodes {
		if err := n.AppendChild(c); err != nil {
			return err
		}
	}
	return nil
}

// SetTextContent replaces the children of an element with a single text
// node, or sets the data of a character data node.
func (n *Node) SetTextContent(s string) error {
	switch n.typ {
	case TextNode, CDATANode, CommentNode:
		n.SetData(s)
		return nil
	case ElementNode, FragmentNode:
		if s == "" {
			return n.ReplaceChildren()
		}
		return n.ReplaceChildren(n.owner.CreateTextNode(s))
	}
	return ErrNotSupported
}

// SetAttribute sets an attribute, queuing an attributes record.
func (n *Node) SetAttribute(name, value string) error {
	if n.typ != ElementNode {
		return ErrNotSupported
	}
	name = n.attrName(name)
	for i, a := range n.attrs {
		if a.Name == name {
			old := a.Value
			n.attrs[i].Value = value
			n.queueAttribute(name, &old)
			return nil
		}
	}
	n.attrs = append(n.attrs, Attribute{Name: name, Value: value})
	n.queueAttribute(name, nil)
	return nil
}

// RemoveAttribute removes an attribute if present.
func (n *Node) RemoveAttribute(name string) {
	if n.typ != ElementNode {
		return
	}
	name = n.attrName(name)
	for i, a := range n.attrs {
		if a.Name == name {
			old := a.Value
			n.attrs = append(n.attrs[:i], n.attrs[i+1:]...)
			n.queueAttribute(name, &old)
			return
		}
	}
}

// SetData replaces the character data of a text, CDATA or comment node.
func (n *Node) SetData(s string) {
	switch n.typ {
	case TextNode, CDATANode, CommentNode:
	default:
		return
	}
	old := n.data
	n.data = s
	n.queue(MutationRecord{Type: CharacterData, Target: n, OldValue: &old})
}

// AttachShadow attaches an open shadow root to an element. Observers of the
// host receive a childList record whose added node is the shadow root.
func (n *Node) AttachShadow() (*Node, error) {
	if n.typ != ElementNode || n.shadow != nil {
		return nil, ErrNotSupported
	}
	root := &Node{typ: FragmentNode, host: n, owner: n.owner}
	n.shadow = root
	n.queueChildList([]*Node{root}, nil, n.lastChild, nil)
	return root, nil
}

func (n *Node) checkInsert(child, ref *Node) error {
	switch n.typ {
	case ElementNode, DocumentNode, FragmentNode:
	default:
		return ErrHierarchy
	}
	if child == nil || child.typ == DocumentNode || child.IsShadowRoot() {
		return ErrHierarchy
	}
	if ref != nil && ref.parent != n {
		return ErrNotFound
	}
	for p := n; p != nil; p = p.ComposedParent() {
		if p == child {
			return ErrHierarchy
		}
	}
	return nil
}

func (n *Node) link(c, ref *Node) {
	c.parent = n
	if ref == nil {
		c.prev = n.lastChild
		c.next = nil
		if n.lastChild != nil {
			n.lastChild.next = c
		} else {
			n.firstChild = c
		}
		n.lastChild = c
		return
	}
	c.next = ref
	c.prev = ref.prev
	if ref.prev != nil {
		ref.prev.next = c
	} else {
		n.firstChild = c
	}
	ref.prev = c
}

func (n *Node) unlink(c *Node) {
	if c.prev != nil {
		c.prev.next = c.next
	} else {
		n.firstChild = c.next
	}
	if c.next != nil {
		c.next.prev = c.prev
	} else {
		n.lastChild = c.prev
	}
	c.parent, c.prev, c.next = nil, nil, nil
}

func (n *Node) queueChildList(added, removed []*Node, prev, next *Node) {
	n.queue(MutationRecord{
		Type:            ChildList,
		Target:          n,
		AddedNodes:      added,
		RemovedNodes:    removed,
		PreviousSibling: prev,
		NextSibling:     next,
	})
}

func (n *Node) queueAttribute(name string, old *string) {
	n.queue(MutationRecord{Type: Attributes, Target: n, AttributeName: name, OldValue: old})
}

func (n *Node) queue(rec MutationRecord) {
	if n.owner != nil {
		n.owner.notify(rec)
	}
}
