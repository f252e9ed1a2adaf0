// Package dom is an in-memory document tree with the observable surface a
// session recorder needs: ordered children, attributes, character data,
// shadow roots, adopted stylesheets, element state that is not reflected in
// attributes (form values, scroll offsets, layout size, media playback), and
// a mutation observer whose deliveries are scheduled on a Scheduler.
//
// The tree is not safe for concurrent use. All reads and writes must happen
// on the goroutine that runs the document's Scheduler.
package dom

import (
	"strings"
)

// NodeType mirrors the DOM nodeType constants.
type NodeType int

const (
	ElementNode  NodeType = 1
	TextNode     NodeType = 3
	CDATANode    NodeType = 4
	CommentNode  NodeType = 8
	DocumentNode NodeType = 9
	DoctypeNode  NodeType = 10
	FragmentNode NodeType = 11
)

// Namespace identifies the element namespace.
type Namespace int

const (
	NamespaceHTML Namespace = iota
	NamespaceSVG
	NamespaceMathML
)

// Attribute is a single name/value pair in document order.
type Attribute struct {
	Name  string
	Value string
}

// Node is a single node of a document tree.
type Node struct {
	typ  NodeType
	ns   Namespace
	name string // local name for elements, doctype name for doctypes
	data string // character data

	publicID string
	systemID string

	attrs []Attribute

	parent     *Node
	firstChild *Node
	lastChild  *Node
	prev       *Node
	next       *Node

	host    *Node // set on shadow roots
	shadow  *Node // set on shadow hosts
	adopted []*StyleSheet

	owner *Document
	state elementState
}

type elementState struct {
	value       string
	valueSet    bool
	checked     bool
	checkedSet  bool
	selected    bool
	selectedSet bool
	scrollLeft  int
	scrollTop   int
	width       float64
	height      float64
	playing     bool
}

// Type returns the node type.
func (n *Node) Type() NodeType { return n.typ }

// Namespace returns the element namespace. Non-elements report NamespaceHTML.
func (n *Node) Namespace() Namespace { return n.ns }

// Owner returns the document that created the node.
func (n *Node) Owner() *Document { return n.owner }

// LocalName returns the element local name as created.
func (n *Node) LocalName() string {
	if n.typ != ElementNode {
		return ""
	}
	return n.name
}

// TagName returns the DOM tagName: upper-cased for HTML elements, verbatim
// for foreign elements.
func (n *Node) TagName() string {
	if n.typ != ElementNode {
		return ""
	}
	if n.ns == NamespaceHTML {
		return strings.ToUpper(n.name)
	}
	return n.name
}

// NodeName returns the DOM nodeName.
func (n *Node) NodeName() string {
	switch n.typ {
	case ElementNode:
		return n.TagName()
	case TextNode:
		return "#text"
	case CDATANode:
		return "#cdata-section"
	case CommentNode:
		return "#comment"
	case DocumentNode:
		return "#document"
	case DoctypeNode:
		return n.name
	case FragmentNode:
		return "#document-fragment"
	}
	return ""
}

// Data returns the character data of text, CDATA and comment nodes.
func (n *Node) Data() string { return n.data }

// DoctypeName, PublicID and SystemID describe a doctype node.
func (n *Node) DoctypeName() string { return n.name }
func (n *Node) PublicID() string    { return n.publicID }
func (n *Node) SystemID() string    { return n.systemID }

// ParentNode returns the parent in the node's own tree. A shadow root has no
// parent; use Host.
func (n *Node) ParentNode() *Node { return n.parent }

// ParentElement returns the parent if it is an element.
func (n *Node) ParentElement() *Node {
	if n.parent != nil && n.parent.typ == ElementNode {
		return n.parent
	}
	return nil
}

func (n *Node) FirstChild() *Node      { return n.firstChild }
func (n *Node) LastChild() *Node       { return n.lastChild }
func (n *Node) NextSibling() *Node     { return n.next }
func (n *Node) PreviousSibling() *Node { return n.prev }
func (n *Node) HasChildNodes() bool    { return n.firstChild != nil }

// ChildNodes returns a snapshot of the children.
func (n *Node) ChildNodes() []*Node {
	var out []*Node
	for c := n.firstChild; c != nil; c = c.next {
		out = append(out, c)
	}
	return out
}

// Host returns the shadow host of a shadow root, nil otherwise.
func (n *Node) Host() *Node { return n.host }

// IsShadowRoot reports whether n is a shadow root.
func (n *Node) IsShadowRoot() bool { return n.typ == FragmentNode && n.host != nil }

// ShadowRoot returns the shadow root attached to an element, if any.
func (n *Node) ShadowRoot() *Node { return n.shadow }

// Attrs returns a copy of the attributes in document order.
func (n *Node) Attrs() []Attribute {
	out := make([]Attribute, len(n.attrs))
	copy(out, n.attrs)
	return out
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	name = n.attrName(name)
	for _, a := range n.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or "" when absent.
func (n *Node) AttrOr(name string) string {
	v, _ := n.Attr(name)
	return v
}

// HasAttr reports whether the attribute is present.
func (n *Node) HasAttr(name string) bool {
	_, ok := n.Attr(name)
	return ok
}

// HasClass reports whether the class attribute contains the token.
func (n *Node) HasClass(token string) bool {
	for _, c := range strings.Fields(n.AttrOr("class")) {
		if c == token {
			return true
		}
	}
	return false
}

func (n *Node) attrName(name string) string {
	if n.ns == NamespaceHTML {
		return strings.ToLower(name)
	}
	return name
}

// TextContent returns the concatenated text of the subtree.
func (n *Node) TextContent() string {
	switch n.typ {
	case TextNode, CDATANode, CommentNode:
		return n.data
	case DocumentNode, DoctypeNode:
		return ""
	}
	var b strings.Builder
	var walk func(*Node)
	walk = func(p *Node) {
		for c := p.firstChild; c != nil; c = c.next {
			switch c.typ {
			case TextNode, CDATANode:
				b.WriteString(c.data)
			case ElementNode:
				walk(c)
			}
		}
	}
	walk(n)
	return b.String()
}

// ComposedParent returns the parent node, or the host for a shadow root.
func (n *Node) ComposedParent() *Node {
	if n.host != nil {
		return n.host
	}
	return n.parent
}

// RootNode returns the root of the node's own tree without crossing shadow
// boundaries.
func (n *Node) RootNode() *Node {
	r := n
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// IsConnected reports whether the node is reachable from its document,
// crossing shadow boundaries.
func (n *Node) IsConnected() bool {
	if n.owner == nil {
		return false
	}
	for p := n; p != nil; p = p.ComposedParent() {
		if p == n.owner.root {
			return true
		}
	}
	return false
}

// Contains reports whether other is an inclusive descendant of n in the same
// tree.
func (n *Node) Contains(other *Node) bool {
	for p := other; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

// Value returns the form value of INPUT, TEXTAREA, SELECT and OPTION
// elements.
func (n *Node) Value() string {
	if n.state.valueSet {
		return n.state.value
	}
	switch n.TagName() {
	case "INPUT":
		return n.AttrOr("value")
	case "TEXTAREA":
		return n.TextContent()
	case "OPTION":
		if v, ok := n.Attr("value"); ok {
			return v
		}
		return strings.Join(strings.Fields(n.TextContent()), " ")
	case "SELECT":
		var first, chosen *Node
		n.eachOption(func(o *Node) {
			if first == nil {
				first = o
			}
			if chosen == nil && o.Selected() {
				chosen = o
			}
		})
		if chosen == nil {
			chosen = first
		}
		if chosen != nil {
			return chosen.Value()
		}
	}
	return ""
}

// SetValue sets the form value without touching the value attribute.
func (n *Node) SetValue(v string) {
	n.state.value = v
	n.state.valueSet = true
}

// Checked reports the checkedness of a checkbox or radio input.
func (n *Node) Checked() bool {
	if n.state.checkedSet {
		return n.state.checked
	}
	return n.HasAttr("checked")
}

func (n *Node) SetChecked(v bool) {
	n.state.checked = v
	n.state.checkedSet = true
}

// Selected reports the selectedness of an OPTION.
func (n *Node) Selected() bool {
	if n.state.selectedSet {
		return n.state.selected
	}
	return n.HasAttr("selected")
}

func (n *Node) SetSelected(v bool) {
	n.state.selected = v
	n.state.selectedSet = true
}

func (n *Node) eachOption(fn func(*Node)) {
	var walk func(*Node)
	walk = func(p *Node) {
		for c := p.firstChild; c != nil; c = c.next {
			if c.typ != ElementNode {
				continue
			}
			if c.TagName() == "OPTION" {
				fn(c)
				continue
			}
			walk(c)
		}
	}
	walk(n)
}

// Scroll returns the element scroll offsets.
func (n *Node) Scroll() (left, top int) { return n.state.scrollLeft, n.state.scrollTop }

func (n *Node) SetScroll(left, top int) {
	n.state.scrollLeft = left
	n.state.scrollTop = top
}

// Rect returns the layout size of the element.
func (n *Node) Rect() (width, height float64) { return n.state.width, n.state.height }

func (n *Node) SetRect(width, height float64) {
	n.state.width = width
	n.state.height = height
}

// Paused reports whether a media element is paused. Media starts paused.
func (n *Node) Paused() bool { return !n.state.playing }

func (n *Node) SetPaused(paused bool) { n.state.playing = !paused }

// Sheet returns the stylesheet of a STYLE element, parsed from its current
// text. Other nodes return nil.
func (n *Node) Sheet() *StyleSheet {
	if n.typ != ElementNode || n.TagName() != "STYLE" {
		return nil
	}
	s := NewStyleSheet(n.TextContent())
	if m, ok := n.Attr("media"); ok && m != "" {
		s.Media = splitMedia(m)
	}
	return s
}

// AdoptedStyleSheets returns the constructed stylesheets adopted by a
// document or shadow root.
func (n *Node) AdoptedStyleSheets() []*StyleSheet { return n.adopted }

// SetAdoptedStyleSheets replaces the adopted stylesheets. Only documents and
// shadow roots accept them.
func (n *Node) SetAdoptedStyleSheets(sheets []*StyleSheet) error {
	if n.typ != DocumentNode && !n.IsShadowRoot() {
		return ErrNotSupported
	}
	n.adopted = append([]*StyleSheet(nil), sheets...)
	return nil
}
