package dom

import "strings"

// VisualViewport describes the pinch-zoom viewport of a document.
type VisualViewport struct {
	Scale      float64
	OffsetLeft float64
	OffsetTop  float64
	PageLeft   float64
	PageTop    float64
	Width      float64
	Height     float64
}

// Document owns a tree of nodes, the observers registered on it and the
// scheduler that delivers their records.
type Document struct {
	root      *Node
	sched     Scheduler
	observers []*Observer

	URL      string
	Width    int
	Height   int
	Focused  bool
	Viewport VisualViewport
}

// NewDocument creates an empty document whose observer deliveries run on
// sched.
func NewDocument(sched Scheduler) *Document {
	d := &Document{sched: sched, Focused: true}
	d.root = &Node{typ: DocumentNode, owner: d}
	return d
}

// Node returns the document node.
func (d *Document) Node() *Node { return d.root }

// Scheduler returns the scheduler delivering observer records.
func (d *Document) Scheduler() Scheduler { return d.sched }

// Scroll returns the document scroll offsets.
func (d *Document) Scroll() (left, top int) { return d.root.Scroll() }

// SetScroll sets the document scroll offsets.
func (d *Document) SetScroll(left, top int) { d.root.SetScroll(left, top) }

// DocumentElement returns the first element child of the document.
func (d *Document) DocumentElement() *Node {
	for c := d.root.firstChild; c != nil; c = c.next {
		if c.typ == ElementNode {
			return c
		}
	}
	return nil
}

// Body returns the BODY element, if any.
func (d *Document) Body() *Node {
	html := d.DocumentElement()
	if html == nil {
		return nil
	}
	for c := html.firstChild; c != nil; c = c.next {
		if c.TagName() == "BODY" {
			return c
		}
	}
	return nil
}

// CreateElement creates an HTML element.
func (d *Document) CreateElement(tag string) *Node {
	return d.CreateElementNS(NamespaceHTML, tag)
}

// CreateElementNS creates an element in the given namespace.
func (d *Document) CreateElementNS(ns Namespace, tag string) *Node {
	if ns == NamespaceHTML {
		tag = strings.ToLower(tag)
	}
	return &Node{typ: ElementNode, ns: ns, name: tag, owner: d}
}

func (d *Document) CreateTextNode(data string) *Node {
	return &Node{typ: TextNode, data: data, owner: d}
}

func (d *Document) CreateComment(data string) *Node {
	return &Node{typ: CommentNode, data: data, owner: d}
}

func (d *Document) CreateCDATASection(data string) *Node {
	return &Node{typ: CDATANode, data: data, owner: d}
}

func (d *Document) CreateDocumentFragment() *Node {
	return &Node{typ: FragmentNode, owner: d}
}

// CreateDoctype creates a doctype node.
func (d *Document) CreateDoctype(name, publicID, systemID string) *Node {
	return &Node{typ: DoctypeNode, name: name, publicID: publicID, systemID: systemID, owner: d}
}

// GetElementByID returns the first element in tree order whose id matches,
// searching shadow trees too.
func (d *Document) GetElementByID(id string) *Node {
	var found *Node
	Walk(d.root, func(n *Node) bool {
		if found != nil {
			return false
		}
		if n.typ == ElementNode && n.AttrOr("id") == id {
			found = n
			return false
		}
		return true
	})
	return found
}

func (d *Document) notify(rec MutationRecord) {
	for _, o := range d.observers {
		o.enqueue(rec)
	}
}

// Walk visits n and its descendants in composed tree order, shadow roots
// after the light children of their host. Returning false skips the
// subtree.
func Walk(n *Node, fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.firstChild; c != nil; c = c.next {
		Walk(c, fn)
	}
	if n.shadow != nil {
		Walk(n.shadow, fn)
	}
}
