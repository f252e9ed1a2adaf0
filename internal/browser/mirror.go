package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/domreplay/dom"
)

// Mirror keeps a dom.Document in sync with the DOM of a Chrome tab. The
// recorder observes the mirrored document like any other: every DevTools
// DOM event becomes a tree operation queuing ordinary mutation records.
//
// Apply and every accessor must run on the goroutine owning the document.
type Mirror struct {
	doc    *dom.Document
	nodes  map[proto.DOMNodeID]*dom.Node
	ids    map[*dom.Node]proto.DOMNodeID
	logger *slog.Logger

	// OnReset runs when the page replaces its document. The mirror is
	// stale afterwards; callers capture a new one.
	OnReset func()
}

// NewMirror builds a document from a DevTools DOM tree. Nothing observes
// the document yet, so building it queues no records.
func NewMirror(sched dom.Scheduler, root *proto.DOMNode, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Mirror{
		doc:    dom.NewDocument(sched),
		nodes:  make(map[proto.DOMNodeID]*dom.Node),
		ids:    make(map[*dom.Node]proto.DOMNodeID),
		logger: logger,
	}
	if root != nil {
		m.doc.URL = root.DocumentURL
		m.register(root.NodeID, m.doc.Node())
		for _, c := range root.Children {
			if n := m.build(c); n != nil {
				_ = m.doc.Node().AppendChild(n)
			}
		}
	}
	return m
}

// Capture enables the DOM domain on page and mirrors its whole document,
// shadow roots included.
func Capture(ctx context.Context, page *rod.Page, sched dom.Scheduler, logger *slog.Logger) (*Mirror, error) {
	p := page.Context(ctx)
	if err := (proto.DOMEnable{}).Call(p); err != nil {
		return nil, fmt.Errorf("browser: dom enable: %w", err)
	}
	depth := -1
	res, err := proto.DOMGetDocument{Depth: &depth, Pierce: true}.Call(p)
	if err != nil {
		return nil, fmt.Errorf("browser: get document: %w", err)
	}
	return NewMirror(sched, res.Root, logger), nil
}

// Document returns the mirrored document.
func (m *Mirror) Document() *dom.Document { return m.doc }

// Node returns the mirrored node for a DevTools node id.
func (m *Mirror) Node(id proto.DOMNodeID) *dom.Node { return m.nodes[id] }

// Len returns the number of mirrored nodes, the document included.
func (m *Mirror) Len() int { return len(m.nodes) }

// Listen subscribes to the DOM events of page and applies each one on
// sched, in arrival order. It blocks until ctx is cancelled.
func (m *Mirror) Listen(ctx context.Context, page *rod.Page, sched dom.Scheduler) {
	p := page.Context(ctx)
	depth := -1

	wait := p.EachEvent(
		func(e *proto.DOMChildNodeInserted) {
			// Inserted subtrees arrive shallow; their children follow as
			// setChildNodes once requested.
			if e.Node != nil && len(e.Node.Children) == 0 && e.Node.ChildNodeCount != nil && *e.Node.ChildNodeCount > 0 {
				go func(id proto.DOMNodeID) {
					if err := (proto.DOMRequestChildNodes{NodeID: id, Depth: &depth, Pierce: true}).Call(p); err != nil {
						m.logger.Debug("browser: request child nodes", "node", id, "error", err)
					}
				}(e.Node.NodeID)
			}
			sched.Schedule(func() { m.Apply(e) })
		},
		func(e *proto.DOMChildNodeRemoved) { sched.Schedule(func() { m.Apply(e) }) },
		func(e *proto.DOMAttributeModified) { sched.Schedule(func() { m.Apply(e) }) },
		func(e *proto.DOMAttributeRemoved) { sched.Schedule(func() { m.Apply(e) }) },
		func(e *proto.DOMCharacterDataModified) { sched.Schedule(func() { m.Apply(e) }) },
		func(e *proto.DOMSetChildNodes) { sched.Schedule(func() { m.Apply(e) }) },
		func(e *proto.DOMShadowRootPushed) { sched.Schedule(func() { m.Apply(e) }) },
		func(e *proto.DOMShadowRootPopped) { sched.Schedule(func() { m.Apply(e) }) },
		func(e *proto.DOMDocumentUpdated) { sched.Schedule(func() { m.Apply(e) }) },
	)
	wait()
}

// Apply performs one DevTools DOM event on the mirrored document. Events
// naming nodes the mirror never saw are dropped.
func (m *Mirror) Apply(event any) {
	switch e := event.(type) {
	case *proto.DOMChildNodeInserted:
		parent := m.nodes[e.ParentNodeID]
		if parent == nil || e.Node == nil {
			m.unknown("childNodeInserted", e.ParentNodeID)
			return
		}
		ref := parent.FirstChild()
		if e.PreviousNodeID != 0 {
			prev := m.nodes[e.PreviousNodeID]
			if prev == nil || prev.ParentNode() != parent {
				m.unknown("childNodeInserted previous", e.PreviousNodeID)
				return
			}
			ref = prev.NextSibling()
		}
		if old := m.nodes[e.Node.NodeID]; old != nil {
			m.forget(old)
			old.Remove()
		}
		n := m.build(e.Node)
		if n == nil {
			return
		}
		if err := parent.InsertBefore(n, ref); err != nil {
			m.logger.Warn("browser: mirror insert", "parent", e.ParentNodeID, "node", e.Node.NodeID, "error", err)
			m.forget(n)
		}

	case *proto.DOMChildNodeRemoved:
		n := m.nodes[e.NodeID]
		if n == nil {
			m.unknown("childNodeRemoved", e.NodeID)
			return
		}
		m.forget(n)
		n.Remove()

	case *proto.DOMAttributeModified:
		if n := m.nodes[e.NodeID]; n != nil {
			_ = n.SetAttribute(e.Name, e.Value)
		} else {
			m.unknown("attributeModified", e.NodeID)
		}

	case *proto.DOMAttributeRemoved:
		if n := m.nodes[e.NodeID]; n != nil {
			n.RemoveAttribute(e.Name)
		} else {
			m.unknown("attributeRemoved", e.NodeID)
		}

	case *proto.DOMCharacterDataModified:
		if n := m.nodes[e.NodeID]; n != nil {
			n.SetData(e.CharacterData)
		} else {
			m.unknown("characterDataModified", e.NodeID)
		}

	case *proto.DOMSetChildNodes:
		parent := m.nodes[e.ParentID]
		if parent == nil {
			m.unknown("setChildNodes", e.ParentID)
			return
		}
		for _, c := range parent.ChildNodes() {
			m.forget(c)
		}
		children := make([]*dom.Node, 0, len(e.Nodes))
		for _, c := range e.Nodes {
			if n := m.build(c); n != nil {
				children = append(children, n)
			}
		}
		if err := parent.ReplaceChildren(children...); err != nil {
			m.logger.Warn("browser: mirror set children", "parent", e.ParentID, "error", err)
		}

	case *proto.DOMShadowRootPushed:
		host := m.nodes[e.HostID]
		if host == nil || e.Root == nil {
			m.unknown("shadowRootPushed", e.HostID)
			return
		}
		m.attachShadow(host, e.Root)

	case *proto.DOMShadowRootPopped:
		// Shadow roots cannot be detached from their host; the stale root
		// stays until the next document capture.
		m.logger.Debug("browser: shadow root popped", "host", e.HostID, "root", e.RootID)

	case *proto.DOMDocumentUpdated:
		m.logger.Info("browser: document updated", "url", m.doc.URL)
		if m.OnReset != nil {
			m.OnReset()
		}
	}
}

// build converts a DevTools node and its subtree. Unsupported node types
// return nil.
func (m *Mirror) build(pn *proto.DOMNode) *dom.Node {
	var n *dom.Node
	switch dom.NodeType(pn.NodeType) {
	case dom.ElementNode:
		ns := dom.NamespaceHTML
		if pn.IsSVG {
			ns = dom.NamespaceSVG
		}
		name := pn.LocalName
		if name == "" {
			name = strings.ToLower(pn.NodeName)
		}
		n = m.doc.CreateElementNS(ns, name)
		for i := 0; i+1 < len(pn.Attributes); i += 2 {
			_ = n.SetAttribute(pn.Attributes[i], pn.Attributes[i+1])
		}
		for _, c := range pn.Children {
			if cn := m.build(c); cn != nil {
				_ = n.AppendChild(cn)
			}
		}
		for _, sr := range pn.ShadowRoots {
			m.attachShadow(n, sr)
		}
	case dom.TextNode:
		n = m.doc.CreateTextNode(pn.NodeValue)
	case dom.CDATANode:
		n = m.doc.CreateCDATASection(pn.NodeValue)
	case dom.CommentNode:
		n = m.doc.CreateComment(pn.NodeValue)
	case dom.DoctypeNode:
		n = m.doc.CreateDoctype(pn.NodeName, pn.PublicID, pn.SystemID)
	default:
		return nil
	}
	m.register(pn.NodeID, n)
	return n
}

// attachShadow mirrors an open shadow root. User-agent and closed roots are
// not part of the page's scriptable DOM.
func (m *Mirror) attachShadow(host *dom.Node, root *proto.DOMNode) {
	if root.ShadowRootType != proto.DOMShadowRootTypeOpen {
		return
	}
	sr, err := host.AttachShadow()
	if err != nil {
		m.logger.Debug("browser: attach shadow", "root", root.NodeID, "error", err)
		return
	}
	m.register(root.NodeID, sr)
	for _, c := range root.Children {
		if cn := m.build(c); cn != nil {
			_ = sr.AppendChild(cn)
		}
	}
}

func (m *Mirror) register(id proto.DOMNodeID, n *dom.Node) {
	m.nodes[id] = n
	m.ids[n] = id
}

// forget drops the ids of n and its composed subtree.
func (m *Mirror) forget(n *dom.Node) {
	dom.Walk(n, func(c *dom.Node) bool {
		if id, ok := m.ids[c]; ok {
			delete(m.ids, c)
			if m.nodes[id] == c {
				delete(m.nodes, id)
			}
		}
		return true
	})
}

func (m *Mirror) unknown(event string, id proto.DOMNodeID) {
	m.logger.Debug("browser: event for unknown node", "event", event, "node", id)
}

// LayoutMetrics reads the layout and visual viewports of page.
func LayoutMetrics(ctx context.Context, page *rod.Page) (*proto.PageGetLayoutMetricsResult, error) {
	res, err := proto.PageGetLayoutMetrics{}.Call(page.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("browser: layout metrics: %w", err)
	}
	return res, nil
}

// ApplyLayout copies viewport dimensions and scroll offsets into doc.
func ApplyLayout(doc *dom.Document, lm *proto.PageGetLayoutMetricsResult) {
	if lm == nil {
		return
	}
	if v := lm.CSSLayoutViewport; v != nil {
		doc.Width = v.ClientWidth
		doc.Height = v.ClientHeight
		doc.SetScroll(v.PageX, v.PageY)
	}
	if v := lm.CSSVisualViewport; v != nil {
		doc.Viewport = dom.VisualViewport{
			Scale:      v.Scale,
			OffsetLeft: v.OffsetX,
			OffsetTop:  v.OffsetY,
			PageLeft:   v.PageX,
			PageTop:    v.PageY,
			Width:      v.ClientWidth,
			Height:     v.ClientHeight,
		}
	}
}
