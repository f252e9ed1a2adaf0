package record

// NodeType tags a SerializedNode.
type NodeType int

const (
	NodeDocument         NodeType = 0
	NodeDocumentType     NodeType = 1
	NodeElement          NodeType = 2
	NodeText             NodeType = 3
	NodeCDATA            NodeType = 4
	NodeDocumentFragment NodeType = 11
)

// SerializedNode is one node of a nested snapshot. Which fields are set
// depends on Type. Element attribute values are strings, except the virtual
// attributes checked and selected (bool) and rr_scrollLeft/rr_scrollTop
// (int).
type SerializedNode struct {
	Type NodeType `json:"type"`
	ID   int      `json:"id"`

	ChildNodes         []*SerializedNode `json:"childNodes,omitempty"`
	AdoptedStyleSheets []StyleSheet      `json:"adoptedStyleSheets,omitempty"`
	IsShadowRoot       bool              `json:"isShadowRoot,omitempty"`

	Name     string `json:"name,omitempty"`
	PublicID string `json:"publicId,omitempty"`
	SystemID string `json:"systemId,omitempty"`

	TagName    string         `json:"tagName,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	IsSVG      bool           `json:"isSVG,omitempty"`

	TextContent string `json:"textContent,omitempty"`
}

// StyleSheet is a serialized constructed stylesheet.
type StyleSheet struct {
	Rules    []string `json:"cssRules"`
	Media    []string `json:"media,omitempty"`
	Disabled bool     `json:"disabled,omitempty"`
}

// Walk visits n and its descendants depth first.
func (n *SerializedNode) Walk(fn func(*SerializedNode)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.ChildNodes {
		c.Walk(fn)
	}
}

// Clone returns a deep copy of the subtree.
func (n *SerializedNode) Clone() *SerializedNode {
	if n == nil {
		return nil
	}
	c := *n
	if n.Attributes != nil {
		c.Attributes = make(map[string]any, len(n.Attributes))
		for k, v := range n.Attributes {
			c.Attributes[k] = v
		}
	}
	if n.AdoptedStyleSheets != nil {
		c.AdoptedStyleSheets = make([]StyleSheet, len(n.AdoptedStyleSheets))
		for i, s := range n.AdoptedStyleSheets {
			c.AdoptedStyleSheets[i] = StyleSheet{
				Rules:    append([]string(nil), s.Rules...),
				Media:    append([]string(nil), s.Media...),
				Disabled: s.Disabled,
			}
		}
	}
	if n.ChildNodes != nil {
		c.ChildNodes = make([]*SerializedNode, len(n.ChildNodes))
		for i, k := range n.ChildNodes {
			c.ChildNodes[i] = k.Clone()
		}
	}
	return &c
}

// Find returns the node with the given id in the subtree.
func (n *SerializedNode) Find(id int) *SerializedNode {
	var found *SerializedNode
	n.Walk(func(c *SerializedNode) {
		if found == nil && c.ID == id {
			found = c
		}
	})
	return found
}

// Node label strings used by change records.
const (
	LabelText             = "#text"
	LabelCDATA            = "#cdata-section"
	LabelDocument         = "#document"
	LabelDoctype          = "#doctype"
	LabelDocumentFragment = "#document-fragment"
	LabelShadowRoot       = "#shadow-root"
	LabelSVGPrefix        = "svg>"
)

// Label returns the change record label of a serialized node: the tag name
// for elements, prefixed with "svg>" inside SVG, and a '#' label otherwise.
func Label(n *SerializedNode) string {
	switch n.Type {
	case NodeDocument:
		return LabelDocument
	case NodeDocumentType:
		return LabelDoctype
	case NodeText:
		return LabelText
	case NodeCDATA:
		return LabelCDATA
	case NodeDocumentFragment:
		if n.IsShadowRoot {
			return LabelShadowRoot
		}
		return LabelDocumentFragment
	}
	if n.IsSVG {
		return LabelSVGPrefix + n.TagName
	}
	return n.TagName
}
