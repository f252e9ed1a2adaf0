package serialize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hazyhaar/domreplay/dom"
	"github.com/hazyhaar/domreplay/internal/privacy"
	"github.com/hazyhaar/domreplay/record"
)

// Pass is one walk over host nodes inside a transaction. It remembers
// which nodes it serialized and which known nodes it moved, so the
// mutation tracker can skip records already covered by an add.
type Pass struct {
	tx    *Transaction
	opts  privacy.Options
	cache privacy.Cache

	seen   map[*dom.Node]bool
	placed map[*dom.Node]bool
}

// NewPass starts a pass in tx.
func NewPass(tx *Transaction) *Pass {
	return &Pass{
		tx:     tx,
		opts:   tx.Scope.Config.PrivacyOptions(),
		cache:  privacy.Cache{},
		seen:   make(map[*dom.Node]bool),
		placed: make(map[*dom.Node]bool),
	}
}

// Level resolves the effective privacy level of n, memoized for the pass.
func (p *Pass) Level(n *dom.Node) privacy.Level {
	return privacy.Resolve(n, p.tx.Scope.Config.DefaultPrivacyLevel, p.cache)
}

// Seen reports whether n was serialized during the pass.
func (p *Pass) Seen(n *dom.Node) bool { return p.seen[n] }

// Placed reports whether the known node n was moved during the pass.
func (p *Pass) Placed(n *dom.Node) bool { return p.placed[n] }

// description is what both encodings record about a single node.
type description struct {
	typ          record.NodeType
	level        privacy.Level // level inherited by the children
	isShadowRoot bool

	tagName string
	isSVG   bool
	attrs   []attr

	text string

	name     string
	publicID string
	systemID string

	walkChildren bool
	sheets       []*dom.StyleSheet
	scrollLeft   int
	scrollTop    int
	paused       *bool
}

type attr struct {
	name  string
	value any // string, bool
}

// describe guards describeNode: a node whose description panics is
// omitted with its subtree.
func (p *Pass) describe(n *dom.Node, parentLevel privacy.Level) (d description, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.tx.Scope.Logger.Debug("serialize: node skipped", "node", n.NodeName(), "panic", r)
			d, ok = description{}, false
		}
	}()
	return p.describeNode(n, parentLevel)
}

func (p *Pass) describeNode(n *dom.Node, parentLevel privacy.Level) (description, bool) {
	switch n.Type() {
	case dom.DocumentNode:
		d := description{
			typ:          record.NodeDocument,
			level:        parentLevel,
			walkChildren: true,
			sheets:       n.AdoptedStyleSheets(),
		}
		d.scrollLeft, d.scrollTop = n.Scroll()
		return d, true
	case dom.DoctypeNode:
		return description{
			typ:      record.NodeDocumentType,
			name:     n.DoctypeName(),
			publicID: n.PublicID(),
			systemID: n.SystemID(),
		}, true
	case dom.FragmentNode:
		return description{
			typ:          record.NodeDocumentFragment,
			level:        parentLevel,
			isShadowRoot: n.IsShadowRoot(),
			walkChildren: true,
			sheets:       n.AdoptedStyleSheets(),
		}, true
	case dom.ElementNode:
		return p.describeElement(n, parentLevel)
	case dom.TextNode:
		if parentLevel == privacy.Ignore {
			return description{}, false
		}
		parent := n.ParentNode()
		inHead := parent != nil && htmlTag(parent) == "head"
		text, ok := privacy.TextContent(n, inHead, parentLevel, p.opts)
		if !ok {
			return description{}, false
		}
		return description{typ: record.NodeText, level: parentLevel, text: text}, true
	case dom.CDATANode:
		return description{typ: record.NodeCDATA, level: parentLevel}, true
	}
	return description{}, false
}

var invalidTagName = regexp.MustCompile(`[^a-z1-6\-_]`)

// tagName returns the recorded tag name of an element: lower case, with
// names outside [a-z1-6-_] replaced by div.
func tagName(n *dom.Node) string {
	t := strings.ToLower(strings.TrimSpace(n.LocalName()))
	if invalidTagName.MatchString(t) {
		return "div"
	}
	return t
}

// htmlTag returns the lower case local name of an HTML element, "" for
// anything else.
func htmlTag(n *dom.Node) string {
	if n.Type() != dom.ElementNode || n.Namespace() != dom.NamespaceHTML {
		return ""
	}
	return strings.ToLower(n.LocalName())
}

func (p *Pass) describeElement(n *dom.Node, parentLevel privacy.Level) (description, bool) {
	self, declared := privacy.SelfLevel(n)
	level := privacy.Reduce(self, declared, parentLevel)
	p.cache[n] = level
	if level == privacy.Ignore {
		return description{}, false
	}

	d := description{
		typ:     record.NodeElement,
		level:   level,
		tagName: tagName(n),
		isSVG:   n.Namespace() == dom.NamespaceSVG,
	}
	if level == privacy.Hidden {
		w, h := n.Rect()
		d.attrs = []attr{
			{"rr_width", px(w)},
			{"rr_height", px(h)},
			{privacy.Attribute, privacy.Hidden.String()},
		}
		return d, true
	}

	tag := htmlTag(n)
	d.walkChildren = tag != "style"
	d.attrs = p.attributes(n, tag, level)
	if tag == "audio" || tag == "video" {
		paused := n.Paused()
		d.paused = &paused
	}
	d.scrollLeft, d.scrollTop = n.Scroll()
	return d, true
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}

func isFormTag(tag string) bool {
	switch tag {
	case "input", "textarea", "select", "option":
		return true
	}
	return false
}

func isCheckable(n *dom.Node, tag string) bool {
	if tag != "input" {
		return false
	}
	switch strings.ToLower(n.AttrOr("type")) {
	case "radio", "checkbox":
		return true
	}
	return false
}

// attributes returns the recorded attributes of a visible element, in
// document order followed by the virtual ones.
func (p *Pass) attributes(n *dom.Node, tag string, level privacy.Level) []attr {
	form := isFormTag(tag)
	checkable := isCheckable(n, tag)

	var out []attr
	for _, a := range n.Attrs() {
		if (form && a.Name == "value") || (checkable && a.Name == "checked") || (tag == "option" && a.Name == "selected") {
			continue
		}
		if v, ok := privacy.AttributeValue(n, level, a.Name, p.opts); ok {
			out = append(out, attr{a.Name, v})
		}
	}

	if form {
		if v, ok := privacy.InputValue(n, level, p.opts); ok {
			out = append(out, attr{"value", v})
		}
	}
	if tag == "option" && level == privacy.Allow && n.Selected() {
		out = append(out, attr{"selected", true})
	}
	if checkable && level == privacy.Allow {
		out = append(out, attr{"checked", n.Checked()})
	}
	if tag == "style" {
		if css, ok := p.CSSText(n); ok {
			out = append(out, attr{"_cssText", css})
		}
	}
	return out
}

// CSSText returns the serialized rules of a STYLE element and records the
// cssText metric.
func (p *Pass) CSSText(n *dom.Node) (string, bool) {
	sheet := n.Sheet()
	if sheet == nil {
		return "", false
	}
	css := sheet.CSSText()
	if css == "" {
		return "", false
	}
	p.tx.AddMetric(MetricCSSText, len(css))
	return css, true
}

func sheetRecord(s *dom.StyleSheet) record.StyleSheet {
	return record.StyleSheet{
		Rules:    append([]string(nil), s.Rules...),
		Media:    append([]string(nil), s.Media...),
		Disabled: s.Disabled,
	}
}

// label returns the change record label of a described node.
func (d description) label() string {
	switch d.typ {
	case record.NodeDocument:
		return record.LabelDocument
	case record.NodeDocumentType:
		return record.LabelDoctype
	case record.NodeText:
		return record.LabelText
	case record.NodeCDATA:
		return record.LabelCDATA
	case record.NodeDocumentFragment:
		if d.isShadowRoot {
			return record.LabelShadowRoot
		}
		return record.LabelDocumentFragment
	}
	if d.isSVG {
		return record.LabelSVGPrefix + d.tagName
	}
	return d.tagName
}

// NextSiblingID returns the id of the first following sibling of n that
// has one. Shadow roots have no siblings.
func (p *Pass) NextSiblingID(n *dom.Node) *int {
	if n.IsShadowRoot() {
		return nil
	}
	for s := n.NextSibling(); s != nil; s = s.NextSibling() {
		if id, ok := p.tx.Scope.Nodes.Get(s); ok {
			return &id
		}
	}
	return nil
}

// ParentOf returns the node n is recorded under: the host for a shadow
// root, the parent otherwise.
func ParentOf(n *dom.Node) *dom.Node {
	if n.IsShadowRoot() {
		return n.Host()
	}
	return n.ParentNode()
}

// AttributeChange returns the value to record after attribute name of the
// element n changed, nil when the attribute was removed. ok is false when
// the change must not be recorded.
func (p *Pass) AttributeChange(n *dom.Node, name string) (value *string, ok bool) {
	level := p.Level(n)
	if level.Terminal() {
		return nil, false
	}
	tag := htmlTag(n)
	switch {
	case isCheckable(n, tag) && name == "checked", tag == "option" && name == "selected":
		return nil, false
	case isFormTag(tag) && name == "value":
		v, ok := privacy.InputValue(n, level, p.opts)
		if !ok {
			return nil, false
		}
		return &v, true
	}
	if !n.HasAttr(name) {
		return nil, true
	}
	v, ok := privacy.AttributeValue(n, level, name, p.opts)
	if !ok {
		return nil, false
	}
	return &v, true
}

// TextChange returns the value to record after the data of the text node
// n changed. ok is false when the change must not be recorded.
func (p *Pass) TextChange(n *dom.Node) (value string, ok bool) {
	parent := n.ParentNode()
	if parent == nil {
		return "", false
	}
	level := p.Level(parent)
	if level.Terminal() {
		return "", false
	}
	return privacy.TextContent(n, false, level, p.opts)
}
