package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parse builds a document from HTML source. Templates carrying a
// shadowrootmode attribute become shadow roots of their parent element.
func Parse(sched Scheduler, src string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	doc := NewDocument(sched)
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		doc.convertInto(doc.root, c)
	}
	return doc, nil
}

// ParseFragment parses HTML in the context of element parent and returns the
// resulting detached nodes. Nothing is inserted.
func ParseFragment(parent *Node, src string) ([]*Node, error) {
	if parent == nil || parent.typ != ElementNode {
		return nil, ErrNotSupported
	}
	ctx := &html.Node{
		Type:     html.ElementNode,
		Data:     parent.name,
		DataAtom: atom.Lookup([]byte(parent.name)),
	}
	nodes, err := html.ParseFragment(strings.NewReader(src), ctx)
	if err != nil {
		return nil, fmt.Errorf("dom: parse fragment: %w", err)
	}
	doc := parent.owner
	holder := doc.CreateDocumentFragment()
	for _, hn := range nodes {
		doc.convertInto(holder, hn)
	}
	out := holder.ChildNodes()
	for _, c := range out {
		holder.unlink(c)
	}
	return out, nil
}

// convertInto appends the conversion of hn to parent without queuing
// mutation records.
func (d *Document) convertInto(parent *Node, hn *html.Node) {
	switch hn.Type {
	case html.TextNode:
		parent.link(d.CreateTextNode(hn.Data), nil)
	case html.CommentNode:
		parent.link(d.CreateComment(hn.Data), nil)
	case html.DoctypeNode:
		var pub, sys string
		for _, a := range hn.Attr {
			switch a.Key {
			case "public":
				pub = a.Val
			case "system":
				sys = a.Val
			}
		}
		parent.link(d.CreateDoctype(hn.Data, pub, sys), nil)
	case html.ElementNode:
		if hn.DataAtom == atom.Template && parent.typ == ElementNode && parent.shadow == nil {
			if mode := templateShadowMode(hn); mode != "" {
				root := &Node{typ: FragmentNode, host: parent, owner: d}
				parent.shadow = root
				for c := hn.FirstChild; c != nil; c = c.NextSibling {
					d.convertInto(root, c)
				}
				return
			}
		}
		el := d.CreateElementNS(namespaceOf(hn.Namespace), hn.Data)
		for _, a := range hn.Attr {
			name := a.Key
			if a.Namespace != "" {
				name = a.Namespace + ":" + a.Key
			}
			el.attrs = append(el.attrs, Attribute{Name: name, Value: a.Val})
		}
		parent.link(el, nil)
		for c := hn.FirstChild; c != nil; c = c.NextSibling {
			d.convertInto(el, c)
		}
	}
}

func templateShadowMode(hn *html.Node) string {
	for _, a := range hn.Attr {
		if a.Key == "shadowrootmode" || a.Key == "shadowroot" {
			return a.Val
		}
	}
	return ""
}

func namespaceOf(ns string) Namespace {
	switch ns {
	case "svg":
		return NamespaceSVG
	case "math":
		return NamespaceMathML
	}
	return NamespaceHTML
}
