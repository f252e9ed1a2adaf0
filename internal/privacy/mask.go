package privacy

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/hazyhaar/domreplay/dom"
	"golang.org/x/net/html/atom"
)

// Options carries the configuration that affects masking.
type Options struct {
	// ActionNameAttribute is a custom attribute naming user actions. It is
	// never masked.
	ActionNameAttribute string
	// AllowlistedTexts are texts kept verbatim under MaskUnlessAllowlisted.
	AllowlistedTexts []string
}

func (o Options) allowlisted(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, a := range o.AllowlistedTexts {
		if strings.ToLower(strings.TrimSpace(a)) == t {
			return true
		}
	}
	return false
}

// ShouldMask reports whether the content of n must be masked at level l.
func ShouldMask(n *dom.Node, l Level, opts Options) bool {
	switch l {
	case Mask, Hidden, Ignore:
		return true
	case MaskUnlessAllowlisted:
		if n.Type() == dom.TextNode {
			return !opts.allowlisted(n.Data())
		}
		return IsFormElement(n)
	case MaskUserInput:
		if n.Type() == dom.TextNode {
			return IsFormElement(n.ParentNode())
		}
		return IsFormElement(n)
	}
	return false
}

// CensorText replaces every non-space character with MaskChar.
func CensorText(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return r
		}
		return MaskChar
	}, s)
}

// TextContent returns the recordable content of a text node whose parent
// resolved to parentLevel. ok is false when the node must be dropped:
// whitespace-only text when ignoreWhitespace is set, or whitespace-only
// text inside a masked list container.
func TextContent(n *dom.Node, ignoreWhitespace bool, parentLevel Level, opts Options) (string, bool) {
	text := n.Data()
	if ignoreWhitespace && strings.TrimSpace(text) == "" {
		return "", false
	}
	var parentTag atom.Atom
	if p := n.ParentElement(); p != nil {
		parentTag = tagAtom(p)
	}
	switch {
	case parentTag == atom.Script:
		return CensoredString, true
	case parentLevel == Hidden:
		return CensoredString, true
	case ShouldMask(n, parentLevel, opts):
		switch parentTag {
		case atom.Datalist, atom.Select, atom.Optgroup:
			if strings.TrimSpace(text) == "" {
				return "", false
			}
		case atom.Option:
			return CensoredString, true
		default:
			return CensorText(text), true
		}
	}
	return text, true
}

// stableAttributes identify elements for tests and analytics and carry no
// user data.
var stableAttributes = map[string]bool{
	Attribute:      true,
	"data-testid":  true,
	"data-test":    true,
	"data-qa":      true,
	"data-cy":      true,
	"data-test-id": true,
	"data-qa-id":   true,
	"data-testing": true,
}

const maxDataURLLength = 100_000

var dataURLPrefix = regexp.MustCompile(`^data:([^;,]*)`)

// AttributeValue returns the recordable value of attribute name on element
// n at level l. ok is false when the attribute must not be recorded.
func AttributeValue(n *dom.Node, l Level, name string, opts Options) (string, bool) {
	if l == Hidden {
		return "", false
	}
	value, present := n.Attr(name)
	if !present {
		return "", false
	}
	if (l == Mask || l == MaskUnlessAllowlisted) && !stableAttributes[name] && name != opts.ActionNameAttribute {
		tag := tagAtom(n)
		switch {
		case name == "title" || name == "alt" || name == "placeholder":
			return CensoredString, true
		case tag == atom.Img && (name == "src" || name == "srcset"):
			if w, h := n.Rect(); w > 0 || h > 0 {
				return CensoredImageForSize(w, h), true
			}
			return CensoredImage, true
		case tag == atom.Source && (name == "src" || name == "srcset"):
			return CensoredImage, true
		case tag == atom.A && name == "href":
			return CensoredString, true
		case value != "" && strings.HasPrefix(name, "data-"):
			return CensoredString, true
		case tag == atom.Iframe && name == "srcdoc":
			return CensoredString, true
		}
	}
	if len(value) > maxDataURLLength && strings.HasPrefix(value, "data:") {
		mime := "unknown"
		if m := dataURLPrefix.FindStringSubmatch(value); m != nil && m[1] != "" {
			mime = m[1]
		}
		return "data:" + mime + ";truncated", true
	}
	return value, true
}

// InputValue returns the recordable form value of n at level l. ok is false
// when no value should be recorded.
func InputValue(n *dom.Node, l Level, opts Options) (string, bool) {
	tag := tagAtom(n)
	value := n.Value()
	if ShouldMask(n, l, opts) {
		if tag == atom.Input {
			switch strings.ToLower(n.AttrOr("type")) {
			case "button", "submit", "reset":
				return value, true
			}
		}
		if value == "" || tag == atom.Option {
			return "", false
		}
		return CensoredString, true
	}
	switch tag {
	case atom.Option, atom.Select, atom.Input, atom.Textarea:
		return value, true
	}
	return "", false
}
