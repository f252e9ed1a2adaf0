package privacy

import (
	"regexp"
	"strings"

	"github.com/hazyhaar/domreplay/dom"
	"golang.org/x/net/html/atom"
)

// SelfLevel returns the level an element declares for itself, either
// explicitly (attribute or class) or implicitly (sensitive inputs, scripts,
// metadata). ok is false when the node declares nothing.
func SelfLevel(n *dom.Node) (Level, bool) {
	if n.Type() != dom.ElementNode {
		return Allow, false
	}
	switch tagAtom(n) {
	case atom.Base:
		return Allow, true
	case atom.Input:
		switch strings.ToLower(n.AttrOr("type")) {
		case "password", "email", "tel", "hidden":
			return Mask, true
		}
		if strings.HasPrefix(strings.ToLower(n.AttrOr("autocomplete")), "cc-") {
			return Mask, true
		}
	}

	for _, l := range []Level{Hidden, Mask, MaskUnlessAllowlisted, MaskUserInput, Allow} {
		if declares(n, l) {
			return l, true
		}
	}
	if shouldIgnore(n) {
		return Ignore, true
	}
	return Allow, false
}

func declares(n *dom.Node, l Level) bool {
	name := l.String()
	if v, ok := n.Attr(Attribute); ok && strings.EqualFold(strings.TrimSpace(v), name) {
		return true
	}
	return n.HasClass(ClassPrefix + name)
}

var (
	preloadRel   = regexp.MustCompile(`(?i)preload|prefetch`)
	msTile       = regexp.MustCompile(`^msapplication-tile(image|color)$`)
	socialProp   = regexp.MustCompile(`^(og|twitter|fb):`)
	socialName   = regexp.MustCompile(`^(og|twitter):`)
	productProp  = regexp.MustCompile(`^(article|product):`)
	ignoredMetas = map[string]bool{
		"application-name":           true,
		"keywords":                   true,
		"description":                true,
		"pinterest":                  true,
		"robots":                     true,
		"googlebot":                  true,
		"bingbot":                    true,
		"author":                     true,
		"generator":                  true,
		"framework":                  true,
		"publisher":                  true,
		"progid":                     true,
		"google-site-verification":   true,
		"yandex-verification":        true,
		"csrf-token":                 true,
		"p:domain_verify":            true,
		"verify-v1":                  true,
		"verification":               true,
		"shopify-checkout-api-token": true,
	}
)

// shouldIgnore reports elements that never affect rendering and only leak
// data or scripts: scripts, script preloads, icons and metadata tags.
func shouldIgnore(n *dom.Node) bool {
	lower := func(name string) string { return strings.ToLower(n.AttrOr(name)) }
	switch tagAtom(n) {
	case atom.Script:
		return true
	case atom.Link:
		rel := lower("rel")
		return (preloadRel.MatchString(rel) && lower("as") == "script") ||
			rel == "shortcut icon" || rel == "icon"
	case atom.Meta:
		name, rel, prop := lower("name"), lower("rel"), lower("property")
		return msTile.MatchString(name) ||
			rel == "icon" || rel == "apple-touch-icon" || rel == "shortcut icon" ||
			socialProp.MatchString(prop) || socialName.MatchString(name) ||
			productProp.MatchString(prop) ||
			n.HasAttr("http-equiv") ||
			ignoredMetas[name]
	}
	return false
}

// tagAtom returns the atom of an HTML element, 0 for foreign elements.
func tagAtom(n *dom.Node) atom.Atom {
	if n.Namespace() != dom.NamespaceHTML {
		return 0
	}
	return atom.Lookup([]byte(n.LocalName()))
}

// IsFormElement reports whether n carries user input.
func IsFormElement(n *dom.Node) bool {
	if n == nil || n.Type() != dom.ElementNode {
		return false
	}
	switch tagAtom(n) {
	case atom.Input, atom.Output, atom.Textarea, atom.Select, atom.Option, atom.Datalist, atom.Optgroup:
		return true
	}
	return false
}
