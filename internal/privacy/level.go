// Package privacy resolves the effective privacy level of nodes and applies
// it to text, attribute and form values.
package privacy

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/domreplay/dom"
)

// Level is a privacy level. Levels are ordered from least to most
// restrictive; Hidden and Ignore are terminal for descendants.
type Level int

const (
	Allow Level = iota
	MaskUserInput
	MaskUnlessAllowlisted
	Mask
	Hidden
	Ignore
)

var levelNames = map[Level]string{
	Allow:                 "allow",
	MaskUserInput:         "mask-user-input",
	MaskUnlessAllowlisted: "mask-unless-allowlisted",
	Mask:                  "mask",
	Hidden:                "hidden",
	Ignore:                "ignore",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel parses a level name as written in configuration and in the
// privacy attribute.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for l, name := range levelNames {
		if name == s {
			return l, nil
		}
	}
	return Allow, fmt.Errorf("privacy: unknown level %q", s)
}

// Terminal reports whether descendants inherit l regardless of their own
// declaration.
func (l Level) Terminal() bool { return l == Hidden || l == Ignore }

const (
	// Attribute declares the privacy level of an element.
	Attribute = "data-replay-privacy"
	// ClassPrefix declares the level through a class, e.g. replay-privacy-mask.
	ClassPrefix = "replay-privacy-"

	// CensoredString replaces masked values.
	CensoredString = "***"
	// CensoredImage is a 1x1 grey gif replacing masked image sources.
	CensoredImage = "data:image/gif;base64,R0lGODlhAQABAIAAAMLCwgAAACH5BAAAAAAALAAAAAABAAEAAAICRAEAOw=="
	// MaskChar replaces every non-space character of masked text.
	MaskChar = 'x'
)

// CensoredImageForSize returns an SVG placeholder of the given size.
func CensoredImageForSize(width, height float64) string {
	return fmt.Sprintf("data:image/svg+xml;charset=utf-8,<svg xmlns='http://www.w3.org/2000/svg' width='%g' height='%g' style='background-color:silver'></svg>", width, height)
}

// Cache memoizes resolved levels during a single serialization or flush
// pass. Never keep one across passes: the tree may have changed.
type Cache map[*dom.Node]Level

// Resolve returns the effective level of n: its own declared level, or the
// level of its parent (the host, for a shadow root), with Hidden and Ignore
// on an ancestor always winning. cache may be nil.
func Resolve(n *dom.Node, def Level, cache Cache) Level {
	if l, ok := cache[n]; ok {
		return l
	}
	parentLevel := def
	if p := n.ComposedParent(); p != nil {
		parentLevel = Resolve(p, def, cache)
	}
	self, ok := SelfLevel(n)
	l := Reduce(self, ok, parentLevel)
	if cache != nil {
		cache[n] = l
	}
	return l
}

// Reduce combines a node's declared level with its parent's effective
// level.
func Reduce(self Level, declared bool, parent Level) Level {
	if parent.Terminal() || !declared {
		return parent
	}
	return self
}
