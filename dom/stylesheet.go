package dom

import (
	"strings"

	"github.com/gorilla/css/scanner"
)

// StyleSheet is a parsed list of CSS rules. Rule text is normalized:
// comments dropped, whitespace runs collapsed to one space.
type StyleSheet struct {
	Rules    []string
	Media    []string
	Disabled bool
}

// NewStyleSheet parses text into a stylesheet.
func NewStyleSheet(text string) *StyleSheet {
	return &StyleSheet{Rules: SplitRules(text)}
}

// CSSText returns the rules concatenated.
func (s *StyleSheet) CSSText() string {
	if s == nil {
		return ""
	}
	return strings.Join(s.Rules, "")
}

// ReplaceSync replaces every rule of a constructed stylesheet.
func (s *StyleSheet) ReplaceSync(text string) {
	s.Rules = SplitRules(text)
}

// SplitRules splits CSS text into top-level rules. A rule ends at the brace
// that closes its block, or at a semicolon outside any block for statement
// at-rules such as @import.
func SplitRules(text string) []string {
	var (
		rules []string
		cur   strings.Builder
		depth int
		space bool
	)
	flush := func() {
		r := strings.TrimSpace(cur.String())
		if r != "" {
			rules = append(rules, r)
		}
		cur.Reset()
		space = false
	}

	s := scanner.New(text)
	for {
		tok := s.Next()
		if tok.Type == scanner.TokenEOF || tok.Type == scanner.TokenError {
			break
		}
		switch tok.Type {
		case scanner.TokenComment, scanner.TokenCDO, scanner.TokenCDC, scanner.TokenBOM:
			continue
		case scanner.TokenS:
			if cur.Len() > 0 {
				space = true
			}
			continue
		}
		if space {
			cur.WriteByte(' ')
			space = false
		}
		cur.WriteString(tok.Value)

		if tok.Type != scanner.TokenChar {
			continue
		}
		switch tok.Value {
		case "{":
			depth++
		case "}":
			if depth > 0 {
				depth--
			}
			if depth == 0 {
				flush()
			}
		case ";":
			if depth == 0 {
				flush()
			}
		}
	}
	flush()
	return rules
}

func splitMedia(m string) []string {
	var out []string
	for _, part := range strings.Split(m, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
