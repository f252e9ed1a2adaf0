package privacy

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/hazyhaar/domreplay/dom"
)

func parse(t *testing.T, src string) *dom.Document {
	t.Helper()
	doc, err := dom.Parse(&dom.Queue{}, src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func TestResolve_Cascade(t *testing.T) {
	doc := parse(t, `<body>
		<div id="hidden" data-replay-privacy="hidden"><p id="allow-in-hidden" data-replay-privacy="allow"></p></div>
		<div id="masked" class="replay-privacy-mask"><p id="inherits-mask"></p><p id="allow-in-mask" data-replay-privacy="allow"></p></div>
		<div id="ignored" data-replay-privacy="ignore"><span id="in-ignored" data-replay-privacy="mask"></span></div>
		<div id="host" data-replay-privacy="mask-user-input"><template shadowrootmode="open"><b id="shadow-child"></b></template></div>
		<p id="plain"></p>
	</body>`)

	tests := []struct {
		id   string
		want Level
	}{
		{"hidden", Hidden},
		{"allow-in-hidden", Hidden},
		{"masked", Mask},
		{"inherits-mask", Mask},
		{"allow-in-mask", Allow},
		{"ignored", Ignore},
		{"in-ignored", Ignore},
		{"host", MaskUserInput},
		{"shadow-child", MaskUserInput},
		{"plain", MaskUnlessAllowlisted},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			n := doc.GetElementByID(tt.id)
			if n == nil {
				t.Fatalf("element %q not found", tt.id)
			}
			if got := Resolve(n, MaskUnlessAllowlisted, nil); got != tt.want {
				t.Errorf("Resolve = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolve_CacheIsFilled(t *testing.T) {
	doc := parse(t, `<body><div data-replay-privacy="mask"><p id="p"></p></div></body>`)
	p := doc.GetElementByID("p")
	cache := Cache{}
	if got := Resolve(p, Allow, cache); got != Mask {
		t.Fatalf("Resolve = %v, want mask", got)
	}
	if cache[p.ParentNode()] != Mask || cache[doc.Node()] != Allow {
		t.Errorf("ancestors not cached: %v", cache)
	}
	// A stale cache entry wins, which is why caches never outlive a pass.
	cache[p] = Allow
	if got := Resolve(p, Allow, cache); got != Allow {
		t.Errorf("cached level ignored")
	}
}

// Hidden or Ignore on any strict ancestor makes every descendant Hidden or
// Ignore, whatever it declares.
func TestResolve_TerminalLevelsCascade(t *testing.T) {
	levels := []string{"", "allow", "mask", "mask-user-input", "mask-unless-allowlisted", "hidden", "ignore"}
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 20; round++ {
		var b strings.Builder
		var build func(depth int)
		build = func(depth int) {
			for i := 0; i < 3; i++ {
				l := levels[rng.Intn(len(levels))]
				attr := ""
				if l != "" {
					attr = fmt.Sprintf(` data-replay-privacy="%s"`, l)
				}
				fmt.Fprintf(&b, "<div%s>", attr)
				if depth < 3 {
					build(depth + 1)
				}
				b.WriteString("</div>")
			}
		}
		build(0)
		doc := parse(t, "<body>"+b.String()+"</body>")

		dom.Walk(doc.Node(), func(n *dom.Node) bool {
			l := Resolve(n, Allow, nil)
			for a := n.ComposedParent(); a != nil; a = a.ComposedParent() {
				if al := Resolve(a, Allow, nil); al.Terminal() && !l.Terminal() {
					t.Fatalf("round %d: node resolves %v under %v ancestor", round, l, al)
				}
			}
			return true
		})
	}
}

func TestSelfLevel_ImplicitRules(t *testing.T) {
	doc := parse(t, `<head>
		<base id="base" href="/" data-replay-privacy="hidden">
		<script id="script"></script>
		<link id="preload" rel="preload" as="script" href="a.js">
		<link id="css" rel="stylesheet" href="a.css">
		<meta id="og" property="og:title" content="x">
		<meta id="viewport" name="viewport" content="width=device-width">
		<meta id="csrf" name="csrf-token" content="t">
	</head><body>
		<input id="password" type="password">
		<input id="card" autocomplete="cc-number">
		<input id="text" type="text">
	</body>`)

	tests := []struct {
		id       string
		want     Level
		declared bool
	}{
		{"base", Allow, true},
		{"script", Ignore, true},
		{"preload", Ignore, true},
		{"css", Allow, false},
		{"og", Ignore, true},
		{"viewport", Allow, false},
		{"csrf", Ignore, true},
		{"password", Mask, true},
		{"card", Mask, true},
		{"text", Allow, false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, ok := SelfLevel(doc.GetElementByID(tt.id))
			if got != tt.want || ok != tt.declared {
				t.Errorf("SelfLevel = (%v, %v), want (%v, %v)", got, ok, tt.want, tt.declared)
			}
		})
	}
}

func TestTextContent(t *testing.T) {
	doc := parse(t, `<head> </head><body><p id="p">Hello World</p><script id="s">var x</script><select id="sel"> <option id="o">Secret</option></select><label id="l">OK</label></body>`)
	text := func(id string) *dom.Node { return doc.GetElementByID(id).FirstChild() }
	opts := Options{AllowlistedTexts: []string{"ok"}}

	tests := []struct {
		name   string
		node   *dom.Node
		ignore bool
		level  Level
		want   string
		ok     bool
	}{
		{"allow keeps text", text("p"), false, Allow, "Hello World", true},
		{"mask censors keeping spaces", text("p"), false, Mask, "xxxxx xxxxx", true},
		{"hidden parent", text("p"), false, Hidden, CensoredString, true},
		{"script always redacted", text("s"), false, Allow, CensoredString, true},
		{"whitespace in masked select dropped", text("sel"), false, Mask, "", false},
		{"masked option", text("o"), false, Mask, CensoredString, true},
		{"allowlisted text kept", text("l"), false, MaskUnlessAllowlisted, "OK", true},
		{"non-allowlisted text masked", text("p"), false, MaskUnlessAllowlisted, "xxxxx xxxxx", true},
		{"user input level keeps plain text", text("p"), false, MaskUserInput, "Hello World", true},
		{"user input level masks option text", text("o"), false, MaskUserInput, CensoredString, true},
		{"whitespace ignored", doc.DocumentElement().FirstChild().FirstChild(), true, Allow, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TextContent(tt.node, tt.ignore, tt.level, opts)
			if got != tt.want || ok != tt.ok {
				t.Errorf("TextContent = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestAttributeValue(t *testing.T) {
	doc := parse(t, `<body>
		<a id="a" href="https://x" title="t" data-testid="buy" data-track="u1" data-action="Buy"></a>
		<img id="img" src="p.png">
		<img id="sized" src="p.png">
		<img id="inline" src="data:image/png;base64,`+strings.Repeat("A", maxDataURLLength)+`">
	</body>`)
	doc.GetElementByID("sized").SetRect(20, 10)
	opts := Options{ActionNameAttribute: "data-action"}

	tests := []struct {
		id, name string
		level    Level
		want     string
		ok       bool
	}{
		{"a", "href", Allow, "https://x", true},
		{"a", "href", Mask, CensoredString, true},
		{"a", "title", Mask, CensoredString, true},
		{"a", "data-testid", Mask, "buy", true},
		{"a", "data-track", Mask, CensoredString, true},
		{"a", "data-action", Mask, "Buy", true},
		{"a", "missing", Mask, "", false},
		{"a", "href", Hidden, "", false},
		{"img", "src", Mask, CensoredImage, true},
		{"sized", "src", Mask, CensoredImageForSize(20, 10), true},
		{"inline", "src", Allow, "data:image/png;truncated", true},
	}
	for _, tt := range tests {
		t.Run(tt.id+"/"+tt.name+"/"+tt.level.String(), func(t *testing.T) {
			got, ok := AttributeValue(doc.GetElementByID(tt.id), tt.level, tt.name, opts)
			if got != tt.want || ok != tt.ok {
				t.Errorf("AttributeValue = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestInputValue(t *testing.T) {
	doc := parse(t, `<body>
		<input id="text" value="secret">
		<input id="empty">
		<input id="submit" type="submit" value="Send">
		<select id="sel"><option id="opt" value="v">V</option></select>
		<div id="div"></div>
	</body>`)
	el := doc.GetElementByID

	tests := []struct {
		name  string
		node  *dom.Node
		level Level
		want  string
		ok    bool
	}{
		{"allow input", el("text"), Allow, "secret", true},
		{"masked input", el("text"), Mask, CensoredString, true},
		{"user input level masks", el("text"), MaskUserInput, CensoredString, true},
		{"masked empty input", el("empty"), Mask, "", false},
		{"masked button keeps label", el("submit"), Mask, "Send", true},
		{"masked option dropped", el("opt"), Mask, "", false},
		{"select value", el("sel"), Allow, "v", true},
		{"non form element", el("div"), Allow, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := InputValue(tt.node, tt.level, Options{})
			if got != tt.want || ok != tt.ok {
				t.Errorf("InputValue = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for l := Allow; l <= Ignore; l++ {
		got, err := ParseLevel(" " + strings.ToUpper(l.String()) + " ")
		if err != nil || got != l {
			t.Errorf("ParseLevel(%q) = %v, %v", l.String(), got, err)
		}
	}
	if _, err := ParseLevel("secret"); err == nil {
		t.Error("expected error for unknown level")
	}
}
