package serialize

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/hazyhaar/domreplay/dom"
	"github.com/hazyhaar/domreplay/internal/privacy"
	"github.com/hazyhaar/domreplay/internal/scope"
	"github.com/hazyhaar/domreplay/record"
)

func parse(t *testing.T, src string) *dom.Document {
	t.Helper()
	doc, err := dom.Parse(&dom.Queue{}, src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

// capture runs fn in a transaction and returns what it emitted.
func capture(t *testing.T, s *scope.Scope, fn func(*Transaction)) ([]record.Record, record.Stats) {
	t.Helper()
	var recs []record.Record
	var stats record.Stats
	emit := func(_ record.Kind, r []record.Record, st record.Stats) {
		recs = append(recs, r...)
		stats = st
	}
	err := Run(s, record.KindInitialFullSnapshot, emit, func(tx *Transaction) error {
		fn(tx)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return recs, stats
}

func findRecord(t *testing.T, recs []record.Record, typ record.Type) record.Record {
	t.Helper()
	for _, r := range recs {
		if r.Type == typ {
			return r
		}
	}
	t.Fatalf("no %v record in %d records", typ, len(recs))
	return record.Record{}
}

func TestCursor_InsertionPoints(t *testing.T) {
	doc := parse(t, `<body><p>a</p><p><b>x</b></p></body>`)
	s := scope.New(scope.Config{})
	c := NewRootCursor(s)

	id, pt := c.Advance(doc.Node())
	if id != 0 || pt != nil {
		t.Fatalf("root = (%d, %v), want (0, nil)", id, pt)
	}
	c = c.Descend()
	html := doc.DocumentElement()
	if id, pt = c.Advance(html); id != 1 || *pt != 1 {
		t.Errorf("html = (%d, %d), want (1, 1)", id, *pt)
	}
	c = c.Descend()
	if id, pt = c.Advance(html.FirstChild()); id != 2 || *pt != 1 {
		t.Errorf("head = (%d, %d), want (2, 1)", id, *pt)
	}
	if id, pt = c.Advance(html.LastChild()); id != 3 || *pt != 0 {
		t.Errorf("body = (%d, %d), want (3, 0)", id, *pt)
	}
	if c.Ascend() == nil {
		t.Fatal("Ascend lost the parent cursor")
	}

	body := doc.Body()
	p1, p2 := body.FirstChild(), body.LastChild()
	bc := NewChildCursor(s, 3, nil)
	bc.Advance(p2) // 4
	inner := bc.Descend()
	if id, pt = inner.Advance(p2.FirstChild()); id != 5 || *pt != 1 {
		t.Errorf("b = (%d, %d), want (5, 1)", id, *pt)
	}

	next := 4
	before := NewChildCursor(s, 3, &next)
	if id, pt = before.Advance(p1); id != 6 || *pt != -2 {
		t.Errorf("p before known sibling = (%d, %d), want (6, -2)", id, *pt)
	}
	if id, pt = bc.Advance(body.FirstChild().FirstChild()); id != 7 || *pt != 4 {
		t.Errorf("append after subtree = (%d, %d), want (7, 4)", id, *pt)
	}
}

func TestRun_EmitsOnlyCompletedNonEmptyTransactions(t *testing.T) {
	s := scope.New(scope.Config{})
	calls := 0
	emit := func(record.Kind, []record.Record, record.Stats) { calls++ }

	if err := Run(s, record.KindIncremental, emit, func(*Transaction) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("empty transaction emitted")
	}

	boom := errors.New("boom")
	err := Run(s, record.KindIncremental, emit, func(tx *Transaction) error {
		tx.Add(&record.Record{Type: record.TypeFocus, Data: &record.Focus{}})
		return boom
	})
	if !errors.Is(err, boom) || calls != 0 {
		t.Errorf("failed transaction: err=%v calls=%d", err, calls)
	}

	err = Run(s, record.KindIncremental, emit, func(tx *Transaction) error {
		tx.Add(&record.Record{Type: record.TypeFocus, Data: &record.Focus{}})
		panic("walk failed")
	})
	if !errors.Is(err, ErrTransactionAborted) || calls != 0 {
		t.Errorf("panicking transaction: err=%v calls=%d", err, calls)
	}
}

func TestRun_RecordIDsAndStats(t *testing.T) {
	s := scope.New(scope.Config{})
	var got [][]record.Record
	var stats []record.Stats
	emit := func(_ record.Kind, r []record.Record, st record.Stats) {
		got = append(got, r)
		stats = append(stats, st)
	}
	for i := 0; i < 2; i++ {
		err := Run(s, record.KindIncremental, emit, func(tx *Transaction) error {
			tx.Add(&record.Record{Type: record.TypeFocus, Data: &record.Focus{}})
			tx.Add(&record.Record{Type: record.TypeFocus, Data: &record.Focus{}})
			tx.AddMetric(MetricCSSText, 10)
			tx.AddMetric(MetricCSSText, 4)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if len(got) != 2 {
		t.Fatalf("emits = %d, want 2", len(got))
	}
	if got[0][0].ID != 0 || got[0][1].ID != 1 || got[1][0].ID != 2 {
		t.Errorf("record ids = %d %d %d, want 0 1 2", got[0][0].ID, got[0][1].ID, got[1][0].ID)
	}
	if m := stats[0][MetricCSSText]; m != (record.Metric{Count: 2, Max: 10, Sum: 14}) {
		t.Errorf("cssText = %+v", m)
	}
	if m := stats[0][MetricSerializationDuration]; m.Count != 1 {
		t.Errorf("serializationDuration count = %d, want 1", m.Count)
	}
}

const richDocument = `<!DOCTYPE html>
<html><head> <title>Shop</title> <style>a{color:red}b{margin:0}</style> <script>track()</script></head>
<body>
	<h1 title="Welcome">Hello <em>World</em></h1>
	<!-- comment -->
	<div id="hidden" data-replay-privacy="hidden"><p>secret</p></div>
	<div id="masked" data-replay-privacy="mask"><a href="/cart" data-testid="cart">Cart</a></div>
	<form>
		<input id="name" value="Ada">
		<input id="pw" type="password" value="hunter2">
		<input id="agree" type="checkbox">
		<input type="submit" value="Buy">
		<select id="size"><option value="s">S</option><option id="m" value="m">M</option></select>
		<textarea id="note">note</textarea>
	</form>
	<div id="scroller" style="overflow:auto"><p>long</p></div>
	<video id="clip" src="a.mp4"></video>
	<my-widget9>custom</my-widget9>
	<svg><circle r="1"></circle></svg>
	<div id="host"><template shadowrootmode="open"><span>in shadow</span><div id="inner-host"><template shadowrootmode="open"><i>deep</i></template></div></template><b>light</b></div>
</body></html>`

func richSetup(t *testing.T) *dom.Document {
	doc := parse(t, richDocument)
	doc.SetScroll(0, 120)
	doc.GetElementByID("hidden").SetRect(100, 50.5)
	doc.GetElementByID("agree").SetChecked(true)
	doc.GetElementByID("m").SetSelected(true)
	doc.GetElementByID("scroller").SetScroll(3, 40)
	doc.GetElementByID("clip").SetPaused(false)

	shared := dom.NewStyleSheet("p{color:blue}")
	other := dom.NewStyleSheet("i{font-style:normal}")
	other.Media = []string{"screen"}
	if err := doc.Node().SetAdoptedStyleSheets([]*dom.StyleSheet{shared}); err != nil {
		t.Fatal(err)
	}
	root := doc.GetElementByID("host").ShadowRoot()
	if err := root.SetAdoptedStyleSheets([]*dom.StyleSheet{shared, other}); err != nil {
		t.Fatal(err)
	}
	return doc
}

// Replaying the change encoding of a document must give, byte for byte,
// the nested snapshot of the same document.
func TestFullSnapshot_ChangeEncodingEquivalence(t *testing.T) {
	levels := []privacy.Level{privacy.Allow, privacy.MaskUserInput, privacy.MaskUnlessAllowlisted, privacy.Mask, privacy.Hidden}
	for _, level := range levels {
		t.Run(level.String(), func(t *testing.T) {
			doc := richSetup(t)
			cfg := scope.Config{DefaultPrivacyLevel: level, AllowlistedTexts: []string{"Cart"}}

			nested, _ := capture(t, scope.New(cfg), func(tx *Transaction) { SerializeFullSnapshot(tx, doc) })
			want := findRecord(t, nested, record.TypeFullSnapshot).Data.(*record.FullSnapshot)

			cfg.ChangeRecords = true
			flat, _ := capture(t, scope.New(cfg), func(tx *Transaction) { SerializeFullSnapshot(tx, doc) })
			changes := findRecord(t, flat, record.TypeChange).Data.(record.Changes)

			r := record.NewRebuilder()
			if err := r.Apply(changes); err != nil {
				t.Fatalf("Apply: %v", err)
			}
			wantJSON, err := json.Marshal(want)
			if err != nil {
				t.Fatal(err)
			}
			gotJSON, err := json.Marshal(r.Snapshot())
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(wantJSON, gotJSON) {
				t.Errorf("rebuilt snapshot differs (-nested +rebuilt):\n%s", cmp.Diff(string(wantJSON), string(gotJSON)))
			}
		})
	}
}

func TestFullSnapshot_Records(t *testing.T) {
	doc := richSetup(t)
	doc.URL = "https://shop.test/"
	doc.Width, doc.Height = 1280, 720
	doc.Viewport = dom.VisualViewport{Scale: 1, Width: 1280, Height: 720}

	recs, stats := capture(t, scope.New(scope.Config{DefaultPrivacyLevel: privacy.Allow}), func(tx *Transaction) {
		SerializeFullSnapshot(tx, doc)
	})
	var types []record.Type
	for _, r := range recs {
		types = append(types, r.Type)
	}
	want := []record.Type{record.TypeMeta, record.TypeFocus, record.TypeFullSnapshot, record.TypeVisualViewport}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Fatalf("record types (-want +got):\n%s", diff)
	}
	if m := recs[0].Data.(*record.Meta); *m != (record.Meta{Href: "https://shop.test/", Width: 1280, Height: 720}) {
		t.Errorf("meta = %+v", m)
	}
	fs := recs[2].Data.(*record.FullSnapshot)
	if fs.InitialOffset != (record.Offset{Left: 0, Top: 120}) {
		t.Errorf("initial offset = %+v", fs.InitialOffset)
	}
	if m := stats[MetricCSSText]; m.Count != 1 || m.Sum != len("a{color:red}b{margin:0}") {
		t.Errorf("cssText metric = %+v", m)
	}
}

// elementsByTag indexes the serialized elements of a snapshot by tag name,
// in document order.
func elementsByTag(n *record.SerializedNode) map[string][]*record.SerializedNode {
	out := map[string][]*record.SerializedNode{}
	n.Walk(func(c *record.SerializedNode) {
		if c.Type == record.NodeElement {
			out[c.TagName] = append(out[c.TagName], c)
		}
	})
	return out
}

func snapshotOf(t *testing.T, doc *dom.Document, level privacy.Level) *record.SerializedNode {
	t.Helper()
	recs, _ := capture(t, scope.New(scope.Config{DefaultPrivacyLevel: level}), func(tx *Transaction) {
		SerializeFullSnapshot(tx, doc)
	})
	return findRecord(t, recs, record.TypeFullSnapshot).Data.(*record.FullSnapshot).Node
}

func TestFullSnapshot_ElementSerialization(t *testing.T) {
	doc := richSetup(t)
	root := snapshotOf(t, doc, privacy.Allow)
	tags := elementsByTag(root)

	if len(tags["script"]) != 0 {
		t.Error("script element recorded")
	}
	if root.ChildNodes[0].Type != record.NodeDocumentType || root.ChildNodes[0].Name != "html" {
		t.Errorf("first child = %+v, want doctype", root.ChildNodes[0])
	}

	head := tags["head"][0]
	for _, c := range head.ChildNodes {
		if c.Type == record.NodeText {
			t.Errorf("whitespace text recorded under head: %q", c.TextContent)
		}
	}

	style := tags["style"][0]
	if style.Attributes["_cssText"] != "a{color:red}b{margin:0}" || len(style.ChildNodes) != 0 {
		t.Errorf("style = %+v", style)
	}

	var hidden *record.SerializedNode
	for _, d := range tags["div"] {
		if d.Attributes[privacy.Attribute] == "hidden" {
			hidden = d
		}
	}
	if hidden == nil {
		t.Fatal("hidden placeholder missing")
	}
	wantHidden := map[string]any{"rr_width": "100px", "rr_height": "50.5px", privacy.Attribute: "hidden"}
	if diff := cmp.Diff(wantHidden, hidden.Attributes); diff != "" || hidden.ChildNodes != nil {
		t.Errorf("hidden placeholder (-want +got):\n%s children=%d", diff, len(hidden.ChildNodes))
	}

	inputs := tags["input"]
	if inputs[0].Attributes["value"] != "Ada" {
		t.Errorf("allowed input value = %v", inputs[0].Attributes["value"])
	}
	if inputs[1].Attributes["value"] != privacy.CensoredString {
		t.Errorf("password value = %v", inputs[1].Attributes["value"])
	}
	if inputs[2].Attributes["checked"] != true {
		t.Errorf("checkbox checked = %v", inputs[2].Attributes["checked"])
	}
	if tags["option"][1].Attributes["selected"] != true {
		t.Errorf("selected option = %v", tags["option"][1].Attributes)
	}

	var scroller *record.SerializedNode
	for _, d := range tags["div"] {
		if d.Attributes["id"] == "scroller" {
			scroller = d
		}
	}
	if scroller.Attributes["rr_scrollLeft"] != 3 || scroller.Attributes["rr_scrollTop"] != 40 {
		t.Errorf("scroller = %+v", scroller.Attributes)
	}
	if tags["video"][0].Attributes["rr_mediaState"] != "played" {
		t.Errorf("video = %+v", tags["video"][0].Attributes)
	}
	if len(tags["my-widget9"]) != 0 {
		t.Error("invalid tag name kept")
	}
	if c := tags["circle"]; len(c) != 1 || !c[0].IsSVG {
		t.Errorf("svg circle = %+v", c)
	}

	host := tags["div"][len(tags["div"])-2]
	if host.Attributes["id"] != "host" {
		t.Fatalf("unexpected div order, got %v", host.Attributes)
	}
	last := host.ChildNodes[len(host.ChildNodes)-1]
	if !last.IsShadowRoot || len(last.AdoptedStyleSheets) != 2 {
		t.Errorf("host last child = %+v, want shadow root with two sheets", last)
	}
	if len(root.AdoptedStyleSheets) != 1 {
		t.Errorf("document adopted sheets = %d", len(root.AdoptedStyleSheets))
	}
}

func TestFullSnapshot_MaskedContent(t *testing.T) {
	doc := richSetup(t)
	tags := elementsByTag(snapshotOf(t, doc, privacy.Mask))

	h1 := tags["h1"][0]
	if h1.Attributes["title"] != privacy.CensoredString {
		t.Errorf("title = %v", h1.Attributes["title"])
	}
	if got := h1.ChildNodes[0].TextContent; got != "xxxxx " {
		t.Errorf("masked text = %q", got)
	}
	if _, ok := tags["input"][2].Attributes["checked"]; ok {
		t.Error("checked recorded under mask")
	}
	if _, ok := tags["option"][1].Attributes["selected"]; ok {
		t.Error("selected recorded under mask")
	}
	a := tags["a"][0]
	if a.Attributes["href"] != privacy.CensoredString || a.Attributes["data-testid"] != "cart" {
		t.Errorf("link = %+v", a.Attributes)
	}
	if v := tags["input"][3].Attributes["value"]; v != "Buy" {
		t.Errorf("submit label = %v", v)
	}
}

func TestFullSnapshot_IdsFollowWalkOrder(t *testing.T) {
	doc := richSetup(t)
	var shadowRoots []*dom.Node
	s := scope.New(scope.Config{}, scope.WithShadowRootCallbacks(scope.ShadowRootCallbacks{
		Add: func(r *dom.Node) { shadowRoots = append(shadowRoots, r) },
	}))
	recs, _ := capture(t, s, func(tx *Transaction) { SerializeFullSnapshot(tx, doc) })
	root := findRecord(t, recs, record.TypeFullSnapshot).Data.(*record.FullSnapshot).Node

	expect := 0
	root.Walk(func(n *record.SerializedNode) {
		if n.ID != expect {
			t.Fatalf("node %s has id %d, want %d", record.Label(n), n.ID, expect)
		}
		expect++
	})
	if s.Nodes.Next() != expect {
		t.Errorf("registry next = %d, want %d", s.Nodes.Next(), expect)
	}
	if len(shadowRoots) != 2 {
		t.Errorf("shadow roots discovered = %d, want 2", len(shadowRoots))
	}
}

func TestNodeAsChange_MovesKnownDescendants(t *testing.T) {
	doc := parse(t, `<body><p id="old">keep</p></body>`)
	cfg := scope.Config{DefaultPrivacyLevel: privacy.Allow, ChangeRecords: true}
	s := scope.New(cfg)
	r := record.NewRebuilder()

	recs, _ := capture(t, s, func(tx *Transaction) { SerializeFullSnapshot(tx, doc) })
	if err := r.Apply(findRecord(t, recs, record.TypeChange).Data.(record.Changes)); err != nil {
		t.Fatal(err)
	}

	// Wrap the known paragraph in a new section.
	body := doc.Body()
	old := doc.GetElementByID("old")
	section := doc.CreateElement("section")
	section.AppendChild(doc.CreateTextNode("before"))
	section.AppendChild(old)
	body.AppendChild(section)

	var changes record.Changes
	_, _ = capture(t, s, func(tx *Transaction) {
		bodyID, _ := s.Nodes.Get(body)
		p := NewPass(tx)
		p.NodeAsChange(NewChildCursor(s, bodyID, nil), section, privacy.Allow, &changes)
		if !p.Placed(old) || !p.Seen(section) {
			t.Error("pass did not track the moved and added nodes")
		}
		tx.Add(&record.Record{Type: record.TypeChange, Data: changes})
	})
	if err := r.Apply(changes); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	oldID, _ := s.Nodes.Get(old)
	sectionID, _ := s.Nodes.Get(section)
	got, ok := r.Node(sectionID)
	if !ok {
		t.Fatal("section not rebuilt")
	}
	if len(got.ChildNodes) != 2 || got.ChildNodes[0].TextContent != "before" || got.ChildNodes[1].ID != oldID {
		t.Errorf("section children = %+v", got.ChildNodes)
	}
}

// Stored sessions are decoded back into the payloads that were emitted.
func TestRecords_DecodeFromJSON(t *testing.T) {
	for _, change := range []bool{false, true} {
		doc := richSetup(t)
		cfg := scope.Config{DefaultPrivacyLevel: privacy.Allow, ChangeRecords: change}
		recs, _ := capture(t, scope.New(cfg), func(tx *Transaction) { SerializeFullSnapshot(tx, doc) })

		b := &record.Batch{ID: "b1", Kind: record.KindInitialFullSnapshot}
		for _, r := range recs {
			data, err := record.MarshalRecord(&r)
			if err != nil {
				t.Fatal(err)
			}
			var back record.Record
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatal(err)
			}
			b.Records = append(b.Records, back)
		}
		if err := record.NewDecoder().DecodeBatch(b); err != nil {
			t.Fatalf("change=%v: DecodeBatch: %v", change, err)
		}
		if diff := cmp.Diff(recs, b.Records, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("change=%v: decoded records differ (-emitted +decoded):\n%s", change, diff)
		}
	}
}
