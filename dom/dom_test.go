package dom

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustParse(t *testing.T, q *Queue, src string) *Document {
	t.Helper()
	doc, err := Parse(q, src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func TestParse_BuildsTree(t *testing.T) {
	doc := mustParse(t, &Queue{}, `<!DOCTYPE html><html><head><title>t</title></head><body><p id="a" class="x y">hi<!-- c --></p><svg><linearGradient/></svg></body></html>`)

	first := doc.Node().FirstChild()
	if first.Type() != DoctypeNode || first.DoctypeName() != "html" {
		t.Fatalf("first child = %v %q, want doctype html", first.Type(), first.NodeName())
	}
	p := doc.GetElementByID("a")
	if p == nil {
		t.Fatal("p#a not found")
	}
	if p.TagName() != "P" || !p.HasClass("y") {
		t.Errorf("p: tag=%q class y=%v", p.TagName(), p.HasClass("y"))
	}
	if p.TextContent() != "hi" {
		t.Errorf("TextContent = %q, want hi", p.TextContent())
	}
	if c := p.LastChild(); c.Type() != CommentNode {
		t.Errorf("last child type = %v, want comment", c.Type())
	}
	svg := p.NextSibling()
	if svg.Namespace() != NamespaceSVG || svg.TagName() != "svg" {
		t.Errorf("svg: ns=%v tag=%q", svg.Namespace(), svg.TagName())
	}
	if g := svg.FirstChild(); g.TagName() != "linearGradient" {
		t.Errorf("foreign tag = %q, want linearGradient", g.TagName())
	}
}

func TestParse_DeclarativeShadowRoot(t *testing.T) {
	doc := mustParse(t, &Queue{}, `<body><div id="host"><template shadowrootmode="open"><span>inside</span></template><b>light</b></div></body>`)

	host := doc.GetElementByID("host")
	root := host.ShadowRoot()
	if root == nil {
		t.Fatal("no shadow root attached")
	}
	if !root.IsShadowRoot() || root.Host() != host {
		t.Fatal("shadow root not linked to host")
	}
	if got := len(host.ChildNodes()); got != 1 {
		t.Errorf("host light children = %d, want 1", got)
	}
	if root.FirstChild().TagName() != "SPAN" {
		t.Errorf("shadow child = %q", root.FirstChild().TagName())
	}
	if !root.FirstChild().IsConnected() {
		t.Error("shadow content should be connected")
	}
}

func TestObserver_DeliversOnScheduler(t *testing.T) {
	q := &Queue{}
	doc := mustParse(t, q, `<body><div id="a"></div></body>`)
	a := doc.GetElementByID("a")

	var got []MutationRecord
	o := NewObserver(doc, func(recs []MutationRecord, _ *Observer) { got = append(got, recs...) })
	o.Observe(doc.Node())

	span := doc.CreateElement("span")
	if err := a.AppendChild(span); err != nil {
		t.Fatal(err)
	}
	if err := span.SetAttribute("title", "x"); err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatal("records delivered synchronously")
	}

	q.RunPending()
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].Type != ChildList || got[0].Target != a || got[0].AddedNodes[0] != span {
		t.Errorf("record 0 = %+v", got[0])
	}
	if got[1].Type != Attributes || got[1].AttributeName != "title" || got[1].OldValue != nil {
		t.Errorf("record 1 = %+v", got[1])
	}
}

func TestObserver_OldValues(t *testing.T) {
	q := &Queue{}
	doc := mustParse(t, q, `<body><p id="p" title="one">text</p></body>`)
	p := doc.GetElementByID("p")

	var got []MutationRecord
	o := NewObserver(doc, func(recs []MutationRecord, _ *Observer) { got = append(got, recs...) })
	o.Observe(doc.Node())

	p.SetAttribute("title", "two")
	p.FirstChild().SetData("changed")
	p.RemoveAttribute("title")
	q.RunPending()

	want := []string{"one", "text", "two"}
	var olds []string
	for _, r := range got {
		olds = append(olds, *r.OldValue)
	}
	if diff := cmp.Diff(want, olds); diff != "" {
		t.Errorf("old values mismatch (-want +got):\n%s", diff)
	}
}

func TestObserver_StopsAtShadowBoundary(t *testing.T) {
	q := &Queue{}
	doc := mustParse(t, q, `<body><div id="host"><template shadowrootmode="open"><i></i></template></div></body>`)
	host := doc.GetElementByID("host")

	calls := 0
	o := NewObserver(doc, func(recs []MutationRecord, _ *Observer) { calls += len(recs) })
	o.Observe(doc.Node())

	host.ShadowRoot().FirstChild().SetAttribute("id", "x")
	q.RunPending()
	if calls != 0 {
		t.Fatalf("document observer saw %d shadow records", calls)
	}

	o.Observe(host.ShadowRoot())
	host.ShadowRoot().FirstChild().SetAttribute("id", "y")
	q.RunPending()
	if calls != 1 {
		t.Fatalf("shadow observer saw %d records, want 1", calls)
	}
}

func TestObserver_Unobserve(t *testing.T) {
	q := &Queue{}
	doc := mustParse(t, q, `<body><div id="host"><template shadowrootmode="open"><i></i></template></div></body>`)
	root := doc.GetElementByID("host").ShadowRoot()

	calls := 0
	o := NewObserver(doc, func(recs []MutationRecord, _ *Observer) { calls += len(recs) })
	o.Observe(doc.Node())
	o.Observe(root)
	if !o.Observing(root) {
		t.Fatal("shadow root not observed")
	}

	o.Unobserve(root)
	root.FirstChild().SetAttribute("id", "x")
	doc.Body().SetAttribute("class", "y")
	q.RunPending()
	if calls != 1 || o.Observing(root) {
		t.Fatalf("calls = %d observing = %v, want 1 false", calls, o.Observing(root))
	}
}

func TestObserver_AttachShadowQueuesRecordOnHost(t *testing.T) {
	q := &Queue{}
	doc := mustParse(t, q, `<body><div id="host"></div></body>`)
	host := doc.GetElementByID("host")

	var got []MutationRecord
	o := NewObserver(doc, func(recs []MutationRecord, _ *Observer) { got = append(got, recs...) })
	o.Observe(doc.Node())

	root, err := host.AttachShadow()
	if err != nil {
		t.Fatal(err)
	}
	q.RunPending()
	if len(got) != 1 || got[0].Target != host || got[0].AddedNodes[0] != root {
		t.Fatalf("records = %+v", got)
	}
	if _, err := host.AttachShadow(); err == nil {
		t.Error("second AttachShadow should fail")
	}
}

func TestObserver_TakeRecordsAndDisconnect(t *testing.T) {
	q := &Queue{}
	doc := mustParse(t, q, `<body></body>`)
	calls := 0
	o := NewObserver(doc, func(recs []MutationRecord, _ *Observer) { calls++ })
	o.Observe(doc.Node())

	doc.Body().AppendChild(doc.CreateElement("a"))
	if recs := o.TakeRecords(); len(recs) != 1 {
		t.Fatalf("TakeRecords = %d, want 1", len(recs))
	}
	q.RunPending()
	if calls != 0 {
		t.Error("taken records were delivered again")
	}

	doc.Body().AppendChild(doc.CreateElement("b"))
	o.Disconnect()
	q.RunPending()
	if calls != 0 {
		t.Error("disconnected observer was called")
	}
}

func TestObserver_RemovedNodeObservedUntilDelivery(t *testing.T) {
	q := &Queue{}
	doc := mustParse(t, q, `<body><div id="a"><i id="i"></i></div></body>`)
	a, i := doc.GetElementByID("a"), doc.GetElementByID("i")

	var got []MutationRecord
	o := NewObserver(doc, func(recs []MutationRecord, _ *Observer) { got = append(got, recs...) })
	o.Observe(doc.Node())

	a.Remove()
	i.SetAttribute("title", "detached")
	q.RunPending()
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[1].Type != Attributes || got[1].Target != i {
		t.Errorf("record 1 = %+v", got[1])
	}

	got = nil
	i.SetAttribute("title", "later")
	q.RunPending()
	if len(got) != 0 {
		t.Errorf("detached node still observed after delivery: %+v", got)
	}
}

func TestInsertBefore_MoveQueuesRemovalThenAddition(t *testing.T) {
	q := &Queue{}
	doc := mustParse(t, q, `<body><div id="a"><i id="i"></i></div><div id="b"><u id="u"></u></div></body>`)
	a, b := doc.GetElementByID("a"), doc.GetElementByID("b")
	i, u := doc.GetElementByID("i"), doc.GetElementByID("u")

	var got []MutationRecord
	o := NewObserver(doc, func(recs []MutationRecord, _ *Observer) { got = append(got, recs...) })
	o.Observe(doc.Node())

	if err := b.InsertBefore(i, u); err != nil {
		t.Fatal(err)
	}
	q.RunPending()

	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].Target != a || got[0].RemovedNodes[0] != i {
		t.Errorf("first record should remove from a: %+v", got[0])
	}
	if got[1].Target != b || got[1].AddedNodes[0] != i || got[1].NextSibling != u {
		t.Errorf("second record should add to b before u: %+v", got[1])
	}
	if b.FirstChild() != i || i.NextSibling() != u {
		t.Error("tree order wrong after move")
	}
	if err := i.AppendChild(b); err == nil {
		t.Error("inserting an ancestor should fail")
	}
}

func TestComparePosition(t *testing.T) {
	doc := mustParse(t, &Queue{}, `<body><div id="host"><p id="p"></p><template shadowrootmode="open"><s id="s"></s></template></div><b id="b"></b></body>`)
	host := doc.GetElementByID("host")
	p, b := doc.GetElementByID("p"), doc.GetElementByID("b")
	s := host.ShadowRoot().FirstChild()

	tests := []struct {
		name string
		a, o *Node
		want Position
	}{
		{"following sibling", host, b, PositionFollowing},
		{"preceding", b, p, PositionPreceding},
		{"descendant", host, p, PositionContainedBy | PositionFollowing},
		{"ancestor", p, host, PositionContains | PositionPreceding},
		{"shadow after light", p, s, PositionFollowing},
		{"detached", p, doc.CreateElement("x"), PositionDisconnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.ComparePosition(tt.o); got != tt.want {
				t.Errorf("ComparePosition = %b, want %b", got, tt.want)
			}
		})
	}
}

func TestSplitRules(t *testing.T) {
	got := SplitRules(`
		/* comment */
		@import url("a.css");
		body   { color : red }
		@media (max-width: 10px) { p { margin: 0 } }
		.x{}`)
	want := []string{
		`@import url("a.css");`,
		`body { color : red }`,
		`@media (max-width: 10px) { p { margin: 0 } }`,
		`.x{}`,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SplitRules mismatch (-want +got):\n%s", diff)
	}
}

func TestStyleSheet_FromStyleElement(t *testing.T) {
	doc := mustParse(t, &Queue{}, `<head><style media="screen, print">a{b:c}</style></head>`)
	style := doc.DocumentElement().FirstChild().FirstChild()
	sheet := style.Sheet()
	if sheet == nil {
		t.Fatal("no sheet")
	}
	if sheet.CSSText() != "a{b:c}" {
		t.Errorf("CSSText = %q", sheet.CSSText())
	}
	if diff := cmp.Diff([]string{"screen", "print"}, sheet.Media); diff != "" {
		t.Errorf("media (-want +got):\n%s", diff)
	}
	if doc.DocumentElement().Sheet() != nil {
		t.Error("non-style element returned a sheet")
	}
}

func TestFormState(t *testing.T) {
	doc := mustParse(t, &Queue{}, `<body>
		<input id="i" value="attr">
		<textarea id="t">area</textarea>
		<select id="s"><option value="1">one</option><option selected>  two  </option></select>
		<input id="c" type="checkbox" checked>
	</body>`)

	in := doc.GetElementByID("i")
	if in.Value() != "attr" {
		t.Errorf("input value = %q", in.Value())
	}
	in.SetValue("typed")
	if in.Value() != "typed" || in.AttrOr("value") != "attr" {
		t.Error("SetValue should not touch the attribute")
	}
	if v := doc.GetElementByID("t").Value(); v != "area" {
		t.Errorf("textarea value = %q", v)
	}
	if v := doc.GetElementByID("s").Value(); v != "two" {
		t.Errorf("select value = %q, want two", v)
	}
	c := doc.GetElementByID("c")
	if !c.Checked() {
		t.Error("checkbox should start checked")
	}
	c.SetChecked(false)
	if c.Checked() {
		t.Error("SetChecked(false) ignored")
	}
}

func TestQueue_RunsNestedTasks(t *testing.T) {
	q := &Queue{}
	var order []int
	q.Schedule(func() {
		order = append(order, 1)
		q.Schedule(func() { order = append(order, 3) })
	})
	q.Schedule(func() { order = append(order, 2) })
	if n := q.RunPending(); n != 3 {
		t.Fatalf("RunPending = %d, want 3", n)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, order); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}
