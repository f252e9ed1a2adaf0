package record

import (
	"encoding/json"
)

// ChangeKind tags a group of change operations.
type ChangeKind int

const (
	ChangeAddNode             ChangeKind = 1
	ChangeRemoveNode          ChangeKind = 2
	ChangeAttribute           ChangeKind = 3
	ChangeText                ChangeKind = 4
	ChangeScrollPosition      ChangeKind = 6
	ChangeAddStyleSheet       ChangeKind = 7
	ChangeAttachedStyleSheets ChangeKind = 8
	ChangeMediaPlaybackState  ChangeKind = 9
	ChangeMoveNode            ChangeKind = 11
)

// Op is a single change operation.
type Op interface {
	Kind() ChangeKind
	fields() []any
}

// Group is a run of consecutive operations of one kind. It encodes as
// [kind, [op...], [op...], ...].
type Group struct {
	Kind ChangeKind
	Ops  []Op
}

func (g Group) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, len(g.Ops)+1)
	out = append(out, g.Kind)
	for _, op := range g.Ops {
		out = append(out, op.fields())
	}
	return json.Marshal(out)
}

// Changes is the payload of a Change record. Order is significant: node
// ids and stylesheet ids are implied by the order of AddNode and
// AddStyleSheet operations, and string references by the order in which
// literals first appear.
type Changes []Group

// Add appends op, extending the last group when it has the same kind.
func (c *Changes) Add(op Op) {
	if n := len(*c); n > 0 && (*c)[n-1].Kind == op.Kind() {
		(*c)[n-1].Ops = append((*c)[n-1].Ops, op)
		return
	}
	*c = append(*c, Group{Kind: op.Kind(), Ops: []Op{op}})
}

// Append adds every operation of other, in order.
func (c *Changes) Append(other Changes) {
	for _, g := range other {
		for _, op := range g.Ops {
			c.Add(op)
		}
	}
}

// Len returns the number of operations.
func (c Changes) Len() int {
	n := 0
	for _, g := range c {
		n += len(g.Ops)
	}
	return n
}

// StringRef is either a string literal, which the consumer appends to its
// string table, or an index into that table.
type StringRef struct {
	Index   int
	Value   string
	Literal bool
}

// Literal returns a reference introducing s.
func Literal(s string) StringRef { return StringRef{Value: s, Literal: true} }

// Ref returns a reference to table entry i.
func Ref(i int) StringRef { return StringRef{Index: i} }

func (s StringRef) MarshalJSON() ([]byte, error) {
	if s.Literal {
		return json.Marshal(s.Value)
	}
	return json.Marshal(s.Index)
}

// Attr is an attribute carried by AddNode. Value is a string, bool or int.
type Attr struct {
	Name  StringRef
	Value any
}

// AddNode creates the next node id at Point.
//
// Point is nil for the root, 0 to insert right after node id-1, negative
// to insert before node id+Point, positive to append to node id-Point.
type AddNode struct {
	Point *int
	Type  NodeType
	Label StringRef

	Attrs []Attr // elements
	Text  string // text and CDATA

	Name     string // doctype
	PublicID string
	SystemID string
}

func (AddNode) Kind() ChangeKind { return ChangeAddNode }

func (o AddNode) fields() []any {
	out := []any{o.Point, o.Label}
	switch o.Type {
	case NodeElement:
		for _, a := range o.Attrs {
			out = append(out, a.Name, a.Value)
		}
	case NodeText, NodeCDATA:
		out = append(out, o.Text)
	case NodeDocumentType:
		out = append(out, o.Name, o.PublicID, o.SystemID)
	}
	return out
}

// RemoveNode detaches node ID and its subtree.
type RemoveNode struct {
	ID int
}

func (RemoveNode) Kind() ChangeKind { return ChangeRemoveNode }
func (o RemoveNode) fields() []any  { return []any{o.ID} }

// MoveNode moves the already known node ID under ParentID, before NextID or
// last when NextID is nil.
type MoveNode struct {
	ID       int
	ParentID int
	NextID   *int
}

func (MoveNode) Kind() ChangeKind { return ChangeMoveNode }
func (o MoveNode) fields() []any  { return []any{o.ID, o.ParentID, o.NextID} }

// AttrUpdate sets an attribute; a nil Value removes it.
type AttrUpdate struct {
	Name  StringRef
	Value *string
}

// Attribute updates attributes of node ID.
type Attribute struct {
	ID    int
	Attrs []AttrUpdate
}

func (Attribute) Kind() ChangeKind { return ChangeAttribute }

func (o Attribute) fields() []any {
	out := []any{o.ID}
	for _, a := range o.Attrs {
		out = append(out, a.Name, a.Value)
	}
	return out
}

// Text replaces the text of node ID.
type Text struct {
	ID    int
	Value string
}

func (Text) Kind() ChangeKind { return ChangeText }
func (o Text) fields() []any  { return []any{o.ID, o.Value} }

// ScrollPosition records the scroll offsets of node ID.
type ScrollPosition struct {
	ID   int
	Left int
	Top  int
}

func (ScrollPosition) Kind() ChangeKind { return ChangeScrollPosition }
func (o ScrollPosition) fields() []any  { return []any{o.ID, o.Left, o.Top} }

// AddStyleSheet defines the next stylesheet id.
type AddStyleSheet struct {
	Rules    []string
	Media    []string
	Disabled bool
}

func (AddStyleSheet) Kind() ChangeKind { return ChangeAddStyleSheet }

func (o AddStyleSheet) fields() []any {
	rules := o.Rules
	if rules == nil {
		rules = []string{}
	}
	out := []any{rules}
	if len(o.Media) > 0 || o.Disabled {
		out = append(out, o.Media)
	}
	if o.Disabled {
		out = append(out, true)
	}
	return out
}

// AttachedStyleSheets sets the adopted stylesheets of node ID.
type AttachedStyleSheets struct {
	ID     int
	Sheets []int
}

func (AttachedStyleSheets) Kind() ChangeKind { return ChangeAttachedStyleSheets }

func (o AttachedStyleSheets) fields() []any {
	out := []any{o.ID}
	for _, s := range o.Sheets {
		out = append(out, s)
	}
	return out
}

// MediaPlaybackState records whether media node ID is paused.
type MediaPlaybackState struct {
	ID     int
	Paused bool
}

func (MediaPlaybackState) Kind() ChangeKind { return ChangeMediaPlaybackState }

func (o MediaPlaybackState) fields() []any {
	state := 0
	if o.Paused {
		state = 1
	}
	return []any{o.ID, state}
}
