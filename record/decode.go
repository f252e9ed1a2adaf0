package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrUnknownType is returned when a record type or change kind has no
// decoder.
var ErrUnknownType = errors.New("record: unknown type")

// Decoder turns records read back from JSON into typed payloads. Change
// records share a string table across a recording scope, so one Decoder
// must see every batch of a session, in order.
type Decoder struct {
	strs []string
}

// NewDecoder creates a decoder with an empty string table.
func NewDecoder() *Decoder { return &Decoder{} }

// Reset forgets the string table, as when a new recording scope starts.
func (d *Decoder) Reset() { d.strs = d.strs[:0] }

// DecodeBatch decodes every record of b in place. Full snapshot batches
// start a new scope and reset the string table first.
func (d *Decoder) DecodeBatch(b *Batch) error {
	if b.Kind != KindIncremental {
		d.Reset()
	}
	for i := range b.Records {
		if err := d.Decode(&b.Records[i]); err != nil {
			return fmt.Errorf("record: decode batch %s record %d: %w", b.ID, b.Records[i].ID, err)
		}
	}
	return nil
}

// Decode replaces raw JSON data with its typed payload. Records already
// carrying typed data are left alone.
func (d *Decoder) Decode(r *Record) error {
	raw, ok := r.Data.(json.RawMessage)
	if !ok {
		return nil
	}
	var v any
	switch r.Type {
	case TypeMeta:
		v = &Meta{}
	case TypeFocus:
		v = &Focus{}
	case TypeVisualViewport:
		v = &VisualViewport{}
	case TypeFullSnapshot:
		fs := &FullSnapshot{}
		if err := json.Unmarshal(raw, fs); err != nil {
			return err
		}
		fs.Node.Walk(normalizeAttrs)
		r.Data = fs
		return nil
	case TypeIncrementalSnapshot:
		m := &Mutation{}
		if err := json.Unmarshal(raw, m); err != nil {
			return err
		}
		for _, a := range m.Adds {
			a.Node.Walk(normalizeAttrs)
		}
		r.Data = m
		return nil
	case TypeChange:
		c, err := d.changes(raw)
		if err != nil {
			return err
		}
		r.Data = c
		return nil
	default:
		return fmt.Errorf("type %d: %w", r.Type, ErrUnknownType)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return err
	}
	r.Data = v
	return nil
}

// normalizeAttrs turns integral JSON numbers back into ints.
func normalizeAttrs(n *SerializedNode) {
	for k, v := range n.Attributes {
		n.Attributes[k] = normalizeValue(v)
	}
}

func normalizeValue(v any) any {
	if f, ok := v.(float64); ok && f == math.Trunc(f) {
		return int(f)
	}
	return v
}

func (d *Decoder) changes(raw json.RawMessage) (Changes, error) {
	var groups [][]json.RawMessage
	if err := json.Unmarshal(raw, &groups); err != nil {
		return nil, err
	}
	var out Changes
	for gi, g := range groups {
		if len(g) == 0 {
			return nil, fmt.Errorf("group %d: empty", gi)
		}
		var kind ChangeKind
		if err := json.Unmarshal(g[0], &kind); err != nil {
			return nil, fmt.Errorf("group %d: kind: %w", gi, err)
		}
		for oi, rawOp := range g[1:] {
			f := &fields{}
			if err := json.Unmarshal(rawOp, &f.raw); err != nil {
				return nil, fmt.Errorf("group %d op %d: %w", gi, oi, err)
			}
			op, err := d.op(kind, f)
			if err != nil {
				return nil, fmt.Errorf("group %d op %d: %w", gi, oi, err)
			}
			out.Add(op)
		}
	}
	return out, nil
}

func (d *Decoder) op(kind ChangeKind, f *fields) (Op, error) {
	switch kind {
	case ChangeAddNode:
		var o AddNode
		f.next(&o.Point)
		var label string
		o.Label, label = d.ref(f)
		switch label {
		case LabelText, LabelCDATA:
			o.Type = NodeText
			if label == LabelCDATA {
				o.Type = NodeCDATA
			}
			f.next(&o.Text)
		case LabelDoctype:
			o.Type = NodeDocumentType
			f.next(&o.Name)
			f.next(&o.PublicID)
			f.next(&o.SystemID)
		case LabelDocument:
			o.Type = NodeDocument
		case LabelDocumentFragment, LabelShadowRoot:
			o.Type = NodeDocumentFragment
		default:
			o.Type = NodeElement
			for f.more() {
				var a Attr
				a.Name, _ = d.ref(f)
				f.next(&a.Value)
				a.Value = normalizeValue(a.Value)
				o.Attrs = append(o.Attrs, a)
			}
		}
		return o, f.err
	case ChangeRemoveNode:
		var o RemoveNode
		f.next(&o.ID)
		return o, f.err
	case ChangeMoveNode:
		var o MoveNode
		f.next(&o.ID)
		f.next(&o.ParentID)
		f.next(&o.NextID)
		return o, f.err
	case ChangeAttribute:
		var o Attribute
		f.next(&o.ID)
		for f.more() {
			var a AttrUpdate
			a.Name, _ = d.ref(f)
			f.next(&a.Value)
			o.Attrs = append(o.Attrs, a)
		}
		return o, f.err
	case ChangeText:
		var o Text
		f.next(&o.ID)
		f.next(&o.Value)
		return o, f.err
	case ChangeScrollPosition:
		var o ScrollPosition
		f.next(&o.ID)
		f.next(&o.Left)
		f.next(&o.Top)
		return o, f.err
	case ChangeAddStyleSheet:
		var o AddStyleSheet
		f.next(&o.Rules)
		if f.more() {
			f.next(&o.Media)
		}
		if f.more() {
			f.next(&o.Disabled)
		}
		return o, f.err
	case ChangeAttachedStyleSheets:
		var o AttachedStyleSheets
		f.next(&o.ID)
		for f.more() {
			var id int
			f.next(&id)
			o.Sheets = append(o.Sheets, id)
		}
		return o, f.err
	case ChangeMediaPlaybackState:
		var o MediaPlaybackState
		var state int
		f.next(&o.ID)
		f.next(&state)
		o.Paused = state == 1
		return o, f.err
	}
	return nil, fmt.Errorf("change kind %d: %w", kind, ErrUnknownType)
}

// ref reads a string reference and returns it with the string it denotes,
// extending the table for literals.
func (d *Decoder) ref(f *fields) (StringRef, string) {
	var v any
	f.next(&v)
	switch x := v.(type) {
	case string:
		d.strs = append(d.strs, x)
		return Literal(x), x
	case float64:
		i := int(x)
		if i < 0 || i >= len(d.strs) {
			if f.err == nil {
				f.err = fmt.Errorf("string %d: %w", i, ErrUnknownNode)
			}
			return Ref(i), ""
		}
		return Ref(i), d.strs[i]
	}
	if f.err == nil {
		f.err = fmt.Errorf("string reference %v: %w", v, ErrUnknownType)
	}
	return StringRef{}, ""
}

// fields reads the positional fields of one operation. The first error
// sticks.
type fields struct {
	raw []json.RawMessage
	i   int
	err error
}

func (f *fields) more() bool { return f.err == nil && f.i < len(f.raw) }

func (f *fields) next(v any) {
	if f.err != nil {
		return
	}
	if f.i >= len(f.raw) {
		f.err = fmt.Errorf("missing field %d", f.i)
		return
	}
	f.err = json.Unmarshal(f.raw[f.i], v)
	f.i++
}
