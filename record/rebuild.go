package record

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrUnknownNode is returned when an operation references an id the
	// rebuilder has not seen, or has seen removed.
	ErrUnknownNode = errors.New("record: unknown node")
	// ErrInvalidInsertionPoint is returned when an AddNode point cannot be
	// resolved.
	ErrInvalidInsertionPoint = errors.New("record: invalid insertion point")
)

// Rebuilder replays change operations into a nested tree, the way a player
// reconstructs a session. Use one Rebuilder per recording scope.
type Rebuilder struct {
	root    *SerializedNode
	offset  Offset
	nodes   map[int]*SerializedNode
	parents map[int]*SerializedNode
	strs    []string
	sheets  []StyleSheet
	nextID  int
}

// NewRebuilder creates an empty rebuilder.
func NewRebuilder() *Rebuilder {
	return &Rebuilder{
		nodes:   make(map[int]*SerializedNode),
		parents: make(map[int]*SerializedNode),
	}
}

// Snapshot returns the current tree and document scroll offset.
func (r *Rebuilder) Snapshot() *FullSnapshot {
	return &FullSnapshot{Node: r.root, InitialOffset: r.offset}
}

// Node returns the live node with the given id.
func (r *Rebuilder) Node(id int) (*SerializedNode, bool) {
	n, ok := r.nodes[id]
	return n, ok
}

// Reset forgets the current tree and string table, as when a new
// recording scope starts.
func (r *Rebuilder) Reset() {
	*r = *NewRebuilder()
}

// Load replaces the current tree with a full snapshot.
func (r *Rebuilder) Load(fs *FullSnapshot) {
	r.Reset()
	if fs == nil || fs.Node == nil {
		return
	}
	r.root = fs.Node.Clone()
	r.offset = fs.InitialOffset
	r.index(nil, r.root)
}

// ApplyMutation applies an incremental mutation payload: removals, then
// additions in order, then texts and attributes. Removals of unknown nodes
// are skipped, since their subtree may already be gone.
func (r *Rebuilder) ApplyMutation(m *Mutation) error {
	for _, rm := range m.Removes {
		n, ok := r.nodes[rm.ID]
		if !ok {
			continue
		}
		r.detach(n)
		n.Walk(func(c *SerializedNode) {
			delete(r.nodes, c.ID)
			delete(r.parents, c.ID)
		})
	}
	for i, add := range m.Adds {
		if add.Node == nil {
			continue
		}
		node := add.Node.Clone()
		if old, ok := r.nodes[node.ID]; ok {
			r.detach(old)
		}
		parent, err := r.lookup(add.ParentID)
		if err != nil {
			return fmt.Errorf("record: rebuild add %d: %w", i, err)
		}
		if add.NextID == nil {
			r.appendChild(parent, node)
		} else {
			next, err := r.lookup(*add.NextID)
			if err != nil {
				return fmt.Errorf("record: rebuild add %d: %w", i, err)
			}
			if err := r.insertBefore(node, next); err != nil {
				return fmt.Errorf("record: rebuild add %d: %w", i, err)
			}
		}
		r.index(parent, node)
	}
	for _, t := range m.Texts {
		n, err := r.lookup(t.ID)
		if err != nil {
			return fmt.Errorf("record: rebuild text: %w", err)
		}
		n.TextContent = ""
		if t.Value != nil {
			n.TextContent = *t.Value
		}
	}
	for _, a := range m.Attributes {
		n, err := r.lookup(a.ID)
		if err != nil {
			return fmt.Errorf("record: rebuild attributes: %w", err)
		}
		if n.Attributes == nil {
			n.Attributes = make(map[string]any)
		}
		for name, v := range a.Attributes {
			if v == nil {
				delete(n.Attributes, name)
				continue
			}
			n.Attributes[name] = *v
		}
	}
	return nil
}

// index registers n and its subtree under parent.
func (r *Rebuilder) index(parent, n *SerializedNode) {
	r.nodes[n.ID] = n
	if parent != nil {
		r.parents[n.ID] = parent
	}
	if n.ID >= r.nextID {
		r.nextID = n.ID + 1
	}
	for _, c := range n.ChildNodes {
		r.index(n, c)
	}
}

// Apply replays every operation of c in order. It stops at the first
// operation that cannot be applied. Removals of unknown nodes are skipped.
func (r *Rebuilder) Apply(c Changes) error {
	for _, g := range c {
		for i, op := range g.Ops {
			if err := r.apply(op); err != nil {
				return fmt.Errorf("record: rebuild kind %d op %d: %w", g.Kind, i, err)
			}
		}
	}
	return nil
}

func (r *Rebuilder) apply(op Op) error {
	switch o := op.(type) {
	case AddNode:
		return r.addNode(o)
	case RemoveNode:
		// Like mutation removals, unknown ids are skipped.
		n, ok := r.nodes[o.ID]
		if !ok {
			return nil
		}
		r.detach(n)
		n.Walk(func(c *SerializedNode) {
			delete(r.nodes, c.ID)
			delete(r.parents, c.ID)
		})
	case MoveNode:
		n, err := r.lookup(o.ID)
		if err != nil {
			return err
		}
		parent, err := r.lookup(o.ParentID)
		if err != nil {
			return err
		}
		r.detach(n)
		if o.NextID == nil {
			r.appendChild(parent, n)
			return nil
		}
		next, err := r.lookup(*o.NextID)
		if err != nil {
			return err
		}
		return r.insertBefore(n, next)
	case Attribute:
		n, err := r.lookup(o.ID)
		if err != nil {
			return err
		}
		if n.Attributes == nil {
			n.Attributes = make(map[string]any)
		}
		for _, a := range o.Attrs {
			name, err := r.resolve(a.Name)
			if err != nil {
				return err
			}
			if a.Value == nil {
				delete(n.Attributes, name)
				continue
			}
			n.Attributes[name] = *a.Value
		}
	case Text:
		n, err := r.lookup(o.ID)
		if err != nil {
			return err
		}
		n.TextContent = o.Value
	case ScrollPosition:
		n, err := r.lookup(o.ID)
		if err != nil {
			return err
		}
		if n.Type == NodeDocument {
			r.offset = Offset{Left: o.Left, Top: o.Top}
			return nil
		}
		setNonZero(n, "rr_scrollLeft", o.Left)
		setNonZero(n, "rr_scrollTop", o.Top)
	case AddStyleSheet:
		r.sheets = append(r.sheets, StyleSheet{
			Rules:    slices.Clone(o.Rules),
			Media:    slices.Clone(o.Media),
			Disabled: o.Disabled,
		})
	case AttachedStyleSheets:
		n, err := r.lookup(o.ID)
		if err != nil {
			return err
		}
		n.AdoptedStyleSheets = nil
		for _, id := range o.Sheets {
			if id < 0 || id >= len(r.sheets) {
				return fmt.Errorf("stylesheet %d: %w", id, ErrUnknownNode)
			}
			n.AdoptedStyleSheets = append(n.AdoptedStyleSheets, r.sheets[id])
		}
	case MediaPlaybackState:
		n, err := r.lookup(o.ID)
		if err != nil {
			return err
		}
		if n.Attributes == nil {
			n.Attributes = make(map[string]any)
		}
		state := "played"
		if o.Paused {
			state = "paused"
		}
		n.Attributes["rr_mediaState"] = state
	default:
		return fmt.Errorf("unsupported operation %T", op)
	}
	return nil
}

func (r *Rebuilder) addNode(o AddNode) error {
	label, err := r.resolve(o.Label)
	if err != nil {
		return err
	}
	id := r.nextID
	r.nextID++

	n := &SerializedNode{ID: id}
	switch label {
	case LabelText:
		n.Type, n.TextContent = NodeText, o.Text
	case LabelCDATA:
		n.Type = NodeCDATA
	case LabelDocument:
		n.Type = NodeDocument
	case LabelDoctype:
		n.Type, n.Name, n.PublicID, n.SystemID = NodeDocumentType, o.Name, o.PublicID, o.SystemID
	case LabelDocumentFragment:
		n.Type = NodeDocumentFragment
	case LabelShadowRoot:
		n.Type, n.IsShadowRoot = NodeDocumentFragment, true
	default:
		n.Type = NodeElement
		n.TagName = label
		if tag, ok := strings.CutPrefix(label, LabelSVGPrefix); ok {
			n.TagName, n.IsSVG = tag, true
		}
		n.Attributes = make(map[string]any, len(o.Attrs))
		for _, a := range o.Attrs {
			name, err := r.resolve(a.Name)
			if err != nil {
				return err
			}
			n.Attributes[name] = a.Value
		}
	}

	switch {
	case o.Point == nil:
		if r.root != nil {
			return fmt.Errorf("second root %d: %w", id, ErrInvalidInsertionPoint)
		}
		r.root = n
	case *o.Point == 0:
		prev, err := r.lookup(id - 1)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInsertionPoint, err)
		}
		parent := r.parents[prev.ID]
		if parent == nil {
			return fmt.Errorf("node %d has no parent: %w", prev.ID, ErrInvalidInsertionPoint)
		}
		i := slices.Index(parent.ChildNodes, prev)
		parent.ChildNodes = slices.Insert(parent.ChildNodes, i+1, n)
		r.parents[id] = parent
	case *o.Point < 0:
		next, err := r.lookup(id + *o.Point)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInsertionPoint, err)
		}
		if err := r.insertBefore(n, next); err != nil {
			return err
		}
	default:
		parent, err := r.lookup(id - *o.Point)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInsertionPoint, err)
		}
		r.appendChild(parent, n)
	}
	r.nodes[id] = n
	return nil
}

// appendChild appends n to parent, keeping a shadow root last.
func (r *Rebuilder) appendChild(parent, n *SerializedNode) {
	kids := parent.ChildNodes
	if k := len(kids); k > 0 && kids[k-1].IsShadowRoot && !n.IsShadowRoot {
		parent.ChildNodes = slices.Insert(kids, k-1, n)
	} else {
		parent.ChildNodes = append(kids, n)
	}
	r.parents[n.ID] = parent
}

func (r *Rebuilder) insertBefore(n, next *SerializedNode) error {
	parent := r.parents[next.ID]
	if parent == nil {
		return fmt.Errorf("node %d has no parent: %w", next.ID, ErrInvalidInsertionPoint)
	}
	i := slices.Index(parent.ChildNodes, next)
	parent.ChildNodes = slices.Insert(parent.ChildNodes, i, n)
	r.parents[n.ID] = parent
	return nil
}

func (r *Rebuilder) detach(n *SerializedNode) {
	parent := r.parents[n.ID]
	if parent == nil {
		return
	}
	if i := slices.Index(parent.ChildNodes, n); i >= 0 {
		parent.ChildNodes = slices.Delete(parent.ChildNodes, i, i+1)
	}
	if len(parent.ChildNodes) == 0 {
		parent.ChildNodes = nil
	}
	delete(r.parents, n.ID)
}

func (r *Rebuilder) lookup(id int) (*SerializedNode, error) {
	n, ok := r.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %d: %w", id, ErrUnknownNode)
	}
	return n, nil
}

func (r *Rebuilder) resolve(s StringRef) (string, error) {
	if s.Literal {
		r.strs = append(r.strs, s.Value)
		return s.Value, nil
	}
	if s.Index < 0 || s.Index >= len(r.strs) {
		return "", fmt.Errorf("string %d: %w", s.Index, ErrUnknownNode)
	}
	return r.strs[s.Index], nil
}

func setNonZero(n *SerializedNode, name string, v int) {
	if n.Attributes == nil {
		n.Attributes = make(map[string]any)
	}
	if v == 0 {
		delete(n.Attributes, name)
		return
	}
	n.Attributes[name] = v
}
