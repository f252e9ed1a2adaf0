package dom

// RecordType is the kind of a MutationRecord.
type RecordType int

const (
	ChildList RecordType = iota
	Attributes
	CharacterData
)

func (t RecordType) String() string {
	switch t {
	case ChildList:
		return "childList"
	case Attributes:
		return "attributes"
	case CharacterData:
		return "characterData"
	}
	return "unknown"
}

// MutationRecord describes one change, as queued for observers.
type MutationRecord struct {
	Type            RecordType
	Target          *Node
	AddedNodes      []*Node
	RemovedNodes    []*Node
	PreviousSibling *Node
	NextSibling     *Node
	AttributeName   string
	OldValue        *string
}

// ObserverFunc receives the records queued since the previous delivery.
type ObserverFunc func(records []MutationRecord, o *Observer)

// Observer collects mutation records for the subtrees it observes and
// delivers them asynchronously through the document scheduler. Observation
// never crosses into shadow trees: observe each shadow root separately.
//
// A node removed from an observed subtree stays observed until the next
// delivery, so changes made to it while detached are still reported.
type Observer struct {
	doc       *Document
	fn        ObserverFunc
	roots     []*Node
	transient map[*Node]bool
	records   []MutationRecord
	scheduled bool
}

// NewObserver creates an observer on doc. It receives nothing until Observe
// is called.
func NewObserver(doc *Document, fn ObserverFunc) *Observer {
	return &Observer{doc: doc, fn: fn}
}

// Observe starts observing root and its subtree for child list, attribute
// and character data changes, with old values.
func (o *Observer) Observe(root *Node) {
	for _, r := range o.roots {
		if r == root {
			return
		}
	}
	if len(o.roots) == 0 {
		o.doc.observers = append(o.doc.observers, o)
	}
	o.roots = append(o.roots, root)
}

// Unobserve stops observing root. Records already queued for it are kept.
func (o *Observer) Unobserve(root *Node) {
	for i, r := range o.roots {
		if r == root {
			o.roots = append(o.roots[:i], o.roots[i+1:]...)
			return
		}
	}
}

// Observing reports whether root is observed.
func (o *Observer) Observing(root *Node) bool {
	for _, r := range o.roots {
		if r == root {
			return true
		}
	}
	return false
}

// TakeRecords returns and clears the records not yet delivered.
func (o *Observer) TakeRecords() []MutationRecord {
	recs := o.records
	o.records = nil
	return recs
}

// Disconnect stops observation and drops undelivered records.
func (o *Observer) Disconnect() {
	o.roots = nil
	o.transient = nil
	o.records = nil
	obs := o.doc.observers[:0]
	for _, x := range o.doc.observers {
		if x != o {
			obs = append(obs, x)
		}
	}
	o.doc.observers = obs
}

func (o *Observer) enqueue(rec MutationRecord) {
	if !o.observes(rec.Target) {
		return
	}
	if len(rec.RemovedNodes) > 0 {
		if o.transient == nil {
			o.transient = make(map[*Node]bool)
		}
		for _, n := range rec.RemovedNodes {
			o.transient[n] = true
		}
	}
	o.records = append(o.records, rec)
	if o.scheduled {
		return
	}
	o.scheduled = true
	o.doc.sched.Schedule(o.deliver)
}

func (o *Observer) observes(target *Node) bool {
	for p := target; p != nil; p = p.parent {
		if o.transient[p] {
			return true
		}
		for _, r := range o.roots {
			if p == r {
				return true
			}
		}
	}
	return false
}

func (o *Observer) deliver() {
	o.scheduled = false
	o.transient = nil
	recs := o.TakeRecords()
	if len(recs) == 0 || len(o.roots) == 0 {
		return
	}
	o.fn(recs, o)
}
