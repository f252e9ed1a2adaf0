// Package record defines the replayable event stream produced by the
// recorder. These types are the public contract: a player or backend
// imports this package to decode sessions.
package record

import (
	"encoding/json"
)

// Type tags a Record.
type Type int

const (
	TypeFullSnapshot        Type = 2
	TypeIncrementalSnapshot Type = 3
	TypeMeta                Type = 4
	TypeFocus               Type = 6
	TypeVisualViewport      Type = 8
	TypeChange              Type = 12
)

func (t Type) String() string {
	switch t {
	case TypeFullSnapshot:
		return "full_snapshot"
	case TypeIncrementalSnapshot:
		return "incremental_snapshot"
	case TypeMeta:
		return "meta"
	case TypeFocus:
		return "focus"
	case TypeVisualViewport:
		return "visual_viewport"
	case TypeChange:
		return "change"
	}
	return "unknown"
}

// Record is one timestamped event. ID is the event id within the session.
// Data holds one of *Meta, *Focus, *FullSnapshot, *Mutation,
// *VisualViewport or Changes; decoded records carry json.RawMessage.
type Record struct {
	ID        int   `json:"id"`
	Type      Type  `json:"type"`
	Timestamp int64 `json:"timestamp"` // epoch milliseconds
	Data      any   `json:"data"`
}

// UnmarshalJSON keeps Data as raw JSON; its shape depends on Type.
func (r *Record) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID        int             `json:"id"`
		Type      Type            `json:"type"`
		Timestamp int64           `json:"timestamp"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.ID, r.Type, r.Timestamp, r.Data = raw.ID, raw.Type, raw.Timestamp, raw.Data
	return nil
}

// Meta describes the page being recorded.
type Meta struct {
	Href   string `json:"href"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Focus reports whether the page has focus.
type Focus struct {
	HasFocus bool `json:"has_focus"`
}

// VisualViewport is the pinch-zoom viewport at snapshot time.
type VisualViewport struct {
	Scale      float64 `json:"scale"`
	OffsetLeft float64 `json:"offsetLeft"`
	OffsetTop  float64 `json:"offsetTop"`
	PageLeft   float64 `json:"pageLeft"`
	PageTop    float64 `json:"pageTop"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

// Offset is a scroll position in CSS pixels.
type Offset struct {
	Left int `json:"left"`
	Top  int `json:"top"`
}

// FullSnapshot is the nested rendering of a whole document.
type FullSnapshot struct {
	Node          *SerializedNode `json:"node"`
	InitialOffset Offset          `json:"initialOffset"`
}

// IncrementalSource tags the payload of an incremental snapshot.
type IncrementalSource int

const SourceMutation IncrementalSource = 0

// Mutation is the incremental payload describing tree changes. Nodes are
// referenced by previously assigned ids; adds carry freshly serialized
// subtrees.
type Mutation struct {
	Source     IncrementalSource     `json:"source"`
	Adds       []AddedNodeMutation   `json:"adds"`
	Removes    []RemovedNodeMutation `json:"removes"`
	Texts      []TextMutation        `json:"texts"`
	Attributes []AttributeMutation   `json:"attributes"`
}

// Empty reports whether the payload carries no change.
func (m *Mutation) Empty() bool {
	return len(m.Adds) == 0 && len(m.Removes) == 0 && len(m.Texts) == 0 && len(m.Attributes) == 0
}

// AddedNodeMutation inserts Node under ParentID, before NextID or last.
type AddedNodeMutation struct {
	ParentID int             `json:"parentId"`
	NextID   *int            `json:"nextId"`
	Node     *SerializedNode `json:"node"`
}

// RemovedNodeMutation detaches node ID from ParentID.
type RemovedNodeMutation struct {
	ParentID int `json:"parentId"`
	ID       int `json:"id"`
}

// TextMutation replaces the text of node ID.
type TextMutation struct {
	ID    int     `json:"id"`
	Value *string `json:"value"`
}

// AttributeMutation sets attributes of node ID; a nil value removes it.
type AttributeMutation struct {
	ID         int                `json:"id"`
	Attributes map[string]*string `json:"attributes"`
}

// MarshalRecord serialises a Record to JSON.
func MarshalRecord(r *Record) ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalRecord deserialises a Record; Data is left as json.RawMessage.
func UnmarshalRecord(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
