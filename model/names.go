package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// NameKind selects one of the four name tables of a graph.
type NameKind uint8

const (
	VertexLabelName NameKind = iota
	EdgeLabelName
	VertexPropertyName
	EdgePropertyName

	numNameKinds
)

func (k NameKind) String() string {
	switch k {
	case VertexLabelName:
		return "vertex label"
	case EdgeLabelName:
		return "edge label"
	case VertexPropertyName:
		return "vertex property key"
	case EdgePropertyName:
		return "edge property key"
	default:
		return fmt.Sprintf("NameKind(%d)", uint8(k))
	}
}

// Names maps the schema strings of a graph to the ids stored in the region.
// Within a table both names and ids are unique. All tables are optional.
type Names struct {
	VertexLabels       map[string]Label       `json:"vertex_labels,omitempty"`
	EdgeLabels         map[string]Label       `json:"edge_labels,omitempty"`
	VertexPropertyKeys map[string]PropertyKey `json:"vertex_property_keys,omitempty"`
	EdgePropertyKeys   map[string]PropertyKey `json:"edge_property_keys,omitempty"`
}

// IsZero reports whether no table holds a name.
func (n Names) IsZero() bool {
	return len(n.VertexLabels) == 0 && len(n.EdgeLabels) == 0 &&
		len(n.VertexPropertyKeys) == 0 && len(n.EdgePropertyKeys) == 0
}

func widen[K ~uint16 | ~uint32](m map[string]K) map[string]uint32 {
	out := make(map[string]uint32, len(m))
	for name, id := range m {
		out[name] = uint32(id)
	}
	return out
}

func (n Names) tables() [numNameKinds]map[string]uint32 {
	return [numNameKinds]map[string]uint32{
		VertexLabelName:    widen(n.VertexLabels),
		EdgeLabelName:      widen(n.EdgeLabels),
		VertexPropertyName: widen(n.VertexPropertyKeys),
		EdgePropertyName:   widen(n.EdgePropertyKeys),
	}
}

// Dictionary resolves names to ids and back. It is immutable and safe for
// concurrent use. The zero value and a nil *Dictionary resolve nothing.
type Dictionary struct {
	names Names
	ids   [numNameKinds]map[string]uint32
	strs  [numNameKinds]map[uint32]string
}

// NewDictionary validates names and indexes them in both directions.
// Property keys may not use LabelKey, and no id may be named twice.
func NewDictionary(names Names) (*Dictionary, error) {
	d := &Dictionary{names: names, ids: names.tables()}
	for kind, ids := range d.ids {
		k := NameKind(kind)
		strs := make(map[uint32]string, len(ids))
		// Sorted so the reported conflict does not depend on map order.
		for _, name := range slices.Sorted(maps.Keys(ids)) {
			id := ids[name]
			if name == "" {
				return nil, fmt.Errorf("%w: empty %s name for id %d", ErrInvalidName, k, id)
			}
			if (k == VertexPropertyName || k == EdgePropertyName) && PropertyKey(id) == LabelKey {
				return nil, fmt.Errorf("%w: %s %q uses reserved key %d", ErrInvalidName, k, name, LabelKey)
			}
			if prev, ok := strs[id]; ok {
				return nil, fmt.Errorf("%w: %s %d named both %q and %q", ErrDuplicateKey, k, id, prev, name)
			}
			strs[id] = name
		}
		d.strs[kind] = strs
	}
	return d, nil
}

// Names returns the tables the dictionary was built from.
func (d *Dictionary) Names() Names {
	if d == nil {
		return Names{}
	}
	return d.names
}

// Name returns the name of id in the kind table.
func (d *Dictionary) Name(kind NameKind, id uint32) (string, bool) {
	if d == nil || kind >= numNameKinds {
		return "", false
	}
	s, ok := d.strs[kind][id]
	return s, ok
}

// ID returns the id named name in the kind table.
func (d *Dictionary) ID(kind NameKind, name string) (uint32, bool) {
	if d == nil || kind >= numNameKinds {
		return 0, false
	}
	id, ok := d.ids[kind][name]
	return id, ok
}

// Len returns the number of names in the kind table.
func (d *Dictionary) Len(kind NameKind) int {
	if d == nil || kind >= numNameKinds {
		return 0
	}
	return len(d.ids[kind])
}

// MarshalJSON encodes the underlying tables.
func (d *Dictionary) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Names())
}

// UnmarshalJSON decodes and validates tables written by MarshalJSON.
func (d *Dictionary) UnmarshalJSON(b []byte) error {
	var names Names
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	nd, err := NewDictionary(names)
	if err != nil {
		return err
	}
	*d = *nd
	return nil
}
