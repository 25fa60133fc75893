package model

// Property is a key/value pair attached to a vertex or an edge.
type Property struct {
	Key   PropertyKey `json:"key"`
	Value Value       `json:"value"`
}

// Vertex is the load-time description of a vertex.
type Vertex struct {
	ID         VertexID   `json:"id"`
	Label      Label      `json:"label"`
	Properties []Property `json:"properties,omitempty"`
}

// Edge is the load-time description of a directed edge Src -> Dst.
type Edge struct {
	Src        VertexID   `json:"src"`
	Dst        VertexID   `json:"dst"`
	Label      Label      `json:"label"`
	Properties []Property `json:"properties,omitempty"`
}

// ID returns the packed edge id.
func (e Edge) ID() EdgeID {
	return NewEdgeID(e.Src, e.Dst)
}

// Graph is the input of a bulk load. Names is optional and travels next to
// the region, never inside it.
type Graph struct {
	Vertices []Vertex `json:"vertices"`
	Edges    []Edge   `json:"edges"`
	Names    Names    `json:"names,omitzero"`
}
