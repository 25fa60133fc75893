package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDictionary(t *testing.T) {
	names := Names{
		VertexLabels:       map[string]Label{"person": 1, "city": 2},
		EdgeLabels:         map[string]Label{"knows": 1},
		VertexPropertyKeys: map[string]PropertyKey{"name": 1, "age": 2},
		EdgePropertyKeys:   map[string]PropertyKey{"since": 1},
	}

	t.Run("lookup", func(t *testing.T) {
		d, err := NewDictionary(names)
		require.NoError(t, err)

		s, ok := d.Name(VertexLabelName, 2)
		require.True(t, ok)
		assert.Equal(t, "city", s)

		id, ok := d.ID(EdgePropertyName, "since")
		require.True(t, ok)
		assert.Equal(t, uint32(1), id)

		// Tables are separate: "knows" is an edge label only.
		_, ok = d.ID(VertexLabelName, "knows")
		assert.False(t, ok)
		_, ok = d.Name(VertexPropertyName, 9)
		assert.False(t, ok)
		_, ok = d.Name(NameKind(42), 1)
		assert.False(t, ok)

		assert.Equal(t, 2, d.Len(VertexPropertyName))
	})

	t.Run("nil", func(t *testing.T) {
		var d *Dictionary
		_, ok := d.Name(VertexLabelName, 1)
		assert.False(t, ok)
		assert.True(t, d.Names().IsZero())
	})

	t.Run("duplicate id", func(t *testing.T) {
		_, err := NewDictionary(Names{EdgeLabels: map[string]Label{"knows": 3, "likes": 3}})
		require.ErrorIs(t, err, ErrDuplicateKey)
		assert.Contains(t, err.Error(), `"knows" and "likes"`)
	})

	t.Run("reserved key", func(t *testing.T) {
		_, err := NewDictionary(Names{VertexPropertyKeys: map[string]PropertyKey{"label": LabelKey}})
		require.ErrorIs(t, err, ErrInvalidName)

		// Label 0 is an ordinary label.
		_, err = NewDictionary(Names{VertexLabels: map[string]Label{"none": 0}})
		require.NoError(t, err)
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := NewDictionary(Names{EdgePropertyKeys: map[string]PropertyKey{"": 4}})
		require.ErrorIs(t, err, ErrInvalidName)
	})

	t.Run("json", func(t *testing.T) {
		var g Graph
		require.NoError(t, json.Unmarshal([]byte(`{
			"vertices": [{"id": 1, "label": 1}],
			"edges": [],
			"names": {"vertex_labels": {"person": 1}, "edge_property_keys": {"since": 1}}
		}`), &g))
		assert.Equal(t, Label(1), g.Names.VertexLabels["person"])
		assert.False(t, g.Names.IsZero())

		b, err := json.Marshal(Graph{})
		require.NoError(t, err)
		assert.NotContains(t, string(b), "names")

		d, err := NewDictionary(names)
		require.NoError(t, err)
		b, err = json.Marshal(d)
		require.NoError(t, err)

		var back Dictionary
		require.NoError(t, json.Unmarshal(b, &back))
		s, ok := back.Name(VertexPropertyName, 2)
		require.True(t, ok)
		assert.Equal(t, "age", s)

		err = json.Unmarshal([]byte(`{"edge_labels": {"a": 1, "b": 1}}`), &back)
		require.ErrorIs(t, err, ErrDuplicateKey)
	})
}
