package cache

import (
	"encoding/binary"
	"hash/maphash"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/rgraph/internal/table"
	"github.com/hupe1980/rgraph/model"
)

const numShards = 64

type shard struct {
	mu      sync.RWMutex
	entries map[model.VertexID]table.VertexRecord
}

// VertexCache is an additive, sharded cache of vertex records.
// It is safe for concurrent use.
type VertexCache struct {
	shards [numShards]shard
	seed   maphash.Seed

	idsMu sync.Mutex
	ids   *roaring.Bitmap

	hits   atomic.Int64
	misses atomic.Int64
}

// NewVertexCache creates an empty cache.
func NewVertexCache() *VertexCache {
	c := &VertexCache{
		seed: maphash.MakeSeed(),
		ids:  roaring.New(),
	}
	for i := range numShards {
		c.shards[i].entries = make(map[model.VertexID]table.VertexRecord)
	}
	return c
}

func (c *VertexCache) shard(id model.VertexID) *shard {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(id))
	return &c.shards[maphash.Bytes(c.seed, buf[:])%numShards]
}

// Get returns the cached record of id.
func (c *VertexCache) Get(id model.VertexID) (table.VertexRecord, bool) {
	s := c.shard(id)
	s.mu.RLock()
	rec, ok := s.entries[id]
	s.mu.RUnlock()

	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return rec, ok
}

// Add caches rec unless its id is already cached. It reports whether rec
// was added.
func (c *VertexCache) Add(rec table.VertexRecord) bool {
	s := c.shard(rec.ID)
	s.mu.Lock()
	if _, ok := s.entries[rec.ID]; ok {
		s.mu.Unlock()
		return false
	}
	s.entries[rec.ID] = rec
	s.mu.Unlock()

	c.idsMu.Lock()
	c.ids.Add(uint32(rec.ID))
	c.idsMu.Unlock()
	return true
}

// Len returns the number of cached vertices.
func (c *VertexCache) Len() int {
	c.idsMu.Lock()
	defer c.idsMu.Unlock()
	return int(c.ids.GetCardinality())
}

// IDs returns the cached ids in ascending order.
func (c *VertexCache) IDs() []model.VertexID {
	c.idsMu.Lock()
	raw := c.ids.ToArray()
	c.idsMu.Unlock()

	ids := make([]model.VertexID, len(raw))
	for i, v := range raw {
		ids[i] = model.VertexID(v)
	}
	return ids
}

// Stats returns hit and miss counts.
func (c *VertexCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
