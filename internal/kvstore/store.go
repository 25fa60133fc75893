package kvstore

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/rgraph/internal/arena"
	"github.com/hupe1980/rgraph/model"
)

// CapacityError reports a full entry heap or indirect bucket pool.
// It matches model.ErrCapacity.
type CapacityError struct {
	Region    string
	Requested uint64
	Capacity  uint64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: %v: requested %d, capacity %d", e.Region, model.ErrCapacity, e.Requested, e.Capacity)
}

func (e *CapacityError) Is(target error) bool {
	return target == model.ErrCapacity
}

// Option configures a Store.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	headerRatio int
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithHeaderRatio sets the slot header share of the region in percent.
func WithHeaderRatio(ratio int) Option {
	return func(o *options) {
		o.headerRatio = ratio
	}
}

// Store is a cluster-chaining hash store over one region.
//
// Insert is safe for concurrent use. Get may run concurrently with other
// Gets; it must not race with Insert.
type Store struct {
	name    string
	geo     Geometry
	region  *arena.Region
	header  *arena.Region
	entries *arena.Region
	bump    *arena.Bump

	locks [NumLocks]sync.Mutex

	extMu   sync.Mutex
	lastExt uint64

	keys   atomic.Uint64
	logger *slog.Logger
}

// New lays a store over region. The region must be zeroed.
func New(name string, region *arena.Region, opts ...Option) (*Store, error) {
	o := options{
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		headerRatio: DefaultHeaderRatio,
	}
	for _, opt := range opts {
		opt(&o)
	}

	geo, err := ComputeGeometry(region.Len(), o.headerRatio)
	if err != nil {
		return nil, err
	}
	header, err := region.Sub(0, geo.EntryOffset())
	if err != nil {
		return nil, err
	}
	entries, err := region.Sub(geo.EntryOffset(), geo.EntryCapacity)
	if err != nil {
		return nil, err
	}

	s := &Store{
		name:    name,
		geo:     geo,
		region:  region,
		header:  header,
		entries: entries,
		bump:    arena.NewBump(geo.EntryCapacity, 1),
		logger:  o.logger,
	}
	s.logger.Debug("kvstore created",
		"store", name,
		"slots", geo.NumSlots,
		"main_buckets", geo.NumBuckets,
		"indirect_buckets", geo.NumIndirect,
		"entry_bytes", geo.EntryCapacity,
	)
	return s, nil
}

// Geometry returns the store geometry.
func (s *Store) Geometry() Geometry {
	return s.geo
}

// Layout returns what a remote reader needs to look keys up.
func (s *Store) Layout() StoreLayout {
	return StoreLayout{
		Offset:     s.region.Base(),
		NumSlots:   s.geo.NumSlots,
		NumBuckets: s.geo.NumBuckets,
	}
}

func (s *Store) bucket(i uint64) ([]byte, error) {
	return s.header.Record(0, BucketSize, i)
}

// Insert stores value under key. A key already present yields
// model.ErrDuplicateKey; a full entry heap or indirect pool yields a
// *CapacityError.
func (s *Store) Insert(key uint64, value model.Value) error {
	if key == 0 {
		return fmt.Errorf("%w: key 0", model.ErrInvalidID)
	}

	head := key % s.geo.NumBuckets
	mu := &s.locks[head%NumLocks]
	mu.Lock()
	defer mu.Unlock()

	cur := head
	for hops := uint64(0); hops <= s.geo.NumIndirect; hops++ {
		b, err := s.bucket(cur)
		if err != nil {
			return fmt.Errorf("%w: %s bucket %d: %w", model.ErrCorrupt, s.name, cur, err)
		}

		for i := range Associativity - 1 {
			slot := b[i*SlotSize:]
			switch decodeSlot(slot).Key {
			case key:
				return fmt.Errorf("%w: %s key %d", model.ErrDuplicateKey, s.name, key)
			case 0:
				return s.place(slot, key, value)
			}
		}

		last := b[(Associativity-1)*SlotSize:]
		if next := decodeSlot(last); next.State(Associativity-1) == SlotOverflow {
			cur = next.NextBucket()
			continue
		}

		ext, err := s.allocateIndirect()
		if err != nil {
			return err
		}
		nb, err := s.bucket(ext)
		if err != nil {
			return fmt.Errorf("%w: %s bucket %d: %w", model.ErrCorrupt, s.name, ext, err)
		}
		if err := s.place(nb, key, value); err != nil {
			return err
		}
		putSlot(last, Slot{Key: ext})
		return nil
	}

	return fmt.Errorf("%w: %s chain from bucket %d does not end", model.ErrCorrupt, s.name, head)
}

// place writes value to the entry heap and points slot at it. The caller
// holds the bucket stripe and has ruled out a duplicate key.
func (s *Store) place(slot []byte, key uint64, value model.Value) error {
	ptr, err := s.writeEntry(value)
	if err != nil {
		return err
	}
	putSlot(slot, Slot{Key: key, Ptr: ptr})
	s.keys.Add(1)
	return nil
}

func (s *Store) allocateIndirect() (uint64, error) {
	s.extMu.Lock()
	defer s.extMu.Unlock()

	if s.lastExt >= s.geo.NumIndirect {
		return 0, &CapacityError{
			Region:    s.name + " indirect pool",
			Requested: s.lastExt + 1,
			Capacity:  s.geo.NumIndirect,
		}
	}
	b := s.geo.NumBuckets + s.lastExt
	s.lastExt++
	return b, nil
}

func (s *Store) writeEntry(value model.Value) (arena.Ptr, error) {
	n := uint64(value.EncodedLen())
	off, err := s.bump.Alloc(n)
	if err != nil {
		return arena.Ptr{}, &CapacityError{
			Region:    s.name + " entry heap",
			Requested: s.bump.Used() + n,
			Capacity:  s.bump.Capacity(),
		}
	}
	ptr, err := arena.NewPtr(n, off)
	if err != nil {
		return arena.Ptr{}, err
	}
	dst, err := s.entries.Slice(off, n)
	if err != nil {
		return arena.Ptr{}, err
	}
	value.EncodeTo(dst)
	return ptr, nil
}

// Get looks key up in local memory.
func (s *Store) Get(key uint64) (model.Value, bool, error) {
	if key == 0 {
		return model.Value{}, false, fmt.Errorf("%w: key 0", model.ErrInvalidID)
	}

	cur := key % s.geo.NumBuckets
	for hops := uint64(0); hops <= s.geo.NumIndirect; hops++ {
		b, err := s.bucket(cur)
		if err != nil {
			return model.Value{}, false, fmt.Errorf("%w: %s bucket %d: %w", model.ErrCorrupt, s.name, cur, err)
		}

		r := scanBucket(b, key)
		switch {
		case r.found:
			if r.slot.Ptr.IsZero() {
				return model.Value{}, false, fmt.Errorf("%w: %s key %d has empty pointer", model.ErrCorrupt, s.name, key)
			}
			e, err := s.entries.Slice(r.slot.Ptr.Off, uint64(r.slot.Ptr.Size))
			if err != nil {
				return model.Value{}, false, fmt.Errorf("%w: %s key %d: %w", model.ErrCorrupt, s.name, key, err)
			}
			v, err := decodeEntry(e)
			return v, err == nil, err
		case r.more:
			cur = r.next
		default:
			return model.Value{}, false, nil
		}
	}

	return model.Value{}, false, fmt.Errorf("%w: %s chain for key %d does not end", model.ErrCorrupt, s.name, key)
}

// Usage describes how full a store is.
type Usage struct {
	Keys             uint64
	MainSlotsUsed    uint64
	MainSlots        uint64
	IndirectUsed     uint64
	IndirectCapacity uint64
	IndirectSlots    uint64
	EntryUsed        uint64
	EntryCapacity    uint64
}

// Usage scans the header and reports fill statistics.
func (s *Store) Usage() Usage {
	u := Usage{
		Keys:             s.keys.Load(),
		MainSlots:        s.geo.NumBuckets * (Associativity - 1),
		IndirectCapacity: s.geo.NumIndirect,
		EntryUsed:        s.bump.Used(),
		EntryCapacity:    s.bump.Capacity(),
	}

	s.extMu.Lock()
	u.IndirectUsed = s.lastExt
	s.extMu.Unlock()

	for i := range s.geo.NumBuckets + u.IndirectUsed {
		b, err := s.bucket(i)
		if err != nil {
			break
		}
		for j := range Associativity - 1 {
			if decodeSlot(b[j*SlotSize:]).Key == 0 {
				continue
			}
			if i < s.geo.NumBuckets {
				u.MainSlotsUsed++
			} else {
				u.IndirectSlots++
			}
		}
	}
	return u
}

// State is the allocator state needed to resume a store over a restored region.
type State struct {
	Keys     uint64
	LastExt  uint64
	EntryUse uint64
}

// State returns the allocator state.
func (s *Store) State() State {
	s.extMu.Lock()
	defer s.extMu.Unlock()
	return State{Keys: s.keys.Load(), LastExt: s.lastExt, EntryUse: s.bump.Used()}
}

// Restore resumes from a state taken over the same region contents.
func (s *Store) Restore(st State) error {
	if st.LastExt > s.geo.NumIndirect || st.EntryUse > s.geo.EntryCapacity {
		return fmt.Errorf("%w: %s state %+v exceeds geometry", model.ErrCorrupt, s.name, st)
	}
	s.extMu.Lock()
	s.lastExt = st.LastExt
	s.extMu.Unlock()
	s.keys.Store(st.Keys)
	s.bump.SetUsed(st.EntryUse)
	return nil
}
