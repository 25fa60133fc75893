package kvstore

import (
	"context"
	"fmt"

	"github.com/hupe1980/rgraph/model"
)

// Reader reads remote bytes at an offset of the registered region.
type Reader interface {
	Read(ctx context.Context, buf []byte, off uint64) error
}

// StoreLayout locates a store inside the registered region.
type StoreLayout struct {
	Offset     uint64
	NumSlots   uint64
	NumBuckets uint64
}

func (l StoreLayout) entryBase() uint64 {
	return l.Offset + l.NumSlots*SlotSize
}

func (l StoreLayout) totalBuckets() uint64 {
	return l.NumSlots / Associativity
}

// Lookup finds key with remote reads: one per bucket visited plus one for
// the entry. An absent key yields (Value{}, false, nil).
func Lookup(ctx context.Context, r Reader, l StoreLayout, key uint64) (model.Value, bool, error) {
	if key == 0 {
		return model.Value{}, false, fmt.Errorf("%w: key 0", model.ErrInvalidID)
	}
	if l.NumBuckets == 0 {
		return model.Value{}, false, fmt.Errorf("%w: store without buckets", model.ErrCorrupt)
	}

	var buf [BucketSize]byte
	total := l.totalBuckets()
	cur := key % l.NumBuckets

	for hops := uint64(0); hops <= total; hops++ {
		if cur >= total {
			return model.Value{}, false, fmt.Errorf("%w: bucket %d beyond %d", model.ErrCorrupt, cur, total)
		}
		if err := r.Read(ctx, buf[:], l.Offset+cur*BucketSize); err != nil {
			return model.Value{}, false, err
		}

		res := scanBucket(buf[:], key)
		switch {
		case res.found:
			if res.slot.Ptr.IsZero() {
				return model.Value{}, false, fmt.Errorf("%w: key %d has empty pointer", model.ErrCorrupt, key)
			}
			entry := make([]byte, res.slot.Ptr.Size)
			if err := r.Read(ctx, entry, l.entryBase()+res.slot.Ptr.Off); err != nil {
				return model.Value{}, false, err
			}
			v, err := decodeEntry(entry)
			if err != nil {
				return model.Value{}, false, err
			}
			return v, true, nil
		case res.more:
			cur = res.next
		default:
			return model.Value{}, false, nil
		}
	}

	return model.Value{}, false, fmt.Errorf("%w: chain for key %d does not end", model.ErrCorrupt, key)
}
