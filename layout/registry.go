package layout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/hupe1980/rgraph/blobstore"
	"github.com/hupe1980/rgraph/internal/hash"
	"github.com/hupe1980/rgraph/model"
)

var (
	// ErrNotPublished is returned by Fetch when no descriptor exists under the name.
	ErrNotPublished = errors.New("layout: descriptor not published")

	// ErrAlreadyPublished is returned by Publish when the name is taken.
	// A published descriptor is immutable.
	ErrAlreadyPublished = errors.New("layout: descriptor already published")
)

// Registry publishes descriptors so compute nodes can find them.
// Implementations must be safe for concurrent use.
type Registry interface {
	// Publish stores d under name. It fails with ErrAlreadyPublished if
	// name already holds a descriptor.
	Publish(ctx context.Context, name string, d Descriptor) error
	// Fetch returns the descriptor stored under name.
	Fetch(ctx context.Context, name string) (Descriptor, error)
}

// NameRegistry is a Registry that also keeps the name tables of a graph
// next to its descriptor. Name tables are immutable like descriptors and
// are published before them, so a fetched descriptor finds its names.
type NameRegistry interface {
	Registry
	// PublishNames stores names under name. It fails with
	// ErrAlreadyPublished if name already holds tables.
	PublishNames(ctx context.Context, name string, names model.Names) error
	// FetchNames returns the tables stored under name, or ErrNotPublished.
	FetchNames(ctx context.Context, name string) (model.Names, error)
}

// RecordSize is the size of a registry record: the encoded descriptor
// followed by a little-endian CRC32C of it.
const RecordSize = Size + hash.TrailerSize

// EncodeRecord returns the checksummed registry record for d.
func EncodeRecord(d Descriptor) ([]byte, error) {
	b, err := d.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return hash.AppendCRC32C(b), nil
}

// DecodeRecord verifies and decodes a record written by EncodeRecord.
func DecodeRecord(b []byte) (Descriptor, error) {
	var d Descriptor
	if len(b) != RecordSize {
		return d, fmt.Errorf("%w: record of %d bytes, want %d", ErrInvalidDescriptor, len(b), RecordSize)
	}
	payload, got, want, ok := hash.SplitCRC32C(b)
	if !ok {
		return d, fmt.Errorf("%w: checksum mismatch (got %08x, want %08x)", ErrInvalidDescriptor, got, want)
	}
	if err := d.UnmarshalBinary(payload); err != nil {
		return d, err
	}
	return d, nil
}

// EncodeNames returns the checksummed record for names: JSON followed by a
// little-endian CRC32C of it.
func EncodeNames(names model.Names) ([]byte, error) {
	if _, err := model.NewDictionary(names); err != nil {
		return nil, err
	}
	b, err := json.Marshal(names)
	if err != nil {
		return nil, err
	}
	return hash.AppendCRC32C(b), nil
}

// DecodeNames verifies and decodes a record written by EncodeNames.
func DecodeNames(b []byte) (model.Names, error) {
	var names model.Names
	payload, got, want, ok := hash.SplitCRC32C(b)
	if !ok {
		return names, fmt.Errorf("%w: name tables checksum mismatch (got %08x, want %08x)", model.ErrCorrupt, got, want)
	}
	if err := json.Unmarshal(payload, &names); err != nil {
		return names, fmt.Errorf("%w: name tables: %w", model.ErrCorrupt, err)
	}
	if _, err := model.NewDictionary(names); err != nil {
		return names, err
	}
	return names, nil
}

// BlobRegistry keeps descriptors as blobs under a fixed prefix.
type BlobRegistry struct {
	store       blobstore.BlobStore
	prefix      string
	namesPrefix string
}

// NewBlobRegistry returns a registry over store. Descriptors live under
// "layouts/<name>" and name tables under "names/<name>".
func NewBlobRegistry(store blobstore.BlobStore) *BlobRegistry {
	return &BlobRegistry{store: store, prefix: "layouts", namesPrefix: "names"}
}

func (r *BlobRegistry) blobName(name string) string {
	return path.Join(r.prefix, name)
}

func (r *BlobRegistry) putOnce(ctx context.Context, blobName string, rec []byte) error {
	b, err := r.store.Open(ctx, blobName)
	if err == nil {
		_ = b.Close()
		return fmt.Errorf("%w: %q", ErrAlreadyPublished, blobName)
	}
	if !errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("layout: check %q: %w", blobName, err)
	}
	return r.store.Put(ctx, blobName, rec)
}

// Publish implements Registry.
//
// The existence check and the write are two calls, so two concurrent
// publishers of one name may both succeed. Use dynamodb.Registry when that
// matters.
func (r *BlobRegistry) Publish(ctx context.Context, name string, d Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	rec, err := EncodeRecord(d)
	if err != nil {
		return err
	}
	return r.putOnce(ctx, r.blobName(name), rec)
}

// Fetch implements Registry.
func (r *BlobRegistry) Fetch(ctx context.Context, name string) (Descriptor, error) {
	rec, err := blobstore.ReadAll(ctx, r.store, r.blobName(name))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return Descriptor{}, fmt.Errorf("%w: %q", ErrNotPublished, name)
		}
		return Descriptor{}, fmt.Errorf("layout: fetch %q: %w", name, err)
	}
	return DecodeRecord(rec)
}

// PublishNames implements NameRegistry. It shares the race of Publish.
func (r *BlobRegistry) PublishNames(ctx context.Context, name string, names model.Names) error {
	rec, err := EncodeNames(names)
	if err != nil {
		return err
	}
	return r.putOnce(ctx, path.Join(r.namesPrefix, name), rec)
}

// FetchNames implements NameRegistry.
func (r *BlobRegistry) FetchNames(ctx context.Context, name string) (model.Names, error) {
	rec, err := blobstore.ReadAll(ctx, r.store, path.Join(r.namesPrefix, name))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return model.Names{}, fmt.Errorf("%w: names %q", ErrNotPublished, name)
		}
		return model.Names{}, fmt.Errorf("layout: fetch names %q: %w", name, err)
	}
	return DecodeNames(rec)
}

var _ NameRegistry = (*BlobRegistry)(nil)
