package rgraph

import (
	"errors"
	"fmt"

	"github.com/hupe1980/rgraph/internal/datastore"
	"github.com/hupe1980/rgraph/internal/kvstore"
	"github.com/hupe1980/rgraph/internal/table"
	"github.com/hupe1980/rgraph/layout"
	"github.com/hupe1980/rgraph/model"
	"github.com/hupe1980/rgraph/transport"
)

var (
	// ErrCapacity is matched by every capacity error.
	ErrCapacity = model.ErrCapacity
	// ErrDuplicateKey is returned when a vertex, edge or property is loaded twice.
	ErrDuplicateKey = model.ErrDuplicateKey
	// ErrNotFound is returned when a vertex or edge does not exist.
	ErrNotFound = model.ErrNotFound
	// ErrCorrupt is returned for inconsistent region contents or images.
	ErrCorrupt = model.ErrCorrupt
	// ErrInvalidID is returned for ids outside their valid range.
	ErrInvalidID = model.ErrInvalidID
	// ErrTypeMismatch is returned when a value is read as the wrong type.
	ErrTypeMismatch = model.ErrTypeMismatch
	// ErrInvalidName is returned for a name table entry that cannot be stored.
	ErrInvalidName = model.ErrInvalidName

	// ErrFrozen is returned when loading a memory node twice.
	ErrFrozen = datastore.ErrFrozen
	// ErrClosed is returned by operations on a closed memory node or graph.
	ErrClosed = errors.New("rgraph: closed")

	// ErrSubmission is wrapped by an OpError when a request could not be posted.
	ErrSubmission = transport.ErrSubmission
	// ErrCompletion is wrapped by an OpError when a request completed with an error.
	ErrCompletion = transport.ErrCompletion

	// ErrInvalidDescriptor is returned for a malformed layout descriptor.
	ErrInvalidDescriptor = layout.ErrInvalidDescriptor
	// ErrNotPublished is returned when fetching a descriptor that was never published.
	ErrNotPublished = layout.ErrNotPublished
	// ErrAlreadyPublished is returned when publishing under a taken name.
	ErrAlreadyPublished = layout.ErrAlreadyPublished

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("rgraph: invalid config")
)

type (
	// TableCapacityError reports a full record array or extension heap.
	TableCapacityError = table.CapacityError
	// StoreCapacityError reports a full indirect pool or entry heap.
	StoreCapacityError = kvstore.CapacityError
	// OpError reports a failed transport operation.
	OpError = transport.OpError
)

// ErrInvalidGeometry indicates a region size that cannot hold its structures.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrInvalidGeometry struct {
	Region string
	cause  error
}

func (e *ErrInvalidGeometry) Error() string {
	return fmt.Sprintf("invalid geometry for %s: %v", e.Region, e.cause)
}

func (e *ErrInvalidGeometry) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, table.ErrInvalidGeometry) {
		return &ErrInvalidGeometry{Region: "table", cause: err}
	}
	if errors.Is(err, kvstore.ErrInvalidGeometry) {
		return &ErrInvalidGeometry{Region: "property store", cause: err}
	}
	if errors.Is(err, datastore.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return err
}
