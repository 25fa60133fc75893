package model

import "errors"

// Sentinel errors shared by the storage and access layers.
var (
	// ErrCapacity is matched by every capacity error: a full record array,
	// extension heap, entry heap or indirect bucket pool.
	ErrCapacity = errors.New("capacity exhausted")

	// ErrDuplicateKey is returned when a key is inserted twice.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNotFound is returned when a vertex or edge does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCorrupt is returned when a structure read from a region is inconsistent.
	ErrCorrupt = errors.New("corrupt data")

	// ErrInvalidName is returned for a name table entry that cannot be stored.
	ErrInvalidName = errors.New("invalid name")
)
