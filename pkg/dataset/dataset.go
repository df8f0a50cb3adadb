// Package dataset implements the dense vector dataset abstraction: a
// mapping from vector id to a fixed-dimensionality row, backed either by
// one contiguous allocation or by a sequence of fixed-size blocks that can
// grow and shrink.
package dataset

import "fmt"

// Dataset is the common interface both variants satisfy. Get returns a
// reference into the backing storage where possible (Contiguous) or a
// freshly sliced block row (Blocked) — callers that need to retain a row
// past the next mutating call must copy it.
type Dataset interface {
	Size() uint64
	Dimensions() int
	Get(id uint64) ([]float32, error)
	Set(id uint64, v []float32) error
	// Prefetch hints the backing storage to warm the cache line(s) for id.
	// Pure-memory backings may no-op.
	Prefetch(id uint64)
}

// ErrOutOfRange is returned by Get/Set when id is not a valid row index.
type ErrOutOfRange struct {
	Id   uint64
	Size uint64
}

func (e ErrOutOfRange) Error() string {
	return fmt.Sprintf("dataset: id %d out of range [0, %d)", e.Id, e.Size)
}

// ErrDimensionMismatch is returned by Set when the supplied row does not
// have exactly Dimensions() elements.
type ErrDimensionMismatch struct {
	Want, Got int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dataset: dimension mismatch: want %d, got %d", e.Want, e.Got)
}
