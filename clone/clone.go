// Package clone wraps the filesystem's physical-range cloning
// primitive behind a small portable interface, extended from a
// single whole-extent reflink into the block-aligned range clone the
// Extractor needs for arbitrary Reference extents.
package clone

import (
	"errors"
	"os"
)

var errInvalidLength = errors.New("clone-range length must be greater than zero")

// Result classifies the outcome of a clone attempt.
type Result int

const (
	// Cloned means the destination range now physically shares the
	// source range's on-disk blocks.
	Cloned Result = iota
	// Unsupported means the clone could not be performed for a
	// recoverable reason (cross-filesystem, non-CoW filesystem, or a
	// kernel without the primitive) — callers must fall back to a
	// byte copy.
	Unsupported
)

// Cloner is the capability injected into the Extractor. The
// production Linux implementation issues FICLONERANGE; a stub
// implementation that always reports Unsupported keeps the Extractor
// portable to platforms without the primitive.
type Cloner interface {
	// TryCloneRange attempts to make dst's bytes in
	// [dstOffset, dstOffset+length) physically share src's on-disk
	// blocks in [srcOffset, srcOffset+length). length must be a
	// positive multiple of the archive's block size, and so must
	// srcOffset and dstOffset. Returns (Cloned, nil) on success,
	// (Unsupported, nil) if the operation could not be performed for
	// a recoverable reason, or (Unsupported, err) for a genuine I/O
	// error — the latter is fatal to the calling extent.
	TryCloneRange(src *os.File, srcOffset uint64, dst *os.File, dstOffset uint64, length uint64) (Result, error)
}

// New returns the platform's Cloner.
func New() Cloner {
	return &osCloner{}
}
