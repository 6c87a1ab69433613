package format

import (
	"github.com/pkg/errors"

	"github.com/hardwarebob/reftar/rterr"
)

// ArchiveMagic is the fixed 6-byte identifier at the start of every
// reftar archive.
var ArchiveMagic = []byte("reftar")

// Version is the only archive format version this package produces
// or accepts.
const Version uint16 = 1

// ArchiveHeader is the single fixed-size record that opens every
// archive.
type ArchiveHeader struct {
	Version   uint16
	BlockSize uint32
}

// NewArchiveHeader validates blockSize against the format's permitted
// range and multiple-of-512 rule before building a header for it.
func NewArchiveHeader(blockSize uint32) (*ArchiveHeader, error) {
	if err := ValidateBlockSize(blockSize); err != nil {
		return nil, err
	}
	return &ArchiveHeader{Version: Version, BlockSize: blockSize}, nil
}

// ValidateBlockSize enforces the format's block size constraints:
// 512 <= block_size <= 1,048,576 and a multiple of 512.
func ValidateBlockSize(blockSize uint32) error {
	if blockSize < MinBlockSize || blockSize > MaxBlockSize {
		return rterr.New(rterr.Validation, errors.Errorf(
			"block size %d out of range [%d, %d]", blockSize, MinBlockSize, MaxBlockSize))
	}
	if blockSize%512 != 0 {
		return rterr.New(rterr.Validation, errors.Errorf(
			"block size %d is not a multiple of 512", blockSize))
	}
	return nil
}

// WriteTo writes the archive header and pads to the next block
// boundary.
func (h *ArchiveHeader) WriteTo(w *Writer) error {
	if err := w.WriteBytes(ArchiveMagic); err != nil {
		return err
	}
	if err := w.WriteUint16(h.Version); err != nil {
		return err
	}
	if err := w.WriteUint32(h.BlockSize); err != nil {
		return err
	}
	return w.PadToBlock()
}

// ReadArchiveHeader reads and validates the archive header. r must be
// freshly constructed with any block size (it is unused until the
// real block size is known); ReadArchiveHeader then switches r to the
// header's BlockSize itself and skips to the next block boundary.
func ReadArchiveHeader(r *Reader) (*ArchiveHeader, error) {
	magic, err := r.ReadBytes(len(ArchiveMagic))
	if err != nil {
		return nil, err
	}
	if string(magic) != string(ArchiveMagic) {
		return nil, rterr.New(rterr.CorruptArchive, errors.New("bad archive magic"))
	}
	version, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, rterr.New(rterr.Validation, errors.Errorf("unsupported archive version %d", version))
	}
	blockSize, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if err := ValidateBlockSize(blockSize); err != nil {
		return nil, err
	}
	r.SetBlockSize(blockSize)
	if err := r.SkipToBlock(); err != nil {
		return nil, err
	}
	return &ArchiveHeader{Version: version, BlockSize: blockSize}, nil
}
