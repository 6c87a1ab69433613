package format

import (
	"github.com/pkg/errors"

	"github.com/hardwarebob/reftar/rterr"
)

// ExtentType tags the kind of extent record.
type ExtentType byte

const (
	ExtentData      ExtentType = 'D'
	ExtentSparse    ExtentType = 'S'
	ExtentReference ExtentType = 'R'
)

func ValidExtentType(b byte) bool {
	switch ExtentType(b) {
	case ExtentData, ExtentSparse, ExtentReference:
		return true
	}
	return false
}

// ExtentHeader describes one extent following a non-inline regular
// file's FileHeader. A Data extent's header is immediately followed
// by LengthBlocks*blockSize bytes of raw payload; Sparse and
// Reference extents carry no payload.
type ExtentHeader struct {
	ExtentID          uint64
	LengthBlocks      uint32
	ExtentType        ExtentType
	SourceExtentStart uint64
	Checksum          uint32
}

// Length returns the byte length this extent represents.
func (e *ExtentHeader) Length(blockSize uint32) uint64 {
	return uint64(e.LengthBlocks) * uint64(blockSize)
}

func (e *ExtentHeader) WriteTo(w *Writer) error {
	if err := w.WriteUint64(e.ExtentID); err != nil {
		return err
	}
	if err := w.WriteUint32(e.LengthBlocks); err != nil {
		return err
	}
	if err := w.WriteBytes([]byte{byte(e.ExtentType)}); err != nil {
		return err
	}
	if err := w.WriteUint64(e.SourceExtentStart); err != nil {
		return err
	}
	if err := w.WriteUint32(e.Checksum); err != nil {
		return err
	}
	return w.PadToBlock()
}

func ReadExtentHeader(r *Reader) (*ExtentHeader, error) {
	extentID, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	lengthBlocks, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	typeByte, err := r.ReadBytes(1)
	if err != nil {
		return nil, err
	}
	if !ValidExtentType(typeByte[0]) {
		return nil, rterr.New(rterr.CorruptArchive, errors.Errorf("invalid extent type %q", typeByte[0]))
	}
	sourceStart, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	checksum, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if err := r.SkipToBlock(); err != nil {
		return nil, err
	}
	return &ExtentHeader{
		ExtentID:          extentID,
		LengthBlocks:      lengthBlocks,
		ExtentType:        ExtentType(typeByte[0]),
		SourceExtentStart: sourceStart,
		Checksum:          checksum,
	}, nil
}
