package format

import (
	"github.com/pkg/errors"

	"github.com/hardwarebob/reftar/rterr"
)

// FileMagic opens every FileHeader record.
var FileMagic = []byte("FILE")

// FSTypeFieldSize is the fixed width of the fs_type field.
const FSTypeFieldSize = 128

// FileType is the tar-compatible file type tag.
type FileType byte

const (
	TypeRegular     FileType = '0'
	TypeHardLink    FileType = '1'
	TypeSymlink     FileType = '2'
	TypeCharDevice  FileType = '3'
	TypeBlockDevice FileType = '4'
	TypeDirectory   FileType = '5'
	TypeFIFO        FileType = '6'
)

func ValidFileType(b byte) bool {
	switch FileType(b) {
	case TypeRegular, TypeHardLink, TypeSymlink, TypeCharDevice, TypeBlockDevice, TypeDirectory, TypeFIFO:
		return true
	}
	return false
}

// FileHeader describes one archive entry's metadata and, for small
// regular files, its entire content inline.
type FileHeader struct {
	FileSize   uint64
	FileType   FileType
	UID, GID   uint64
	DevMajor   uint64
	DevMinor   uint64
	ATime      int64
	MTime      int64
	CTime      int64
	Username   string
	Groupname  string
	Path       string
	Name       string
	LinkName   string
	XattrBlob  []byte
	FSType     string
	FSID       uint64
	InlineData []byte
}

// HasInline reports whether this header carries inline content,
// which is mutually exclusive with extent records: a file is either
// small enough to embed in its own header or described by extents,
// never both.
func (h *FileHeader) HasInline() bool {
	return h.FileType == TypeRegular && len(h.InlineData) > 0
}

// calcHeaderSize returns the exact byte count WriteTo will consume,
// including inline data but excluding trailing block padding — this
// is the value stored in the on-wire header_size field.
func (h *FileHeader) calcHeaderSize() uint32 {
	size := uint32(len(FileMagic)) // magic
	size += 4                      // header_size itself
	size += 12                     // file_size
	size += 1                      // file_type
	size += 8 * 4                  // uid, gid, dev_major, dev_minor
	size += 8 * 3                  // atime, mtime, ctime
	size += 4 + uint32(len(h.Username))
	size += 4 + uint32(len(h.Groupname))
	size += 4 + uint32(len(h.Path))
	size += 4 + uint32(len(h.Name))
	size += 4 + uint32(len(h.LinkName))
	size += 4 + uint32(len(h.XattrBlob))
	size += FSTypeFieldSize
	size += 8 // fs_id
	size += uint32(len(h.InlineData))
	return size
}

// WriteTo writes the file header — including inline data, if any —
// and pads to the next block boundary.
func (h *FileHeader) WriteTo(w *Writer) error {
	headerSize := h.calcHeaderSize()

	if err := w.WriteBytes(FileMagic); err != nil {
		return err
	}
	if err := w.WriteUint32(headerSize); err != nil {
		return err
	}
	if err := w.WriteUint96(h.FileSize); err != nil {
		return err
	}
	if err := w.WriteBytes([]byte{byte(h.FileType)}); err != nil {
		return err
	}
	for _, v := range []uint64{h.UID, h.GID, h.DevMajor, h.DevMinor} {
		if err := w.WriteUint64(v); err != nil {
			return err
		}
	}
	for _, v := range []int64{h.ATime, h.MTime, h.CTime} {
		if err := w.WriteInt64(v); err != nil {
			return err
		}
	}
	for _, s := range []string{h.Username, h.Groupname, h.Path, h.Name, h.LinkName} {
		if err := w.WriteString(s); err != nil {
			return err
		}
	}
	if err := w.WriteUint32(uint32(len(h.XattrBlob))); err != nil {
		return err
	}
	if err := w.WriteBytes(h.XattrBlob); err != nil {
		return err
	}
	if err := w.WriteFixed(h.FSType, FSTypeFieldSize); err != nil {
		return err
	}
	if err := w.WriteUint64(h.FSID); err != nil {
		return err
	}
	if h.HasInline() {
		if err := w.WriteBytes(h.InlineData); err != nil {
			return err
		}
	}
	return w.PadToBlock()
}

// ReadFileHeader reads a FileHeader. If the stream is cleanly at
// end-of-archive (no FILE magic, clean EOF), it returns (nil, nil).
func ReadFileHeader(r *Reader) (*FileHeader, error) {
	matched, err := r.TryReadMagic(FileMagic)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, nil
	}

	startPos := r.Pos() - int64(len(FileMagic))

	headerSize, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}

	fileSize, err := r.ReadUint96()
	if err != nil {
		return nil, err
	}

	typeByte, err := r.ReadBytes(1)
	if err != nil {
		return nil, err
	}
	if !ValidFileType(typeByte[0]) {
		return nil, rterr.New(rterr.CorruptArchive, errors.Errorf("invalid file type %q", typeByte[0]))
	}
	ft := FileType(typeByte[0])

	vals := make([]uint64, 4)
	for i := range vals {
		v, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}

	times := make([]int64, 3)
	for i := range times {
		v, err := r.ReadInt64()
		if err != nil {
			return nil, err
		}
		times[i] = v
	}

	strs := make([]string, 5)
	for i := range strs {
		s, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		strs[i] = s
	}

	xattrLen, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if xattrLen > MaxStringLen {
		return nil, rterr.New(rterr.CorruptArchive, errors.Errorf("xattr blob length %d exceeds budget", xattrLen))
	}
	xattrBlob, err := r.ReadBytes(int(xattrLen))
	if err != nil {
		return nil, err
	}

	fsType, err := r.ReadFixed(FSTypeFieldSize)
	if err != nil {
		return nil, err
	}

	fsID, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}

	var inline []byte
	if ft == TypeRegular && fileSize > 0 && fileSize < uint64(r.blockSize) {
		inline, err = r.ReadBytes(int(fileSize))
		if err != nil {
			return nil, err
		}
	}

	consumed := uint32(r.Pos() - startPos)
	if consumed != headerSize {
		return nil, rterr.New(rterr.CorruptArchive, errors.Errorf(
			"file header_size mismatch: declared %d, consumed %d", headerSize, consumed))
	}

	if err := r.SkipToBlock(); err != nil {
		return nil, err
	}

	return &FileHeader{
		FileSize:   fileSize,
		FileType:   ft,
		UID:        vals[0],
		GID:        vals[1],
		DevMajor:   vals[2],
		DevMinor:   vals[3],
		ATime:      times[0],
		MTime:      times[1],
		CTime:      times[2],
		Username:   strs[0],
		Groupname:  strs[1],
		Path:       strs[2],
		Name:       strs[3],
		LinkName:   strs[4],
		XattrBlob:  xattrBlob,
		FSType:     fsType,
		FSID:       fsID,
		InlineData: inline,
	}, nil
}
