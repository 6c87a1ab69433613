// Package format implements the reftar wire format: block-aligned
// framing primitives plus the typed ArchiveHeader, FileHeader, and
// ExtentHeader records built on top of them. It does no filesystem
// I/O of its own — it only knows how to turn those records into bytes
// and back, and it enforces the structural invariants from the
// format's own validation rules (magic, version, block size range,
// string length budgets, extent type).
package format

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"

	"github.com/hardwarebob/reftar/rterr"
)

// MinBlockSize and MaxBlockSize bound the archive-wide block size.
const (
	MinBlockSize     = 512
	MaxBlockSize     = 1 << 20
	DefaultBlockSize = 4096
)

// ChecksumIEEE computes the CRC32 used throughout the format: the
// block-padded payload checksum for Data extents, the structural
// checksum copied into Reference extents, and nothing else — reftar
// never hashes a logical file slice directly, only block-padded
// buffers.
func ChecksumIEEE(buf []byte) uint32 {
	return crc32.ChecksumIEEE(buf)
}

// Writer is a block-aligned, position-tracking wrapper over an
// io.Writer. Every header record is written through it so that
// PadToBlock always has an accurate notion of the current stream
// position without the caller needing to track it by hand.
type Writer struct {
	w         *bufio.Writer
	blockSize uint32
	pos       int64
}

// NewWriter wraps w for block-aligned framed writes at blockSize.
func NewWriter(w io.Writer, blockSize uint32) *Writer {
	return &Writer{w: bufio.NewWriter(w), blockSize: blockSize}
}

// Pos reports the writer's logical position in the stream.
func (w *Writer) Pos() int64 { return w.pos }

// BlockSize reports the block size this writer was constructed with.
func (w *Writer) BlockSize() uint32 { return w.blockSize }

// WriteBytes writes b verbatim and advances the position.
func (w *Writer) WriteBytes(b []byte) error {
	n, err := w.w.Write(b)
	w.pos += int64(n)
	if err != nil {
		return rterr.New(rterr.Io, errors.Wrap(err, "write"))
	}
	return nil
}

func (w *Writer) WriteUint16(v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return w.WriteBytes(buf[:])
}

func (w *Writer) WriteUint32(v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return w.WriteBytes(buf[:])
}

func (w *Writer) WriteUint64(v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return w.WriteBytes(buf[:])
}

func (w *Writer) WriteInt64(v int64) error {
	return w.WriteUint64(uint64(v))
}

// WriteUint96 writes v as a 12-byte little-endian integer, matching
// the wire format's 96-bit file_size field. Go has no native 96-bit
// type, so the value is carried as a uint64 — more than sufficient
// for any real file — and the top 4 bytes are always zero on the wire.
func (w *Writer) WriteUint96(v uint64) error {
	var buf [12]byte
	binary.LittleEndian.PutUint64(buf[:8], v)
	return w.WriteBytes(buf[:])
}

// WriteString writes s as a uint32 byte-length prefix followed by its
// bytes, with no NUL terminator.
func (w *Writer) WriteString(s string) error {
	if err := w.WriteUint32(uint32(len(s))); err != nil {
		return err
	}
	return w.WriteBytes([]byte(s))
}

// WriteFixed writes s left-justified into a field of exactly n bytes,
// NUL-padding the remainder (or truncating, which callers should
// avoid triggering). Used for fs_type's fixed 128-byte field.
func (w *Writer) WriteFixed(s string, n int) error {
	buf := make([]byte, n)
	copy(buf, s)
	return w.WriteBytes(buf)
}

// PadToBlock zero-pads the stream up to the next multiple of the
// writer's block size. A position that is already block-aligned is
// left untouched (i.e. no full block of padding is ever emitted).
func (w *Writer) PadToBlock() error {
	rem := w.pos % int64(w.blockSize)
	if rem == 0 {
		return nil
	}
	pad := int64(w.blockSize) - rem
	return w.WriteBytes(make([]byte, pad))
}

// Flush flushes the underlying buffered writer.
func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return rterr.New(rterr.Io, errors.Wrap(err, "flush"))
	}
	return nil
}

// Reader is the read-side counterpart to Writer.
type Reader struct {
	r         *bufio.Reader
	blockSize uint32
	pos       int64
}

// NewReader wraps r for block-aligned framed reads at blockSize.
func NewReader(r io.Reader, blockSize uint32) *Reader {
	return &Reader{r: bufio.NewReader(r), blockSize: blockSize}
}

func (r *Reader) Pos() int64 { return r.pos }

func (r *Reader) SetBlockSize(blockSize uint32) { r.blockSize = blockSize }

// AtEOF reports whether the stream has no more bytes to offer, without
// consuming any. Callers use this at a record boundary to tell a clean
// end of input apart from a read that stops partway through a record.
func (r *Reader) AtEOF() bool {
	_, err := r.r.Peek(1)
	return err != nil
}

// ReadBytes reads exactly n bytes or returns a CorruptArchive error if
// the stream ends partway through them.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(r.r, buf)
	r.pos += int64(read)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, rterr.New(rterr.CorruptArchive, errors.Wrap(err, "truncated record"))
		}
		return nil, rterr.New(rterr.Io, errors.Wrap(err, "read"))
	}
	return buf, nil
}

// TryReadMagic reads exactly len(expected) bytes and reports whether
// they equal expected. A clean end-of-stream before any byte is read
// is reported as (false, nil) — end of archive, not corruption. A
// short read that consumed at least one byte, or a full read of
// bytes that simply don't match expected, is CorruptArchive: absence
// of the magic only signals end-of-archive when nothing at all was
// left to read at the block boundary.
func (r *Reader) TryReadMagic(expected []byte) (matched bool, err error) {
	buf := make([]byte, len(expected))
	n, readErr := io.ReadFull(r.r, buf)
	r.pos += int64(n)
	if readErr != nil {
		if n == 0 && errors.Is(readErr, io.EOF) {
			return false, nil
		}
		return false, rterr.New(rterr.CorruptArchive, errors.Wrap(readErr, "truncated magic"))
	}
	if string(buf) != string(expected) {
		return false, rterr.New(rterr.CorruptArchive, errors.Errorf("expected magic %q, got %q", expected, buf))
	}
	return true, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// ReadUint96 reads a 12-byte little-endian integer back into a
// uint64, per WriteUint96. A value whose top 4 bytes are non-zero
// cannot be represented and is reported as CorruptArchive.
func (r *Reader) ReadUint96() (uint64, error) {
	b, err := r.ReadBytes(12)
	if err != nil {
		return 0, err
	}
	for _, c := range b[8:] {
		if c != 0 {
			return 0, rterr.New(rterr.CorruptArchive, errors.New("96-bit size exceeds 64 bits"))
		}
	}
	return binary.LittleEndian.Uint64(b[:8]), nil
}

// MaxStringLen bounds a single length-prefixed string field so a
// corrupt length prefix cannot force an unbounded allocation.
const MaxStringLen = 1 << 24

func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	if n > MaxStringLen {
		return "", rterr.New(rterr.CorruptArchive, errors.Errorf("string length %d exceeds budget", n))
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadFixed reads exactly n bytes and trims trailing NUL bytes.
func (r *Reader) ReadFixed(n int) (string, error) {
	b, err := r.ReadBytes(n)
	if err != nil {
		return "", err
	}
	i := len(b)
	for i > 0 && b[i-1] == 0 {
		i--
	}
	return string(b[:i]), nil
}

// SkipBytes discards n bytes without allocating a buffer for them,
// for callers (the archive lister) that need to walk past extent
// payloads without reading them.
func (r *Reader) SkipBytes(n int64) error {
	discarded, err := io.CopyN(io.Discard, r.r, n)
	r.pos += discarded
	if err != nil {
		return rterr.New(rterr.CorruptArchive, errors.Wrap(err, "truncated record"))
	}
	return nil
}

// SkipToBlock discards bytes up to the next block boundary.
func (r *Reader) SkipToBlock() error {
	rem := r.pos % int64(r.blockSize)
	if rem == 0 {
		return nil
	}
	pad := int64(r.blockSize) - rem
	_, err := r.ReadBytes(int(pad))
	return err
}
