// Package extractor implements the reftar extraction engine: a single
// forward pass over an archive that recreates the file tree it
// describes, resolving References by cloning extents from
// previously-extracted files and falling back to a byte copy when
// cloning is not possible.
package extractor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/hardwarebob/reftar/clone"
	"github.com/hardwarebob/reftar/format"
	"github.com/hardwarebob/reftar/rterr"
)

// cachedExtent is the Extractor-side counterpart to the Creator's
// dedup table: it remembers where a Data extent's bytes ended up on
// disk so a later Reference extent can clone from them.
type cachedExtent struct {
	path   string
	offset uint64
	length uint64
}

// Extractor parses an archive forward and recreates it under an
// output root. It holds the extent cache for the lifetime of one
// extraction.
type Extractor struct {
	r           *format.Reader
	blockSize   uint32
	outputRoot  string
	extentCache map[uint64]cachedExtent
	cloner      clone.Cloner
	verbose     io.Writer
}

// New reads the archive header from r and prepares to extract into
// outputRoot. verbose, if non-nil, receives one line per extracted
// entry.
func New(r io.Reader, outputRoot string, verbose io.Writer) (*Extractor, error) {
	fr := format.NewReader(r, format.DefaultBlockSize)
	header, err := format.ReadArchiveHeader(fr)
	if err != nil {
		return nil, err
	}
	if verbose == nil {
		verbose = io.Discard
	}
	return &Extractor{
		r:           fr,
		blockSize:   header.BlockSize,
		outputRoot:  outputRoot,
		extentCache: make(map[uint64]cachedExtent),
		cloner:      clone.New(),
		verbose:     verbose,
	}, nil
}

func (e *Extractor) warnf(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, "reftar: "+msg+"\n", args...)
}

// errTruncatedArchive signals that the stream ended cleanly at a
// record boundary partway through extraction. It never escapes this
// package: ExtractAll treats it as a normal end-of-archive.
var errTruncatedArchive = errors.New("truncated archive")

// ExtractAll walks AwaitFileHeader -> ReadingExtents -> Finalizing for
// every entry in the archive until it observes a clean end-of-archive,
// whether that comes after the last entry's final extent or partway
// through a later entry whose extents were cut off by truncation.
func (e *Extractor) ExtractAll() error {
	for {
		header, err := format.ReadFileHeader(e.r)
		if err != nil {
			return err
		}
		if header == nil {
			return nil
		}
		if err := e.extractEntry(header); err != nil {
			if errors.Is(err, errTruncatedArchive) {
				return nil
			}
			return err
		}
	}
}

func (e *Extractor) extractEntry(header *format.FileHeader) error {
	outPath := filepath.Join(e.outputRoot, header.Path, header.Name)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return rterr.WithPath(rterr.Io, outPath, err)
	}

	if e.verbose != io.Discard {
		fmt.Fprintln(e.verbose, outPath)
	}

	switch header.FileType {
	case format.TypeDirectory:
		if err := os.MkdirAll(outPath, 0o755); err != nil {
			return rterr.WithPath(rterr.Io, outPath, err)
		}
	case format.TypeSymlink:
		if err := os.Symlink(header.LinkName, outPath); err != nil {
			if !os.IsExist(err) {
				return rterr.WithPath(rterr.Io, outPath, err)
			}
		}
	case format.TypeRegular, format.TypeHardLink:
		if err := e.extractRegular(outPath, header); err != nil {
			return err
		}
	case format.TypeFIFO:
		if err := mkfifo(outPath); err != nil {
			e.warnf("could not create fifo %s: %v", outPath, err)
			return nil
		}
	case format.TypeCharDevice, format.TypeBlockDevice:
		if err := mknod(outPath, header); err != nil {
			e.warnf("could not create device node %s: %v", outPath, err)
			return nil
		}
	default:
		e.warnf("skipping unsupported file type %q at %s", header.FileType, outPath)
		return nil
	}

	e.applyMetadata(outPath, header)
	return nil
}

func (e *Extractor) extractRegular(outPath string, header *format.FileHeader) error {
	if header.HasInline() {
		if err := os.WriteFile(outPath, header.InlineData, 0o644); err != nil {
			return rterr.WithPath(rterr.Io, outPath, err)
		}
		return nil
	}
	if header.FileSize == 0 {
		f, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return rterr.WithPath(rterr.Io, outPath, err)
		}
		return f.Close()
	}
	return e.extractExtents(outPath, header.FileSize)
}

// extractExtents consumes ExtentHeaders until the file's logical
// length has been accounted for. An archive truncated exactly at a
// record boundary between two extents (or between the FileHeader and
// its first extent) ends the loop cleanly via errTruncatedArchive
// instead of surfacing a corrupt-archive error: the bytes written so
// far for this entry are left in place, and extraction overall still
// terminates successfully.
func (e *Extractor) extractExtents(outPath string, fileSize uint64) error {
	out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return rterr.WithPath(rterr.Io, outPath, err)
	}
	defer out.Close()

	var remaining = fileSize
	var dstOffset uint64

	for remaining > 0 {
		if e.r.AtEOF() {
			return errTruncatedArchive
		}
		eh, err := format.ReadExtentHeader(e.r)
		if err != nil {
			return err
		}
		length := eh.Length(e.blockSize)

		switch eh.ExtentType {
		case format.ExtentData:
			payload, err := e.r.ReadBytes(int(length))
			if err != nil {
				return err
			}
			if got := format.ChecksumIEEE(payload); got != eh.Checksum {
				return rterr.WithPath(rterr.CorruptArchive, outPath, errors.Errorf(
					"checksum mismatch for extent %d: expected %08x, got %08x", eh.ExtentID, eh.Checksum, got))
			}
			writeLen := min64(length, remaining)
			if _, err := out.WriteAt(payload[:writeLen], int64(dstOffset)); err != nil {
				return rterr.WithPath(rterr.Io, outPath, err)
			}
			e.extentCache[eh.ExtentID] = cachedExtent{path: outPath, offset: dstOffset, length: length}
			dstOffset += writeLen
			remaining -= writeLen

		case format.ExtentSparse:
			if eh.Checksum != 0 {
				e.warnf("sparse extent with non-zero checksum at %s", outPath)
			}
			writeLen := min64(length, remaining)
			dstOffset += writeLen
			remaining -= writeLen

		case format.ExtentReference:
			writeLen, err := e.resolveReference(out, outPath, eh, dstOffset, remaining)
			if err != nil {
				return err
			}
			dstOffset += writeLen.dstAdvance
			remaining -= writeLen.remainingConsumed
		}
	}

	if err := out.Truncate(int64(fileSize)); err != nil {
		return rterr.WithPath(rterr.Io, outPath, err)
	}
	return nil
}

type referenceAdvance struct {
	dstAdvance        uint64
	remainingConsumed uint64
}

// resolveReference looks up the target Data extent in the extent
// cache and either clones its bytes into the destination or falls
// back to a byte copy. The target is never re-added to the cache:
// only Data extents are clone sources.
func (e *Extractor) resolveReference(out *os.File, outPath string, eh *format.ExtentHeader, dstOffset, remaining uint64) (referenceAdvance, error) {
	cached, ok := e.extentCache[eh.ExtentID]
	if !ok {
		return referenceAdvance{}, rterr.WithPath(rterr.CorruptArchive, outPath,
			errors.Errorf("reference to unknown extent id %d", eh.ExtentID))
	}

	srcLen := cached.length
	writeLen := min64(srcLen, remaining)

	src, err := os.Open(cached.path)
	if err != nil {
		return referenceAdvance{}, rterr.WithPath(rterr.Io, outPath, err)
	}
	defer src.Close()

	if srcLen > 0 && srcLen%uint64(e.blockSize) == 0 && cached.offset%uint64(e.blockSize) == 0 && dstOffset%uint64(e.blockSize) == 0 {
		result, err := e.cloner.TryCloneRange(src, cached.offset, out, dstOffset, srcLen)
		if err != nil {
			return referenceAdvance{}, rterr.WithPath(rterr.Io, outPath, err)
		}
		if result == clone.Cloned {
			return referenceAdvance{dstAdvance: srcLen, remainingConsumed: writeLen}, nil
		}
	}

	buf := make([]byte, srcLen)
	if _, err := src.ReadAt(buf, int64(cached.offset)); err != nil && err != io.EOF {
		return referenceAdvance{}, rterr.WithPath(rterr.Io, outPath, err)
	}
	if _, err := out.WriteAt(buf[:writeLen], int64(dstOffset)); err != nil {
		return referenceAdvance{}, rterr.WithPath(rterr.Io, outPath, err)
	}
	return referenceAdvance{dstAdvance: writeLen, remainingConsumed: writeLen}, nil
}

func (e *Extractor) applyMetadata(path string, header *format.FileHeader) {
	mode := os.FileMode(0o644)
	if header.FileType == format.TypeDirectory {
		mode = 0o755
	}
	if header.FileType != format.TypeSymlink {
		if err := os.Chmod(path, mode); err != nil {
			e.warnf("could not chmod %s: %v", path, err)
		}
	}

	if err := chown(path, header.UID, header.GID); err != nil {
		e.warnf("could not chown %s: %v", path, err)
	}

	if header.FileType != format.TypeSymlink {
		atime := time.Unix(header.ATime, 0)
		mtime := time.Unix(header.MTime, 0)
		if err := os.Chtimes(path, atime, mtime); err != nil {
			e.warnf("could not set times on %s: %v", path, err)
		}
	}

	if len(header.XattrBlob) > 0 {
		restoreXattrs(path, header.FileType == format.TypeSymlink, header.XattrBlob, e.warnf)
	}
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
