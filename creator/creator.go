// Package creator implements the reftar creation engine: a single
// forward pass over a list of input paths that emits a valid reftar
// archive, deduplicating block-aligned content as it goes.
package creator

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/hardwarebob/reftar/format"
	"github.com/hardwarebob/reftar/fsprobe"
	"github.com/hardwarebob/reftar/rterr"
)

var errUnsupportedType = errors.New("unsupported file type")

// Creator streams an archive to an underlying writer. It holds the
// dedup table (CRC32 of a block-padded payload -> extent id) for the
// lifetime of one archive.
type Creator struct {
	w            *format.Writer
	blockSize    uint32
	dedup        map[uint32]uint64
	nextExtentID uint64
	verbose      io.Writer
	probe        func(*os.File) (string, uint64)
}

// New builds a Creator that writes a fresh archive header to w at
// blockSize and is ready to accept AddInputs. verbose, if non-nil,
// receives one line per visited entry; pass nil (or io.Discard) for
// silent operation.
func New(w io.Writer, blockSize uint32, verbose io.Writer) (*Creator, error) {
	header, err := format.NewArchiveHeader(blockSize)
	if err != nil {
		return nil, err
	}
	if verbose == nil {
		verbose = io.Discard
	}
	fw := format.NewWriter(w, blockSize)
	if err := header.WriteTo(fw); err != nil {
		return nil, err
	}
	return &Creator{
		w:            fw,
		blockSize:    blockSize,
		dedup:        make(map[uint32]uint64),
		nextExtentID: 1,
		verbose:      verbose,
		probe:        fsprobe.Probe,
	}, nil
}

// Finish flushes any buffered output. No terminator sentinel is
// written — absence of further "FILE" magic at a block boundary is
// what marks end-of-archive.
func (c *Creator) Finish() error {
	return c.w.Flush()
}

// AddInputs walks each of paths — recursing into directories in
// directory-listing order — and emits one entry per visited file.
func (c *Creator) AddInputs(paths []string) error {
	for _, p := range paths {
		clean := filepath.Clean(p)
		info, err := os.Lstat(clean)
		if err != nil {
			return rterr.WithPath(rterr.Io, clean, err)
		}
		if err := c.addEntry(clean, "", filepath.Base(clean), info); err != nil {
			return err
		}
	}
	return nil
}

// addEntry writes sourcePath's header (and, for directories, all of
// its children) under archivePath/archiveName in the archive.
func (c *Creator) addEntry(sourcePath, archivePath, archiveName string, info fs.FileInfo) error {
	if info.Mode()&fs.ModeSocket != 0 || info.Mode()&fs.ModeIrregular != 0 {
		fmt.Fprintln(os.Stderr, "reftar: skipping unsupported file:", sourcePath)
		return nil
	}

	header, err := c.buildFileHeader(sourcePath, archivePath, archiveName, info)
	if err != nil {
		if errors.Is(err, errUnsupportedType) {
			fmt.Fprintln(os.Stderr, "reftar: skipping unsupported file:", sourcePath)
			return nil
		}
		return rterr.WithPath(rterr.Io, sourcePath, err)
	}

	if c.verbose != io.Discard {
		fmt.Fprintln(c.verbose, sourcePath)
	}

	if err := header.WriteTo(c.w); err != nil {
		return rterr.WithPath(rterr.Io, sourcePath, err)
	}

	switch header.FileType {
	case format.TypeDirectory:
		return c.addChildren(sourcePath, filepath.Join(archivePath, archiveName))
	case format.TypeRegular:
		if !header.HasInline() && header.FileSize >= uint64(c.blockSize) {
			if err := c.writeFileExtents(sourcePath, header.FileSize); err != nil {
				return rterr.WithPath(rterr.Io, sourcePath, err)
			}
		}
	}
	return nil
}

// addChildren lists dir's entries in directory-listing order
// (os.ReadDir sorts by filename, giving a stable traversal order
// across runs) and recurses into each.
func (c *Creator) addChildren(dir, archiveDir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return rterr.WithPath(rterr.Io, dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		childSource := filepath.Join(dir, e.Name())
		info, err := e.Info()
		if err != nil {
			return rterr.WithPath(rterr.Io, childSource, err)
		}
		if err := c.addEntry(childSource, archiveDir, e.Name(), info); err != nil {
			return err
		}
	}
	return nil
}

// writeFileExtents streams sourcePath's content in block_size chunks,
// classifying each block as sparse, a reference to an already-seen
// block, or new data. Consecutive Sparse blocks are coalesced into one
// extent (safe: Sparse carries no checksum and never participates in
// dedup); Data and Reference extents stay one block each, so that the
// dedup table's per-block checksum always matches exactly one Data
// extent's own checksum field, with no risk of a coalesced
// multi-block checksum drifting out of sync with a single-block dedup
// hit.
func (c *Creator) writeFileExtents(sourcePath string, fileSize uint64) error {
	f, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer f.Close()

	numBlocks := (fileSize + uint64(c.blockSize) - 1) / uint64(c.blockSize)

	var sparseRun pendingSparse
	flushSparse := func() error {
		if sparseRun.blocks == 0 {
			return nil
		}
		err := c.writeExtent(&format.ExtentHeader{
			ExtentID:          0,
			LengthBlocks:      uint32(sparseRun.blocks),
			ExtentType:        format.ExtentSparse,
			SourceExtentStart: sparseRun.start,
			Checksum:          0,
		}, nil)
		sparseRun = pendingSparse{}
		return err
	}

	for i := uint64(0); i < numBlocks; i++ {
		offset := i * uint64(c.blockSize)
		block := make([]byte, c.blockSize)
		if _, err := io.ReadFull(f, block); err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return err
		}

		if isAllZero(block) {
			if sparseRun.blocks == 0 {
				sparseRun.start = offset
			}
			sparseRun.blocks++
			continue
		}
		if err := flushSparse(); err != nil {
			return err
		}

		checksum := format.ChecksumIEEE(block)
		if existingID, ok := c.dedup[checksum]; ok {
			if err := c.writeExtent(&format.ExtentHeader{
				ExtentID:          existingID,
				LengthBlocks:      1,
				ExtentType:        format.ExtentReference,
				SourceExtentStart: offset,
				Checksum:          checksum,
			}, nil); err != nil {
				return err
			}
			continue
		}

		id := c.nextExtentID
		c.nextExtentID++
		c.dedup[checksum] = id
		if err := c.writeExtent(&format.ExtentHeader{
			ExtentID:          id,
			LengthBlocks:      1,
			ExtentType:        format.ExtentData,
			SourceExtentStart: offset,
			Checksum:          checksum,
		}, block); err != nil {
			return err
		}
	}

	return flushSparse()
}

type pendingSparse struct {
	start  uint64
	blocks uint64
}

func (c *Creator) writeExtent(h *format.ExtentHeader, payload []byte) error {
	if err := h.WriteTo(c.w); err != nil {
		return err
	}
	if payload != nil {
		return c.w.WriteBytes(payload)
	}
	return nil
}

func isAllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
