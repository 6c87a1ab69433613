package extractor

import (
	"io"

	"github.com/pkg/errors"

	"github.com/hardwarebob/reftar/format"
)

// Entry is one archive member as reported by List, without any of
// its content having been read from disk.
type Entry struct {
	Header *format.FileHeader
}

// List reads r's archive header and every FileHeader in it, skipping
// extent payloads rather than decoding them. It never writes to the
// filesystem. An archive truncated at a record boundary stops the
// scan and returns the entries found up to that point rather than an
// error, matching ExtractAll's truncation handling.
func List(r io.Reader) (*format.ArchiveHeader, []Entry, error) {
	fr := format.NewReader(r, format.DefaultBlockSize)
	archiveHeader, err := format.ReadArchiveHeader(fr)
	if err != nil {
		return nil, nil, err
	}

	var entries []Entry
	for {
		header, err := format.ReadFileHeader(fr)
		if err != nil {
			return nil, nil, err
		}
		if header == nil {
			break
		}
		entries = append(entries, Entry{Header: header})

		if header.FileType == format.TypeRegular && !header.HasInline() && header.FileSize > 0 {
			if err := skipExtents(fr, archiveHeader.BlockSize, header.FileSize); err != nil {
				if errors.Is(err, errTruncatedArchive) {
					break
				}
				return nil, nil, err
			}
		}
	}
	return archiveHeader, entries, nil
}

// skipExtents advances past fileSize bytes' worth of extent records
// without reading Data payloads into memory.
func skipExtents(fr *format.Reader, blockSize uint32, fileSize uint64) error {
	var consumed uint64
	for consumed < fileSize {
		if fr.AtEOF() {
			return errTruncatedArchive
		}
		eh, err := format.ReadExtentHeader(fr)
		if err != nil {
			return err
		}
		length := eh.Length(blockSize)
		if eh.ExtentType == format.ExtentData {
			if err := fr.SkipBytes(int64(length)); err != nil {
				return err
			}
		}
		consumed += length
	}
	return nil
}
