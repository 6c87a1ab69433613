package format

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/hardwarebob/reftar/rterr"
)

// EncodeXattrBlob serializes a set of extended attributes into the
// opaque blob carried by FileHeader.XattrBlob: a sequence of
// (namelen, name, valuelen, value) quads, self-delimited by the
// blob's own length — there is no count prefix. This blob is
// round-tripped byte-for-byte and never interpreted beyond this
// encoding.
func EncodeXattrBlob(attrs map[string][]byte) []byte {
	if len(attrs) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for name, value := range attrs {
		writeBlobString(&buf, name)
		writeBlobString(&buf, string(value))
	}
	return buf.Bytes()
}

func writeBlobString(buf *bytes.Buffer, s string) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf.Write(lenBuf[:])
	buf.WriteString(s)
}

// DecodeXattrBlob parses a blob produced by EncodeXattrBlob back into
// a name-to-value map. A malformed blob (truncated quad, length
// overrun) is reported as CorruptArchive.
func DecodeXattrBlob(blob []byte) (map[string][]byte, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	r := bytes.NewReader(blob)
	attrs := make(map[string][]byte)
	for r.Len() > 0 {
		name, err := readBlobString(r)
		if err != nil {
			return nil, err
		}
		value, err := readBlobString(r)
		if err != nil {
			return nil, err
		}
		attrs[string(name)] = value
	}
	return attrs, nil
}

func readBlobString(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, rterr.New(rterr.CorruptArchive, errors.Wrap(err, "truncated xattr blob"))
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if int64(n) > int64(r.Len()) {
		return nil, rterr.New(rterr.CorruptArchive, errors.New("xattr blob entry length overruns blob"))
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, rterr.New(rterr.CorruptArchive, errors.Wrap(err, "truncated xattr blob"))
	}
	return buf, nil
}
