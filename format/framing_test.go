package format

import (
	"bytes"
	"testing"

	"github.com/hardwarebob/reftar/rterr"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 512)

	if err := w.WriteUint32(0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteString("hello world"); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteInt64(-42); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUint96(1 << 40); err != nil {
		t.Fatal(err)
	}
	if err := w.PadToBlock(); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	if w.Pos()%512 != 0 {
		t.Fatalf("writer position %d not block-aligned", w.Pos())
	}
	if buf.Len()%512 != 0 {
		t.Fatalf("buffer length %d not block-aligned", buf.Len())
	}

	r := NewReader(&buf, 512)
	v, err := r.ReadUint32()
	if err != nil || v != 0xdeadbeef {
		t.Fatalf("ReadUint32: %v, %v", v, err)
	}
	s, err := r.ReadString()
	if err != nil || s != "hello world" {
		t.Fatalf("ReadString: %q, %v", s, err)
	}
	i, err := r.ReadInt64()
	if err != nil || i != -42 {
		t.Fatalf("ReadInt64: %v, %v", i, err)
	}
	u96, err := r.ReadUint96()
	if err != nil || u96 != 1<<40 {
		t.Fatalf("ReadUint96: %v, %v", u96, err)
	}
	if err := r.SkipToBlock(); err != nil {
		t.Fatal(err)
	}
	if r.Pos()%512 != 0 {
		t.Fatalf("reader position %d not block-aligned", r.Pos())
	}
}

func TestTryReadMagicCleanEOF(t *testing.T) {
	r := NewReader(bytes.NewReader(nil), 512)
	matched, err := r.TryReadMagic([]byte("FILE"))
	if err != nil {
		t.Fatalf("expected no error at clean EOF, got %v", err)
	}
	if matched {
		t.Fatal("expected no match at clean EOF")
	}
}

func TestTryReadMagicMismatchIsCorrupt(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("ARCH")), 512)
	_, err := r.TryReadMagic([]byte("FILE"))
	if err == nil {
		t.Fatal("expected an error for a full read that does not match")
	}
	if rterr.KindOf(err) != rterr.CorruptArchive {
		t.Fatalf("expected CorruptArchive, got %v", rterr.KindOf(err))
	}
}

func TestTryReadMagicTruncatedIsCorrupt(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("FI")), 512)
	_, err := r.TryReadMagic([]byte("FILE"))
	if err == nil {
		t.Fatal("expected an error for a truncated magic read")
	}
	if rterr.KindOf(err) != rterr.CorruptArchive {
		t.Fatalf("expected CorruptArchive, got %v", rterr.KindOf(err))
	}
}

func TestChecksumIEEEDeterministic(t *testing.T) {
	a := ChecksumIEEE([]byte("the quick brown fox"))
	b := ChecksumIEEE([]byte("the quick brown fox"))
	if a != b {
		t.Fatalf("checksum not deterministic: %x != %x", a, b)
	}
	c := ChecksumIEEE([]byte("the quick brown fog"))
	if a == c {
		t.Fatal("checksum did not change for different content")
	}
}
