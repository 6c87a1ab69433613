package format

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeXattrBlobRoundTrip(t *testing.T) {
	attrs := map[string][]byte{
		"user.comment": []byte("hello world"),
		"user.empty":   []byte(""),
	}
	blob := EncodeXattrBlob(attrs)
	got, err := DecodeXattrBlob(blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(attrs) {
		t.Fatalf("got %d attrs, want %d", len(got), len(attrs))
	}
	for name, value := range attrs {
		if !bytes.Equal(got[name], value) {
			t.Fatalf("attr %q: got %q, want %q", name, got[name], value)
		}
	}
}

func TestEncodeXattrBlobEmptyIsNil(t *testing.T) {
	if blob := EncodeXattrBlob(nil); blob != nil {
		t.Fatalf("expected nil blob for no attrs, got %v", blob)
	}
}

func TestDecodeXattrBlobRejectsTruncated(t *testing.T) {
	if _, err := DecodeXattrBlob([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected an error for a truncated blob")
	}
}

func TestDecodeXattrBlobRejectsOverrun(t *testing.T) {
	// A name length prefix claiming more bytes than remain in the blob.
	blob := []byte{0xff, 0xff, 0xff, 0x7f}
	if _, err := DecodeXattrBlob(blob); err == nil {
		t.Fatal("expected an error for an overrunning length prefix")
	}
}
