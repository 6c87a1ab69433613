package extractor

import (
	"bytes"
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/hardwarebob/reftar/creator"
	"github.com/hardwarebob/reftar/rterr"
)

const testBlockSize = 512

func buildArchive(t *testing.T, srcRoot string, inputs []string) []byte {
	t.Helper()
	var out bytes.Buffer
	c, err := creator.New(&out, testBlockSize, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.AddInputs(inputs); err != nil {
		t.Fatal(err)
	}
	if err := c.Finish(); err != nil {
		t.Fatal(err)
	}
	return out.Bytes()
}

func TestRoundTripNestedTreeAndSymlink(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "a", "b"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "a", "b", "deep.txt"), []byte("fourteen bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	big := bytes.Repeat([]byte{0x42}, testBlockSize*5)
	if err := os.WriteFile(filepath.Join(src, "a", "big.bin"), big, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("big.bin", filepath.Join(src, "a", "link")); err != nil {
		t.Fatal(err)
	}

	archive := buildArchive(t, src, []string{filepath.Join(src, "a")})

	dst := t.TempDir()
	x, err := New(bytes.NewReader(archive), dst, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := x.ExtractAll(); err != nil {
		t.Fatal(err)
	}

	deepGot, err := os.ReadFile(filepath.Join(dst, "a", "b", "deep.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(deepGot) != "fourteen bytes" {
		t.Fatalf("deep.txt mismatch: %q", deepGot)
	}

	bigGot, err := os.ReadFile(filepath.Join(dst, "a", "big.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(bigGot, big) {
		t.Fatalf("big.bin content mismatch: got %d bytes, want %d", len(bigGot), len(big))
	}

	target, err := os.Readlink(filepath.Join(dst, "a", "link"))
	if err != nil {
		t.Fatal(err)
	}
	if target != "big.bin" {
		t.Fatalf("symlink target mismatch: %q", target)
	}
}

func TestRoundTripDedupProducesIdenticalFiles(t *testing.T) {
	src := t.TempDir()
	content := bytes.Repeat([]byte("dedupme"), testBlockSize)
	if err := os.WriteFile(filepath.Join(src, "one.bin"), content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "two.bin"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	archive := buildArchive(t, src, []string{filepath.Join(src, "one.bin"), filepath.Join(src, "two.bin")})

	dst := t.TempDir()
	x, err := New(bytes.NewReader(archive), dst, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := x.ExtractAll(); err != nil {
		t.Fatal(err)
	}

	one, err := os.ReadFile(filepath.Join(dst, "one.bin"))
	if err != nil {
		t.Fatal(err)
	}
	two, err := os.ReadFile(filepath.Join(dst, "two.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if sha256.Sum256(one) != sha256.Sum256(two) {
		t.Fatal("deduplicated files did not extract to identical content")
	}
	if !bytes.Equal(one, content) {
		t.Fatal("extracted content does not match source")
	}
}

func TestRoundTripSparseFile(t *testing.T) {
	src := t.TempDir()
	size := testBlockSize * 20
	content := make([]byte, size)
	content[0] = 1
	content[size-1] = 2
	path := filepath.Join(src, "sparse.bin")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	archive := buildArchive(t, src, []string{path})

	dst := t.TempDir()
	x, err := New(bytes.NewReader(archive), dst, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := x.ExtractAll(); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "sparse.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Fatal("sparse file content mismatch after round trip")
	}
}

func TestExtractDetectsCorruptedDataExtent(t *testing.T) {
	src := t.TempDir()
	content := bytes.Repeat([]byte{0x7a}, testBlockSize*2)
	path := filepath.Join(src, "f.bin")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	archive := buildArchive(t, src, []string{path})

	// Flip a byte inside the payload of the first Data extent (archive
	// header, file header and extent header each occupy one block at
	// this block size, so the payload starts at 3*blockSize).
	corrupted := append([]byte(nil), archive...)
	payloadStart := 3 * testBlockSize // archive header, file header, extent header
	corrupted[payloadStart] ^= 0xff

	dst := t.TempDir()
	x, err := New(bytes.NewReader(corrupted), dst, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = x.ExtractAll()
	if err == nil {
		t.Fatal("expected a checksum error for corrupted payload")
	}
	if rterr.KindOf(err) != rterr.CorruptArchive {
		t.Fatalf("expected CorruptArchive, got %v", rterr.KindOf(err))
	}
}

func TestListSkipsPayloadAndCountsEntries(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "small.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	big := bytes.Repeat([]byte{0x11}, testBlockSize*4)
	if err := os.WriteFile(filepath.Join(src, "big.bin"), big, 0o644); err != nil {
		t.Fatal(err)
	}

	archive := buildArchive(t, src, []string{filepath.Join(src, "small.txt"), filepath.Join(src, "big.bin")})

	archiveHeader, entries, err := List(bytes.NewReader(archive))
	if err != nil {
		t.Fatal(err)
	}
	if archiveHeader.BlockSize != testBlockSize {
		t.Fatalf("block size mismatch: got %d", archiveHeader.BlockSize)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Header.Name] = true
	}
	if !names["small.txt"] || !names["big.bin"] {
		t.Fatalf("unexpected entry names: %v", names)
	}
}
