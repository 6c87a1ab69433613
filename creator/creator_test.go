package creator

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/hardwarebob/reftar/format"
)

const testBlockSize = 512

// readAllExtents parses every FileHeader/ExtentHeader in buf and
// returns, per file, the sequence of extent types written for it —
// enough to assert on dedup and sparse-coalescing behavior without
// duplicating the Extractor's own decoding logic here.
func readAllExtents(t *testing.T, buf []byte) map[string][]format.ExtentType {
	t.Helper()
	r := format.NewReader(bytes.NewReader(buf), testBlockSize)
	archiveHeader, err := format.ReadArchiveHeader(r)
	if err != nil {
		t.Fatal(err)
	}

	result := make(map[string][]format.ExtentType)
	for {
		h, err := format.ReadFileHeader(r)
		if err != nil {
			t.Fatal(err)
		}
		if h == nil {
			break
		}
		key := filepath.Join(h.Path, h.Name)
		if h.FileType != format.TypeRegular || h.HasInline() || h.FileSize == 0 {
			continue
		}
		var consumed uint64
		for consumed < h.FileSize {
			eh, err := format.ReadExtentHeader(r)
			if err != nil {
				t.Fatal(err)
			}
			result[key] = append(result[key], eh.ExtentType)
			length := eh.Length(archiveHeader.BlockSize)
			if eh.ExtentType == format.ExtentData {
				if _, err := r.ReadBytes(int(length)); err != nil {
					t.Fatal(err)
				}
			}
			consumed += length
		}
	}
	return result
}

func TestCreatorDedupAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	content := bytes.Repeat([]byte("A"), testBlockSize*3)
	if err := os.WriteFile(filepath.Join(dir, "one.bin"), content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "two.bin"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	c, err := New(&out, testBlockSize, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.AddInputs([]string{filepath.Join(dir, "one.bin"), filepath.Join(dir, "two.bin")}); err != nil {
		t.Fatal(err)
	}
	if err := c.Finish(); err != nil {
		t.Fatal(err)
	}

	extents := readAllExtents(t, out.Bytes())
	// one.bin's three blocks are identical, so only its first block is
	// new Data; the other two already dedup against it.
	for i, et := range extents["one.bin"] {
		want := format.ExtentReference
		if i == 0 {
			want = format.ExtentData
		}
		if et != want {
			t.Fatalf("expected one.bin to be one Data extent followed by References, got %v", extents["one.bin"])
		}
	}
	for _, et := range extents["two.bin"] {
		if et != format.ExtentReference {
			t.Fatalf("expected two.bin to be all Reference extents, got %v", extents["two.bin"])
		}
	}
}

func TestCreatorCoalescesSparseRun(t *testing.T) {
	dir := t.TempDir()
	size := testBlockSize * 10
	content := make([]byte, size)
	content[0] = 'x'
	content[size-1] = 'y'
	path := filepath.Join(dir, "sparse.bin")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	c, err := New(&out, testBlockSize, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.AddInputs([]string{path}); err != nil {
		t.Fatal(err)
	}
	if err := c.Finish(); err != nil {
		t.Fatal(err)
	}

	extents := readAllExtents(t, out.Bytes())
	got := extents["sparse.bin"]
	if len(got) != 3 {
		t.Fatalf("expected 3 extents (data, sparse, data), got %v", got)
	}
	if got[0] != format.ExtentData || got[1] != format.ExtentSparse || got[2] != format.ExtentData {
		t.Fatalf("unexpected extent sequence: %v", got)
	}
}

func TestCreatorInlinesSmallFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "small.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	c, err := New(&out, testBlockSize, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.AddInputs([]string{path}); err != nil {
		t.Fatal(err)
	}
	if err := c.Finish(); err != nil {
		t.Fatal(err)
	}

	if out.Len()%testBlockSize != 0 {
		t.Fatalf("archive not block-aligned: %d bytes", out.Len())
	}

	r := format.NewReader(bytes.NewReader(out.Bytes()), testBlockSize)
	if _, err := format.ReadArchiveHeader(r); err != nil {
		t.Fatal(err)
	}
	h, err := format.ReadFileHeader(r)
	if err != nil {
		t.Fatal(err)
	}
	if h == nil || !h.HasInline() || !bytes.Equal(h.InlineData, []byte("hello")) {
		t.Fatalf("expected inlined content %q, got %+v", "hello", h)
	}
}

func TestCreatorWalksDirectoriesInOrder(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "a"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "a", "b"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a", "b", "deep.txt"), []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	c, err := New(&out, testBlockSize, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.AddInputs([]string{dir}); err != nil {
		t.Fatal(err)
	}
	if err := c.Finish(); err != nil {
		t.Fatal(err)
	}

	r := format.NewReader(bytes.NewReader(out.Bytes()), testBlockSize)
	if _, err := format.ReadArchiveHeader(r); err != nil {
		t.Fatal(err)
	}
	var names []string
	for {
		h, err := format.ReadFileHeader(r)
		if err != nil {
			t.Fatal(err)
		}
		if h == nil {
			break
		}
		names = append(names, filepath.Join(h.Path, h.Name))
	}
	want := []string{
		filepath.Base(dir),
		filepath.Join(filepath.Base(dir), "a"),
		filepath.Join(filepath.Base(dir), "a", "b"),
		filepath.Join(filepath.Base(dir), "a", "b", "deep.txt"),
	}
	if len(names) != len(want) {
		t.Fatalf("got entries %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("entry %d: got %q, want %q", i, names[i], want[i])
		}
	}
}
