package creator

import (
	"github.com/pkg/xattr"

	"github.com/hardwarebob/reftar/format"
)

// gatherXattrs lists and fetches every extended attribute on path and
// encodes them into the opaque blob carried by the file header.
// Symlinks use the L-prefixed calls so the link itself is inspected
// rather than its target. A filesystem without xattr support, or a
// permission denial, yields an empty blob rather than failing the
// whole entry.
func gatherXattrs(path string, isSymlink bool) []byte {
	list := xattr.List
	get := xattr.Get
	if isSymlink {
		list = xattr.LList
		get = xattr.LGet
	}

	names, err := list(path)
	if err != nil || len(names) == 0 {
		return nil
	}
	attrs := make(map[string][]byte, len(names))
	for _, name := range names {
		value, err := get(path, name)
		if err != nil {
			continue
		}
		attrs[name] = value
	}
	return format.EncodeXattrBlob(attrs)
}
