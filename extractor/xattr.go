package extractor

import (
	"github.com/pkg/xattr"

	"github.com/hardwarebob/reftar/format"
)

// restoreXattrs decodes blob and applies each attribute to path with
// xattr.Set (or xattr.LSet for a symlink, so the link itself is
// restored rather than its target). Failures are best-effort: a
// permission failure while applying metadata warns and continues
// rather than aborting the extraction.
func restoreXattrs(path string, isSymlink bool, blob []byte, warnf func(string, ...any)) {
	attrs, err := format.DecodeXattrBlob(blob)
	if err != nil {
		warnf("skipping malformed xattr blob for %s: %v", path, err)
		return
	}
	set := xattr.Set
	if isSymlink {
		set = xattr.LSet
	}
	for name, value := range attrs {
		if err := set(path, name, value); err != nil {
			warnf("could not restore xattr %s on %s: %v", name, path, err)
		}
	}
}
