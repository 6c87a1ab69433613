// Package fsprobe reports the mount type and a stable device
// identifier for a file's containing filesystem. The result is purely
// informational — it populates FileHeader.FSType / FSID and is never
// consulted by the Extractor for correctness.
package fsprobe

import "os"

// Probe reports the mount type name (e.g. "btrfs", "xfs", "ext4", or
// "unknown") and a 64-bit identifier for the filesystem containing f.
// On any error, or on a platform without a probe implementation, it
// returns ("unknown", 0) rather than failing the caller.
func Probe(f *os.File) (fsType string, fsID uint64) {
	return probe(f)
}
