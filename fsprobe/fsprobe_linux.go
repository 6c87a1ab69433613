//go:build linux

package fsprobe

import (
	"os"

	"golang.org/x/sys/unix"
)

// magicNames maps the handful of f_type values reftar's supported
// copy-on-write and common POSIX filesystems report via statfs(2).
var magicNames = map[int64]string{
	0x9123683E: "btrfs",
	0x58465342: "xfs",
	0xEF53:     "ext4",
	0x6969:     "nfs",
	0x01021994: "tmpfs",
}

func probe(f *os.File) (string, uint64) {
	var st unix.Statfs_t
	if err := unix.Fstatfs(int(f.Fd()), &st); err != nil {
		return "unknown", 0
	}

	var stat unix.Stat_t
	var fsID uint64
	if err := unix.Fstat(int(f.Fd()), &stat); err == nil {
		fsID = uint64(stat.Dev)
	}

	name, ok := magicNames[int64(st.Type)]
	if !ok {
		return "unknown", fsID
	}
	return name, fsID
}
