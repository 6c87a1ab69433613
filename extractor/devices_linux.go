//go:build linux

package extractor

import (
	"golang.org/x/sys/unix"

	"github.com/hardwarebob/reftar/format"
)

func mkfifo(path string) error {
	return unix.Mkfifo(path, 0o644)
}

func mknod(path string, header *format.FileHeader) error {
	mode := uint32(0o644) | unix.S_IFCHR
	if header.FileType == format.TypeBlockDevice {
		mode = uint32(0o644) | unix.S_IFBLK
	}
	dev := unix.Mkdev(uint32(header.DevMajor), uint32(header.DevMinor))
	return unix.Mknod(path, mode, int(dev))
}

func chown(path string, uid, gid uint64) error {
	return unix.Chown(path, int(uid), int(gid))
}
