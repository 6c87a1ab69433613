//go:build linux

package clone

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/hardwarebob/reftar/rterr"
)

type osCloner struct{}

func (c *osCloner) TryCloneRange(src *os.File, srcOffset uint64, dst *os.File, dstOffset uint64, length uint64) (Result, error) {
	if length == 0 {
		return Unsupported, rterr.New(rterr.Io, errInvalidLength)
	}

	sameFS, err := sameFilesystem(src, dst)
	if err != nil {
		return Unsupported, nil
	}
	if !sameFS {
		// Cross-filesystem clones are impossible by construction;
		// short-circuit without the ioctl round trip.
		return Unsupported, nil
	}

	fcrange := unix.FileCloneRange{
		Src_fd:      int64(src.Fd()),
		Src_offset:  srcOffset,
		Src_length:  length,
		Dest_offset: dstOffset,
	}

	if err := unix.IoctlFileCloneRange(int(dst.Fd()), &fcrange); err != nil {
		switch err {
		case unix.EOPNOTSUPP, unix.ENOTTY, unix.EINVAL, unix.EXDEV:
			return Unsupported, nil
		}
		return Unsupported, err
	}
	return Cloned, nil
}

func sameFilesystem(a, b *os.File) (bool, error) {
	var statA, statB unix.Stat_t
	if err := unix.Fstat(int(a.Fd()), &statA); err != nil {
		return false, err
	}
	if err := unix.Fstat(int(b.Fd()), &statB); err != nil {
		return false, err
	}
	return statA.Dev == statB.Dev, nil
}
