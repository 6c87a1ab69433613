package creator

import (
	"io/fs"
	"os"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/hardwarebob/reftar/format"
)

// buildFileHeader gathers filesystem metadata for the entry at
// sourcePath and builds the FileHeader that describes it, including
// inline content for small regular files. archivePath and archiveName
// are the header's own path/name fields.
func (c *Creator) buildFileHeader(sourcePath, archivePath, archiveName string, info fs.FileInfo) (*format.FileHeader, error) {
	var st unix.Stat_t
	if err := unix.Lstat(sourcePath, &st); err != nil {
		return nil, err
	}

	ft, linkName, err := classify(sourcePath, info)
	if err != nil {
		return nil, err
	}

	var devMajor, devMinor uint64
	if ft == format.TypeCharDevice || ft == format.TypeBlockDevice {
		devMajor = uint64(unix.Major(uint64(st.Rdev)))
		devMinor = uint64(unix.Minor(uint64(st.Rdev)))
	}

	fileSize := uint64(0)
	if ft == format.TypeRegular {
		fileSize = uint64(info.Size())
	}

	var inline []byte
	if ft == format.TypeRegular && fileSize > 0 && fileSize < uint64(c.blockSize) {
		inline, err = os.ReadFile(sourcePath)
		if err != nil {
			return nil, err
		}
	}

	fsType, fsID := "", uint64(0)
	if ft == format.TypeRegular {
		if f, err := os.Open(sourcePath); err == nil {
			fsType, fsID = c.probe(f)
			f.Close()
		}
	}

	return &format.FileHeader{
		FileSize:   fileSize,
		FileType:   ft,
		UID:        uint64(st.Uid),
		GID:        uint64(st.Gid),
		DevMajor:   devMajor,
		DevMinor:   devMinor,
		ATime:      st.Atim.Sec,
		MTime:      st.Mtim.Sec,
		CTime:      st.Ctim.Sec,
		Username:   lookupUsername(st.Uid),
		Groupname:  lookupGroupname(st.Gid),
		Path:       archivePath,
		Name:       archiveName,
		LinkName:   linkName,
		XattrBlob:  gatherXattrs(sourcePath, ft == format.TypeSymlink),
		FSType:     fsType,
		FSID:       fsID,
		InlineData: inline,
	}, nil
}

// classify maps a fs.FileInfo's mode to the tar-compatible FileType
// tag, reading the link target for symlinks. Sockets and any mode the
// format has no tag for are reported via errUnsupportedType so the
// caller can skip the entry with a warning.
func classify(path string, info fs.FileInfo) (format.FileType, string, error) {
	mode := info.Mode()
	switch {
	case mode.IsRegular():
		return format.TypeRegular, "", nil
	case mode.IsDir():
		return format.TypeDirectory, "", nil
	case mode&fs.ModeSymlink != 0:
		target, err := os.Readlink(path)
		if err != nil {
			return 0, "", err
		}
		return format.TypeSymlink, target, nil
	case mode&fs.ModeNamedPipe != 0:
		return format.TypeFIFO, "", nil
	case mode&fs.ModeCharDevice != 0:
		return format.TypeCharDevice, "", nil
	case mode&fs.ModeDevice != 0:
		return format.TypeBlockDevice, "", nil
	default:
		return 0, "", errUnsupportedType
	}
}

func lookupUsername(uid uint32) string {
	if u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10)); err == nil {
		return u.Username
	}
	return strconv.FormatUint(uint64(uid), 10)
}

func lookupGroupname(gid uint32) string {
	if g, err := user.LookupGroupId(strconv.FormatUint(uint64(gid), 10)); err == nil {
		return g.Name
	}
	return strconv.FormatUint(uint64(gid), 10)
}
