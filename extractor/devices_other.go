//go:build !linux

package extractor

import (
	"errors"

	"github.com/hardwarebob/reftar/format"
)

var errNoDeviceNodes = errors.New("device nodes are not supported on this platform")

func mkfifo(path string) error {
	return errNoDeviceNodes
}

func mknod(path string, header *format.FileHeader) error {
	return errNoDeviceNodes
}

func chown(path string, uid, gid uint64) error {
	return nil
}
