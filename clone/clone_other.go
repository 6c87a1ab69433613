//go:build !linux

package clone

import "os"

type osCloner struct{}

func (c *osCloner) TryCloneRange(src *os.File, srcOffset uint64, dst *os.File, dstOffset uint64, length uint64) (Result, error) {
	if length == 0 {
		return Unsupported, errInvalidLength
	}
	return Unsupported, nil
}
