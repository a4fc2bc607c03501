//go:build !linux

package memfd

import (
	"fmt"
	"io"
	"os"
	"runtime"
)

var errNotImplemented = fmt.Errorf("memfd: unsupported on platform %s", runtime.GOOS)

// New is not available on this platform
func New(string) (*os.File, error) {
	return nil, errNotImplemented
}

// DupToMemfd is not available on this platform
func DupToMemfd(string, io.Reader) (*os.File, error) {
	return nil, errNotImplemented
}

// ReadOnly is not available on this platform
func ReadOnly(*os.File) (*os.File, error) {
	return nil, errNotImplemented
}
