package memfd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

const (
	createFlag = unix.MFD_CLOEXEC | unix.MFD_ALLOW_SEALING
	roSeal     = unix.F_SEAL_SEAL | unix.F_SEAL_SHRINK | unix.F_SEAL_GROW | unix.F_SEAL_WRITE
)

// New creates an empty memfd, caller need to close the file
func New(name string) (*os.File, error) {
	fd, err := unix.MemfdCreate(name, createFlag)
	if err != nil {
		return nil, fmt.Errorf("memfd: create %s: %w", name, err)
	}
	file := os.NewFile(uintptr(fd), name)
	if file == nil {
		unix.Close(fd)
		return nil, fmt.Errorf("memfd: invalid fd for %s", name)
	}
	return file, nil
}

// DupToMemfd copies the content of reader into a sealed memfd and returns a
// read-only descriptor of it positioned at the start
func DupToMemfd(name string, reader io.Reader) (*os.File, error) {
	file, err := New(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if _, err = file.ReadFrom(reader); err != nil {
		return nil, fmt.Errorf("memfd: copy %s: %w", name, err)
	}
	if _, err = unix.FcntlInt(file.Fd(), unix.F_ADD_SEALS, roSeal); err != nil {
		return nil, fmt.Errorf("memfd: seal %s: %w", name, err)
	}
	return ReadOnly(file)
}

// ReadOnly reopens f through procfs as a new read-only, close-on-exec
// descriptor. A writable descriptor keeps execve failing with ETXTBSY.
func ReadOnly(f *os.File) (*os.File, error) {
	p := "/proc/self/fd/" + strconv.Itoa(int(f.Fd()))
	fd, err := unix.Open(p, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("memfd: reopen %s: %w", f.Name(), err)
	}
	return os.NewFile(uintptr(fd), f.Name()), nil
}
