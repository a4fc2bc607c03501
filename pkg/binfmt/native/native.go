// Package native loads ELF executables of the host into sealed in-memory
// files that can be started with execveat.
package native

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/criyle/go-binfmt/pkg/binfmt"
	"github.com/criyle/go-binfmt/pkg/memfd"
)

// FormatName is the name of the native format
const FormatName = "elf"

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// Format loads native ELF executables
type Format struct{}

var _ binfmt.Format = Format{}

// Name implements binfmt.Format
func (Format) Name() string {
	return FormatName
}

// Load copies an ELF file into a memfd. Missing files and files without the
// ELF magic are not recognized.
func (Format) Load(bin *binfmt.Binary) (binfmt.Image, error) {
	f, err := os.Open(bin.Filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", binfmt.ErrNotRecognized, err)
		}
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !st.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: not a regular file: %w", bin.Filename, binfmt.ErrNotRecognized)
	}

	magic := make([]byte, len(elfMagic))
	if _, err := io.ReadFull(f, magic); err != nil || !bytes.Equal(magic, elfMagic) {
		return nil, fmt.Errorf("%s: no ELF header: %w", bin.Filename, binfmt.ErrNotRecognized)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	mf, err := memfd.DupToMemfd(filepath.Base(bin.Filename), f)
	if err != nil {
		return nil, err
	}
	return &Image{file: mf, size: st.Size()}, nil
}

// Image is a loaded executable held in a sealed memfd
type Image struct {
	file *os.File
	size int64
}

// File returns the read-only executable file
func (i *Image) File() *os.File {
	return i.file
}

// Size is the size of the executable in bytes
func (i *Image) Size() int64 {
	return i.size
}

// Close implements binfmt.Image
func (i *Image) Close() error {
	return i.file.Close()
}
