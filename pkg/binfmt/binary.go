package binfmt

import (
	"unsafe"

	"github.com/criyle/go-binfmt/pkg/argv"
	"github.com/criyle/go-binfmt/pkg/symtab"
)

type binaryState int

const (
	stateConstructed binaryState = iota
	stateLoaded
	stateUnloaded
)

// recordSize is the memory charged to the allocator for a launch record that
// outlives the call to Exec
var recordSize = int(unsafe.Sizeof(Binary{}))

// Binary is the record of one in-flight load and execute operation
type Binary struct {
	// Filename is the path of the image to load
	Filename string

	// Exports is borrowed from the caller and must outlive the load
	Exports symtab.Table

	// Image holds everything the loader acquired for this binary. It is
	// opaque to the launcher and passed unchanged to the starter and the
	// unloader.
	Image Image

	// Format is the name of the format that loaded the image
	Format string

	args     *argv.Buffer
	borrowed []string
	record   []byte
	state    binaryState
}

// NewBinary creates a record ready to be loaded
func NewBinary(filename string, args []string, exports symtab.Table) *Binary {
	return &Binary{
		Filename: filename,
		Exports:  exports,
		borrowed: args,
	}
}

// Args returns the argument vector of the binary, either the owned copy or
// the caller's vector
func (b *Binary) Args() []string {
	if b.args != nil {
		return b.args.Strings()
	}
	return b.borrowed
}

// ArgBuffer returns the owned argument buffer, nil if the arguments are
// borrowed or empty
func (b *Binary) ArgBuffer() *argv.Buffer {
	return b.args
}

// Loaded reports whether the binary holds a loaded image
func (b *Binary) Loaded() bool {
	return b.state == stateLoaded
}
