// Package argv copies an argument vector into one self-contained block so
// that it stays valid after the caller's memory is no longer reachable.
//
// The block is laid out as a slot array followed by the strings:
//
//	[slot 0][slot 1]...[slot n = 0][arg0\x00][arg1\x00]...
//
// Each slot is an 8-byte little-endian offset of its string inside the same
// block. No string starts at offset 0, so a zero slot terminates the array.
// Offsets keep the block relocation-safe; Pointers materializes the
// nil-terminated pointer array handed to execve.
package argv

import (
	"encoding/binary"
	"fmt"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/criyle/go-binfmt/pkg/kmem"
)

// MaxArgs is an artificial limit to detect an argument list that is not
// properly terminated
const MaxArgs = 256

// SlotSize is the size of one entry in the slot array
const SlotSize = 8

// ErrTooManyArgs is returned when the argument list exceeds MaxArgs
var ErrTooManyArgs = fmt.Errorf("argv: too many arguments: %w", syscall.E2BIG)

// Buffer is an owned copy of an argument vector
type Buffer struct {
	buf []byte
	n   int
}

// Measure returns number of arguments and the size of string bytes
// (including terminators) of args
func Measure(args []string) (int, int, error) {
	if len(args) > MaxArgs {
		return 0, 0, ErrTooManyArgs
	}
	size := 0
	for _, a := range args {
		if strings.IndexByte(a, 0) >= 0 {
			return 0, 0, fmt.Errorf("argv: argument contains NUL: %w", syscall.EINVAL)
		}
		size += len(a) + 1
	}
	return len(args), size, nil
}

// Copy copies args into a single block allocated from alloc.
// It returns nil buffer without error if args is nil or empty.
func Copy(alloc kmem.Allocator, args []string) (*Buffer, error) {
	if args == nil {
		return nil, nil
	}
	n, size, err := Measure(args)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}

	head := (n + 1) * SlotSize
	buf, err := alloc.Alloc(head + size)
	if err != nil {
		return nil, err
	}

	off := head
	for i, a := range args {
		binary.LittleEndian.PutUint64(buf[i*SlotSize:], uint64(off))
		off += copy(buf[off:], a)
		buf[off] = 0
		off++
	}
	binary.LittleEndian.PutUint64(buf[n*SlotSize:], 0)
	return &Buffer{buf: buf, n: n}, nil
}

// Len returns number of arguments
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return b.n
}

// Size returns size of the underlying block
func (b *Buffer) Size() int {
	if b == nil {
		return 0
	}
	return len(b.buf)
}

// Bytes returns the underlying block
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.buf
}

// Slot returns the raw offset stored in slot i, 0 <= i <= Len()
func (b *Buffer) Slot(i int) uint64 {
	return binary.LittleEndian.Uint64(b.buf[i*SlotSize:])
}

// Arg returns the i-th argument
func (b *Buffer) Arg(i int) string {
	if i < 0 || i >= b.Len() {
		panic(fmt.Sprintf("argv: index %d out of range [0:%d]", i, b.Len()))
	}
	return string(b.cstr(int(b.Slot(i))))
}

// Strings returns a copy of all arguments
func (b *Buffer) Strings() []string {
	if b.Len() == 0 {
		return nil
	}
	ret := make([]string, b.n)
	for i := range ret {
		ret[i] = b.Arg(i)
	}
	return ret
}

// Pointers returns a nil-terminated pointer array referring into the
// buffer. The buffer must outlive the use of the returned array.
func (b *Buffer) Pointers() []*byte {
	ret := make([]*byte, b.Len()+1)
	for i := 0; i < b.Len(); i++ {
		ret[i] = &b.buf[b.Slot(i)]
	}
	return ret
}

// Free returns the block to alloc. It is safe to call more than once.
func (b *Buffer) Free(alloc kmem.Allocator) {
	if b == nil || b.buf == nil {
		return
	}
	alloc.Free(b.buf)
	b.buf = nil
	b.n = 0
}

func (b *Buffer) cstr(off int) []byte {
	end := off
	for b.buf[end] != 0 {
		end++
	}
	return b.buf[off:end]
}

// Terminated reads a nil-terminated array of NUL-terminated strings, as passed
// by a C caller. The scan gives up with ErrTooManyArgs when no terminator is
// found within MaxArgs entries.
func Terminated(ptrs []*byte) ([]string, error) {
	if ptrs == nil {
		return nil, nil
	}
	var ret []string
	for i, p := range ptrs {
		if p == nil {
			return ret, nil
		}
		if i >= MaxArgs {
			return nil, ErrTooManyArgs
		}
		ret = append(ret, unix.BytePtrToString(p))
	}
	// array ended before its terminator
	return nil, fmt.Errorf("argv: argument list is not terminated: %w", syscall.EINVAL)
}
