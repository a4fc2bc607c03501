// Package builtin provides in-process programs registered by name.
//
// A builtin program is resolved by the base name of the path it is executed
// with, so "echo" and "/bin/echo" both resolve to the program named echo.
// Builtin programs share the address space of the caller.
package builtin

import (
	"fmt"
	"io"
	"path"
	"sort"
	"sync"

	"github.com/criyle/go-binfmt/pkg/binfmt"
	"github.com/criyle/go-binfmt/pkg/symtab"
)

// FormatName is the name of the builtin format
const FormatName = "builtin"

// Env is the environment of a running builtin program
type Env struct {
	PID     int
	Args    []string
	Exports symtab.Table
	Stdout  io.Writer
	Stderr  io.Writer
}

// Entry is the main function of a builtin program. It returns the exit code.
type Entry func(env *Env) int

// Format loads builtin programs
type Format struct {
	mu    sync.RWMutex
	progs map[string]Entry
}

var _ binfmt.Format = &Format{}

// New creates an empty builtin format
func New() *Format {
	return &Format{progs: make(map[string]Entry)}
}

// Add registers a program under name
func (f *Format) Add(name string, e Entry) error {
	if name == "" || e == nil {
		return fmt.Errorf("builtin: invalid program %q", name)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.progs[name]; ok {
		return fmt.Errorf("builtin: program %q already registered", name)
	}
	f.progs[name] = e
	return nil
}

// Programs returns the sorted names of registered programs
func (f *Format) Programs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.progs))
	for n := range f.progs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Name implements binfmt.Format
func (f *Format) Name() string {
	return FormatName
}

// Load implements binfmt.Format
func (f *Format) Load(bin *binfmt.Binary) (binfmt.Image, error) {
	name := path.Base(bin.Filename)
	f.mu.RLock()
	e, ok := f.progs[name]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("builtin: %s: %w", name, binfmt.ErrNotRecognized)
	}
	return &Image{name: name, entry: e}, nil
}

// Image is a loaded builtin program
type Image struct {
	name  string
	entry Entry
}

// Name returns the program name
func (i *Image) Name() string {
	return i.name
}

// Entry returns the program entry point
func (i *Image) Entry() Entry {
	return i.entry
}

// Close implements binfmt.Image
func (i *Image) Close() error {
	return nil
}
