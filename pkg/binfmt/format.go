package binfmt

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
)

// Image holds the resources a format acquired when loading a binary
type Image interface {
	// Close releases the loader-owned resources. It is called exactly once.
	Close() error
}

// Format loads one kind of program image
type Format interface {
	Name() string

	// Load loads bin.Filename. It returns an error wrapping ErrNotRecognized
	// if the file is not of this format so that the next format is tried.
	Load(bin *Binary) (Image, error)
}

// Registry is a Loader trying registered formats in registration order.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	formats []Format
}

// NewRegistry creates a registry with formats registered in order
func NewRegistry(formats ...Format) *Registry {
	return &Registry{formats: formats}
}

// Register appends a format to the registry
func (r *Registry) Register(f Format) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats = append(r.formats, f)
}

// Formats returns the registered formats
func (r *Registry) Formats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Format(nil), r.formats...)
}

// Load populates bin.Image using the first format that recognizes the file.
// On failure bin holds no image and can be discarded.
func (r *Registry) Load(bin *Binary) error {
	if bin.state != stateConstructed {
		return fmt.Errorf("binfmt: %s: binary already loaded: %w", bin.Filename, syscall.EINVAL)
	}
	for _, f := range r.Formats() {
		img, err := f.Load(bin)
		if errors.Is(err, ErrNotRecognized) {
			continue
		}
		if err != nil {
			return fmt.Errorf("binfmt: %s: %w", f.Name(), err)
		}
		bin.Image = img
		bin.Format = f.Name()
		bin.state = stateLoaded
		return nil
	}
	return fmt.Errorf("binfmt: %s: no format recognized: %w", bin.Filename, syscall.ENOEXEC)
}

// Unload releases the image held by bin. Calling it on a binary that is not
// loaded returns ErrNotLoaded.
func (r *Registry) Unload(bin *Binary) error {
	if bin.state != stateLoaded {
		return ErrNotLoaded
	}
	err := bin.Image.Close()
	bin.Image = nil
	bin.state = stateUnloaded
	if err != nil {
		return fmt.Errorf("binfmt: unload %s: %w", bin.Filename, err)
	}
	return nil
}
