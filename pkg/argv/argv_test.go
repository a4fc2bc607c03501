package argv

import (
	"errors"
	"strconv"
	"syscall"
	"testing"
	"unsafe"

	"github.com/google/go-cmp/cmp"

	"github.com/criyle/go-binfmt/pkg/kmem"
)

func makeArgs(n int) []string {
	args := make([]string, n)
	for i := range args {
		args[i] = "arg" + strconv.Itoa(i)
	}
	return args
}

func TestCopyRoundTrip(t *testing.T) {
	t.Parallel()
	for _, n := range []int{1, 2, 17, MaxArgs} {
		p := kmem.NewPool(0)
		args := makeArgs(n)
		b, err := Copy(p, args)
		if err != nil {
			t.Fatalf("Copy(%d): %v", n, err)
		}
		if b.Len() != n {
			t.Fatalf("Len = %d, want %d", b.Len(), n)
		}
		if diff := cmp.Diff(args, b.Strings()); diff != "" {
			t.Fatalf("Strings() mismatch (-want +got):\n%s", diff)
		}
		if b.Slot(n) != 0 {
			t.Fatalf("slot %d = %d, want terminator", n, b.Slot(n))
		}
		if s := p.Stats(); s.Blocks != 1 || int(s.InUse) != b.Size() {
			t.Fatalf("expected a single block of %d bytes, got %v", b.Size(), s)
		}
		b.Free(p)
		if s := p.Stats(); s.Blocks != 0 {
			t.Fatalf("block leaked: %v", s)
		}
	}
}

func TestCopyLayout(t *testing.T) {
	t.Parallel()
	args := []string{"true", "-x", ""}
	b, err := Copy(kmem.Heap, args)
	if err != nil {
		t.Fatal(err)
	}
	head := (len(args) + 1) * SlotSize
	want := head + len("true\x00-x\x00\x00")
	if b.Size() != want {
		t.Fatalf("Size = %d, want %d", b.Size(), want)
	}
	if got := string(b.Bytes()[head:]); got != "true\x00-x\x00\x00" {
		t.Fatalf("string region = %q", got)
	}
	for i := 0; i < len(args); i++ {
		off := b.Slot(i)
		if off < uint64(head) || off >= uint64(b.Size()) {
			t.Fatalf("slot %d = %d points outside the string region", i, off)
		}
	}
}

func TestCopyPointers(t *testing.T) {
	t.Parallel()
	args := []string{"echo", "hello", "world"}
	b, err := Copy(kmem.Heap, args)
	if err != nil {
		t.Fatal(err)
	}
	ptrs := b.Pointers()
	if len(ptrs) != len(args)+1 || ptrs[len(args)] != nil {
		t.Fatalf("pointer array is not nil-terminated: %v", ptrs)
	}
	start := uintptr(unsafe.Pointer(&b.Bytes()[0]))
	end := start + uintptr(b.Size())
	for i, p := range ptrs[:len(args)] {
		if a := uintptr(unsafe.Pointer(p)); a < start || a >= end {
			t.Fatalf("pointer %d does not refer into the buffer", i)
		}
	}
	got, err := Terminated(ptrs)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(args, got); diff != "" {
		t.Fatalf("Terminated(Pointers()) mismatch (-want +got):\n%s", diff)
	}
}

func TestCopyNil(t *testing.T) {
	t.Parallel()
	p := kmem.NewPool(1)
	b, err := Copy(p, nil)
	if err != nil || b != nil {
		t.Fatalf("Copy(nil) = %v, %v", b, err)
	}
	b, err = Copy(p, []string{})
	if err != nil || b != nil {
		t.Fatalf("Copy(empty) = %v, %v", b, err)
	}
	if b.Len() != 0 || b.Strings() != nil {
		t.Fatal("nil buffer should be empty")
	}
	b.Free(p)
	if s := p.Stats(); s.Allocs != 0 {
		t.Fatalf("unexpected allocation: %v", s)
	}
}

func TestCopyTooMany(t *testing.T) {
	t.Parallel()
	p := kmem.NewPool(0)
	_, err := Copy(p, makeArgs(MaxArgs+1))
	if !errors.Is(err, ErrTooManyArgs) || !errors.Is(err, syscall.E2BIG) {
		t.Fatalf("expected E2BIG, got %v", err)
	}
	if s := p.Stats(); s.Allocs != 0 {
		t.Fatalf("allocation performed before limit check: %v", s)
	}
}

func TestCopyNoMemory(t *testing.T) {
	t.Parallel()
	p := kmem.NewPool(16)
	b, err := Copy(p, []string{"a-long-enough-argument"})
	if !errors.Is(err, kmem.ErrNoMemory) {
		t.Fatalf("expected ENOMEM, got %v", err)
	}
	if b != nil {
		t.Fatal("partial buffer returned")
	}
	if s := p.Stats(); s.Blocks != 0 {
		t.Fatalf("block retained after failure: %v", s)
	}
}

func TestFreeTwice(t *testing.T) {
	t.Parallel()
	p := kmem.NewPool(0)
	b, err := Copy(p, []string{"x"})
	if err != nil {
		t.Fatal(err)
	}
	b.Free(p)
	b.Free(p)
	if s := p.Stats(); s.Frees != 1 {
		t.Fatalf("Frees = %d, want 1", s.Frees)
	}
}

func cstrings(n int) []*byte {
	ptrs := make([]*byte, n)
	for i := range ptrs {
		p, _ := syscall.BytePtrFromString("a" + strconv.Itoa(i))
		ptrs[i] = p
	}
	return ptrs
}

func TestTerminated(t *testing.T) {
	t.Parallel()
	ptrs := append(cstrings(3), nil)
	got, err := Terminated(ptrs)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a0", "a1", "a2"}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	ptrs = append(cstrings(MaxArgs), nil)
	if got, err = Terminated(ptrs); err != nil || len(got) != MaxArgs {
		t.Fatalf("Terminated(%d) = %d, %v", MaxArgs, len(got), err)
	}

	if got, err = Terminated(nil); err != nil || got != nil {
		t.Fatalf("Terminated(nil) = %v, %v", got, err)
	}
	if got, err = Terminated([]*byte{nil}); err != nil || len(got) != 0 {
		t.Fatalf("Terminated([nil]) = %v, %v", got, err)
	}
}

func TestTerminatedRunaway(t *testing.T) {
	t.Parallel()
	// 300th slot still non-null
	ptrs := append(cstrings(300), nil)
	if _, err := Terminated(ptrs); !errors.Is(err, ErrTooManyArgs) {
		t.Fatalf("expected E2BIG, got %v", err)
	}
	// 257th slot is the first one beyond the limit
	ptrs = append(cstrings(MaxArgs+1), nil)
	if _, err := Terminated(ptrs); !errors.Is(err, ErrTooManyArgs) {
		t.Fatalf("expected E2BIG, got %v", err)
	}
	if _, err := Terminated(cstrings(2)); !errors.Is(err, syscall.EINVAL) {
		t.Fatalf("expected EINVAL for unterminated array, got %v", err)
	}
}

func TestCopyEmbeddedNUL(t *testing.T) {
	t.Parallel()
	p := kmem.NewPool(0)
	if _, err := Copy(p, []string{"a\x00b"}); !errors.Is(err, syscall.EINVAL) {
		t.Fatalf("expected EINVAL, got %v", err)
	}
	if s := p.Stats(); s.Allocs != 0 {
		t.Fatalf("unexpected allocation: %v", s)
	}
}
