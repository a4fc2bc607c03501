package kmem

import (
	"fmt"
	"strconv"
	"strings"
)

// Size stores number of byte for the object. E.g. Memory.
// Maximum size is bounded by 64-bit limit
type Size uint64

// String stringer interface for print
func (s Size) String() string {
	t := uint64(s)
	switch {
	case t < 1<<10:
		return fmt.Sprintf("%d B", t)
	case t < 1<<20:
		return fmt.Sprintf("%.1f KiB", float64(t)/float64(1<<10))
	case t < 1<<30:
		return fmt.Sprintf("%.1f MiB", float64(t)/float64(1<<20))
	default:
		return fmt.Sprintf("%.1f GiB", float64(t)/float64(1<<30))
	}
}

// Set parse the size value from string, e.g. 512, 64k, 16MiB, 1G, 1.5 MiB.
// It accepts the output of String.
func (s *Size) Set(str string) error {
	str = strings.TrimSpace(str)
	if str == "" {
		return fmt.Errorf("kmem: empty size")
	}
	str = strings.TrimSuffix(strings.TrimSuffix(str, "b"), "B")
	str = strings.TrimSpace(strings.TrimSuffix(str, "i"))
	if str == "" {
		return fmt.Errorf("kmem: invalid size")
	}

	factor := 0
	switch str[len(str)-1] {
	case 'k', 'K':
		factor = 10
	case 'm', 'M':
		factor = 20
	case 'g', 'G':
		factor = 30
	}
	if factor > 0 {
		str = strings.TrimSpace(str[:len(str)-1])
	}

	if strings.Contains(str, ".") {
		f, err := strconv.ParseFloat(str, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("kmem: invalid size %q", str)
		}
		*s = Size(f * float64(uint64(1)<<factor))
		return nil
	}
	t, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return fmt.Errorf("kmem: invalid size %q: %w", str, err)
	}
	*s = Size(t << factor)
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler for config decoding
func (s *Size) UnmarshalText(b []byte) error {
	return s.Set(string(b))
}

// Byte return size in bytes
func (s Size) Byte() uint64 {
	return uint64(s)
}

// KiB return size in KiB
func (s Size) KiB() uint64 {
	return uint64(s) >> 10
}

// MiB return size in MiB
func (s Size) MiB() uint64 {
	return uint64(s) >> 20
}
