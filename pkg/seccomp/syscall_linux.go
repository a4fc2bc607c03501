package seccomp

import (
	"fmt"

	"github.com/elastic/go-seccomp-bpf/arch"
)

var info, errInfo = arch.GetInfo("")

// SyscallName converts a syscall number of the running architecture to its name
func SyscallName(nr uint) (string, error) {
	if errInfo != nil {
		return "", errInfo
	}
	n, ok := info.SyscallNumbers[int(nr)]
	if !ok {
		return "", fmt.Errorf("seccomp: syscall %d does not exist on %s", nr, info.Name)
	}
	return n, nil
}

// Validate checks that every syscall named by p exists on the running
// architecture
func (p *Policy) Validate() error {
	if errInfo != nil {
		return errInfo
	}
	for i, r := range p.Syscalls {
		for _, n := range r.Names {
			if _, ok := info.SyscallNames[n]; !ok {
				return fmt.Errorf("seccomp: rule %d: unknown syscall %q on %s", i, n, info.Name)
			}
		}
	}
	return nil
}
