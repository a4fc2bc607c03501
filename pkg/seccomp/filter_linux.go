package seccomp

import (
	"fmt"
	"strings"
	"syscall"

	seccompbpf "github.com/elastic/go-seccomp-bpf"
	"golang.org/x/net/bpf"
)

// Filter is the BPF seccomp filter value
type Filter []syscall.SockFilter

// Build compiles the policy for the running architecture
func (p *Policy) Build() (Filter, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	sp, err := p.convert()
	if err != nil {
		return nil, err
	}
	insts, err := sp.Assemble()
	if err != nil {
		return nil, fmt.Errorf("seccomp: assemble: %w", err)
	}
	raw, err := bpf.Assemble(insts)
	if err != nil {
		return nil, fmt.Errorf("seccomp: encode: %w", err)
	}
	f := make(Filter, 0, len(raw))
	for _, r := range raw {
		f = append(f, syscall.SockFilter{Code: r.Op, Jt: r.Jt, Jf: r.Jf, K: r.K})
	}
	return f, nil
}

// SockFprog converts Filter to SockFprog for seccomp syscall
func (f Filter) SockFprog() *syscall.SockFprog {
	if len(f) == 0 {
		return nil
	}
	return &syscall.SockFprog{
		Len:    uint16(len(f)),
		Filter: &f[0],
	}
}

var actions = map[string]seccompbpf.Action{
	"allow":        seccompbpf.ActionAllow,
	"errno":        seccompbpf.ActionErrno,
	"trace":        seccompbpf.ActionTrace,
	"trap":         seccompbpf.ActionTrap,
	"log":          seccompbpf.ActionLog,
	"kill_thread":  seccompbpf.ActionKillThread,
	"kill_process": seccompbpf.ActionKillProcess,
	"kill":         seccompbpf.ActionKillProcess,
}

func parseAction(s string) (seccompbpf.Action, error) {
	a, ok := actions[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("seccomp: unknown action %q", s)
	}
	return a, nil
}

func (p *Policy) convert() (*seccompbpf.Policy, error) {
	def := "allow"
	if p.DefaultAction != "" {
		def = p.DefaultAction
	}
	da, err := parseAction(def)
	if err != nil {
		return nil, err
	}
	ret := &seccompbpf.Policy{DefaultAction: da}
	for i, r := range p.Syscalls {
		a, err := parseAction(r.Action)
		if err != nil {
			return nil, fmt.Errorf("seccomp: rule %d: %w", i, err)
		}
		if len(r.Names) == 0 {
			return nil, fmt.Errorf("seccomp: rule %d: no syscall names", i)
		}
		ret.Syscalls = append(ret.Syscalls, seccompbpf.SyscallGroup{
			Action: a,
			Names:  r.Names,
		})
	}
	return ret, nil
}
