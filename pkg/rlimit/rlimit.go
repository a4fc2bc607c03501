// Package rlimit provides data structure for resource limits by setrlimit syscall on linux.
package rlimit

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/criyle/go-binfmt/pkg/kmem"
)

// RLimits defines the rlimit applied by setrlimit syscall to a started task
type RLimits struct {
	CPU          uint64    `yaml:"cpu" mapstructure:"cpu"`           // in s
	CPUHard      uint64    `yaml:"cpu_hard" mapstructure:"cpu_hard"` // in s
	Data         kmem.Size `yaml:"data" mapstructure:"data"`
	FileSize     kmem.Size `yaml:"file_size" mapstructure:"file_size"`
	Stack        kmem.Size `yaml:"stack" mapstructure:"stack"`
	AddressSpace kmem.Size `yaml:"address_space" mapstructure:"address_space"`
	OpenFile     uint64    `yaml:"open_file" mapstructure:"open_file"`
	DisableCore  bool      `yaml:"disable_core" mapstructure:"disable_core"` // set core to 0
}

// RLimit is the resource limits defined by Linux setrlimit
type RLimit struct {
	// Res is the resource type (e.g. syscall.RLIMIT_CPU)
	Res int
	// Rlim is the limit applied to that resource
	Rlim syscall.Rlimit
}

func limit(res int, cur, max uint64) RLimit {
	return RLimit{Res: res, Rlim: syscall.Rlimit{Cur: cur, Max: max}}
}

// PrepareRLimit creates rlimit structures for the task. Zero fields are
// left unlimited.
func (r *RLimits) PrepareRLimit() []RLimit {
	var ret []RLimit
	if r.CPU > 0 {
		ret = append(ret, limit(syscall.RLIMIT_CPU, r.CPU, max(r.CPU, r.CPUHard)))
	}
	for _, s := range []struct {
		res  int
		size kmem.Size
	}{
		{syscall.RLIMIT_DATA, r.Data},
		{syscall.RLIMIT_FSIZE, r.FileSize},
		{syscall.RLIMIT_STACK, r.Stack},
		{syscall.RLIMIT_AS, r.AddressSpace},
	} {
		if s.size > 0 {
			ret = append(ret, limit(s.res, s.size.Byte(), s.size.Byte()))
		}
	}
	if r.OpenFile > 0 {
		ret = append(ret, limit(syscall.RLIMIT_NOFILE, r.OpenFile, r.OpenFile))
	}
	if r.DisableCore {
		ret = append(ret, limit(syscall.RLIMIT_CORE, 0, 0))
	}
	return ret
}

func (r RLimit) String() string {
	switch r.Res {
	case syscall.RLIMIT_CPU:
		return fmt.Sprintf("CPU[%d s:%d s]", r.Rlim.Cur, r.Rlim.Max)
	case syscall.RLIMIT_NOFILE:
		return fmt.Sprintf("OpenFile[%d:%d]", r.Rlim.Cur, r.Rlim.Max)
	}
	t := "Unknown"
	switch r.Res {
	case syscall.RLIMIT_DATA:
		t = "Data"
	case syscall.RLIMIT_FSIZE:
		t = "File"
	case syscall.RLIMIT_STACK:
		t = "Stack"
	case syscall.RLIMIT_AS:
		t = "AddressSpace"
	case syscall.RLIMIT_CORE:
		t = "Core"
	}
	return fmt.Sprintf("%s[%v:%v]", t, kmem.Size(r.Rlim.Cur), kmem.Size(r.Rlim.Max))
}

func (r RLimits) String() string {
	var sb strings.Builder
	sb.WriteString("RLimits[")
	for i, rl := range r.PrepareRLimit() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(rl.String())
	}
	sb.WriteString("]")
	return sb.String()
}
