// Package seccomp compiles syscall filter policies to seccomp BPF programs.
package seccomp

// Rule applies an action to a group of syscalls
type Rule struct {
	Action string   `yaml:"action" mapstructure:"action"`
	Names  []string `yaml:"names" mapstructure:"names"`
}

// Policy is a seccomp policy as written in configuration
type Policy struct {
	DefaultAction string `yaml:"default_action" mapstructure:"default_action"`
	Syscalls      []Rule `yaml:"syscalls" mapstructure:"syscalls"`
}

// Empty reports whether the policy filters nothing
func (p *Policy) Empty() bool {
	return p == nil || (p.DefaultAction == "" && len(p.Syscalls) == 0)
}
