package builtin

import (
	"fmt"
	"strings"
)

// Defaults returns a format holding the stock programs:
//
//	true     exits 0
//	false    exits 1
//	echo     prints its arguments
//	symbols  prints the export table it was started with
func Defaults() *Format {
	f := New()
	f.progs["true"] = func(*Env) int { return 0 }
	f.progs["false"] = func(*Env) int { return 1 }
	f.progs["echo"] = echo
	f.progs["symbols"] = symbols
	return f
}

func echo(env *Env) int {
	var args []string
	if len(env.Args) > 1 {
		args = env.Args[1:]
	}
	if _, err := fmt.Fprintln(env.Stdout, strings.Join(args, " ")); err != nil {
		return 1
	}
	return 0
}

func symbols(env *Env) int {
	for _, s := range env.Exports.Sorted() {
		fmt.Fprintf(env.Stdout, "%s\t%v\n", s.Name, s.Value)
	}
	return 0
}
