// Package forkexec starts a task from an executable file descriptor with
// its own argument vector, file table, resource limits and seccomp filter.
//
// The child is created by a raw clone and reports any failure before execve
// through a close-on-exec pipe.
//
// execveat requires kernel >= 3.19
// seccomp requires kernel >= 3.5
// pipe2, dup3 requires kernel >= 2.6.27
package forkexec
