package forkexec

import (
	"golang.org/x/sys/unix"
)

// defines missing consts from syscall package
const (
	_SECCOMP_SET_MODE_FILTER   = 1
	_SECCOMP_FILTER_FLAG_TSYNC = 1

	// execve retries on ETXTBSY
	etxtbsyRetries = 50
)

var (
	empty = [...]byte{0}

	etxtbsyRetryInterval = unix.Timespec{
		Nsec: 1 * 1000 * 1000, // 1ms
	}
)
