package forkexec

import (
	"syscall"
)

// prepareExec prepares execve parameters
func prepareExec(args []string, argv []*byte, env []string) (*byte, []*byte, []*byte, error) {
	var err error
	if argv == nil {
		if argv, err = syscall.SlicePtrFromStrings(args); err != nil {
			return nil, nil, nil, err
		}
	} else if len(argv) == 0 || argv[len(argv)-1] != nil {
		return nil, nil, nil, syscall.EINVAL
	}

	// execve takes the file name from args, falling back to argv[0]. It is
	// nil for an empty vector.
	argv0 := argv[0]
	if len(args) > 0 {
		if argv0, err = syscall.BytePtrFromString(args[0]); err != nil {
			return nil, nil, nil, err
		}
	}

	envv, err := syscall.SlicePtrFromStrings(env)
	if err != nil {
		return nil, nil, nil, err
	}
	return argv0, argv, envv, nil
}

// prepareFds prepares fd array
func prepareFds(files []uintptr) ([]int, int) {
	fd := make([]int, len(files))
	nextfd := len(files)
	for i, ufd := range files {
		if nextfd < int(ufd) {
			nextfd = int(ufd)
		}
		fd[i] = int(ufd)
	}
	nextfd++
	return fd, nextfd
}

// syscallStringFromString prepares *byte if string is not empty, other wise nil
func syscallStringFromString(str string) (*byte, error) {
	if str != "" {
		return syscall.BytePtrFromString(str)
	}
	return nil, nil
}
