//go:build !linux

package platform

import (
	"fmt"
	"runtime"

	"github.com/criyle/go-binfmt/pkg/binfmt"
	"github.com/criyle/go-binfmt/pkg/sched"
)

func nativeFormat() binfmt.Format {
	return nil
}

func newProcessStarter(*Config, *sched.Scheduler) (binfmt.Starter, error) {
	return nil, fmt.Errorf("platform: isolated tasks are not supported on %s", runtime.GOOS)
}
