package platform

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/criyle/go-binfmt/pkg/seccomp"
)

func TestIsolatedTrue(t *testing.T) {
	t.Parallel()
	if _, err := os.Stat("/bin/true"); err != nil {
		t.Skip(err)
	}
	cfg := Default()
	cfg.KeepExited = true
	cfg.Seccomp = seccomp.Policy{
		DefaultAction: "allow",
		Syscalls:      []seccomp.Rule{{Action: "errno", Names: []string{"ptrace"}}},
	}
	reg := prometheus.NewRegistry()
	p, err := New(cfg, nil, reg)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Caps.NeedsArgumentCopy() || !p.Caps.SupportsAutoUnload() {
		t.Fatalf("unexpected caps %+v", p.Caps)
	}

	res, err := p.Exec("/bin/true", []string{"true", "-x"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if st := p.Pool.Stats(); st.Allocs != 2 {
		t.Fatalf("expected record and argument allocations, got %v", st)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r, err := p.Sched.Wait(ctx, res.PID)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Success() {
		t.Fatalf("unexpected result %v", r)
	}
	if p.Pool.Stats().Blocks != 0 {
		t.Fatalf("memory not released on exit: %v", p.Pool.Stats())
	}
	const unloads = `
# HELP binfmt_exit_unloads_total Images unloaded automatically when their task exited.
# TYPE binfmt_exit_unloads_total counter
binfmt_exit_unloads_total 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(unloads), "binfmt_exit_unloads_total"); err != nil {
		t.Fatal(err)
	}
}
