package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/criyle/go-binfmt/pkg/kmem"
)

// printProcess prints what the OS reports about a started process
func printProcess(pid int) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		fmt.Fprintf(os.Stderr, "process %d: %v\n", pid, err)
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Property", "Value")
	if name, err := p.Name(); err == nil {
		table.Append("Name", name)
	}
	if status, err := p.Status(); err == nil {
		table.Append("Status", strings.Join(status, ","))
	}
	if mem, err := p.MemoryInfo(); err == nil {
		table.Append("RSS", kmem.Size(mem.RSS).String())
	}
	if ppid, err := p.Ppid(); err == nil {
		table.Append("Parent", fmt.Sprint(ppid))
	}
	table.Render()
}
