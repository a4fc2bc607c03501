//go:build linux

package rlimit

import (
	"syscall"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func TestPrepareRLimit(t *testing.T) {
	tests := []struct {
		name   string
		rl     RLimits
		expect []int
	}{
		{"Empty", RLimits{}, nil},
		{"CPU only", RLimits{CPU: 1}, []int{syscall.RLIMIT_CPU}},
		{"Stack only", RLimits{Stack: 1 << 20}, []int{syscall.RLIMIT_STACK}},
		{
			"All fields",
			RLimits{CPU: 1, CPUHard: 2, Data: 1024, FileSize: 2048, Stack: 4096, AddressSpace: 8192, OpenFile: 16, DisableCore: true},
			[]int{syscall.RLIMIT_CPU, syscall.RLIMIT_DATA, syscall.RLIMIT_FSIZE, syscall.RLIMIT_STACK, syscall.RLIMIT_AS, syscall.RLIMIT_NOFILE, syscall.RLIMIT_CORE},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int
			for _, r := range tt.rl.PrepareRLimit() {
				got = append(got, r.Res)
			}
			if diff := cmp.Diff(tt.expect, got); diff != "" {
				t.Fatalf("resources (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCPUHardAtLeastSoft(t *testing.T) {
	rl := (&RLimits{CPU: 3, CPUHard: 1}).PrepareRLimit()
	if len(rl) != 1 || rl[0].Rlim.Cur != 3 || rl[0].Rlim.Max != 3 {
		t.Fatalf("unexpected cpu limit %v", rl)
	}
}

func TestRLimitsString(t *testing.T) {
	rl := RLimits{
		CPU:          1,
		CPUHard:      2,
		Data:         1024,
		FileSize:     100,
		Stack:        8 << 20,
		AddressSpace: 8192,
		OpenFile:     16,
		DisableCore:  true,
	}
	want := "RLimits[CPU[1 s:2 s],Data[1.0 KiB:1.0 KiB],File[100 B:100 B],Stack[8.0 MiB:8.0 MiB],AddressSpace[8.0 KiB:8.0 KiB],OpenFile[16:16],Core[0 B:0 B]]"
	if got := rl.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got := (RLimits{}).String(); got != "RLimits[]" {
		t.Errorf("got %q for empty limits", got)
	}
}

func TestRLimitsYAML(t *testing.T) {
	const doc = `
cpu: 2
data: 64m
stack: 8MiB
open_file: 32
disable_core: true
`
	var rl RLimits
	if err := yaml.Unmarshal([]byte(doc), &rl); err != nil {
		t.Fatal(err)
	}
	want := RLimits{CPU: 2, Data: 64 << 20, Stack: 8 << 20, OpenFile: 32, DisableCore: true}
	if diff := cmp.Diff(want, rl); diff != "" {
		t.Fatalf("decoded (-want +got):\n%s", diff)
	}
}
