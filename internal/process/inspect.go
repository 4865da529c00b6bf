package process

import (
	"context"
	"os"
	"strings"
	"time"

	gprocess "github.com/shirou/gopsutil/v3/process"
)

// ProcessInfo is a point-in-time view of one operating system process.
type ProcessInfo struct {
	PID     int32
	PPID    int32
	Depth   int
	Name    string
	Cmdline string
	Status  string
	Started time.Time
}

// Inspect describes pid and its live descendants, parents before children.
func Inspect(ctx context.Context, pid int) ([]ProcessInfo, error) {
	root, err := describe(ctx, int32(pid))
	if err != nil {
		return nil, err
	}
	out := []ProcessInfo{root}
	depth := map[int32]int{root.PID: 0}
	for _, child := range Descendants(ctx, pid) {
		info, err := describe(ctx, child)
		if err != nil {
			continue
		}
		info.Depth = depth[info.PPID] + 1
		depth[info.PID] = info.Depth
		out = append(out, info)
	}
	return out, nil
}

func describe(ctx context.Context, pid int32) (ProcessInfo, error) {
	p, err := gprocess.NewProcessWithContext(ctx, pid)
	if err != nil {
		return ProcessInfo{}, err
	}
	info := ProcessInfo{PID: pid}
	info.PPID, _ = p.PpidWithContext(ctx)
	info.Name, _ = p.NameWithContext(ctx)
	info.Cmdline, _ = p.CmdlineWithContext(ctx)
	if status, err := p.StatusWithContext(ctx); err == nil {
		info.Status = strings.Join(status, ",")
	}
	if ms, err := p.CreateTimeWithContext(ctx); err == nil {
		info.Started = time.UnixMilli(ms)
	}
	return info, nil
}

// FindByName returns the pids of processes called name, excluding the caller.
func FindByName(ctx context.Context, name string) ([]int32, error) {
	procs, err := gprocess.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	self := int32(os.Getpid())
	var out []int32
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		if n, err := p.NameWithContext(ctx); err == nil && n == name {
			out = append(out, p.Pid)
		}
	}
	return out, nil
}
