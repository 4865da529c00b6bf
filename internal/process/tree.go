package process

import (
	"context"

	gprocess "github.com/shirou/gopsutil/v3/process"
)

// Descendants returns the pids of every live descendant of pid, parents before
// children. The process table is read once, so the result is a snapshot.
func Descendants(ctx context.Context, pid int) []int32 {
	procs, err := gprocess.ProcessesWithContext(ctx)
	if err != nil {
		return nil
	}

	children := make(map[int32][]int32, len(procs))
	for _, p := range procs {
		ppid, err := p.PpidWithContext(ctx)
		if err != nil {
			continue
		}
		children[ppid] = append(children[ppid], p.Pid)
	}

	var out []int32
	seen := map[int32]bool{int32(pid): true}
	queue := []int32{int32(pid)}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, child := range children[parent] {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

// signalPIDs asks each pid to stop, or kills it when force is set. Vanished
// processes are skipped.
func signalPIDs(ctx context.Context, pids []int32, force bool) {
	for _, pid := range pids {
		p, err := gprocess.NewProcessWithContext(ctx, pid)
		if err != nil {
			continue
		}
		if force {
			_ = p.KillWithContext(ctx)
		} else {
			_ = p.TerminateWithContext(ctx)
		}
	}
}

// anyRunning reports whether at least one of pids still exists.
func anyRunning(ctx context.Context, pids []int32) bool {
	for _, pid := range pids {
		if ok, err := gprocess.PidExistsWithContext(ctx, pid); err == nil && ok {
			if p, err := gprocess.NewProcessWithContext(ctx, pid); err == nil {
				if running, err := p.IsRunningWithContext(ctx); err == nil && running && !isZombie(ctx, p) {
					return true
				}
			}
		}
	}
	return false
}

func isZombie(ctx context.Context, p *gprocess.Process) bool {
	status, err := p.StatusWithContext(ctx)
	if err != nil {
		return false
	}
	for _, s := range status {
		if s == gprocess.Zombie {
			return true
		}
	}
	return false
}
