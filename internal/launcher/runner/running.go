package runner

import (
	"context"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/sjzar/xivlauncher/pkg/util"
)

// RunningFunc reports the pid of a process already started from exe.
type RunningFunc func(ctx context.Context, exe string) (int32, bool)

// FindRunning scans process command lines for the game executable, either
// as a host path or as the path the compatibility layer sees.
func FindRunning(ctx context.Context, exe string) (int32, bool) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, false
	}
	self := int32(os.Getpid())
	winPath := util.ToWindowsPath(exe)

	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		cmdline, err := p.CmdlineSliceWithContext(ctx)
		if err != nil {
			continue
		}
		for _, arg := range cmdline {
			if arg == exe || strings.EqualFold(arg, winPath) {
				return p.Pid, true
			}
		}
	}
	return 0, false
}
