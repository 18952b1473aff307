package runner

import (
	"context"
	"os/exec"
)

// Command is a fully composed process invocation.
type Command struct {
	Argv []string
	Env  []string
	Dir  string
}

// Handle observes a started process.
type Handle interface {
	PID() int
	// Wait blocks until the process exits and returns its exit code.
	Wait() (int, error)
}

// Executor starts processes. ExecExecutor is the real one; tests record
// what would have been started.
type Executor interface {
	Start(ctx context.Context, cmd Command) (Handle, error)
	CombinedOutput(ctx context.Context, argv []string, env []string) ([]byte, error)
}

type ExecExecutor struct{}

func (ExecExecutor) Start(_ context.Context, cmd Command) (Handle, error) {
	// the game outlives the launch request, so it is not bound to ctx
	c := exec.Command(cmd.Argv[0], cmd.Argv[1:]...)
	c.Env = cmd.Env
	c.Dir = cmd.Dir
	if err := c.Start(); err != nil {
		return nil, err
	}
	return &execHandle{cmd: c}, nil
}

func (ExecExecutor) CombinedOutput(ctx context.Context, argv []string, env []string) ([]byte, error) {
	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if env != nil {
		c.Env = env
	}
	return c.CombinedOutput()
}

type execHandle struct {
	cmd *exec.Cmd
}

func (h *execHandle) PID() int {
	return h.cmd.Process.Pid
}

func (h *execHandle) Wait() (int, error) {
	err := h.cmd.Wait()
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, err
	}
	return h.cmd.ProcessState.ExitCode(), nil
}
