package orchestrator

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Spawner starts the detached settle watcher: an independent process that
// waits for background drivers to settle and then exits. The parent never
// joins it.
type Spawner interface {
	Spawn() error
}

// execSpawner re-executes the current binary with the given arguments in a
// new session, with no inherited stdio.
type execSpawner struct {
	args []string
}

// NewSettleSpawner returns a Spawner that runs `<self> args...` detached.
func NewSettleSpawner(args ...string) Spawner {
	return &execSpawner{args: args}
}

func (s *execSpawner) Spawn() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving own executable: %w", err)
	}

	cmd := exec.Command(exe, s.args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting settle watcher: %w", err)
	}
	// Fire and forget: release the handle so no one waits on the child.
	return cmd.Process.Release()
}
