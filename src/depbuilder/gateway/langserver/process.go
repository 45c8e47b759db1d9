package langserver

import (
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/uber/depbuilder/src/depbuilder/internal/errors"
)

// Process is the operating system side of a connection.
type Process interface {
	Pid() int
	// Exited is closed once the process has been reaped.
	Exited() <-chan struct{}
	// Stop waits up to grace for a voluntary exit, then signals SIGTERM and waits killGrace,
	// then signals SIGKILL.
	Stop(grace, killGrace time.Duration) error
}

type osProcess struct {
	cmd    *exec.Cmd
	exited chan struct{}
}

// newOSProcess reaps a started command in the background.
func newOSProcess(cmd *exec.Cmd) *osProcess {
	p := &osProcess{cmd: cmd, exited: make(chan struct{})}
	go func() {
		// The exit status of a language server being torn down carries no information.
		_ = cmd.Wait()
		close(p.exited)
	}()
	return p
}

func (p *osProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *osProcess) Exited() <-chan struct{} {
	return p.exited
}

func (p *osProcess) Stop(grace, killGrace time.Duration) error {
	if p.waitFor(grace) {
		return nil
	}
	if err := signalGroup(p.Pid(), syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("sending SIGTERM to %d: %w", p.Pid(), err)
	}
	if p.waitFor(killGrace) {
		return nil
	}
	if err := signalGroup(p.Pid(), syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("sending SIGKILL to %d: %w", p.Pid(), err)
	}
	if p.waitFor(killGrace) {
		return nil
	}
	return fmt.Errorf("process %d still running after SIGKILL", p.Pid())
}

func (p *osProcess) waitFor(d time.Duration) bool {
	if d <= 0 {
		select {
		case <-p.exited:
			return true
		default:
			return false
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-p.exited:
		return true
	case <-timer.C:
		return false
	}
}
