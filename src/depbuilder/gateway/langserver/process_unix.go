//go:build unix

package langserver

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup starts the server in its own process group so that signals also
// reach any indexer workers it forks.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalGroup(pid int, sig syscall.Signal) error {
	return syscall.Kill(-pid, sig)
}
