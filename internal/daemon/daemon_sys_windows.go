//go:build windows

package daemon

import (
	"os"
	"os/exec"
)

func setDaemonSysProcAttr(cmd *exec.Cmd) {}

// processExists cannot probe a pid without x/sys/windows, so any recorded pid
// counts as running until the daemon removes its pid file.
func processExists(pid int) bool {
	return pid > 0
}

func signalTerm(proc *os.Process) error {
	return proc.Kill()
}
