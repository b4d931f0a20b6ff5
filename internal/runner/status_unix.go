//go:build unix

package runner

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// decodeStatus follows the POSIX convention of reporting a child killed
// by signal N as exit status -N.
func decodeStatus(ps *os.ProcessState) (int, string) {
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		sig := ws.Signal()
		name := unix.SignalName(sig)
		if name == "" {
			name = sig.String()
		}
		return -int(sig), name
	}
	return ps.ExitCode(), ""
}
