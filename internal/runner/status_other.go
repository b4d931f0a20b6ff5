//go:build !unix

package runner

import "os"

func decodeStatus(ps *os.ProcessState) (int, string) {
	return ps.ExitCode(), ""
}
